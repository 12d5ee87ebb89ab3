package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AntonStoeckl/dynamic-collections-go/config"
	"github.com/AntonStoeckl/dynamic-collections-go/settings"
)

const fastHashing = "{server: {bcrypt_cost: 4}}"

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func Test_VersionCommand(t *testing.T) {
	out, err := runCommand(t, "", "version")

	require.NoError(t, err)
	assert.Contains(t, out, "Module:")
	assert.Contains(t, out, "Go:")
}

func Test_HashPasswordCommand(t *testing.T) {
	testCases := []struct {
		name  string
		stdin string
		args  []string
	}{
		{name: "password argument", args: []string{"hash-password", "s3cret", "--config", fastHashing}},
		{name: "password on stdin", stdin: "s3cret\n", args: []string{"hash-password", "--config", fastHashing}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runCommand(t, tc.stdin, tc.args...)

			require.NoError(t, err)
			hash := strings.TrimSpace(out)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
			cost, err := bcrypt.Cost([]byte(hash))
			require.NoError(t, err)
			assert.Equal(t, 4, cost)
		})
	}
}

func Test_MigrateCommand_RequiresPostgres(t *testing.T) {
	_, err := runCommand(t, "", "migrate", "--config", "{store: {engine: memory}}")

	assert.ErrorIs(t, err, ErrNotPostgres)
}

func Test_SeedCommand_HarvestsIntoNewSettingsDocuments(t *testing.T) {
	// arrange
	dir := t.TempDir()
	cfg := fmt.Sprintf("{server: {bcrypt_cost: 4}, settings: {dir: %q}}", dir)

	// act
	_, err := runCommand(t, "", "seed", "--config", cfg,
		"--vehicles", "3", "--customers", "3", "--employees", "1", "--bookings", "3", "--seed", "42")

	// assert
	require.NoError(t, err)

	repo, err := settings.NewDirRepository(dir)
	require.NoError(t, err, "error in arranging test data")
	doc, err := repo.Load(context.Background(), "collections.json")
	require.NoError(t, err)
	assert.Contains(t, doc.Keys(), "vehicle")
}

func Test_NewApp_WiresMemoryStore(t *testing.T) {
	// arrange
	ctx := context.Background()
	cfg, err := config.Load(ctx, fmt.Sprintf("{settings: {dir: %q}}", t.TempDir()), nil)
	require.NoError(t, err, "error in arranging test data")

	// act
	a, err := newApp(ctx, cfg, zap.NewNop())

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"Booking", "Customer", "Vehicle", "Employee"}, a.store.Collections())
	assert.NotNil(t, a.settings)
	assert.NotNil(t, a.resolver)
	assert.NotNil(t, a.auth)
	assert.NoError(t, a.Close(ctx))
}

func Test_NewTraceExporter(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      config.Tracing
		expected bool
	}{
		{name: "none", cfg: config.Tracing{Exporter: config.TraceExporterNone}, expected: false},
		{name: "stdout", cfg: config.Tracing{Exporter: config.TraceExporterStdout}, expected: true},
		{name: "otlp", cfg: config.Tracing{Exporter: config.TraceExporterOTLP, Endpoint: "localhost:4318", Insecure: true}, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			exporter, err := newTraceExporter(context.Background(), tc.cfg, &bytes.Buffer{})

			require.NoError(t, err)
			assert.Equal(t, tc.expected, exporter != nil)
			if exporter != nil {
				assert.NoError(t, exporter.Shutdown(context.Background()))
			}
		})
	}
}

func Test_NewTraceExporter_StdoutWritesSpans(t *testing.T) {
	// arrange
	out := &bytes.Buffer{}
	exporter, err := newTraceExporter(context.Background(), config.Tracing{Exporter: config.TraceExporterStdout}, out)
	require.NoError(t, err, "error in arranging test data")
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	// act
	_, span := tp.Tracer("test").Start(context.Background(), "collectionstore.filtered")
	span.End()

	// assert
	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, out.String(), "collectionstore.filtered")
}
