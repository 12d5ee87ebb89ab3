package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/AntonStoeckl/dynamic-collections-go/auth"
	"github.com/AntonStoeckl/dynamic-collections-go/availability"
	"github.com/AntonStoeckl/dynamic-collections-go/carhire"
	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/memengine"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/mongoengine"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/oteladapters"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/postgresengine"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/promadapters"
	"github.com/AntonStoeckl/dynamic-collections-go/config"
	"github.com/AntonStoeckl/dynamic-collections-go/logging"
	"github.com/AntonStoeckl/dynamic-collections-go/settings"
)

const (
	serviceName      = "carhire"
	metricsNamespace = "carhire"
)

// app is everything the serve and seed commands share.
type app struct {
	hooks          carhire.Hooks
	store          *cs.Service
	settings       *settings.Service
	resolver       *availability.Resolver
	auth           *auth.Authenticator
	metrics        *prometheus.Registry
	tracerProvider *sdktrace.TracerProvider
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	adapter := logging.Sugared(logger)

	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	hooks, err := carhire.NewHooks(cfg.Server.BcryptCost)
	if err != nil {
		return nil, err
	}

	registry, err := carhire.NewRegistry(hooks)
	if err != nil {
		return nil, err
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	storeMetrics, err := promadapters.NewMetricsCollector(metrics, promadapters.WithNamespace(metricsNamespace))
	if err != nil {
		return nil, err
	}

	tracerProvider, err := newTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	engine, err := openEngine(ctx, cfg, adapter)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	store, err := cs.NewService(registry, engine,
		cs.WithLocation(location),
		cs.WithLogger(adapter),
		cs.WithContextualLogger(adapter),
		cs.WithMetrics(storeMetrics),
		cs.WithTracing(oteladapters.NewTracingCollector(tracerProvider.Tracer(serviceName))),
	)
	if err != nil {
		_ = engine.Close()
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	a := &app{hooks: hooks, store: store, metrics: metrics, tracerProvider: tracerProvider}

	if err := a.wire(ctx, cfg, adapter); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	return a, nil
}

func (a *app) wire(ctx context.Context, cfg *config.Config, adapter *logging.Adapter) error {
	if err := a.store.Prepare(ctx); err != nil {
		return fmt.Errorf("preparing store: %w", err)
	}

	repo, err := openSettingsRepository(ctx, cfg.Settings)
	if err != nil {
		return err
	}

	a.settings, err = settings.NewService(repo, settings.WithLogger(adapter))
	if err != nil {
		return err
	}

	a.resolver, err = availability.NewResolver(a.store,
		availability.WithLocation(a.store.Location()),
		availability.WithClock(a.store.Now),
		availability.WithLogger(adapter),
	)
	if err != nil {
		return err
	}

	a.auth, err = auth.NewAuthenticator(a.store, auth.WithLogger(adapter))

	return err
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.store.Close(), a.tracerProvider.Shutdown(ctx))
}

// newTracerProvider samples every request so trace and span ids reach the logs, and batches the
// spans to the configured exporter.
func newTracerProvider(ctx context.Context, cfg config.Tracing) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}

	options := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	exporter, err := newTraceExporter(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		options = append(options, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(options...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

// newTraceExporter returns nil for the "none" exporter.
func newTraceExporter(ctx context.Context, cfg config.Tracing, stdout io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case config.TraceExporterNone, "":
		return nil, nil
	case config.TraceExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(stdout))
	case config.TraceExporterOTLP:
		var options []otlptracehttp.Option
		if cfg.Endpoint != "" {
			options = append(options, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			options = append(options, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, options...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}

func openEngine(ctx context.Context, cfg *config.Config, adapter *logging.Adapter) (cs.Engine, error) {
	switch cfg.Store.Engine {
	case config.EngineMemory:
		return memengine.New(memengine.WithLogger(adapter)), nil
	case config.EngineMongo:
		return mongoengine.Connect(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database, mongoengine.WithLogger(adapter))
	case config.EnginePostgres:
		return openPostgresEngine(ctx, cfg.Store.Postgres, adapter)
	default:
		return nil, fmt.Errorf("unknown store engine %q", cfg.Store.Engine)
	}
}

func openPostgresEngine(ctx context.Context, pg config.Postgres, adapter *logging.Adapter) (cs.Engine, error) {
	options := []postgresengine.Option{
		postgresengine.WithTableName(pg.Table),
		postgresengine.WithLogger(adapter),
		postgresengine.WithContextualLogger(adapter),
	}

	switch pg.Adapter {
	case config.AdapterSQL:
		db, err := pg.OpenSQLDB(ctx)
		if err != nil {
			return nil, err
		}
		if err := migrateOnStart(pg, db, adapter); err != nil {
			_ = db.Close()
			return nil, err
		}
		return postgresengine.NewEngineFromSQLDB(db, options...)

	case config.AdapterSQLX:
		db, err := pg.OpenSQLX(ctx)
		if err != nil {
			return nil, err
		}
		if err := migrateOnStart(pg, db.DB, adapter); err != nil {
			_ = db.Close()
			return nil, err
		}
		return postgresengine.NewEngineFromSQLX(db, options...)

	default:
		pool, err := pg.OpenPGXPool(ctx)
		if err != nil {
			return nil, err
		}
		if pg.MigrateOnStart {
			db := stdlib.OpenDBFromPool(pool)
			err := postgresengine.Migrate(db, adapter)
			_ = db.Close()
			if err != nil {
				pool.Close()
				return nil, err
			}
		}
		return postgresengine.NewEngineFromPGXPool(pool, options...)
	}
}

func migrateOnStart(pg config.Postgres, db *sql.DB, adapter *logging.Adapter) error {
	if !pg.MigrateOnStart {
		return nil
	}

	return postgresengine.Migrate(db, adapter)
}

func openSettingsRepository(ctx context.Context, cfg config.Settings) (settings.Repository, error) {
	if cfg.Backend != config.SettingsS3 {
		return settings.NewDirRepository(cfg.Dir)
	}

	client, err := settings.NewS3Client(ctx, settings.S3Config{
		Bucket:          cfg.S3.Bucket,
		Prefix:          cfg.S3.Prefix,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("building s3 client: %w", err)
	}

	return settings.NewS3Repository(client, cfg.S3.Bucket, cfg.S3.Prefix)
}
