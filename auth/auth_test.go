package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AntonStoeckl/dynamic-collections-go/auth"
	"github.com/AntonStoeckl/dynamic-collections-go/carhire"
	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/memengine"
	"github.com/AntonStoeckl/dynamic-collections-go/testutil/helper"
)

func givenStoreWithEmployee(t *testing.T, employeeID, password string) *cs.Service {
	t.Helper()

	hooks, err := carhire.NewHooks(bcrypt.MinCost)
	require.NoError(t, err, "error in arranging test data")
	registry, err := carhire.NewRegistry(hooks)
	require.NoError(t, err, "error in arranging test data")
	svc, err := cs.NewService(registry, memengine.New())
	require.NoError(t, err, "error in arranging test data")
	require.NoError(t, svc.Prepare(context.Background()), "error in arranging test data")

	_, err = svc.Create(context.Background(), carhire.Employee, cs.Record{
		"EmployeeId":    employeeID,
		"Password":      password,
		"Gender":        "Male",
		"Forename":      "Alan",
		"Surname":       "Turing",
		"DateOfBirth":   "1980-06-23",
		"LicenceNumber": "TURIN806230",
		"Street":        "2 Bletchley Road",
		"Town":          "Milton Keynes",
		"Postcode":      "MK3 6EB",
		"Phone":         "07111111111",
	})
	require.NoError(t, err, "error in arranging test data")

	return svc
}

type failingLookup struct{ err error }

func (l failingLookup) FindOne(context.Context, string, cs.Predicate) (cs.Record, error) {
	return nil, l.err
}

func Test_NewAuthenticator_RejectsNilLookup(t *testing.T) {
	_, err := auth.NewAuthenticator(nil)

	assert.ErrorIs(t, err, auth.ErrNilLookup)
}

func Test_Login_Succeeds_WithMatchingPassword(t *testing.T) {
	// arrange
	svc := givenStoreWithEmployee(t, "alan@example.com", "enigma")
	logSpy := helper.NewLogHandlerSpy(false)
	authenticator, err := auth.NewAuthenticator(svc, auth.WithLogger(slog.New(logSpy)))
	require.NoError(t, err)

	// act
	employee, err := authenticator.Login(context.Background(), "alan@example.com", "enigma")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "alan@example.com", employee.Text("EmployeeId"))
	assert.Equal(t, "Turing", employee.Text("Surname"))
	assert.NotContains(t, employee, "Password")
	assert.True(t, logSpy.HasInfoLogWithMessage("login succeeded").WithAttr("employee", "alan@example.com").Assert())
}

func Test_Login_Fails_WithInvalidCredentials(t *testing.T) {
	svc := givenStoreWithEmployee(t, "alan@example.com", "enigma")

	testCases := []struct {
		name       string
		employeeID string
		password   string
		reason     string
	}{
		{name: "wrong password", employeeID: "alan@example.com", password: "bombe", reason: "password mismatch"},
		{name: "unknown employee", employeeID: "grace@example.com", password: "enigma", reason: "unknown employee"},
		{name: "empty password", employeeID: "alan@example.com", password: "", reason: "missing credentials"},
		{name: "empty employee id", employeeID: "", password: "enigma", reason: "missing credentials"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			logSpy := helper.NewLogHandlerSpy(false)
			authenticator, err := auth.NewAuthenticator(svc, auth.WithLogger(slog.New(logSpy)))
			require.NoError(t, err)

			// act
			employee, err := authenticator.Login(context.Background(), tc.employeeID, tc.password)

			// assert
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
			assert.Nil(t, employee)
			assert.True(t, logSpy.HasWarnLogWithMessage("login failed").WithAttr("reason", tc.reason).Assert())
		})
	}
}

func Test_Login_PassesOnStoreErrors(t *testing.T) {
	// arrange
	storeErr := &cs.StoreError{Op: "find", Err: errors.New("connection reset")}
	authenticator, err := auth.NewAuthenticator(failingLookup{err: storeErr})
	require.NoError(t, err)

	// act
	_, err = authenticator.Login(context.Background(), "alan@example.com", "enigma")

	// assert
	assert.ErrorIs(t, err, cs.ErrStore)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
}

func Test_Login_UsesConfiguredCollectionAndField(t *testing.T) {
	// arrange
	svc := givenStoreWithEmployee(t, "alan@example.com", "enigma")
	authenticator, err := auth.NewAuthenticator(svc,
		auth.WithCollection(carhire.Employee),
		auth.WithIDField("Phone"),
	)
	require.NoError(t, err)

	// act
	employee, err := authenticator.Login(context.Background(), "07111111111", "enigma")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "alan@example.com", employee.Text("EmployeeId"))
}
