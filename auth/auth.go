// Package auth checks employee credentials against the stored bcrypt hashes.
package auth

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const (
	defaultCollection = "Employee"
	defaultIDField    = "EmployeeId"
	passwordField     = "Password"

	logMsgLoginFailed    = "login failed"
	logMsgLoginSucceeded = "login succeeded"
	logAttrEmployee      = "employee"
	logAttrReason        = "reason"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNilLookup          = errors.New("record lookup must not be nil")
)

// dummyHash is compared against when the employee does not exist, so that unknown ids take as
// long as wrong passwords.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("not-a-password"), bcrypt.DefaultCost)
	return hash
})

// Lookup finds one record including its hidden fields; *collectionstore.Service implements it.
type Lookup interface {
	FindOne(ctx context.Context, collection string, where cs.Predicate) (cs.Record, error)
}

type Authenticator struct {
	lookup     Lookup
	collection string
	idField    string
	logger     cs.Logger
}

type Option func(*Authenticator)

func WithCollection(name string) Option {
	return func(a *Authenticator) { a.collection = name }
}

func WithIDField(field string) Option {
	return func(a *Authenticator) { a.idField = field }
}

func WithLogger(logger cs.Logger) Option {
	return func(a *Authenticator) { a.logger = logger }
}

func NewAuthenticator(lookup Lookup, options ...Option) (*Authenticator, error) {
	if lookup == nil {
		return nil, ErrNilLookup
	}

	a := &Authenticator{lookup: lookup, collection: defaultCollection, idField: defaultIDField}
	for _, option := range options {
		option(a)
	}

	return a, nil
}

// Login returns the employee without its password hash when password matches.
// Unknown ids and wrong passwords both fail with ErrInvalidCredentials; store errors are passed on.
func (a *Authenticator) Login(ctx context.Context, employeeID, password string) (cs.Record, error) {
	if employeeID == "" || password == "" {
		a.fail(employeeID, "missing credentials")
		return nil, ErrInvalidCredentials
	}

	rec, err := a.lookup.FindOne(ctx, a.collection, cs.Eq(a.idField, employeeID))
	if err != nil {
		if !errors.Is(err, cs.ErrNotFound) {
			return nil, err
		}

		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		a.fail(employeeID, "unknown employee")

		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.Text(passwordField)), []byte(password)); err != nil {
		a.fail(employeeID, "password mismatch")
		return nil, ErrInvalidCredentials
	}

	if a.logger != nil {
		a.logger.Info(logMsgLoginSucceeded, logAttrEmployee, employeeID)
	}

	return rec.Without(passwordField), nil
}

func (a *Authenticator) fail(employeeID, reason string) {
	if a.logger != nil {
		a.logger.Warn(logMsgLoginFailed, logAttrEmployee, employeeID, logAttrReason, reason)
	}
}
