package collectionstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation failed")
	ErrStore                 = errors.New("store operation failed")
	ErrDuplicateKey          = errors.New("duplicate key")
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyTableName        = errors.New("empty table name supplied")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrQueryingRecordsFailed = errors.New("querying records failed")
	ErrScanningDBRowFailed   = errors.New("scanning db row failed")
	ErrWritingRecordFailed   = errors.New("writing record failed")
	ErrDecodingRecordFailed  = errors.New("decoding record failed")
	ErrEncodingRecordFailed  = errors.New("encoding record failed")
	ErrNilRegistry           = errors.New("registry must not be nil")
	ErrNilEngine             = errors.New("engine must not be nil")
	ErrEmptyCollectionName   = errors.New("empty collection name supplied")
	ErrDuplicateCollection   = errors.New("collection registered twice")
)

// Kinds of things a NotFoundError can refer to.
const (
	KindCollection = "collection"
	KindModel      = "model"
	KindDocument   = "document"
)

// NotFoundError reports an unknown collection, model or document.
// Available lists the registered collection names when Kind is a collection or model.
type NotFoundError struct {
	Kind      string
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindCollection:
		return fmt.Sprintf("Collection %s not found", e.Name)
	case KindModel:
		return fmt.Sprintf("Model %s not found", e.Name)
	default:
		return "Document not found"
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

// Invalid creates a ValidationError with a formatted message.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps any underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}
