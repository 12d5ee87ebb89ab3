package postgresengine

import "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"

// Option defines a functional option for configuring Engine.
type Option func(*Engine) error

// WithTableName sets the records table; it must have the shape created by Migrate.
func WithTableName(tableName string) Option {
	return func(e *Engine) error {
		if tableName == "" {
			return collectionstore.ErrEmptyTableName
		}

		e.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Engine.
//
// Debug level: SQL statements with execution timing
// Warn level: cleanup failures such as closing rows
// Error level: failed statements.
func WithLogger(logger collectionstore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger that receives the same messages as the Logger.
func WithContextualLogger(logger collectionstore.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}
