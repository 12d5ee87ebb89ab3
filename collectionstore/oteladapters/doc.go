// Package oteladapters implements the collectionstore observability interfaces on the
// OpenTelemetry metrics and tracing APIs.
package oteladapters
