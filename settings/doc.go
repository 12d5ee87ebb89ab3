// Package settings holds the hierarchical option documents behind cascading select fields.
//
// A document is a tree whose inner nodes are ordered objects and whose leaves are string lists,
// e.g. {"vehicle": {"make": {"VW": {"model": ["Golf", "Polo"]}}, "fuel": ["Petrol"]}}.
// Resolve reads the options for a dotted path, optionally below a parent value, and Append adds
// new values without ever removing any.
package settings
