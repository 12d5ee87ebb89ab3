// Package carhire registers the collections of the car-hire admin backend: bookings, vehicles,
// customers and employees, together with their write hooks and a test-data seeder.
//
// The specs declare field types for coercion, unique fields for the engines' indexes, and form
// metadata (label, input type, settings reference) that the schema endpoint hands to clients.
package carhire
