// Package collectionstore provides the core abstractions of a schema-driven record store
// whose collections are resolved by name at request time.
//
// This package defines the types shared by all storage engines and transports:
// records, collection specs and their registry, the filter request sent by clients,
// the predicate tree produced by the query builder, paging, and the error taxonomy.
//
// A FilterRequest supports:
//   - Equality filters on arbitrary fields
//   - Single-date availability filters (noAvailableDate, availableDate)
//   - Date range filters with inside or outside semantics
//   - Case-insensitive free-text search across string and number fields
//   - Sorting, projection and pagination
//
// Key types:
//   - Registry: Maps collection names to CollectionSpec values
//   - QueryBuilder: Translates a FilterRequest into a StoreQuery
//   - Predicate: Engine-agnostic boolean expression over record fields
//   - Engine: Persistence contract implemented by postgresengine, mongoengine and memengine
//   - Service: Validating facade over an Engine
//
// Common usage pattern:
//
//	registry, _ := collectionstore.NewRegistry(bookingSpec, vehicleSpec)
//	service, _ := collectionstore.NewService(registry, engine)
//
//	page, err := service.Filtered(ctx, "Booking", collectionstore.FilterRequest{
//		Filters:          map[string]any{"CarId": carID},
//		DateRanges:       map[string]collectionstore.Interval{"StartDate": window, "ReturnDate": window},
//		InsideDateRanges: true,
//	})
//	if err != nil {
//		// handle error
//	}
package collectionstore
