package helper

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

// RecordCreator is satisfied by *collectionstore.Service and the HTTP client.
type RecordCreator interface {
	Create(ctx context.Context, collection string, input collectionstore.Record) (collectionstore.Record, error)
}

func GivenUniqueID(t testing.TB) string {
	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return id.String()
}

// GivenFixedClock returns a clock that always reports at.
func GivenFixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// GivenSequentialIDs returns an id generator producing prefix-1, prefix-2, ...
func GivenSequentialIDs(prefix string) func() (string, error) {
	n := 0

	return func() (string, error) {
		n++
		return prefix + "-" + strconv.Itoa(n), nil
	}
}

func GivenRecordWasCreated(
	t testing.TB,
	ctx context.Context,
	creator RecordCreator,
	collection string,
	input collectionstore.Record,
) collectionstore.Record {

	created, err := creator.Create(ctx, collection, input)
	require.NoError(t, err, "error in arranging test data")

	return created
}

// FixtureBooking builds a Booking input; a zero returnDate leaves the booking open-ended.
func FixtureBooking(customerID, carID string, startDate, returnDate time.Time) collectionstore.Record {
	rec := collectionstore.Record{
		"CustomerId":     customerID,
		"CarId":          carID,
		"PickupLocation": "Berlin Hauptbahnhof",
		"StartDate":      startDate,
	}

	if !returnDate.IsZero() {
		rec["ReturnDate"] = returnDate
	}

	return rec
}

// FixtureVehicle builds a Vehicle input.
func FixtureVehicle(vehicleID, brand string, passengers int) collectionstore.Record {
	return collectionstore.Record{
		"VehicleId":  vehicleID,
		"Make":       brand,
		"Passengers": passengers,
	}
}
