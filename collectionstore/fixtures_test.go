package collectionstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

func givenBookingSpec() cs.CollectionSpec {
	return cs.CollectionSpec{
		Name: "Booking",
		Fields: []cs.FieldShape{
			{Name: "BookingId", Type: cs.TypeString, Unique: true},
			{Name: "CustomerId", Type: cs.TypeRef, Ref: "Customer", Required: true},
			{Name: "PickupLocation", Type: cs.TypeString},
			{Name: "StartDate", Type: cs.TypeDate, Required: true},
			{Name: "ReturnDate", Type: cs.TypeDate},
			{Name: "CarId", Type: cs.TypeRef, Ref: "Vehicle"},
		},
	}
}

func givenVehicleSpec() cs.CollectionSpec {
	return cs.CollectionSpec{
		Name: "Vehicle",
		Fields: []cs.FieldShape{
			{Name: "VehicleId", Type: cs.TypeString, Required: true, Unique: true},
			{Name: "Make", Type: cs.TypeString},
			{Name: "Passengers", Type: cs.TypeNumber},
			{Name: "Availability", Type: cs.TypeBoolean},
		},
	}
}

func givenEmployeeSpec() cs.CollectionSpec {
	return cs.CollectionSpec{
		Name: "Employee",
		Fields: []cs.FieldShape{
			{Name: "EmployeeId", Type: cs.TypeString, Required: true, Unique: true},
			{Name: "Forename", Type: cs.TypeString},
			{Name: "Password", Type: cs.TypeString, Required: true, Hidden: true},
		},
	}
}

func givenRegistry(t testing.TB, specs ...cs.CollectionSpec) *cs.Registry {
	if len(specs) == 0 {
		specs = []cs.CollectionSpec{givenBookingSpec(), givenVehicleSpec(), givenEmployeeSpec()}
	}

	registry, err := cs.NewRegistry(specs...)
	require.NoError(t, err, "error in arranging test data")

	return registry
}
