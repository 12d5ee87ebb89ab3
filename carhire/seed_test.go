package carhire_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AntonStoeckl/dynamic-collections-go/carhire"
	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

type harvestSpy struct {
	calls map[string]int
}

func (h *harvestSpy) harvest(_ context.Context, fields []cs.FieldShape, rec cs.Record) error {
	for _, f := range fields {
		if f.Name == "VehicleId" {
			h.calls[carhire.Vehicle]++
			return nil
		}
	}
	h.calls["other"]++

	return nil
}

func Test_NewSeeder_RejectsNilStore(t *testing.T) {
	_, err := carhire.NewSeeder(nil)

	assert.ErrorIs(t, err, carhire.ErrNilStore)
}

func Test_Seeder_Seed(t *testing.T) {
	// arrange
	ctx := context.Background()
	svc := givenCarHireService(t)
	spy := &harvestSpy{calls: map[string]int{}}

	seeder, err := carhire.NewSeeder(svc,
		carhire.WithSeed(42),
		carhire.WithEmployeePassword("letmein"),
		carhire.WithHarvester(spy.harvest),
	)
	require.NoError(t, err)

	plan := carhire.Plan{Vehicles: 3, Customers: 4, Employees: 2, Bookings: 12}

	// act
	report, err := seeder.Seed(ctx, plan)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, report.Vehicles)
	assert.Equal(t, 4, report.Customers)
	assert.Equal(t, 2, report.Employees)
	assert.Equal(t, plan.Bookings, report.Bookings+report.SkippedBookings)
	assert.Equal(t, 3, spy.calls[carhire.Vehicle])

	for collection, expected := range map[string]int{
		carhire.Vehicle:  3,
		carhire.Customer: 4,
		carhire.Employee: 2,
		carhire.Booking:  report.Bookings,
	} {
		n, err := svc.Count(ctx, collection, cs.All())
		require.NoError(t, err)
		assert.Equal(t, expected, n, collection)
	}

	employee, err := svc.FindOne(ctx, carhire.Employee, cs.Eq("EmployeeId", "employee001@example.com"))
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(employee.Text("Password")), []byte("letmein")))

	assertNoDoubleBookings(t, svc)
}

func Test_Seeder_Seed_ContinuesNumbering(t *testing.T) {
	// arrange
	ctx := context.Background()
	svc := givenCarHireService(t)
	seeder, err := carhire.NewSeeder(svc, carhire.WithSeed(7))
	require.NoError(t, err)

	_, err = seeder.Seed(ctx, carhire.Plan{Vehicles: 2, Customers: 1})
	require.NoError(t, err)

	// act
	_, err = seeder.Seed(ctx, carhire.Plan{Vehicles: 1, Customers: 1})
	require.NoError(t, err)

	// assert
	_, err = svc.FindOne(ctx, carhire.Vehicle, cs.Eq("VehicleId", "VEH003"))
	assert.NoError(t, err)
	customer, err := svc.FindOne(ctx, carhire.Customer, cs.Eq("CustomerId", "customer002@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "Jane II", customer["Forename"])
}

func Test_Seeder_Seed_SkipsBookingsWithoutVehicles(t *testing.T) {
	svc := givenCarHireService(t)
	seeder, err := carhire.NewSeeder(svc, carhire.WithSeed(1))
	require.NoError(t, err)

	report, err := seeder.Seed(context.Background(), carhire.Plan{Customers: 1, Bookings: 5})

	require.NoError(t, err)
	assert.Equal(t, 5, report.SkippedBookings)
	assert.Zero(t, report.Bookings)
}

func assertNoDoubleBookings(t *testing.T, svc *cs.Service) {
	t.Helper()

	page, err := svc.List(context.Background(), carhire.Booking, cs.ListRequest{})
	require.NoError(t, err)

	byCar := map[string][]cs.Interval{}
	for _, b := range page.Results {
		start, ok := b.Time("StartDate")
		require.True(t, ok)
		end, ok := b.Time("ReturnDate")
		require.True(t, ok)

		period := cs.Between(start, end)
		for _, other := range byCar[b.Text("CarId")] {
			assert.False(t, cs.Overlaps(period, other), "vehicle %s is booked twice", b.Text("CarId"))
		}

		byCar[b.Text("CarId")] = append(byCar[b.Text("CarId")], period)
	}
}
