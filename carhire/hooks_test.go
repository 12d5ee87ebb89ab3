package carhire_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/AntonStoeckl/dynamic-collections-go/carhire"
	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/memengine"
	"github.com/AntonStoeckl/dynamic-collections-go/testutil/helper"
)

var fakeNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func givenCarHireService(t testing.TB, options ...cs.Option) *cs.Service {
	t.Helper()

	hooks, err := carhire.NewHooks(bcrypt.MinCost)
	require.NoError(t, err, "error in arranging test data")

	registry, err := carhire.NewRegistry(hooks)
	require.NoError(t, err, "error in arranging test data")

	options = append([]cs.Option{cs.WithClock(helper.GivenFixedClock(fakeNow))}, options...)
	svc, err := cs.NewService(registry, memengine.New(), options...)
	require.NoError(t, err, "error in arranging test data")
	require.NoError(t, svc.Prepare(context.Background()), "error in arranging test data")

	return svc
}

func givenBooking(customerID string, start any) cs.Record {
	return cs.Record{"CustomerId": customerID, "CarId": "car-1", "StartDate": start}
}

func givenEmployee(id, password string) cs.Record {
	return cs.Record{
		"EmployeeId":    id,
		"Password":      password,
		"Gender":        "Female",
		"Forename":      "Ada",
		"Surname":       "Lovelace",
		"DateOfBirth":   "1990-12-10",
		"LicenceNumber": "LOVEL901210",
		"Street":        "1 High Street",
		"Town":          "Ayr",
		"Postcode":      "KA7 1AB",
		"Phone":         "07000000000",
	}
}

func Test_NewHooks_ValidatesCost(t *testing.T) {
	_, err := carhire.NewHooks(bcrypt.MaxCost + 1)
	assert.ErrorIs(t, err, carhire.ErrInvalidCost)

	_, err = carhire.NewHooks(0)
	assert.NoError(t, err)
}

func Test_BookingID_CountsPerCustomerAndDay(t *testing.T) {
	// arrange
	ctx := context.Background()
	svc := givenCarHireService(t)

	// act
	first, err := svc.Create(ctx, carhire.Booking, givenBooking("cust-1", "2025-03-10"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, carhire.Booking, givenBooking("cust-1", "2025-03-10T15:00:00Z"))
	require.NoError(t, err)
	otherDay, err := svc.Create(ctx, carhire.Booking, givenBooking("cust-1", "2025-03-11"))
	require.NoError(t, err)
	otherCustomer, err := svc.Create(ctx, carhire.Booking, givenBooking("cust-2", "2025-03-10"))
	require.NoError(t, err)

	// assert
	assert.Equal(t, "cust-1_2025-03-10_001", first["BookingId"])
	assert.Equal(t, "cust-1_2025-03-10_002", second["BookingId"])
	assert.Equal(t, "cust-1_2025-03-11_001", otherDay["BookingId"])
	assert.Equal(t, "cust-2_2025-03-10_001", otherCustomer["BookingId"])
	assert.Equal(t, fakeNow, first["BookingDate"], "BookingDate defaults to now")
}

func Test_BookingID_UsesServiceLocationForTheDay(t *testing.T) {
	// arrange
	svc := givenCarHireService(t, cs.WithLocation(time.FixedZone("UTC+2", 2*60*60)))

	// act
	created, err := svc.Create(context.Background(), carhire.Booking, givenBooking("cust-1", "2025-03-10T23:30:00Z"))

	// assert
	require.NoError(t, err)
	assert.Equal(t, "cust-1_2025-03-11_001", created["BookingId"])
}

func Test_BookingID_SkipsNumbersFreedByDeletion(t *testing.T) {
	// arrange
	ctx := context.Background()
	svc := givenCarHireService(t)

	first, err := svc.Create(ctx, carhire.Booking, givenBooking("cust-1", "2025-03-10"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, carhire.Booking, givenBooking("cust-1", "2025-03-10"))
	require.NoError(t, err)
	_, err = svc.Delete(ctx, carhire.Booking, first.ID())
	require.NoError(t, err)

	// act
	third, err := svc.Create(ctx, carhire.Booking, givenBooking("cust-1", "2025-03-10"))

	// assert
	require.NoError(t, err)
	assert.Equal(t, "cust-1_2025-03-10_003", third["BookingId"])
}

func Test_BookingID_RequiresCustomerAndStartDate(t *testing.T) {
	testCases := []struct {
		name  string
		input cs.Record
	}{
		{name: "missing customer", input: cs.Record{"CarId": "car-1", "StartDate": "2025-03-10"}},
		{name: "missing start date", input: cs.Record{"CarId": "car-1", "CustomerId": "cust-1"}},
		{name: "empty start date", input: givenBooking("cust-1", "")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			svc := givenCarHireService(t)

			// act
			_, err := svc.Create(context.Background(), carhire.Booking, tc.input)

			// assert
			require.ErrorIs(t, err, cs.ErrValidation)
			assert.EqualError(t, err, "CustomerId and StartDate are required for Booking.")
		})
	}
}

func Test_EmployeePassword_IsHashedAndHidden(t *testing.T) {
	// arrange
	ctx := context.Background()
	svc := givenCarHireService(t)

	// act
	created, err := svc.Create(ctx, carhire.Employee, givenEmployee("ada@example.com", "s3cret"))
	require.NoError(t, err)

	stored, err := svc.FindOne(ctx, carhire.Employee, cs.Eq("EmployeeId", "ada@example.com"))
	require.NoError(t, err)

	// assert
	assert.NotContains(t, created, "Password")
	hash := stored.Text("Password")
	assert.True(t, carhire.IsHash(hash))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func Test_EmployeePassword_OnUpdate(t *testing.T) {
	testCases := []struct {
		name     string
		patch    cs.Record
		password string
	}{
		{name: "new password is hashed", patch: cs.Record{"Password": "n3w"}, password: "n3w"},
		{name: "empty password keeps the stored hash", patch: cs.Record{"Password": "", "Town": "Troon"}, password: "s3cret"},
		{name: "patch without password keeps the stored hash", patch: cs.Record{"Town": "Troon"}, password: "s3cret"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			svc := givenCarHireService(t)
			created, err := svc.Create(ctx, carhire.Employee, givenEmployee("ada@example.com", "s3cret"))
			require.NoError(t, err)

			// act
			_, err = svc.Update(ctx, carhire.Employee, created.ID(), tc.patch)
			require.NoError(t, err)

			// assert
			stored, err := svc.FindOne(ctx, carhire.Employee, cs.IDEquals(created.ID()))
			require.NoError(t, err)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Text("Password")), []byte(tc.password)))
		})
	}
}

func Test_Hooks_Hash_KeepsExistingHashes(t *testing.T) {
	hooks, err := carhire.NewHooks(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := hooks.Hash("s3cret")
	require.NoError(t, err)

	again, err := hooks.Hash(hash)
	require.NoError(t, err)

	assert.Equal(t, hash, again)
	assert.False(t, carhire.IsHash("$2a$not-a-hash"))
}

func Test_Hooks_Hash_RejectsOverlongPasswords(t *testing.T) {
	hooks, err := carhire.NewHooks(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = hooks.Hash(string(make([]byte, 73)))

	assert.ErrorIs(t, err, cs.ErrValidation)
}

func Test_Registry_ExposesFormMetadata(t *testing.T) {
	svc := givenCarHireService(t)

	assert.Equal(t, []string{carhire.Booking, carhire.Customer, carhire.Vehicle, carhire.Employee}, svc.Collections())

	shapes, err := svc.Schema(carhire.Vehicle)
	require.NoError(t, err)

	var model cs.FieldShape
	for _, s := range shapes {
		if s.Name == "Model" {
			model = s
		}
	}
	assert.Equal(t, "collections.json#vehicle.make.model", model.Meta.Setting)

	employee, err := svc.Schema(carhire.Employee)
	require.NoError(t, err)
	for _, s := range employee {
		assert.NotEqual(t, "Password", s.Name)
	}
}

func Test_Roman(t *testing.T) {
	testCases := []struct {
		in       int
		expected string
	}{
		{1, "I"}, {4, "IV"}, {9, "IX"}, {14, "XIV"}, {40, "XL"}, {60, "LX"}, {1994, "MCMXCIV"}, {0, ""},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, carhire.Roman(tc.in))
	}
}
