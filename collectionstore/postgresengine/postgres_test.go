package postgresengine_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/collectionstore/postgresengine"
	"github.com/AntonStoeckl/dynamic-collections-go/testutil/helper"
	"github.com/AntonStoeckl/dynamic-collections-go/testutil/helper/postgreswrapper"
)

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func givenRegistry(t testing.TB) *cs.Registry {
	registry, err := cs.NewRegistry(
		cs.CollectionSpec{
			Name: "Booking",
			Fields: []cs.FieldShape{
				{Name: "CustomerId", Type: cs.TypeRef, Required: true},
				{Name: "CarId", Type: cs.TypeRef},
				{Name: "PickupLocation", Type: cs.TypeString},
				{Name: "StartDate", Type: cs.TypeDate, Required: true},
				{Name: "ReturnDate", Type: cs.TypeDate},
			},
		},
		cs.CollectionSpec{
			Name: "Vehicle",
			Fields: []cs.FieldShape{
				{Name: "VehicleId", Type: cs.TypeString, Required: true, Unique: true},
				{Name: "Make", Type: cs.TypeString},
				{Name: "Passengers", Type: cs.TypeNumber},
			},
		},
	)
	require.NoError(t, err, "error in arranging test data")

	return registry
}

func givenServiceOnPostgres(t *testing.T, options ...postgresengine.Option) *cs.Service {
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t, options...)
	t.Cleanup(wrapper.Close)

	svc, err := cs.NewService(givenRegistry(t), wrapper.GetEngine())
	require.NoError(t, err, "error in arranging test data")
	require.NoError(t, svc.Prepare(context.Background()), "error in arranging test data")

	return svc
}

func Test_Postgres_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc := givenServiceOnPostgres(t)

	created := helper.GivenRecordWasCreated(t, ctx, svc, "Vehicle", helper.FixtureVehicle("V-1", "VW", 5))

	got, err := svc.Get(ctx, "Vehicle", created.ID())
	require.NoError(t, err)
	assert.Equal(t, "VW", got["Make"])
	assert.Equal(t, 5.0, got["Passengers"])
	assert.IsType(t, time.Time{}, got[cs.FieldCreatedAt])

	updated, err := svc.Update(ctx, "Vehicle", created.ID(), cs.Record{"Make": "Skoda"})
	require.NoError(t, err)
	assert.Equal(t, "Skoda", updated["Make"])
	assert.Equal(t, 5.0, updated["Passengers"])

	deleted, err := svc.Delete(ctx, "Vehicle", created.ID())
	require.NoError(t, err)
	assert.Equal(t, created.ID(), deleted.ID())

	_, err = svc.Get(ctx, "Vehicle", created.ID())
	assert.ErrorIs(t, err, cs.ErrNotFound)
	_, err = svc.Update(ctx, "Vehicle", created.ID(), cs.Record{"Make": "Seat"})
	assert.ErrorIs(t, err, cs.ErrNotFound)
}

func Test_Postgres_UniqueFieldsAreEnforced(t *testing.T) {
	ctx := context.Background()
	svc := givenServiceOnPostgres(t)
	helper.GivenRecordWasCreated(t, ctx, svc, "Vehicle", helper.FixtureVehicle("V-1", "VW", 5))
	second := helper.GivenRecordWasCreated(t, ctx, svc, "Vehicle", helper.FixtureVehicle("V-2", "VW", 5))

	_, err := svc.Create(ctx, "Vehicle", helper.FixtureVehicle("V-1", "Audi", 4))
	assert.ErrorIs(t, err, cs.ErrDuplicateKey)

	_, err = svc.Update(ctx, "Vehicle", second.ID(), cs.Record{"VehicleId": "V-1"})
	assert.ErrorIs(t, err, cs.ErrDuplicateKey)
}

func Test_Postgres_FilteredAvailability(t *testing.T) {
	ctx := context.Background()
	svc := givenServiceOnPostgres(t)
	helper.GivenRecordWasCreated(t, ctx, svc, "Booking", helper.FixtureBooking("u1", "car-1", day(10), day(12)))
	helper.GivenRecordWasCreated(t, ctx, svc, "Booking", helper.FixtureBooking("u2", "car-1", day(15), time.Time{}))
	helper.GivenRecordWasCreated(t, ctx, svc, "Booking", helper.FixtureBooking("u3", "car-2", day(11), day(11)))

	testCases := []struct {
		name      string
		request   func() cs.FilterRequest
		customers []any
	}{
		{
			name: "booked on day",
			request: func() cs.FilterRequest {
				req := cs.NewFilterRequest()
				req.Filters = map[string]any{cs.FilterNoAvailableDate: "2025-01-11"}
				return req
			},
			customers: []any{"u1", "u3"},
		},
		{
			name: "free on day",
			request: func() cs.FilterRequest {
				req := cs.NewFilterRequest()
				req.Filters = map[string]any{cs.FilterAvailableDate: "2025-01-11"}
				return req
			},
			customers: []any{"u2"},
		},
		{
			name: "overlapping a window for one car",
			request: func() cs.FilterRequest {
				window := cs.Between(day(12), day(20))
				req := cs.NewFilterRequest()
				req.Filters = map[string]any{"CarId": "car-1"}
				req.DateRanges = map[string]cs.Interval{"StartDate": window, "ReturnDate": window}
				return req
			},
			customers: []any{"u1", "u2"},
		},
		{
			name: "search is case insensitive",
			request: func() cs.FilterRequest {
				req := cs.NewFilterRequest()
				req.Search = "HAUPTBAHNHOF"
				req.SortBy = cs.SortSpec{{Field: "CustomerId", Desc: true}}
				return req
			},
			customers: []any{"u3", "u2", "u1"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := svc.Filtered(ctx, "Booking", tc.request())

			require.NoError(t, err)
			customers := make([]any, 0, len(page.Results))
			for _, rec := range page.Results {
				customers = append(customers, rec["CustomerId"])
			}
			assert.Equal(t, tc.customers, customers)
			assert.Equal(t, len(tc.customers), page.Pagination.Total)
		})
	}
}

func Test_Postgres_Pagination(t *testing.T) {
	ctx := context.Background()
	svc := givenServiceOnPostgres(t)
	for _, id := range []string{"V-1", "V-2", "V-3", "V-4", "V-5"} {
		helper.GivenRecordWasCreated(t, ctx, svc, "Vehicle", helper.FixtureVehicle(id, "VW", 5))
	}

	page, err := svc.List(ctx, "Vehicle", cs.ListRequest{Page: 2, Limit: 2, Fields: []string{"VehicleId"}})

	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "V-3", page.Results[0]["VehicleId"])
	assert.NotContains(t, page.Results[0], "Make")
	assert.Equal(t, cs.Pagination{Total: 5, Page: 2, Pages: 3, Limit: 2}, page.Pagination)
}

func Test_Postgres_LogsStatements(t *testing.T) {
	ctx := context.Background()
	logSpy := helper.NewLogHandlerSpy(false)
	svc := givenServiceOnPostgres(t, postgresengine.WithLogger(slog.New(logSpy)))

	helper.GivenRecordWasCreated(t, ctx, svc, "Vehicle", helper.FixtureVehicle("V-1", "VW", 5))

	assert.True(t, logSpy.HasDebugLogWithMessage("executed sql for: insert").WithDurationMS().Assert())
}
