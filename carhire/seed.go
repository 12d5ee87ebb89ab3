package carhire

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/AntonStoeckl/dynamic-collections-go/availability"
	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const (
	defaultEmployeePassword = "changeme"
	bookingAttempts         = 10
	maxRentalDays           = 14
	bookingWindowPastDays   = 60
	bookingWindowFutureDays = 120

	logMsgSeeded = "seeded collection: "
	logAttrCount = "count"
)

var ErrNilStore = errors.New("seed store must not be nil")

// Store is what the Seeder writes through; *collectionstore.Service satisfies it.
type Store interface {
	availability.Finder
	Create(ctx context.Context, collection string, input cs.Record) (cs.Record, error)
	Count(ctx context.Context, collection string, where cs.Predicate) (int, error)
	Now() time.Time
	Location() *time.Location
}

// Harvester receives every seeded record, e.g. to extend the settings options with its select values.
type Harvester func(ctx context.Context, fields []cs.FieldShape, rec cs.Record) error

// Plan sets how many records of each collection Seed adds.
type Plan struct {
	Vehicles  int
	Customers int
	Employees int
	Bookings  int
}

// DefaultPlan is used by the seed command without flags.
func DefaultPlan() Plan {
	return Plan{Vehicles: 12, Customers: 60, Employees: 4, Bookings: 80}
}

// Report counts what Seed created. Bookings that found no free vehicle are counted as skipped.
type Report struct {
	Vehicles        int
	Customers       int
	Employees       int
	Bookings        int
	SkippedBookings int
}

// Seeder generates plausible test data. Numbering continues after the records already stored.
type Seeder struct {
	store     Store
	rng       *rand.Rand
	password  string
	harvester Harvester
	logger    cs.Logger
	resolver  *availability.Resolver
}

// SeederOption configures a Seeder.
type SeederOption func(*Seeder)

// WithSeed makes the generated data reproducible.
func WithSeed(seed uint64) SeederOption {
	return func(s *Seeder) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // test data
	}
}

// WithEmployeePassword sets the password of seeded employees.
func WithEmployeePassword(password string) SeederOption {
	return func(s *Seeder) {
		s.password = password
	}
}

func WithHarvester(h Harvester) SeederOption {
	return func(s *Seeder) {
		s.harvester = h
	}
}

func WithSeedLogger(logger cs.Logger) SeederOption {
	return func(s *Seeder) {
		s.logger = logger
	}
}

func NewSeeder(store Store, options ...SeederOption) (*Seeder, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	s := &Seeder{
		store:    store,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // test data
		password: defaultEmployeePassword,
	}

	for _, option := range options {
		option(s)
	}

	resolver, err := availability.NewResolver(store,
		availability.WithLocation(store.Location()),
		availability.WithClock(store.Now),
	)
	if err != nil {
		return nil, err
	}

	s.resolver = resolver

	return s, nil
}

// Seed adds the planned records. Bookings only go to vehicles that are free for the whole rental.
func (s *Seeder) Seed(ctx context.Context, plan Plan) (Report, error) {
	var report Report

	vehicleIDs, err := s.seedVehicles(ctx, plan.Vehicles)
	report.Vehicles = len(vehicleIDs)
	if err != nil {
		return report, err
	}

	customerIDs, err := s.seedCustomers(ctx, Customer, "customer", plan.Customers)
	report.Customers = len(customerIDs)
	if err != nil {
		return report, err
	}

	employeeIDs, err := s.seedCustomers(ctx, Employee, "employee", plan.Employees)
	report.Employees = len(employeeIDs)
	if err != nil {
		return report, err
	}

	if len(vehicleIDs) == 0 || len(customerIDs) == 0 {
		report.SkippedBookings = plan.Bookings
		return report, nil
	}

	for i := 0; i < plan.Bookings; i++ {
		booked, err := s.seedBooking(ctx, vehicleIDs, customerIDs)
		if err != nil {
			return report, err
		}

		if booked {
			report.Bookings++
		} else {
			report.SkippedBookings++
		}
	}

	s.log(Booking, report.Bookings)

	return report, nil
}

type vehicleModel struct {
	make, model, category, fuel string
	passengers                  int
	capacity                    string
	costPerDay                  float64
}

var fleet = []vehicleModel{
	{"Ford", "Fiesta", "Small", "Petrol", 5, "292 L", 39.00},
	{"Ford", "Transit", "Van", "Diesel", 3, "11 m3", 89.00},
	{"Vauxhall", "Corsa", "Small", "Petrol", 5, "309 L", 37.50},
	{"Volkswagen", "Golf", "Medium", "Diesel", 5, "380 L", 49.99},
	{"Volkswagen", "ID.3", "Medium", "Electric", 5, "385 L", 59.00},
	{"Toyota", "Yaris", "Small", "Hybrid", 5, "286 L", 42.00},
	{"Toyota", "Proace", "Minibus", "Diesel", 9, "1000 L", 110.00},
	{"BMW", "3 Series", "Executive", "Diesel", 5, "480 L", 95.00},
}

func (s *Seeder) seedVehicles(ctx context.Context, n int) ([]string, error) {
	offset, err := s.store.Count(ctx, Vehicle, cs.All())
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, n)
	for i := offset + 1; i <= offset+n; i++ {
		m := fleet[s.rng.IntN(len(fleet))]

		rec, err := s.create(ctx, VehicleSpec(), cs.Record{
			"VehicleId":      fmt.Sprintf("VEH%03d", i),
			"Make":           m.make,
			"Model":          m.model,
			"Category":       m.category,
			"Passengers":     float64(m.passengers),
			"Capacity":       m.capacity,
			"Fuel":           m.fuel,
			"DateOfPurchase": s.randomDate(2018, 2024),
			"Availability":   true,
			"CostPerDay":     m.costPerDay,
		})
		if err != nil {
			return ids, err
		}

		ids = append(ids, rec.ID())
	}

	s.log(Vehicle, len(ids))

	return ids, nil
}

var (
	genders = []string{"Male", "Female", "Other"}
	towns   = []string{"Glasgow", "Edinburgh", "Kilmarnock", "Ayr", "Paisley", "Stirling"}
)

// seedCustomers seeds customers or employees; both share the person fields.
func (s *Seeder) seedCustomers(ctx context.Context, collection, prefix string, n int) ([]string, error) {
	offset, err := s.store.Count(ctx, collection, cs.All())
	if err != nil {
		return nil, err
	}

	idField, spec := "CustomerId", CustomerSpec()
	forename, surname := "Jane", "Doe"
	if collection == Employee {
		idField, spec = "EmployeeId", EmployeeSpec(Hooks{})
		forename, surname = "John", "Smith"
	}

	ids := make([]string, 0, n)
	for i := offset + 1; i <= offset+n; i++ {
		roman := Roman(i)
		rec := cs.Record{
			idField:         fmt.Sprintf("%s%03d@example.com", prefix, i),
			"Gender":        genders[s.rng.IntN(len(genders))],
			"Forename":      forename + " " + roman,
			"Surname":       surname + " " + roman,
			"DateOfBirth":   s.randomDate(1960, 2004),
			"LicenceNumber": fmt.Sprintf("%s%06d", strings.ToUpper(surname[:3]), s.rng.IntN(1_000_000)),
			"Street":        fmt.Sprintf("%d High Street", s.rng.IntN(200)+1),
			"Town":          towns[s.rng.IntN(len(towns))],
			"Postcode":      fmt.Sprintf("KA%d %dAB", s.rng.IntN(30)+1, s.rng.IntN(9)+1),
			"Phone":         fmt.Sprintf("07%09d", s.rng.IntN(1_000_000_000)),
		}
		if collection == Employee {
			rec["Password"] = s.password
		}

		created, err := s.create(ctx, spec, rec)
		if err != nil {
			return ids, err
		}

		ids = append(ids, created.ID())
	}

	s.log(collection, len(ids))

	return ids, nil
}

func (s *Seeder) seedBooking(ctx context.Context, vehicleIDs, customerIDs []string) (bool, error) {
	loc := s.store.Location()
	today := cs.StartOfDay(s.store.Now(), loc)

	for attempt := 0; attempt < bookingAttempts; attempt++ {
		start := today.AddDate(0, 0, s.rng.IntN(bookingWindowPastDays+bookingWindowFutureDays)-bookingWindowPastDays)
		end := start.AddDate(0, 0, s.rng.IntN(maxRentalDays))
		carID := vehicleIDs[s.rng.IntN(len(vehicleIDs))]

		free, err := s.resolver.IsAvailable(ctx, carID, cs.Between(start, end))
		if err != nil {
			return false, err
		}
		if !free {
			continue
		}

		_, err = s.create(ctx, BookingSpec(Hooks{}), cs.Record{
			"CustomerId":      customerIDs[s.rng.IntN(len(customerIDs))],
			"CarId":           carID,
			"PickupLocation":  towns[s.rng.IntN(len(towns))],
			"DropoffLocation": towns[s.rng.IntN(len(towns))],
			"StartDate":       start,
			"StartTime":       "09:00",
			"ReturnDate":      end,
			"ReturnTime":      "17:00",
		})

		return err == nil, err
	}

	return false, nil
}

// create stores rec and hands the stored record to the harvester. spec only supplies the field shapes.
func (s *Seeder) create(ctx context.Context, spec cs.CollectionSpec, rec cs.Record) (cs.Record, error) {
	created, err := s.store.Create(ctx, spec.Name, rec)
	if err != nil {
		return nil, fmt.Errorf("seeding %s: %w", spec.Name, err)
	}

	if s.harvester != nil {
		if err := s.harvester(ctx, spec.Fields, created); err != nil {
			return nil, fmt.Errorf("harvesting %s options: %w", spec.Name, err)
		}
	}

	return created, nil
}

func (s *Seeder) randomDate(fromYear, toYear int) time.Time {
	from := time.Date(fromYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(toYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	days := int(to.Sub(from).Hours() / 24)

	return from.AddDate(0, 0, s.rng.IntN(days+1))
}

func (s *Seeder) log(collection string, count int) {
	if s.logger != nil {
		s.logger.Info(logMsgSeeded+collection, logAttrCount, count)
	}
}

var romanNumerals = []struct {
	value   int
	numeral string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// Roman renders n as a Roman numeral; non-positive numbers yield "".
func Roman(n int) string {
	var b strings.Builder
	for _, r := range romanNumerals {
		for n >= r.value {
			b.WriteString(r.numeral)
			n -= r.value
		}
	}

	return b.String()
}
