package carhire

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
)

const maxBookingsPerDay = 999

var ErrInvalidCost = errors.New("bcrypt cost out of range")

// Hooks holds the settings of the write hooks.
type Hooks struct {
	cost int
}

// NewHooks returns hooks hashing passwords with the given bcrypt cost; 0 selects bcrypt.DefaultCost.
func NewHooks(cost int) (Hooks, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return Hooks{}, ErrInvalidCost
	}

	return Hooks{cost: cost}, nil
}

// bookingID sets BookingId to {CustomerId}_{YYYY-MM-DD}_{nnn}. nnn starts after the number of bookings
// the customer already has on that day and skips numbers that are taken.
func (h Hooks) bookingID(ctx context.Context, env cs.HookEnv, rec cs.Record) error {
	customerID := rec.Text("CustomerId")
	start, hasStart := rec.Time("StartDate")
	if customerID == "" || !hasStart {
		return cs.Invalid("CustomerId and StartDate are required for Booking.")
	}

	loc := env.Location()
	day := start.In(loc).Format("2006-01-02")

	n, err := env.Count(ctx, Booking, cs.And(
		cs.Eq("CustomerId", customerID),
		cs.Gte("StartDate", cs.StartOfDay(start, loc)),
		cs.Lte("StartDate", cs.EndOfDay(start, loc)),
	))
	if err != nil {
		return err
	}

	for seq := n + 1; seq <= maxBookingsPerDay; seq++ {
		id := FormatBookingID(customerID, day, seq)

		taken, err := env.Count(ctx, Booking, cs.Eq("BookingId", id))
		if err != nil {
			return err
		}

		if taken == 0 {
			rec["BookingId"] = id
			return nil
		}
	}

	return cs.Invalid("no booking number left for %s on %s", customerID, day)
}

// FormatBookingID renders a booking id.
func FormatBookingID(customerID, day string, seq int) string {
	return fmt.Sprintf("%s_%s_%03d", customerID, day, seq)
}

func (h Hooks) hashPassword(_ context.Context, _ cs.HookEnv, rec cs.Record) error {
	password := rec.Text("Password")
	if password == "" {
		return nil
	}

	hash, err := h.Hash(password)
	if err != nil {
		return err
	}

	rec["Password"] = hash

	return nil
}

// rehashPassword drops an empty password from a patch so that it keeps the stored hash.
func (h Hooks) rehashPassword(ctx context.Context, env cs.HookEnv, rec cs.Record) error {
	if v, ok := rec["Password"]; ok && (v == nil || rec.Text("Password") == "") {
		delete(rec, "Password")
		return nil
	}

	return h.hashPassword(ctx, env, rec)
}

// Hash returns the bcrypt hash of password. Values that already are bcrypt hashes are kept.
func (h Hooks) Hash(password string) (string, error) {
	if IsHash(password) {
		return password, nil
	}

	cost := h.cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", cs.Invalid("Password must not exceed 72 bytes")
		}
		return "", err
	}

	return string(hash), nil
}

// IsHash reports whether s looks like a bcrypt hash.
func IsHash(s string) bool {
	if !strings.HasPrefix(s, "$2a$") && !strings.HasPrefix(s, "$2b$") && !strings.HasPrefix(s, "$2y$") {
		return false
	}

	_, err := bcrypt.Cost([]byte(s))

	return err == nil
}
