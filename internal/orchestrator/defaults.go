package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/store"
)

// Household defaults, seeded lazily the first time a verb needs them.
var (
	defaultUsualItems = []domain.OrderItem{
		{Name: "paper towels", Quantity: 1},
		{Name: "detergent", Quantity: 1},
	}

	defaultSubscriptions = []struct {
		name    string
		cents   int64
		renewIn time.Duration
	}{
		{"Netflix", 1599, 15 * 24 * time.Hour},
		{"Spotify", 1099, 7 * 24 * time.Hour},
	}

	defaultBookingVendor = domain.BookingVendor{
		Name:               "Mock Cleaner Co",
		DefaultServiceType: "cleaning",
		PriceEstimateCents: 12000,
	}
)

// DefaultMerchant is recorded on a new household's preference row.
const DefaultMerchant = "amazon"

func ensureHousehold(ctx context.Context, tx *store.Tx, householdID, userID string, now time.Time) error {
	if _, err := tx.EnsureHousehold(ctx, householdID, householdID, now); err != nil {
		return err
	}
	if err := tx.EnsureUser(ctx, userID, householdID, userID, now); err != nil {
		return err
	}
	return tx.EnsurePreference(ctx, domain.Preference{
		HouseholdID:     householdID,
		DefaultMerchant: DefaultMerchant,
	}, now)
}

// usualItems returns the household's usual reorder list, seeding the
// defaults when it has none.
func (o *Orchestrator) usualItems(ctx context.Context, householdID string, now time.Time) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		usual, err := tx.ListUsualItems(ctx, householdID)
		if err != nil {
			return err
		}
		if len(usual) == 0 {
			for _, it := range defaultUsualItems {
				row := domain.UsualItem{
					ID:          o.ids.Generate(),
					HouseholdID: householdID,
					Name:        it.Name,
					Quantity:    it.Quantity,
					CreatedAt:   now,
				}
				if err := tx.InsertUsualItem(ctx, row); err != nil {
					return err
				}
				usual = append(usual, row)
			}
		}
		out = make([]domain.OrderItem, 0, len(usual))
		for _, u := range usual {
			out = append(out, domain.OrderItem{Name: u.Name, Quantity: u.Quantity})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("usual items: %w", err)
	}
	return out, nil
}

// subscriptions returns the household's subscriptions ordered by name,
// seeding the defaults when it has none.
func (o *Orchestrator) subscriptions(ctx context.Context, householdID string, now time.Time) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		if subs, err = tx.ListSubscriptions(ctx, householdID); err != nil || len(subs) > 0 {
			return err
		}
		for _, d := range defaultSubscriptions {
			if err := tx.UpsertSubscription(ctx, domain.Subscription{
				ID:               o.ids.Generate(),
				HouseholdID:      householdID,
				Name:             d.name,
				MonthlyCostCents: d.cents,
				RenewalDate:      now.Add(d.renewIn),
				CreatedAt:        now,
			}); err != nil {
				return err
			}
		}
		subs, err = tx.ListSubscriptions(ctx, householdID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("subscriptions: %w", err)
	}
	return subs, nil
}

// bookingVendor returns the household's oldest booking vendor, seeding the
// default when it has none.
func (o *Orchestrator) bookingVendor(ctx context.Context, householdID string, now time.Time) (domain.BookingVendor, error) {
	var v domain.BookingVendor
	err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		vendors, err := tx.ListBookingVendors(ctx, householdID)
		if err != nil {
			return err
		}
		if len(vendors) > 0 {
			v = vendors[0]
			return nil
		}
		v = defaultBookingVendor
		v.ID = o.ids.Generate()
		v.HouseholdID = householdID
		v.CreatedAt = now
		return tx.UpsertBookingVendor(ctx, v)
	})
	if err != nil {
		return domain.BookingVendor{}, fmt.Errorf("booking vendor: %w", err)
	}
	return v, nil
}
