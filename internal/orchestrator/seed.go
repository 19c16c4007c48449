package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/store"
)

// Seed describes household state to load, typically from a YAML file.
type Seed struct {
	Household      SeedHousehold      `yaml:"household" json:"household"`
	Users          []SeedUser         `yaml:"users" json:"users"`
	UsualItems     []domain.OrderItem `yaml:"usual_items" json:"usual_items"`
	Subscriptions  []SeedSubscription `yaml:"subscriptions" json:"subscriptions"`
	BookingVendors []SeedVendor       `yaml:"booking_vendors" json:"booking_vendors"`
}

// SeedHousehold names the seeded household.
type SeedHousehold struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// SeedUser is a household member.
type SeedUser struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
}

// SeedSubscription is a cancellable subscription. The renewal date is
// relative to the time of seeding.
type SeedSubscription struct {
	Name             string `yaml:"name" json:"name"`
	MonthlyCostCents int64  `yaml:"monthly_cost_cents" json:"monthly_cost_cents"`
	RenewsInDays     int    `yaml:"renews_in_days" json:"renews_in_days"`
}

// SeedVendor is a booking vendor. The first one listed is the household's
// default.
type SeedVendor struct {
	Name               string `yaml:"name" json:"name"`
	DefaultServiceType string `yaml:"default_service_type" json:"default_service_type"`
	PriceEstimateCents int64  `yaml:"price_estimate_cents" json:"price_estimate_cents"`
}

// SeedResult counts what ApplySeed wrote.
type SeedResult struct {
	HouseholdCreated bool `json:"household_created"`
	Users            int  `json:"users"`
	UsualItems       int  `json:"usual_items"`
	Subscriptions    int  `json:"subscriptions"`
	BookingVendors   int  `json:"booking_vendors"`
}

// ApplySeed loads household state in one transaction. Rows get stable ids
// derived from the household and their position so that re-applying a seed
// updates rather than duplicates. Usual items are only written for a
// household that has none.
func (o *Orchestrator) ApplySeed(ctx context.Context, s Seed) (SeedResult, error) {
	var res SeedResult
	hh := s.Household.ID
	if hh == "" {
		return res, newError(ErrCodeInvalidRequest, "", "household.id is required")
	}
	now := o.now()

	err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		created, err := tx.EnsureHousehold(ctx, hh, s.Household.Name, now)
		if err != nil {
			return err
		}
		res.HouseholdCreated = created
		if err := tx.EnsurePreference(ctx, domain.Preference{HouseholdID: hh, DefaultMerchant: DefaultMerchant}, now); err != nil {
			return err
		}

		for _, u := range s.Users {
			if u.ID == "" {
				return newError(ErrCodeInvalidRequest, "", "users[].id is required")
			}
			if err := tx.EnsureUser(ctx, u.ID, hh, u.DisplayName, now); err != nil {
				return err
			}
			res.Users++
		}

		existing, err := tx.ListUsualItems(ctx, hh)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			for i, it := range s.UsualItems {
				qty := it.Quantity
				if qty < 1 {
					qty = 1
				}
				if err := tx.InsertUsualItem(ctx, domain.UsualItem{
					ID:          fmt.Sprintf("%s-usual-%d", hh, i),
					HouseholdID: hh,
					Name:        it.Name,
					Quantity:    qty,
					CreatedAt:   now.Add(time.Duration(i)),
				}); err != nil {
					return err
				}
				res.UsualItems++
			}
		}

		for i, sub := range s.Subscriptions {
			if err := tx.UpsertSubscription(ctx, domain.Subscription{
				ID:               fmt.Sprintf("%s-sub-%d", hh, i),
				HouseholdID:      hh,
				Name:             sub.Name,
				MonthlyCostCents: sub.MonthlyCostCents,
				RenewalDate:      now.AddDate(0, 0, sub.RenewsInDays),
				CreatedAt:        now,
			}); err != nil {
				return err
			}
			res.Subscriptions++
		}

		for i, v := range s.BookingVendors {
			if err := tx.UpsertBookingVendor(ctx, domain.BookingVendor{
				ID:                 fmt.Sprintf("%s-vendor-%d", hh, i),
				HouseholdID:        hh,
				Name:               v.Name,
				DefaultServiceType: v.DefaultServiceType,
				PriceEstimateCents: v.PriceEstimateCents,
				CreatedAt:          now.Add(time.Duration(i)),
			}); err != nil {
				return err
			}
			res.BookingVendors++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("apply seed: %w", err)
	}
	return res, nil
}
