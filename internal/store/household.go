package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/karanuppal/halo/internal/domain"
)

// EnsureHousehold inserts the household if absent. Uses ON CONFLICT DO
// NOTHING; created reports whether a row was written.
func (q queries) EnsureHousehold(ctx context.Context, id, name string, now time.Time) (created bool, err error) {
	if name == "" {
		name = id
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO households (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, name, toNanos(now))
	if err != nil {
		return false, fmt.Errorf("ensure household: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure household: rows affected: %w", err)
	}
	return n > 0, nil
}

// EnsureUser inserts the user if absent. An existing user keeps its
// original household.
func (q queries) EnsureUser(ctx context.Context, id, householdID, displayName string, now time.Time) error {
	if displayName == "" {
		displayName = id
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO users (id, household_id, display_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, householdID, displayName, toNanos(now))
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// EnsurePreference inserts the default preference row if absent.
func (q queries) EnsurePreference(ctx context.Context, p domain.Preference, now time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO preferences (household_id, default_merchant, default_booking_vendor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(household_id) DO NOTHING
	`, p.HouseholdID, nullableString(p.DefaultMerchant), nullableString(p.DefaultBookingVendor), toNanos(now), toNanos(now))
	if err != nil {
		return fmt.Errorf("ensure preference: %w", err)
	}
	return nil
}

// GetPreference returns the household's preference row.
func (q queries) GetPreference(ctx context.Context, householdID string) (domain.Preference, error) {
	var merchant, booking sql.NullString
	err := q.q.QueryRowContext(ctx, `
		SELECT default_merchant, default_booking_vendor
		FROM preferences
		WHERE household_id = ?
	`, householdID).Scan(&merchant, &booking)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Preference{}, fmt.Errorf("get preference %s: %w", householdID, ErrNotFound)
	}
	if err != nil {
		return domain.Preference{}, fmt.Errorf("get preference: %w", err)
	}
	return domain.Preference{
		HouseholdID:          householdID,
		DefaultMerchant:      merchant.String,
		DefaultBookingVendor: booking.String,
	}, nil
}

// GetHousehold returns a household by id.
func (q queries) GetHousehold(ctx context.Context, id string) (domain.Household, error) {
	var h domain.Household
	var created int64
	err := q.q.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM households WHERE id = ?
	`, id).Scan(&h.ID, &h.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Household{}, fmt.Errorf("get household %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Household{}, fmt.Errorf("get household: %w", err)
	}
	h.CreatedAt = fromNanos(created)
	return h, nil
}

// InsertUsualItem writes one usual item. Duplicate IDs are ignored.
func (q queries) InsertUsualItem(ctx context.Context, it domain.UsualItem) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO usual_items (id, household_id, name, quantity, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, it.ID, it.HouseholdID, it.Name, it.Quantity, toNanos(it.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert usual item: %w", err)
	}
	return nil
}

// ListUsualItems returns the household's usual items in creation order.
// Returns an empty slice (not nil) if there are none.
func (q queries) ListUsualItems(ctx context.Context, householdID string) ([]domain.UsualItem, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, household_id, name, quantity, created_at
		FROM usual_items
		WHERE household_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list usual items: %w", err)
	}
	defer rows.Close()

	items := []domain.UsualItem{}
	for rows.Next() {
		var it domain.UsualItem
		var created int64
		if err := rows.Scan(&it.ID, &it.HouseholdID, &it.Name, &it.Quantity, &created); err != nil {
			return nil, fmt.Errorf("scan usual item: %w", err)
		}
		it.CreatedAt = fromNanos(created)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usual items: %w", err)
	}
	return items, nil
}

// UpsertSubscription writes a subscription, replacing name, cost and renewal
// date when the id already exists.
func (q queries) UpsertSubscription(ctx context.Context, s domain.Subscription) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO subscriptions (id, household_id, name, monthly_cost_cents, renewal_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			monthly_cost_cents = excluded.monthly_cost_cents,
			renewal_date = excluded.renewal_date
	`, s.ID, s.HouseholdID, s.Name, s.MonthlyCostCents, toNanos(s.RenewalDate), toNanos(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns the household's subscriptions ordered by name.
func (q queries) ListSubscriptions(ctx context.Context, householdID string) ([]domain.Subscription, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, household_id, name, monthly_cost_cents, renewal_date, created_at
		FROM subscriptions
		WHERE household_id = ?
		ORDER BY name ASC, id COLLATE BINARY ASC
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []domain.Subscription{}
	for rows.Next() {
		var s domain.Subscription
		var renewal, created int64
		if err := rows.Scan(&s.ID, &s.HouseholdID, &s.Name, &s.MonthlyCostCents, &renewal, &created); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		s.RenewalDate = fromNanos(renewal)
		s.CreatedAt = fromNanos(created)
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// UpsertBookingVendor writes a booking vendor, replacing its fields when the
// id already exists.
func (q queries) UpsertBookingVendor(ctx context.Context, v domain.BookingVendor) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO booking_vendors (id, household_id, name, default_service_type, price_estimate_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			default_service_type = excluded.default_service_type,
			price_estimate_cents = excluded.price_estimate_cents
	`, v.ID, v.HouseholdID, v.Name, v.DefaultServiceType, v.PriceEstimateCents, toNanos(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert booking vendor: %w", err)
	}
	return nil
}

// ListBookingVendors returns the household's booking vendors, oldest first.
func (q queries) ListBookingVendors(ctx context.Context, householdID string) ([]domain.BookingVendor, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, household_id, name, default_service_type, price_estimate_cents, created_at
		FROM booking_vendors
		WHERE household_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list booking vendors: %w", err)
	}
	defer rows.Close()

	vendors := []domain.BookingVendor{}
	for rows.Next() {
		var v domain.BookingVendor
		var created int64
		if err := rows.Scan(&v.ID, &v.HouseholdID, &v.Name, &v.DefaultServiceType, &v.PriceEstimateCents, &created); err != nil {
			return nil, fmt.Errorf("scan booking vendor: %w", err)
		}
		v.CreatedAt = fromNanos(created)
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking vendors: %w", err)
	}
	return vendors, nil
}
