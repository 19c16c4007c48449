package domain

import (
	"fmt"
	"strings"
)

// OrderItem is a requested reorder line before pricing.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// PricedItem is a reorder line priced by a vendor adapter.
type PricedItem struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

// SubscriptionRef identifies the subscription a cancel draft targets.
type SubscriptionRef struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	MonthlyCostCents int64  `json:"monthly_cost_cents"`
	RenewalDate      string `json:"renewal_date"`
}

// TimeWindow is an appointment slot as ISO-8601 UTC strings.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DraftPayload is the typed view of a draft's payload blob. The concrete
// type is one of *ReorderDraft, *CancelDraft or *BookingDraft.
type DraftPayload interface {
	DraftVerb() Verb
	Blob() Blob
	draftPayload()
}

// ReorderDraft is the payload of a REORDER draft.
type ReorderDraft struct {
	Verb                Verb         `json:"verb"`
	Vendor              string       `json:"vendor"`
	Intent              Intent       `json:"intent"`
	Items               []PricedItem `json:"items"`
	EstimatedTotalCents int64        `json:"estimated_total_cents"`
	DeliveryWindow      string       `json:"delivery_window"`
	PaymentMethodMasked string       `json:"payment_method_masked"`
	Warnings            []string     `json:"warnings"`
}

// CancelDraft is the payload of a CANCEL_SUBSCRIPTION draft.
type CancelDraft struct {
	Verb                   Verb            `json:"verb"`
	Vendor                 string          `json:"vendor"`
	Intent                 Intent          `json:"intent"`
	Subscription           SubscriptionRef `json:"subscription"`
	AvailableSubscriptions []string        `json:"available_subscriptions"`
	Warnings               []string        `json:"warnings"`
}

// BookingDraft is the payload of a BOOK_APPOINTMENT draft.
type BookingDraft struct {
	Verb                    Verb         `json:"verb"`
	Vendor                  string       `json:"vendor"`
	Intent                  Intent       `json:"intent"`
	ServiceType             string       `json:"service_type"`
	VendorName              string       `json:"vendor_name"`
	PriceEstimateCents      int64        `json:"price_estimate_cents"`
	TimeWindows             []TimeWindow `json:"time_windows"`
	SelectedTimeWindowIndex int          `json:"selected_time_window_index"`
	Warnings                []string     `json:"warnings"`
}

func (*ReorderDraft) draftPayload() {}
func (*CancelDraft) draftPayload()  {}
func (*BookingDraft) draftPayload() {}

func (*ReorderDraft) DraftVerb() Verb { return VerbReorder }
func (*CancelDraft) DraftVerb() Verb  { return VerbCancelSubscription }
func (*BookingDraft) DraftVerb() Verb { return VerbBookAppointment }

func (d *ReorderDraft) Blob() Blob { return MustBlob(d) }
func (d *CancelDraft) Blob() Blob  { return MustBlob(d) }
func (d *BookingDraft) Blob() Blob { return MustBlob(d) }

// SelectedWindow returns the currently selected time window, or the zero
// value when the index is out of range.
func (d *BookingDraft) SelectedWindow() TimeWindow {
	if d.SelectedTimeWindowIndex < 0 || d.SelectedTimeWindowIndex >= len(d.TimeWindows) {
		return TimeWindow{}
	}
	return d.TimeWindows[d.SelectedTimeWindowIndex]
}

// DecodeDraftPayload builds the typed view for a draft of the given verb.
func DecodeDraftPayload(verb Verb, b Blob) (DraftPayload, error) {
	var p DraftPayload
	switch verb {
	case VerbReorder:
		p = &ReorderDraft{}
	case VerbCancelSubscription:
		p = &CancelDraft{}
	case VerbBookAppointment:
		p = &BookingDraft{}
	default:
		return nil, fmt.Errorf("decode draft payload: unknown verb %q", verb)
	}
	if err := b.Decode(p); err != nil {
		return nil, fmt.Errorf("decode %s draft payload: %w", verb, err)
	}
	return p, nil
}

// RoutineKeyFromDraft returns the routine key recorded in the draft's intent
// snapshot, falling back to "{verb}:UNKNOWN".
func RoutineKeyFromDraft(verb Verb, payload Blob) string {
	if intent := payload.Object("intent"); intent != nil {
		if rk := intent.String("routine_key"); rk != "" {
			return rk
		}
	}
	return string(verb) + ":UNKNOWN"
}

// ItemQuantities extracts {lowercased name: quantity} from a payload's item
// list. Blank names are skipped and quantities are floored at 1.
func ItemQuantities(payload Blob) map[string]int64 {
	out := map[string]int64{}
	for _, raw := range payload.List("items") {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		b := Blob(item)
		name := strings.ToLower(b.String("name"))
		if name == "" {
			continue
		}
		qty, ok := b.Int("quantity")
		if !ok || qty < 1 {
			qty = 1
		}
		out[name] = qty
	}
	return out
}

// ParseOrderItems reads a raw item list (as decoded from JSON) into order
// items. Entries that are not objects or have blank names are dropped;
// quantities are coerced to at least 1.
func ParseOrderItems(raw []any) []OrderItem {
	items := make([]OrderItem, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		b := Blob(m)
		name := b.String("name")
		if name == "" {
			continue
		}
		qty, ok := b.Int("quantity")
		if !ok || qty < 1 {
			qty = 1
		}
		items = append(items, OrderItem{Name: name, Quantity: int(qty)})
	}
	return items
}

// SumLineTotals returns the sum of line totals over items.
func SumLineTotals(items []PricedItem) int64 {
	var total int64
	for _, it := range items {
		total += it.LineTotalCents
	}
	return total
}
