package card

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/domain"
)

var aud = Audience{HouseholdID: "hh-1", UserID: "u-1"}

// assertGolden compares the canonical JSON of c with testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/card -update
func assertGolden(t *testing.T, name string, c domain.Card) {
	t.Helper()
	data, err := domain.MarshalCanonical(c)
	require.NoError(t, err)
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, name, data)
}

func reorderDraft() domain.Draft {
	p := &domain.ReorderDraft{
		Verb:   domain.VerbReorder,
		Vendor: adapter.VendorAmazonMock,
		Intent: domain.Intent{Verb: domain.VerbReorder, Object: "usual", Params: domain.Blob{"usual": true}, Confidence: 0.85, RoutineKey: "REORDER:USUAL"},
		Items: []domain.PricedItem{
			{Name: "paper towels", Quantity: 1, UnitPriceCents: 1299, LineTotalCents: 1299},
			{Name: "detergent", Quantity: 1, UnitPriceCents: 1599, LineTotalCents: 1599},
		},
		EstimatedTotalCents: 2898,
		DeliveryWindow:      "3-5 days",
		PaymentMethodMasked: "Visa •••• 4242",
		Warnings:            []string{},
	}
	return domain.Draft{
		ID:                 "d-1",
		Verb:               domain.VerbReorder,
		Vendor:             adapter.VendorAmazonMock,
		EstimatedCostCents: domain.Cents(2898),
		Payload:            p.Blob(),
	}
}

func cancelDraft() domain.Draft {
	p := &domain.CancelDraft{
		Verb:   domain.VerbCancelSubscription,
		Vendor: adapter.VendorMockSubs,
		Subscription: domain.SubscriptionRef{
			ID: "sub-1", Name: "Netflix", MonthlyCostCents: 1599, RenewalDate: "2026-03-16",
		},
		AvailableSubscriptions: []string{"Netflix", "Spotify"},
		Warnings:               []string{"This may be irreversible and could take effect immediately."},
	}
	return domain.Draft{ID: "d-2", Verb: domain.VerbCancelSubscription, Vendor: adapter.VendorMockSubs, Payload: p.Blob()}
}

func bookingDraft() domain.Draft {
	p := &domain.BookingDraft{
		Verb:               domain.VerbBookAppointment,
		Vendor:             adapter.VendorMockBooking,
		ServiceType:        "cleaning",
		VendorName:         "Mock Cleaner Co",
		PriceEstimateCents: 12000,
		TimeWindows: []domain.TimeWindow{
			{Start: "2026-03-02T09:00:00Z", End: "2026-03-02T11:00:00Z"},
			{Start: "2026-03-02T12:00:00Z", End: "2026-03-02T14:00:00Z"},
			{Start: "2026-03-02T15:00:00Z", End: "2026-03-02T17:00:00Z"},
		},
		SelectedTimeWindowIndex: 1,
		Warnings:                []string{},
	}
	return domain.Draft{ID: "d-3", Verb: domain.VerbBookAppointment, Vendor: adapter.VendorMockBooking, EstimatedCostCents: domain.Cents(12000), Payload: p.Blob()}
}

func TestDraft_Reorder(t *testing.T) {
	c, err := Draft(aud, reorderDraft())
	require.NoError(t, err)
	assertGolden(t, "draft_reorder", c)
}

func TestDraft_Cancel(t *testing.T) {
	c, err := Draft(aud, cancelDraft())
	require.NoError(t, err)
	assertGolden(t, "draft_cancel", c)
	assert.Nil(t, c.EstimatedCostCents)
}

func TestDraft_Booking(t *testing.T) {
	c, err := Draft(aud, bookingDraft())
	require.NoError(t, err)
	assertGolden(t, "draft_booking", c)
}

func TestDraft_UnknownVerb(t *testing.T) {
	_, err := Draft(aud, domain.Draft{ID: "d-x", Verb: "PAY_BILL"})
	assert.Error(t, err)
}

func TestDraft_ActionsAlwaysConfirmModifyCancel(t *testing.T) {
	for _, d := range []domain.Draft{reorderDraft(), cancelDraft(), bookingDraft()} {
		c, err := Draft(aud, d)
		require.NoError(t, err)
		require.Len(t, c.Actions, 3)
		assert.Equal(t, domain.ActionConfirm, c.Actions[0].Type)
		assert.Equal(t, domain.ActionModify, c.Actions[1].Type)
		assert.Equal(t, domain.ActionCancel, c.Actions[2].Type)
	}
}

func TestClarify(t *testing.T) {
	in := domain.Intent{
		Verb:       domain.VerbCancelSubscription,
		Confidence: 0.35,
		RoutineKey: "CANCEL_SUBSCRIPTION",
		Clarifications: []domain.ClarificationQuestion{
			{ID: "q0", Prompt: "Which subscription should I cancel?", Choices: []string{"Netflix", "Spotify"}},
		},
	}
	assertGolden(t, "clarify", Clarify(aud, in))
}

func TestClarifySubscription_ClampsChoices(t *testing.T) {
	names := make([]string, 12)
	for i := range names {
		names[i] = fmt.Sprintf("Sub %02d", i)
	}
	c := ClarifySubscription(aud, domain.Intent{Verb: domain.VerbCancelSubscription}, names)

	qs := c.Body.List("questions")
	require.Len(t, qs, 1)
	q := domain.Blob(qs[0].(map[string]any))
	assert.Equal(t, "q0", q.String("id"))
	assert.Len(t, q.List("choices"), domain.MaxClarificationChoices)
	assert.Equal(t, "Clarify: cancel subscription", c.Title)
}

func TestUnsupported(t *testing.T) {
	in := domain.Intent{Verb: domain.VerbUnsupported, Object: "fix the kitchen sink", Confidence: 0.2, RoutineKey: "UNSUPPORTED"}
	assertGolden(t, "unsupported", Unsupported(aud, in))
}

func TestFailed_CarriesTaxonomy(t *testing.T) {
	err := adapter.NewLinkRequiredError(adapter.VendorAmazonBrowser, "Amazon", "/sessions/hh-1.json")
	c := Failed(aud, reorderDraft(), "e-1", fmt.Errorf("execute: %w", err))

	assertGolden(t, "failed_link_required", c)
	assert.False(t, c.Body.Bool("retryable"))
}

func TestFailed_PlainErrorIsUnknownAndRetryable(t *testing.T) {
	c := Failed(aud, reorderDraft(), "e-1", errors.New("boom"))

	assert.Equal(t, domain.CardFailed, c.Type)
	assert.Equal(t, "Failed: REORDER", c.Title)
	assert.Equal(t, "UNKNOWN", c.Body.String("error_kind"))
	assert.True(t, c.Body.Bool("retryable"))
	require.Len(t, c.Actions, 1)
	assert.Equal(t, domain.ActionRetry, c.Actions[0].Type)
}

func TestReorderDone(t *testing.T) {
	c := ReorderDone(aud, reorderDraft(), "e-1", adapter.OrderResult{ReceiptID: "amz_0123456789", TotalCents: 2898, Summary: "Order placed"})
	assertGolden(t, "done_reorder", c)
}

func TestCancelDone(t *testing.T) {
	sub := domain.SubscriptionRef{ID: "sub-1", Name: "Netflix", MonthlyCostCents: 1599, RenewalDate: "2026-03-16"}
	c := CancelDone(aud, cancelDraft(), "e-2", "cancel_0000000002", "Cancellation confirmed for Netflix. Confirmation: cancel_0000000002", sub)

	assert.Equal(t, "Done: CANCEL SUBSCRIPTION", c.Title)
	assert.Nil(t, c.EstimatedCostCents)
	assert.Equal(t, "Netflix", c.Body.Object("subscription").String("name"))
}

func TestBookingDone(t *testing.T) {
	details := domain.Blob{
		"confirmation_id": "book_20260301100000",
		"details": map[string]any{
			"service_type": "cleaning",
			"vendor_name":  "Mock Cleaner Co",
			"time_window":  map[string]any{"start": "2026-03-02T12:00:00Z", "end": "2026-03-02T14:00:00Z"},
		},
	}
	res := adapter.BookingResult{ConfirmationID: "book_20260301100000", Summary: "Booked cleaning with Mock Cleaner Co."}
	c := BookingDone(aud, bookingDraft(), "e-3", res, 12000, details)

	assert.EqualValues(t, 12000, *c.EstimatedCostCents)
	assert.Equal(t, "book_20260301100000", c.Body.String("confirmation_id"))
	assert.Equal(t, "2026-03-02T12:00:00Z",
		c.Body.Object("details").Object("details").Object("time_window").String("start"))
}

func TestStatus(t *testing.T) {
	e := domain.Execution{
		ID: "e-9", DraftID: "d-1", Status: domain.StatusInProgress,
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Payload: domain.Blob{},
	}
	c := Status(aud, reorderDraft(), e)

	assert.Equal(t, domain.CardStatus, c.Type)
	assert.Equal(t, "Status: REORDER", c.Title)
	assert.Equal(t, "Execution is IN_PROGRESS.", c.Summary)
	assert.Equal(t, "2026-03-01T10:00:00.000Z", c.Body.String("started_at"))
	assert.Empty(t, c.Actions)
}

func TestBound_TruncatesWarnings(t *testing.T) {
	d := reorderDraft()
	p := d.Payload.Clone()
	warnings := make([]any, 10)
	for i := range warnings {
		warnings[i] = fmt.Sprintf("w%d", i)
	}
	p["warnings"] = warnings
	d.Payload = p

	c, err := Draft(aud, d)
	require.NoError(t, err)
	assert.Len(t, c.Warnings, domain.MaxCardWarnings)
}
