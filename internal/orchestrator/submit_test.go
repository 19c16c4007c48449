package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/testutil"
)

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"missing household", SubmitRequest{UserID: testUser, Text: "reorder"}},
		{"missing user", SubmitRequest{HouseholdID: testHousehold, Text: "reorder"}},
		{"blank text", SubmitRequest{HouseholdID: testHousehold, UserID: testUser, Text: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Submit(context.Background(), tt.req)
			assert.True(t, IsInvalidRequest(err), "got %v", err)

			_, err = f.orch.Parse(context.Background(), tt.req)
			assert.True(t, IsInvalidRequest(err), "got %v", err)
		})
	}
}

func TestSubmit_KeepsChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Submit(ctx, SubmitRequest{
		HouseholdID: testHousehold,
		UserID:      testUser,
		Channel:     "SMS",
		Text:        "walk the dog",
	})
	require.NoError(t, err)

	events, err := f.orch.Events(ctx, EventQuery{HouseholdID: testHousehold})
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "SMS", events[0].Payload.String("channel"))
}

func TestSubmit_ExplicitItems(t *testing.T) {
	f := newFixture(t)

	c := f.submit(t, "order 3 paper towels")
	require.Equal(t, domain.CardDraft, c.Type)
	items := c.Body.List("items")
	require.Len(t, items, 1)
	item := domain.Blob(items[0].(map[string]any))
	assert.Equal(t, "paper towels", item.String("name"))
	qty, _ := item.Int("quantity")
	assert.Equal(t, int64(3), qty)
	require.NotNil(t, c.EstimatedCostCents)
	assert.Equal(t, int64(3*1299), *c.EstimatedCostCents)
}

func TestSubmit_CreatesHouseholdDefaultsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submit(t, "reorder the usual")
	f.submit(t, "reorder the usual")
	f.submit(t, "cancel")
	f.submit(t, "cancel")
	f.submit(t, "book a cleaning")
	f.submit(t, "book a cleaning")

	usual, err := f.store.ListUsualItems(ctx, testHousehold)
	require.NoError(t, err)
	assert.Len(t, usual, 2)

	subs, err := f.store.ListSubscriptions(ctx, testHousehold)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	vendors, err := f.store.ListBookingVendors(ctx, testHousehold)
	require.NoError(t, err)
	assert.Len(t, vendors, 1)

	pref, err := f.store.GetPreference(ctx, testHousehold)
	require.NoError(t, err)
	assert.Equal(t, DefaultMerchant, pref.DefaultMerchant)
}

func TestSubmit_BookingWindowCountMismatchIsAdapterError(t *testing.T) {
	clock := testutil.NewSteppingClock(t0, time.Second)
	f := newFixtureWith(t, clock,
		adapter.NewMockReorder(),
		adapter.NewMockBooking(adapter.WithNow(clock.Peek), adapter.WithWindowCount(2)),
	)

	_, err := f.orch.Submit(context.Background(), SubmitRequest{
		HouseholdID: testHousehold,
		UserID:      testUser,
		Text:        "book cleaner",
	})
	require.Error(t, err)
	assert.Equal(t, adapter.KindAdapter, adapter.KindOf(err))
}

func TestSubmit_ConfiguredWindowCount(t *testing.T) {
	clock := testutil.NewSteppingClock(t0, time.Second)
	f := newFixtureWith(t, clock,
		adapter.NewMockReorder(),
		adapter.NewMockBooking(adapter.WithNow(clock.Peek), adapter.WithWindowCount(5)),
		WithTimeWindowCount(5),
	)

	c := f.submit(t, "book cleaner")
	assert.Len(t, c.Body.List("time_windows"), 5)
}

func TestParse_PersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.orch.Parse(ctx, SubmitRequest{HouseholdID: testHousehold, UserID: testUser, Text: "reorder the usual"})
	require.NoError(t, err)
	assert.Equal(t, domain.VerbReorder, in.Verb)
	assert.Equal(t, "REORDER:USUAL", in.RoutineKey)

	events, err := f.orch.Events(ctx, EventQuery{HouseholdID: testHousehold})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMatchSubscription(t *testing.T) {
	subs := []domain.Subscription{
		{ID: "s1", Name: "Netflix"},
		{ID: "s2", Name: "Spotify"},
		{ID: "s3", Name: "Spotify Family"},
	}

	tests := []struct {
		name   string
		query  string
		wantID string
	}{
		{"exact", "Netflix", "s1"},
		{"case folded", "NETFLIX", "s1"},
		{"exact beats substring", "spotify", "s2"},
		{"query contains name", "my netflix", "s1"},
		{"name contains query", "family", "s3"},
		{"ambiguous substring", "spot", ""},
		{"no match", "hulu", ""},
		{"blank", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchSubscription(subs, tt.query)
			if tt.wantID == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestWithChoices(t *testing.T) {
	in := domain.Intent{
		Verb: domain.VerbCancelSubscription,
		Clarifications: []domain.ClarificationQuestion{
			{ID: "q0", Prompt: "Which?", Choices: []string{"A"}},
		},
	}

	got := withChoices(in, []string{"Hulu", "Netflix"})
	require.Len(t, got.Clarifications, 1)
	assert.Equal(t, []string{"Hulu", "Netflix"}, got.Clarifications[0].Choices)
	assert.Equal(t, []string{"A"}, in.Clarifications[0].Choices)
}
