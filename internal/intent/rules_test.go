package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanuppal/halo/internal/domain"
)

func extract(text string, answers map[string]string) domain.Intent {
	return NewRuleExtractor().Extract(context.Background(), Request{Text: text, HouseholdID: "hh-1", UserID: "u-1", Answers: answers})
}

func TestRuleExtractor_Classification(t *testing.T) {
	tests := []struct {
		text       string
		verb       domain.Verb
		routineKey string
		confidence float64
	}{
		{"reorder the usual", domain.VerbReorder, "REORDER:USUAL", 0.85},
		{"restock please", domain.VerbReorder, "REORDER:USUAL", 0.85},
		{"order 3 paper towels and detergent", domain.VerbReorder, "REORDER:ITEMS", 0.8},
		{"cancel netflix", domain.VerbCancelSubscription, "CANCEL_SUBSCRIPTION:netflix", 0.85},
		{"Cancel my Spotify plan", domain.VerbCancelSubscription, "CANCEL_SUBSCRIPTION:my spotify", 0.85},
		{"cancel", domain.VerbCancelSubscription, "CANCEL_SUBSCRIPTION", 0.35},
		{"book cleaner next week", domain.VerbBookAppointment, "BOOK_APPOINTMENT:cleaning", 0.75},
		{"schedule a facial", domain.VerbBookAppointment, "BOOK_APPOINTMENT:facial", 0.75},
		{"make a dinner reservation", domain.VerbBookAppointment, "BOOK_APPOINTMENT:restaurant", 0.75},
		{"book something", domain.VerbBookAppointment, "BOOK_APPOINTMENT:appointment", 0.75},
		{"fix the kitchen sink", domain.VerbUnsupported, "UNSUPPORTED", 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := extract(tt.text, nil)
			assert.Equal(t, tt.verb, got.Verb)
			assert.Equal(t, tt.routineKey, got.RoutineKey)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
			assert.NotNil(t, got.Params)
			assert.NotNil(t, got.Clarifications)
		})
	}
}

func TestRuleExtractor_CancelWithoutNameAsksOneQuestion(t *testing.T) {
	got := extract("cancel subscription", nil)

	require.Len(t, got.Clarifications, 1)
	q := got.Clarifications[0]
	assert.Equal(t, "q0", q.ID)
	assert.Equal(t, "Which subscription should I cancel?", q.Prompt)
	assert.Equal(t, []string{"Netflix", "Spotify"}, q.Choices)
	assert.True(t, got.NeedsClarification())
}

func TestRuleExtractor_CancelUsesClarificationAnswer(t *testing.T) {
	got := extract("cancel", map[string]string{"q0": " Spotify "})

	assert.Equal(t, "Spotify", got.Object)
	assert.Equal(t, "Spotify", got.Params.String("subscription_name"))
	assert.Equal(t, "CANCEL_SUBSCRIPTION:spotify", got.RoutineKey)
	assert.Empty(t, got.Clarifications)
}

func TestRuleExtractor_CancelNameTitleCased(t *testing.T) {
	got := extract("please cancel disney plus subscription", nil)

	assert.Equal(t, "Disney Plus", got.Object)
}

func TestRuleExtractor_ItemQuantities(t *testing.T) {
	got := extract("buy 2 pet food and 0 detergent", nil)

	items := domain.ParseOrderItems(got.Params.List("items"))
	assert.Equal(t, []domain.OrderItem{
		{Name: "detergent", Quantity: 1},
		{Name: "pet food", Quantity: 2},
	}, items)
}

func TestRuleExtractor_BookTimePreference(t *testing.T) {
	assert.Equal(t, "next_week", extract("book cleaner next week", nil).Params.String("time_preference"))
	assert.Equal(t, "soon", extract("book cleaner", nil).Params.String("time_preference"))
}

func TestExtractorFunc(t *testing.T) {
	var e Extractor = ExtractorFunc(func(ctx context.Context, req Request) domain.Intent {
		return domain.UnsupportedIntent(req.Text)
	})

	got := e.Extract(context.Background(), Request{Text: "x"})
	assert.Equal(t, "x", got.Params.String("error"))
}
