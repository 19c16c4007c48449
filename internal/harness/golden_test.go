package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karanuppal/halo/internal/domain"
)

func TestTrace_Format(t *testing.T) {
	res := &Result{
		Steps: []StepResult{
			{Kind: StepSubmit, Card: &domain.Card{Type: domain.CardDraft, EstimatedCostCents: domain.Cents(2898)}},
			{Kind: StepSubmit, Card: &domain.Card{Type: domain.CardClarify}},
			{Kind: StepConfirm, Error: "NOT_FOUND"},
		},
		Events: []domain.Event{
			{Seq: 1, EventType: domain.EventCommandReceived, EntityType: domain.EntityCommand},
			{Seq: 2, EventType: domain.EventDraftCreated, EntityType: domain.EntityDraft},
		},
		Executions: []domain.ExecutionSummary{
			{Verb: domain.VerbReorder, Vendor: "AMAZON_MOCK", Status: domain.StatusFailed},
		},
	}

	want := "scenario demo\n" +
		"step 1 submit -> DRAFT cost=2898\n" +
		"step 2 submit -> CLARIFY\n" +
		"step 3 confirm -> error NOT_FOUND\n" +
		"event 1 COMMAND_RECEIVED ExecutionRequest\n" +
		"event 2 DRAFT_CREATED Draft\n" +
		"execution REORDER AMAZON_MOCK FAILED\n"
	assert.Equal(t, want, string(Trace("demo", res)))
}
