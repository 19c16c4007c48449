package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/karanuppal/halo/internal/card"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/store"
)

// GetDraft renders a stored draft. A draft with an IN_PROGRESS or DONE
// execution renders as a STATUS card, since it can no longer be confirmed.
func (o *Orchestrator) GetDraft(ctx context.Context, draftID string) (domain.Card, error) {
	d, cmd, err := o.loadDraft(ctx, draftID)
	if err != nil {
		return domain.Card{}, err
	}
	if !d.Verb.Supported() {
		return domain.Card{}, newError(ErrCodeUnknownVerb, d.ID, "Unknown draft verb: %s", d.Verb)
	}
	aud := audienceFor(cmd, "")

	live, err := o.liveExecution(ctx, d.ID)
	if err != nil {
		return domain.Card{}, fmt.Errorf("get draft: %w", err)
	}
	if live != nil {
		return card.Status(aud, d, *live), nil
	}
	return card.Draft(aud, d)
}

// ListExecutions returns a household's executions, newest first. limit <= 0
// means DefaultExecutionListLimit.
func (o *Orchestrator) ListExecutions(ctx context.Context, householdID string, limit int) ([]domain.ExecutionSummary, error) {
	if householdID == "" {
		return nil, newError(ErrCodeInvalidRequest, "", "household_id is required")
	}
	if limit <= 0 || limit > DefaultExecutionListLimit {
		limit = DefaultExecutionListLimit
	}
	return o.store.ListExecutions(ctx, householdID, limit)
}

// GetExecution returns the audit view of one execution.
func (o *Orchestrator) GetExecution(ctx context.Context, executionID string) (domain.ExecutionDetail, error) {
	detail, err := o.store.GetExecutionDetail(ctx, executionID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ExecutionDetail{}, newError(ErrCodeNotFound, "", "Execution not found")
	}
	return detail, err
}

// ListReceipts returns an execution's receipts, newest first.
func (o *Orchestrator) ListReceipts(ctx context.Context, executionID string) ([]domain.Receipt, error) {
	if _, err := o.store.GetExecution(ctx, executionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(ErrCodeNotFound, "", "Execution not found")
		}
		return nil, err
	}
	return o.store.ReceiptsForExecution(ctx, executionID)
}

// EventQuery selects events. Exactly one field should be set; ExecutionID
// also matches draft- and receipt-keyed events that name the execution.
type EventQuery struct {
	EntityID    string
	ExecutionID string
	HouseholdID string
}

// Events returns matching events in seq order.
func (o *Orchestrator) Events(ctx context.Context, q EventQuery) ([]domain.Event, error) {
	switch {
	case q.ExecutionID != "":
		return o.store.EventsForExecution(ctx, q.ExecutionID)
	case q.EntityID != "":
		return o.store.EventsForEntity(ctx, q.EntityID)
	case q.HouseholdID != "":
		return o.store.EventsForHousehold(ctx, q.HouseholdID)
	}
	return nil, newError(ErrCodeInvalidRequest, "", "one of entity_id, execution_id or household_id is required")
}
