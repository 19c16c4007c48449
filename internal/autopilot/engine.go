package autopilot

import (
	"context"
	"fmt"
	"time"

	"github.com/karanuppal/halo/internal/domain"
)

// Store is the storage the engine reads history from and appends signals
// to. *store.Store satisfies it.
type Store interface {
	HouseholdExecutionHistory(ctx context.Context, householdID string) ([]domain.HistoryRow, error)
	LatestConfirmation(ctx context.Context, draftID string) (*domain.Confirmation, error)
	CountEvents(ctx context.Context, entityType domain.EntityType, entityID string, eventType domain.EventType) (int, error)
	AppendEvent(ctx context.Context, e domain.Event) (domain.Event, error)
}

// IDGenerator produces event ids.
type IDGenerator interface {
	Generate() string
}

// Engine emits autopilot signals.
type Engine struct {
	store Store
	ids   IDGenerator
	now   func() time.Time
}

// NewEngine creates an engine. now stamps emitted events.
func NewEngine(store Store, ids IDGenerator, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, ids: ids, now: now}
}

// Emit computes and records the signal for a terminal execution. It never
// returns an error and never panics; the result reports whether an event
// was written.
func (e *Engine) Emit(ctx context.Context, householdID, userID string, d domain.Draft, ex domain.Execution) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return e.emit(ctx, householdID, userID, d, ex) == nil
}

func (e *Engine) emit(ctx context.Context, householdID, userID string, d domain.Draft, ex domain.Execution) error {
	history, err := e.store.HouseholdExecutionHistory(ctx, householdID)
	if err != nil {
		return err
	}
	conf, err := e.store.LatestConfirmation(ctx, d.ID)
	if err != nil {
		return err
	}
	modifies, err := e.store.CountEvents(ctx, domain.EntityDraft, d.ID, domain.EventDraftModified)
	if err != nil {
		return err
	}

	sig := Compute(Input{
		Draft:        d,
		Execution:    ex,
		History:      history,
		Confirmation: conf,
		ModifyCount:  modifies,
	})
	payload, err := domain.ToBlob(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	_, err = e.store.AppendEvent(ctx, domain.Event{
		ID:          e.ids.Generate(),
		HouseholdID: householdID,
		UserID:      userID,
		EntityType:  domain.EntityExecution,
		EntityID:    ex.ID,
		EventType:   domain.EventAutopilotSignalComputed,
		Payload:     payload,
		CreatedAt:   e.now().UTC(),
	})
	return err
}
