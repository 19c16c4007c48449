package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/autopilot"
	"github.com/karanuppal/halo/internal/card"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/intent"
	"github.com/karanuppal/halo/internal/lock"
	"github.com/karanuppal/halo/internal/store"
	"github.com/karanuppal/halo/internal/telemetry"
)

// Orchestrator owns the Command -> Draft -> Confirmation -> Execution ->
// Receipt state transitions.
//
// Thread-safety: all methods are safe for concurrent use. Requests against
// different drafts proceed independently; confirm and modify on the same
// draft are serialized by the configured lock.Locker.
type Orchestrator struct {
	store     *store.Store
	extractor intent.Extractor
	reorder   adapter.ReorderAdapter
	booking   adapter.BookingAdapter
	autopilot *autopilot.Engine

	clock       Clock
	ids         IDGenerator
	locker      lock.Locker
	threshold   float64
	windowCount int
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *telemetry.Metrics
}

// New creates an Orchestrator. The adapters are fixed for the lifetime of
// the orchestrator; drafts built by a different vendor are rejected at
// modify and confirm time.
func New(
	s *store.Store,
	extractor intent.Extractor,
	reorder adapter.ReorderAdapter,
	booking adapter.BookingAdapter,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:       s,
		extractor:   extractor,
		reorder:     reorder,
		booking:     booking,
		clock:       SystemClock{},
		ids:         UUIDv7Generator{},
		locker:      lock.NewLocal(),
		threshold:   DefaultConfidenceThreshold,
		windowCount: adapter.DefaultTimeWindowCount,
		logger:      slog.Default(),
		tracer:      otel.Tracer(telemetry.InstrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = telemetry.MustMetrics()
	}
	o.autopilot = autopilot.NewEngine(s, o.ids, o.now)
	return o
}

func (o *Orchestrator) now() time.Time {
	return o.clock.Now().UTC()
}

// event builds an event with a fresh id.
func (o *Orchestrator) event(
	householdID, userID string,
	entityType domain.EntityType, entityID string,
	eventType domain.EventType, payload domain.Blob,
	at time.Time,
) domain.Event {
	return domain.Event{
		ID:          o.ids.Generate(),
		HouseholdID: householdID,
		UserID:      userID,
		EntityType:  entityType,
		EntityID:    entityID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   at,
	}
}

func appendEvents(ctx context.Context, tx *store.Tx, events ...domain.Event) error {
	for _, e := range events {
		if _, err := tx.AppendEvent(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// lockDraft takes the per-draft lock.
func (o *Orchestrator) lockDraft(ctx context.Context, draftID string) (func(), error) {
	release, err := o.locker.Lock(ctx, "draft:"+draftID)
	if err != nil {
		return nil, fmt.Errorf("lock draft %s: %w", draftID, err)
	}
	return release, nil
}

// loadDraft returns a draft and the command that produced it.
func (o *Orchestrator) loadDraft(ctx context.Context, draftID string) (domain.Draft, domain.Command, error) {
	if draftID == "" {
		return domain.Draft{}, domain.Command{}, newError(ErrCodeInvalidRequest, "", "draft_id is required")
	}
	d, err := o.store.GetDraft(ctx, draftID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Draft{}, domain.Command{}, newError(ErrCodeNotFound, draftID, "Draft not found")
	}
	if err != nil {
		return domain.Draft{}, domain.Command{}, err
	}
	cmd, err := o.store.GetCommand(ctx, d.CommandID)
	if err != nil {
		return domain.Draft{}, domain.Command{}, fmt.Errorf("load draft %s: %w", draftID, err)
	}
	return d, cmd, nil
}

// liveExecution returns the latest execution of a draft that is not FAILED.
func (o *Orchestrator) liveExecution(ctx context.Context, draftID string) (*domain.Execution, error) {
	execs, err := o.store.ExecutionsForDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	for i := len(execs) - 1; i >= 0; i-- {
		if execs[i].Status != domain.StatusFailed {
			e := execs[i]
			return &e, nil
		}
	}
	return nil, nil
}

// decodePayload builds the typed view of a stored draft.
func decodePayload(d domain.Draft) (domain.DraftPayload, error) {
	if !d.Verb.Supported() {
		return nil, newError(ErrCodeUnknownVerb, d.ID, "Unknown draft verb: %s", d.Verb)
	}
	p, err := domain.DecodeDraftPayload(d.Verb, d.Payload)
	if err != nil {
		return nil, fmt.Errorf("draft %s: %w", d.ID, err)
	}
	return p, nil
}

// checkVendor verifies the draft was built by the adapter now configured
// for its verb.
func (o *Orchestrator) checkVendor(d domain.Draft) error {
	var want string
	switch d.Verb {
	case domain.VerbReorder:
		want = o.reorder.Vendor()
	case domain.VerbBookAppointment:
		want = o.booking.Vendor()
	default:
		return nil
	}
	if d.Vendor != want {
		return newError(ErrCodeVendorMismatch, d.ID, "Draft vendor mismatch: draft=%s configured=%s", d.Vendor, want)
	}
	return nil
}

func audienceFor(cmd domain.Command, userID string) card.Audience {
	if userID == "" {
		userID = cmd.UserID
	}
	return card.Audience{HouseholdID: cmd.HouseholdID, UserID: userID}
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, "orchestrator."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
