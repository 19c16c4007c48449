package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/card"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/store"
)

// ConfirmRequest confirms a draft.
type ConfirmRequest struct {
	DraftID string `json:"draft_id"`
	UserID  string `json:"user_id"`
}

// completion is what a successful executor hands back for the DONE
// transition.
type completion struct {
	finalCost   *int64
	payload     domain.Blob
	receiptType string
	content     string
	externalRef string
	card        domain.Card
}

// errMissingItems fails a reorder whose draft lost its priced items.
var errMissingItems = errors.New("draft missing items")

// Confirm records a confirmation, executes the draft and returns a DONE or
// FAILED card. Vendor failures do not produce an error: they mark the
// execution FAILED and return a FAILED card with a RETRY action. Errors are
// returned only for rejected requests (see Error) and storage failures. A
// DONE transition that cannot be stored fails the execution instead.
func (o *Orchestrator) Confirm(ctx context.Context, req ConfirmRequest) (c domain.Card, err error) {
	ctx, span := o.startSpan(ctx, "Confirm", attribute.String("draft_id", req.DraftID))
	defer func() { endSpan(span, err) }()

	release, err := o.lockDraft(ctx, req.DraftID)
	if err != nil {
		return domain.Card{}, err
	}
	defer release()

	d, cmd, err := o.loadDraft(ctx, req.DraftID)
	if err != nil {
		return domain.Card{}, err
	}
	live, err := o.liveExecution(ctx, d.ID)
	if err != nil {
		return domain.Card{}, fmt.Errorf("confirm: %w", err)
	}
	if live != nil {
		return domain.Card{}, newError(ErrCodeAlreadyConfirmed, d.ID,
			"Draft already confirmed: execution %s is %s", live.ID, live.Status)
	}
	p, err := decodePayload(d)
	if err != nil {
		return domain.Card{}, err
	}
	if err := o.checkVendor(d); err != nil {
		return domain.Card{}, err
	}

	aud := audienceFor(cmd, req.UserID)
	hh, user := aud.HouseholdID, aud.UserID
	span.SetAttributes(attribute.String("verb", string(d.Verb)), attribute.String("vendor", d.Vendor))

	now := o.now()
	latency := now.Sub(d.CreatedAt).Milliseconds()
	if latency < 0 {
		latency = 0
	}
	conf := domain.Confirmation{
		ID:          o.ids.Generate(),
		DraftID:     d.ID,
		UserID:      user,
		ConfirmedAt: now,
		LatencyMS:   latency,
	}
	ex := domain.Execution{
		ID:        o.ids.Generate(),
		DraftID:   d.ID,
		Status:    domain.StatusInProgress,
		StartedAt: now,
		Payload:   domain.Blob{},
	}
	if err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertConfirmation(ctx, conf); err != nil {
			return err
		}
		if err := tx.InsertExecution(ctx, ex); err != nil {
			return err
		}
		return appendEvents(ctx, tx,
			o.event(hh, user, domain.EntityDraft, d.ID, domain.EventDraftConfirmed, domain.Blob{
				"confirmation_id": conf.ID,
				"execution_id":    ex.ID,
				"latency_ms":      latency,
			}, now),
			o.event(hh, user, domain.EntityExecution, ex.ID, domain.EventExecutionStarted, domain.Blob{
				"draft_id": d.ID,
				"verb":     string(d.Verb),
			}, now),
		)
	}); err != nil {
		return domain.Card{}, fmt.Errorf("confirm: %w", err)
	}
	o.metrics.Confirmed(ctx, string(d.Verb), latency)
	o.logger.Debug("execution started",
		"draft_id", d.ID,
		"execution_id", ex.ID,
		"verb", d.Verb,
		"latency_ms", latency)

	// The execution is IN_PROGRESS from here on. Its terminal transition
	// must be written even if the caller goes away mid-execution.
	tctx := context.WithoutCancel(ctx)

	done, execErr := o.execute(ctx, aud, d, p, ex.ID)
	if execErr == nil {
		if c, execErr = o.finish(tctx, aud, d, ex, done); execErr == nil {
			return c, nil
		}
	}
	if c, err = o.fail(tctx, aud, d, ex, execErr); err != nil {
		return domain.Card{}, err
	}
	return c, nil
}

// execute runs the verb's executor. A panic inside an adapter is reported
// as an execution failure.
func (o *Orchestrator) execute(ctx context.Context, aud card.Audience, d domain.Draft, p domain.DraftPayload, executionID string) (done completion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()

	switch p := p.(type) {
	case *domain.ReorderDraft:
		return o.executeReorder(ctx, aud, d, p, executionID)
	case *domain.CancelDraft:
		return o.executeCancel(aud, d, p, executionID)
	case *domain.BookingDraft:
		return o.executeBooking(ctx, aud, d, p, executionID)
	}
	return completion{}, newError(ErrCodeUnknownVerb, d.ID, "Unknown draft verb: %s", d.Verb)
}

func (o *Orchestrator) executeReorder(ctx context.Context, aud card.Audience, d domain.Draft, p *domain.ReorderDraft, executionID string) (completion, error) {
	if len(p.Items) == 0 {
		return completion{}, errMissingItems
	}
	var expected int64
	if d.EstimatedCostCents != nil {
		expected = *d.EstimatedCostCents
	}

	res, err := o.reorder.Execute(ctx, aud.HouseholdID, p.Items, expected)
	if err != nil {
		return completion{}, err
	}
	return completion{
		finalCost: domain.Cents(res.TotalCents),
		payload: domain.Blob{
			"receipt_id":  res.ReceiptID,
			"summary":     res.Summary,
			"total_cents": res.TotalCents,
		},
		receiptType: domain.ReceiptOrder,
		content:     res.Summary,
		externalRef: res.ReceiptID,
		card:        card.ReorderDone(aud, d, executionID, res),
	}, nil
}

func (o *Orchestrator) executeCancel(aud card.Audience, d domain.Draft, p *domain.CancelDraft, executionID string) (completion, error) {
	name := p.Subscription.Name
	if name == "" {
		name = "subscription"
	}
	confirmationID := "cancel_" + o.shortID()
	content := fmt.Sprintf("Cancellation confirmed for %s. Confirmation: %s", name, confirmationID)

	return completion{
		payload: domain.Blob{
			"confirmation_id": confirmationID,
			"subscription":    map[string]any(domain.MustBlob(p.Subscription)),
		},
		receiptType: domain.ReceiptCancelConfirmation,
		content:     content,
		externalRef: confirmationID,
		card:        card.CancelDone(aud, d, executionID, confirmationID, content, p.Subscription),
	}, nil
}

func (o *Orchestrator) executeBooking(ctx context.Context, aud card.Audience, d domain.Draft, p *domain.BookingDraft, executionID string) (completion, error) {
	if err := o.checkVendor(d); err != nil {
		return completion{}, err
	}

	res, err := o.booking.Execute(ctx, aud.HouseholdID, p)
	if err != nil {
		return completion{}, err
	}
	ref := res.ExternalReferenceID
	if ref == "" {
		ref = res.ConfirmationID
	}
	payload := domain.Blob{
		"confirmation_id": res.ConfirmationID,
		"details": map[string]any{
			"service_type": p.ServiceType,
			"vendor_name":  p.VendorName,
			"time_window":  map[string]any(domain.MustBlob(p.SelectedWindow())),
		},
	}
	return completion{
		finalCost:   domain.Cents(p.PriceEstimateCents),
		payload:     payload,
		receiptType: domain.ReceiptBookingConfirmation,
		content:     res.Summary,
		externalRef: ref,
		card:        card.BookingDone(aud, d, executionID, res, p.PriceEstimateCents, payload),
	}, nil
}

// finish moves the execution to DONE with its receipt, then emits the
// autopilot signal.
func (o *Orchestrator) finish(ctx context.Context, aud card.Audience, d domain.Draft, ex domain.Execution, done completion) (domain.Card, error) {
	now := o.now()
	ex.Status = domain.StatusDone
	ex.FinishedAt = &now
	ex.FinalCostCents = done.finalCost
	ex.Payload = done.payload

	receipt := domain.Receipt{
		ID:                  o.ids.Generate(),
		ExecutionID:         ex.ID,
		Type:                done.receiptType,
		ContentText:         done.content,
		ExternalReferenceID: done.externalRef,
		CreatedAt:           now,
	}
	hh, user := aud.HouseholdID, aud.UserID
	if err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.FinishExecution(ctx, ex); err != nil {
			return err
		}
		if err := tx.InsertReceipt(ctx, receipt); err != nil {
			return err
		}
		return appendEvents(ctx, tx,
			o.event(hh, user, domain.EntityExecution, ex.ID, domain.EventExecutionDone, ex.Payload, now),
			o.event(hh, user, domain.EntityReceipt, receipt.ID, domain.EventReceiptCreated, domain.Blob{
				"type":                  receipt.Type,
				"external_reference_id": receipt.ExternalReferenceID,
				"execution_id":          ex.ID,
			}, now),
		)
	}); err != nil {
		return domain.Card{}, fmt.Errorf("finish execution: %w", err)
	}
	o.metrics.ExecutionFinished(ctx, string(d.Verb), d.Vendor, string(ex.Status))
	o.logger.Debug("execution done", "draft_id", d.ID, "execution_id", ex.ID, "verb", d.Verb)

	o.autopilot.Emit(ctx, hh, user, d, ex)
	return done.card, nil
}

// fail moves the execution to FAILED, then emits the autopilot signal.
func (o *Orchestrator) fail(ctx context.Context, aud card.Audience, d domain.Draft, ex domain.Execution, cause error) (domain.Card, error) {
	now := o.now()
	msg := cause.Error()
	ex.Status = domain.StatusFailed
	ex.FinishedAt = &now
	ex.ErrorMessage = msg
	ex.Payload = domain.Blob{"error": msg}

	hh, user := aud.HouseholdID, aud.UserID
	if err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.FinishExecution(ctx, ex); err != nil {
			return err
		}
		return appendEvents(ctx, tx,
			o.event(hh, user, domain.EntityExecution, ex.ID, domain.EventExecutionFailed, domain.Blob{
				"error":      msg,
				"error_kind": string(adapter.KindOf(cause)),
			}, now),
		)
	}); err != nil {
		return domain.Card{}, fmt.Errorf("fail execution: %w", err)
	}
	o.metrics.ExecutionFinished(ctx, string(d.Verb), d.Vendor, string(ex.Status))
	o.logAdapterFailure("execution failed", cause, d.ID, ex.ID, d.Verb, d.Vendor)

	o.autopilot.Emit(ctx, hh, user, d, ex)
	return card.Failed(aud, d, ex.ID, cause), nil
}

// shortID is ten hex characters taken from a fresh id.
func (o *Orchestrator) shortID() string {
	id := strings.ReplaceAll(o.ids.Generate(), "-", "")
	if len(id) > 10 {
		id = id[len(id)-10:]
	}
	return id
}
