package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/karanuppal/halo/internal/card"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/store"
)

// ModifyRequest changes a draft before confirmation. Recognised keys:
//
//	REORDER              items: [{name, quantity}]
//	CANCEL_SUBSCRIPTION  subscription_name, subscription_id
//	BOOK_APPOINTMENT     selected_time_window_index
type ModifyRequest struct {
	DraftID       string      `json:"draft_id"`
	UserID        string      `json:"user_id,omitempty"`
	Modifications domain.Blob `json:"modifications"`
}

// Modify applies a modification and returns the updated DRAFT card. A
// modification with nothing usable returns the unchanged card and records
// nothing.
func (o *Orchestrator) Modify(ctx context.Context, req ModifyRequest) (c domain.Card, err error) {
	ctx, span := o.startSpan(ctx, "Modify", attribute.String("draft_id", req.DraftID))
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
		return domain.Card{}, fmt.Errorf("modify: %w", err)
	}
	if live != nil {
		return domain.Card{}, newError(ErrCodeDraftLocked, d.ID, "Draft already has a %s execution", live.Status)
	}
	p, err := decodePayload(d)
	if err != nil {
		return domain.Card{}, err
	}

	aud := audienceFor(cmd, req.UserID)
	mods := req.Modifications
	if mods == nil {
		mods = domain.Blob{}
	}

	var changed bool
	switch p := p.(type) {
	case *domain.ReorderDraft:
		changed, err = o.modifyReorder(ctx, cmd.HouseholdID, &d, p, mods)
	case *domain.CancelDraft:
		changed = modifyCancel(p, mods)
	case *domain.BookingDraft:
		changed, err = o.modifyBooking(d.ID, p, mods)
	}
	if err != nil {
		return domain.Card{}, err
	}
	if !changed {
		return card.Draft(aud, d)
	}

	d.Payload = p.Blob()
	d.UpdatedAt = o.now()
	if err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpdateDraft(ctx, d.ID, d.EstimatedCostCents, d.Payload, d.UpdatedAt); err != nil {
			return err
		}
		return appendEvents(ctx, tx,
			o.event(aud.HouseholdID, aud.UserID, domain.EntityDraft, d.ID, domain.EventDraftModified,
				domain.Blob{"modifications": map[string]any(mods.Clone())}, d.UpdatedAt))
	}); err != nil {
		return domain.Card{}, fmt.Errorf("modify: %w", err)
	}
	o.logger.Debug("draft modified", "draft_id", d.ID, "verb", d.Verb)
	return card.Draft(aud, d)
}

// modifyReorder reprices a new item list. Malformed or empty lists leave
// the draft unchanged.
func (o *Orchestrator) modifyReorder(ctx context.Context, householdID string, d *domain.Draft, p *domain.ReorderDraft, mods domain.Blob) (bool, error) {
	if err := o.checkVendor(*d); err != nil {
		return false, err
	}
	items := domain.ParseOrderItems(mods.List("items"))
	if len(items) == 0 {
		return false, nil
	}

	quote, err := o.reorder.BuildDraft(ctx, householdID, items)
	if err != nil {
		o.logAdapterFailure("reprice reorder draft", err, d.ID, "", d.Verb, d.Vendor)
		return false, fmt.Errorf("reprice reorder draft: %w", err)
	}
	p.Items = quote.Items
	p.EstimatedTotalCents = quote.EstimatedTotalCents
	p.DeliveryWindow = quote.DeliveryWindow
	p.PaymentMethodMasked = quote.PaymentMethodMasked
	p.Warnings = nonNil(quote.Warnings)
	d.EstimatedCostCents = domain.Cents(quote.EstimatedTotalCents)
	return true, nil
}

// modifyCancel patches the subscription name and id in place.
func modifyCancel(p *domain.CancelDraft, mods domain.Blob) bool {
	name := mods.String("subscription_name")
	id := mods.String("subscription_id")
	if name == "" && id == "" {
		return false
	}
	if name != "" {
		p.Subscription.Name = name
	}
	if id != "" {
		p.Subscription.ID = id
	}
	return true
}

// modifyBooking selects one of the offered windows. An absent index leaves
// the draft unchanged; an index that is not an integer naming one of the
// configured number of windows is rejected.
func (o *Orchestrator) modifyBooking(draftID string, p *domain.BookingDraft, mods domain.Blob) (bool, error) {
	if _, present := mods["selected_time_window_index"]; !present {
		return false, nil
	}
	idx, ok := mods.Int("selected_time_window_index")
	if !ok || len(p.TimeWindows) != o.windowCount || idx < 0 || idx >= int64(len(p.TimeWindows)) {
		return false, newError(ErrCodeInvalidRequest, draftID,
			"selected_time_window_index must be an integer in [0, %d)", len(p.TimeWindows))
	}
	p.SelectedTimeWindowIndex = int(idx)
	return true, nil
}
