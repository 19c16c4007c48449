package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/cases"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/card"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/intent"
	"github.com/karanuppal/halo/internal/store"
)

// DefaultChannel is recorded when a command arrives without a channel.
const DefaultChannel = "API"

const cancelWarning = "This may be irreversible and could take effect immediately."

// SubmitRequest is one free-text command.
type SubmitRequest struct {
	HouseholdID string `json:"household_id"`
	UserID      string `json:"user_id"`
	Channel     string `json:"channel"`
	Text        string `json:"raw_command_text"`

	// Answers maps clarification question ids to answers from a previous
	// CLARIFY card.
	Answers map[string]string `json:"clarification_answers"`
}

func (r SubmitRequest) validate() error {
	switch {
	case strings.TrimSpace(r.HouseholdID) == "":
		return newError(ErrCodeInvalidRequest, "", "household_id is required")
	case strings.TrimSpace(r.UserID) == "":
		return newError(ErrCodeInvalidRequest, "", "user_id is required")
	case strings.TrimSpace(r.Text) == "":
		return newError(ErrCodeInvalidRequest, "", "raw_command_text is required")
	}
	return nil
}

func (r SubmitRequest) extractRequest() intent.Request {
	return intent.Request{
		Text:        r.Text,
		HouseholdID: r.HouseholdID,
		UserID:      r.UserID,
		Answers:     r.Answers,
	}
}

// Parse extracts the intent of a command without persisting anything.
func (o *Orchestrator) Parse(ctx context.Context, req SubmitRequest) (domain.Intent, error) {
	if err := req.validate(); err != nil {
		return domain.Intent{}, err
	}
	return o.extractor.Extract(ctx, req.extractRequest()).Normalize(), nil
}

// Submit records a command and answers with a CLARIFY, UNSUPPORTED or DRAFT
// card. Adapter failures while drafting are returned as errors carrying the
// adapter error kind; the command row and its events are kept.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (c domain.Card, err error) {
	ctx, span := o.startSpan(ctx, "Submit",
		attribute.String("household_id", req.HouseholdID),
		attribute.String("channel", req.Channel))
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return domain.Card{}, err
	}
	if req.Channel == "" {
		req.Channel = DefaultChannel
	}
	hh, user := req.HouseholdID, req.UserID
	now := o.now()

	if err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		return ensureHousehold(ctx, tx, hh, user, now)
	}); err != nil {
		return domain.Card{}, fmt.Errorf("submit: %w", err)
	}

	in := o.extractor.Extract(ctx, req.extractRequest()).Normalize()
	if in.Verb == domain.VerbCancelSubscription && in.NeedsClarification() {
		subs, err := o.subscriptions(ctx, hh, now)
		if err != nil {
			return domain.Card{}, fmt.Errorf("submit: %w", err)
		}
		in = withChoices(in, subscriptionNames(subs))
	}
	span.SetAttributes(
		attribute.String("verb", string(in.Verb)),
		attribute.Float64("confidence", in.Confidence))

	cmd := domain.Command{
		ID:          o.ids.Generate(),
		HouseholdID: hh,
		UserID:      user,
		Channel:     req.Channel,
		RawText:     req.Text,
		Intent:      in.Blob(),
		CreatedAt:   now,
	}
	if err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertCommand(ctx, cmd); err != nil {
			return err
		}
		return appendEvents(ctx, tx,
			o.event(hh, user, domain.EntityCommand, cmd.ID, domain.EventCommandReceived,
				domain.Blob{"channel": req.Channel, "raw_command_text": req.Text}, now),
			o.event(hh, user, domain.EntityCommand, cmd.ID, domain.EventIntentExtracted, in.Blob(), now),
		)
	}); err != nil {
		return domain.Card{}, fmt.Errorf("submit: %w", err)
	}
	o.logger.Debug("command received",
		"command_id", cmd.ID,
		"household_id", hh,
		"verb", in.Verb,
		"confidence", in.Confidence)

	c, err = o.route(ctx, card.Audience{HouseholdID: hh, UserID: user}, cmd, in, now)
	if err != nil {
		return domain.Card{}, err
	}
	o.metrics.CommandHandled(ctx, string(c.Type))
	return c, nil
}

func (o *Orchestrator) route(ctx context.Context, aud card.Audience, cmd domain.Command, in domain.Intent, now time.Time) (domain.Card, error) {
	if in.NeedsClarification() {
		return card.Clarify(aud, in), nil
	}
	if in.Verb == domain.VerbUnsupported || in.Confidence < o.threshold {
		return card.Unsupported(aud, in), nil
	}

	switch in.Verb {
	case domain.VerbReorder:
		return o.draftReorder(ctx, aud, cmd, in, now)
	case domain.VerbCancelSubscription:
		return o.draftCancel(ctx, aud, cmd, in, now)
	case domain.VerbBookAppointment:
		return o.draftBooking(ctx, aud, cmd, in, now)
	}
	return card.Unsupported(aud, in), nil
}

func (o *Orchestrator) draftReorder(ctx context.Context, aud card.Audience, cmd domain.Command, in domain.Intent, now time.Time) (domain.Card, error) {
	items := domain.ParseOrderItems(in.Params.List("items"))
	if len(items) == 0 {
		usual, err := o.usualItems(ctx, cmd.HouseholdID, now)
		if err != nil {
			return domain.Card{}, fmt.Errorf("draft reorder: %w", err)
		}
		items = usual
	}

	quote, err := o.reorder.BuildDraft(ctx, cmd.HouseholdID, items)
	if err != nil {
		o.logAdapterFailure("build reorder draft", err, "", "", domain.VerbReorder, o.reorder.Vendor())
		return domain.Card{}, fmt.Errorf("build reorder draft: %w", err)
	}

	p := &domain.ReorderDraft{
		Verb:                domain.VerbReorder,
		Vendor:              o.reorder.Vendor(),
		Intent:              in,
		Items:               quote.Items,
		EstimatedTotalCents: quote.EstimatedTotalCents,
		DeliveryWindow:      quote.DeliveryWindow,
		PaymentMethodMasked: quote.PaymentMethodMasked,
		Warnings:            nonNil(quote.Warnings),
	}
	return o.createDraft(ctx, aud, domain.Draft{
		ID:                 o.ids.Generate(),
		CommandID:          cmd.ID,
		Verb:               domain.VerbReorder,
		Vendor:             p.Vendor,
		EstimatedCostCents: domain.Cents(quote.EstimatedTotalCents),
		Payload:            p.Blob(),
		CreatedAt:          now,
	})
}

func (o *Orchestrator) draftCancel(ctx context.Context, aud card.Audience, cmd domain.Command, in domain.Intent, now time.Time) (domain.Card, error) {
	subs, err := o.subscriptions(ctx, cmd.HouseholdID, now)
	if err != nil {
		return domain.Card{}, fmt.Errorf("draft cancel: %w", err)
	}
	names := subscriptionNames(subs)

	name := in.Params.String("subscription_name")
	if name == "" {
		name = in.Object
	}
	match, ok := matchSubscription(subs, name)
	if !ok {
		return card.ClarifySubscription(aud, in, names), nil
	}

	p := &domain.CancelDraft{
		Verb:   domain.VerbCancelSubscription,
		Vendor: adapter.VendorMockSubs,
		Intent: in,
		Subscription: domain.SubscriptionRef{
			ID:               match.ID,
			Name:             match.Name,
			MonthlyCostCents: match.MonthlyCostCents,
			RenewalDate:      match.RenewalDate.UTC().Format(time.RFC3339),
		},
		AvailableSubscriptions: names,
		Warnings:               []string{cancelWarning},
	}
	return o.createDraft(ctx, aud, domain.Draft{
		ID:        o.ids.Generate(),
		CommandID: cmd.ID,
		Verb:      domain.VerbCancelSubscription,
		Vendor:    p.Vendor,
		Payload:   p.Blob(),
		CreatedAt: now,
	})
}

func (o *Orchestrator) draftBooking(ctx context.Context, aud card.Audience, cmd domain.Command, in domain.Intent, now time.Time) (domain.Card, error) {
	vendor, err := o.bookingVendor(ctx, cmd.HouseholdID, now)
	if err != nil {
		return domain.Card{}, fmt.Errorf("draft booking: %w", err)
	}

	serviceType := in.Params.String("service_type")
	if serviceType == "" {
		serviceType = in.Object
	}
	if serviceType == "" {
		serviceType = vendor.DefaultServiceType
	}

	quote, err := o.booking.BuildDraft(ctx, cmd.HouseholdID, adapter.BookingRequest{
		VendorName:         vendor.Name,
		ServiceType:        serviceType,
		PriceEstimateCents: vendor.PriceEstimateCents,
		Params:             in.Params,
	})
	if err == nil && len(quote.TimeWindows) != o.windowCount {
		err = adapter.NewAdapterError(o.booking.Vendor(),
			fmt.Sprintf("expected %d time windows, got %d", o.windowCount, len(quote.TimeWindows)), nil)
	}
	if err != nil {
		o.logAdapterFailure("build booking draft", err, "", "", domain.VerbBookAppointment, o.booking.Vendor())
		return domain.Card{}, fmt.Errorf("build booking draft: %w", err)
	}

	p := &domain.BookingDraft{
		Verb:                    domain.VerbBookAppointment,
		Vendor:                  o.booking.Vendor(),
		Intent:                  in,
		ServiceType:             quote.ServiceType,
		VendorName:              quote.VendorName,
		PriceEstimateCents:      quote.PriceEstimateCents,
		TimeWindows:             quote.TimeWindows,
		SelectedTimeWindowIndex: 0,
		Warnings:                nonNil(quote.Warnings),
	}
	return o.createDraft(ctx, aud, domain.Draft{
		ID:                 o.ids.Generate(),
		CommandID:          cmd.ID,
		Verb:               domain.VerbBookAppointment,
		Vendor:             p.Vendor,
		EstimatedCostCents: domain.Cents(quote.PriceEstimateCents),
		Payload:            p.Blob(),
		CreatedAt:          now,
	})
}

// createDraft persists a draft with its DRAFT_CREATED event and renders it.
func (o *Orchestrator) createDraft(ctx context.Context, aud card.Audience, d domain.Draft) (domain.Card, error) {
	if err := o.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertDraft(ctx, d); err != nil {
			return err
		}
		return appendEvents(ctx, tx,
			o.event(aud.HouseholdID, aud.UserID, domain.EntityDraft, d.ID, domain.EventDraftCreated, d.Payload, d.CreatedAt))
	}); err != nil {
		return domain.Card{}, fmt.Errorf("create draft: %w", err)
	}
	o.metrics.DraftCreated(ctx, string(d.Verb), d.Vendor)
	o.logger.Debug("draft created", "draft_id", d.ID, "verb", d.Verb, "vendor", d.Vendor)
	return card.Draft(aud, d)
}

func (o *Orchestrator) logAdapterFailure(msg string, err error, draftID, executionID string, verb domain.Verb, vendor string) {
	o.logger.Warn(msg,
		"draft_id", draftID,
		"execution_id", executionID,
		"verb", verb,
		"vendor", vendor,
		"error_kind", adapter.KindOf(err),
		"error", err)
}

// withChoices replaces every question's choices.
func withChoices(in domain.Intent, choices []string) domain.Intent {
	qs := make([]domain.ClarificationQuestion, 0, len(in.Clarifications))
	for _, q := range in.Clarifications {
		q.Choices = domain.ClampChoices(choices)
		qs = append(qs, q)
	}
	in.Clarifications = qs
	return in
}

func subscriptionNames(subs []domain.Subscription) []string {
	names := make([]string, 0, len(subs))
	for _, s := range subs {
		names = append(names, s.Name)
	}
	return names
}

// matchSubscription finds the subscription a user named. A case-insensitive
// exact match wins; otherwise a unique substring match in either direction
// ("my netflix" matches Netflix).
func matchSubscription(subs []domain.Subscription, name string) (domain.Subscription, bool) {
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	if want == "" {
		return domain.Subscription{}, false
	}

	for _, s := range subs {
		if fold.String(s.Name) == want {
			return s, true
		}
	}

	var found []domain.Subscription
	for _, s := range subs {
		have := fold.String(s.Name)
		if have != "" && (strings.Contains(want, have) || strings.Contains(have, want)) {
			found = append(found, s)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return domain.Subscription{}, false
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
