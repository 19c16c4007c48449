// Package card renders orchestrator state into the uniform presentation
// envelope (domain.Card) returned by every command and draft operation.
//
// Renderers are pure: they read drafts, intents and execution outcomes and
// never touch storage.
package card

import (
	"fmt"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/domain"
)

// Audience identifies who a card is addressed to.
type Audience struct {
	HouseholdID string
	UserID      string
}

func (a Audience) card(t domain.CardType, title, summary string) domain.Card {
	return domain.Card{
		Version:     domain.CardVersion,
		Type:        t,
		Title:       title,
		Summary:     summary,
		HouseholdID: a.HouseholdID,
		UserID:      a.UserID,
		Body:        domain.Blob{},
		Actions:     []domain.CardAction{},
		Warnings:    []string{},
	}
}

func action(t domain.ActionType, label string) domain.CardAction {
	return domain.CardAction{Type: t, Label: label, Payload: domain.Blob{}}
}

func draftActions() []domain.CardAction {
	return []domain.CardAction{
		action(domain.ActionConfirm, "Confirm"),
		action(domain.ActionModify, "Modify"),
		action(domain.ActionCancel, "Cancel"),
	}
}

// bound enforces the card limits on actions and warnings.
func bound(c domain.Card) domain.Card {
	if len(c.Actions) > domain.MaxCardActions {
		c.Actions = c.Actions[:domain.MaxCardActions]
	}
	if c.Warnings == nil {
		c.Warnings = []string{}
	}
	if len(c.Warnings) > domain.MaxCardWarnings {
		c.Warnings = c.Warnings[:domain.MaxCardWarnings]
	}
	return c
}

// Clarify asks the intent's clarification questions.
func Clarify(a Audience, in domain.Intent) domain.Card {
	c := a.card(domain.CardClarify, "Clarify", "I need 1-2 quick answers before I can draft this.")
	c.Body = domain.Blob{
		"intent":    in.Blob(),
		"questions": questions(in.Normalize().Clarifications),
	}
	c.Actions = []domain.CardAction{action(domain.ActionCancel, "Cancel")}
	return bound(c)
}

// ClarifySubscription asks which of the household's subscriptions to
// cancel.
func ClarifySubscription(a Audience, in domain.Intent, names []string) domain.Card {
	q := domain.ClarificationQuestion{
		ID:      "q0",
		Prompt:  "Which subscription should I cancel?",
		Choices: domain.ClampChoices(names),
	}
	c := a.card(domain.CardClarify, "Clarify: cancel subscription", "I need you to pick a subscription.")
	c.Body = domain.Blob{
		"intent":    in.Blob(),
		"questions": questions([]domain.ClarificationQuestion{q}),
	}
	c.Actions = []domain.CardAction{action(domain.ActionCancel, "Cancel")}
	return bound(c)
}

// Unsupported declines an intent the orchestrator will not act on.
func Unsupported(a Audience, in domain.Intent) domain.Card {
	c := a.card(domain.CardUnsupported, "Not supported yet", "Halo can’t do that digitally yet in MVP.")
	supported := make([]any, 0, len(domain.SupportedVerbs))
	for _, v := range domain.SupportedVerbNames() {
		supported = append(supported, v)
	}
	c.Body = domain.Blob{
		"supported": supported,
		"intent":    in.Blob(),
	}
	return bound(c)
}

// Draft renders the DRAFT card for a stored draft.
func Draft(a Audience, d domain.Draft) (domain.Card, error) {
	p, err := domain.DecodeDraftPayload(d.Verb, d.Payload)
	if err != nil {
		return domain.Card{}, fmt.Errorf("render draft %s: %w", d.ID, err)
	}

	var c domain.Card
	switch p := p.(type) {
	case *domain.ReorderDraft:
		c = a.card(domain.CardDraft, "Draft: REORDER",
			fmt.Sprintf("I will reorder %d item(s) from Amazon.", len(p.Items)))
		c.EstimatedCostCents = d.EstimatedCostCents
		c.Body = domain.MustBlob(map[string]any{
			"items":                 nonNilItems(p.Items),
			"delivery_window":       p.DeliveryWindow,
			"payment_method_masked": p.PaymentMethodMasked,
		})
		c.Warnings = p.Warnings
	case *domain.CancelDraft:
		c = a.card(domain.CardDraft, "Draft: CANCEL SUBSCRIPTION",
			fmt.Sprintf("I will cancel %s.", p.Subscription.Name))
		body := domain.MustBlob(p.Subscription)
		body["available_subscriptions"] = stringsToAny(p.AvailableSubscriptions)
		c.Body = body
		c.Warnings = p.Warnings
	case *domain.BookingDraft:
		c = a.card(domain.CardDraft, "Draft: BOOK APPOINTMENT",
			fmt.Sprintf("I will book %s with %s.", p.ServiceType, p.VendorName))
		c.EstimatedCostCents = d.EstimatedCostCents
		c.Body = bookingBody(p)
		c.Warnings = p.Warnings
	}
	c.DraftID = d.ID
	c.Vendor = d.Vendor
	c.Actions = draftActions()
	return bound(c), nil
}

// Status renders a draft that already has a live or completed execution and
// can no longer be confirmed or modified.
func Status(a Audience, d domain.Draft, e domain.Execution) domain.Card {
	c := a.card(domain.CardStatus, "Status: "+d.Verb.Display(),
		fmt.Sprintf("Execution is %s.", e.Status))
	c.DraftID = d.ID
	c.ExecutionID = e.ID
	c.Vendor = d.Vendor
	c.EstimatedCostCents = d.EstimatedCostCents
	if e.FinalCostCents != nil {
		c.EstimatedCostCents = e.FinalCostCents
	}
	c.Body = domain.Blob{
		"status":     string(e.Status),
		"started_at": e.StartedAt.Format(timeLayout),
		"execution":  e.Payload.Clone(),
	}
	return bound(c)
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// ReorderDone reports a placed order.
func ReorderDone(a Audience, d domain.Draft, executionID string, res adapter.OrderResult) domain.Card {
	c := a.card(domain.CardDone, "Done: REORDER", "Receipt: "+res.ReceiptID)
	c.DraftID = d.ID
	c.ExecutionID = executionID
	c.Vendor = d.Vendor
	c.EstimatedCostCents = domain.Cents(res.TotalCents)
	c.Body = domain.Blob{
		"receipt_id":  res.ReceiptID,
		"summary":     res.Summary,
		"total_cents": res.TotalCents,
	}
	return bound(c)
}

// CancelDone reports a cancelled subscription.
func CancelDone(a Audience, d domain.Draft, executionID, confirmationID, content string, sub domain.SubscriptionRef) domain.Card {
	c := a.card(domain.CardDone, "Done: CANCEL SUBSCRIPTION", content)
	c.DraftID = d.ID
	c.ExecutionID = executionID
	c.Vendor = d.Vendor
	c.Body = domain.Blob{
		"confirmation_id": confirmationID,
		"subscription":    domain.MustBlob(sub),
	}
	return bound(c)
}

// BookingDone reports a booked appointment. details is the execution
// payload.
func BookingDone(a Audience, d domain.Draft, executionID string, res adapter.BookingResult, priceCents int64, details domain.Blob) domain.Card {
	c := a.card(domain.CardDone, "Done: BOOK APPOINTMENT", res.Summary)
	c.DraftID = d.ID
	c.ExecutionID = executionID
	c.Vendor = d.Vendor
	c.EstimatedCostCents = domain.Cents(priceCents)
	c.Body = domain.Blob{
		"confirmation_id": res.ConfirmationID,
		"details":         details.Clone(),
	}
	return bound(c)
}

// Failed reports a failed execution with a single RETRY action.
func Failed(a Audience, d domain.Draft, executionID string, err error) domain.Card {
	kind := adapter.KindOf(err)
	c := a.card(domain.CardFailed, "Failed: "+string(d.Verb), err.Error())
	c.DraftID = d.ID
	c.ExecutionID = executionID
	c.Vendor = d.Vendor
	c.EstimatedCostCents = d.EstimatedCostCents
	c.Body = domain.Blob{
		"error":           err.Error(),
		"error_kind":      string(kind),
		"retryable":       kind.Retryable(),
		"user_actionable": kind.UserActionable(),
	}
	c.Actions = []domain.CardAction{action(domain.ActionRetry, "Retry")}
	return bound(c)
}

func bookingBody(p *domain.BookingDraft) domain.Blob {
	windows := p.TimeWindows
	if windows == nil {
		windows = []domain.TimeWindow{}
	}
	return domain.MustBlob(map[string]any{
		"service_type":               p.ServiceType,
		"vendor_name":                p.VendorName,
		"price_estimate_cents":       p.PriceEstimateCents,
		"time_windows":               windows,
		"selected_time_window_index": p.SelectedTimeWindowIndex,
	})
}

func questions(qs []domain.ClarificationQuestion) []any {
	out := make([]any, 0, len(qs))
	for _, q := range qs {
		q.Choices = domain.ClampChoices(q.Choices)
		out = append(out, map[string]any(domain.MustBlob(q)))
	}
	return out
}

func nonNilItems(items []domain.PricedItem) []domain.PricedItem {
	if items == nil {
		return []domain.PricedItem{}
	}
	return items
}

func stringsToAny(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
