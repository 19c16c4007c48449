package domain

// CardType is the presentation state a Card describes.
type CardType string

const (
	CardDraft       CardType = "DRAFT"
	CardStatus      CardType = "STATUS"
	CardDone        CardType = "DONE"
	CardFailed      CardType = "FAILED"
	CardClarify     CardType = "CLARIFY"
	CardUnsupported CardType = "UNSUPPORTED"
)

// ActionType is a follow-up the client can offer on a Card.
type ActionType string

const (
	ActionConfirm ActionType = "CONFIRM"
	ActionModify  ActionType = "MODIFY"
	ActionCancel  ActionType = "CANCEL"
	ActionRetry   ActionType = "RETRY"
)

// Card bounds.
const (
	MaxCardActions  = 4
	MaxCardWarnings = 8
)

// CardAction is one button on a Card.
type CardAction struct {
	Type    ActionType `json:"type"`
	Label   string     `json:"label"`
	Payload Blob       `json:"payload"`
}

// Card is the uniform presentation envelope returned by every command and
// draft operation.
type Card struct {
	Version            string       `json:"version"`
	Type               CardType     `json:"type"`
	Title              string       `json:"title"`
	Summary            string       `json:"summary"`
	HouseholdID        string       `json:"household_id"`
	UserID             string       `json:"user_id"`
	DraftID            string       `json:"draft_id,omitempty"`
	ExecutionID        string       `json:"execution_id,omitempty"`
	Vendor             string       `json:"vendor,omitempty"`
	EstimatedCostCents *int64       `json:"estimated_cost_cents,omitempty"`
	Body               Blob         `json:"body"`
	Actions            []CardAction `json:"actions"`
	Warnings           []string     `json:"warnings"`
}

// Cents returns a pointer to c, for optional cost fields.
func Cents(c int64) *int64 {
	return &c
}
