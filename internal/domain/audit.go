package domain

import "time"

// ExecutionSummary is one row of a household's execution history listing.
type ExecutionSummary struct {
	ExecutionID    string          `json:"execution_id"`
	DraftID        string          `json:"draft_id"`
	Verb           Verb            `json:"verb"`
	Status         ExecutionStatus `json:"status"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at"`
	Vendor         string          `json:"vendor"`
	FinalCostCents *int64          `json:"final_cost_cents"`
}

// ExecutionDetail is the full audit view of one execution.
type ExecutionDetail struct {
	ExecutionID           string          `json:"execution_id"`
	DraftID               string          `json:"draft_id"`
	Verb                  Verb            `json:"verb"`
	Status                ExecutionStatus `json:"status"`
	StartedAt             time.Time       `json:"started_at"`
	FinishedAt            *time.Time      `json:"finished_at"`
	RawCommandText        string          `json:"raw_command_text"`
	Intent                Blob            `json:"normalized_intent_json"`
	DraftPayload          Blob            `json:"draft_payload_json"`
	ConfirmationLatencyMS *int64          `json:"confirmation_latency_ms"`
	ExecutionPayload      Blob            `json:"execution_payload_json"`
	ErrorMessage          *string         `json:"error_message"`
	Receipts              []Receipt       `json:"receipts"`
}
