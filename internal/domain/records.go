package domain

import "time"

// Household is the identity scope every command, draft and execution
// belongs to.
type Household struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a member of a household.
type User struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Preference holds per-household defaults.
type Preference struct {
	HouseholdID          string `json:"household_id"`
	DefaultMerchant      string `json:"default_merchant"`
	DefaultBookingVendor string `json:"default_booking_vendor,omitempty"`
}

// UsualItem is one line of a household's "the usual" reorder list.
type UsualItem struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	Name        string    `json:"name"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Subscription is a recurring service a household can cancel.
type Subscription struct {
	ID               string    `json:"id"`
	HouseholdID      string    `json:"household_id"`
	Name             string    `json:"name"`
	MonthlyCostCents int64     `json:"monthly_cost_cents"`
	RenewalDate      time.Time `json:"renewal_date"`
	CreatedAt        time.Time `json:"created_at"`
}

// BookingVendor is a service provider the household books appointments with.
type BookingVendor struct {
	ID                 string    `json:"id"`
	HouseholdID        string    `json:"household_id"`
	Name               string    `json:"name"`
	DefaultServiceType string    `json:"default_service_type"`
	PriceEstimateCents int64     `json:"price_estimate_cents"`
	CreatedAt          time.Time `json:"created_at"`
}

// Command is the immutable record of one submitted free-text command
// together with the intent extracted from it.
type Command struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	UserID      string    `json:"user_id"`
	Channel     string    `json:"channel"`
	RawText     string    `json:"raw_command_text"`
	Intent      Blob      `json:"normalized_intent_json"`
	CreatedAt   time.Time `json:"created_at"`
}

// Draft is a proposed action awaiting confirmation.
type Draft struct {
	ID                 string    `json:"id"`
	CommandID          string    `json:"execution_request_id"`
	Verb               Verb      `json:"verb"`
	Vendor             string    `json:"vendor"`
	EstimatedCostCents *int64    `json:"estimated_cost_cents,omitempty"`
	Payload            Blob      `json:"draft_payload_json"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Confirmation records a user confirming a draft.
type Confirmation struct {
	ID          string    `json:"id"`
	DraftID     string    `json:"draft_id"`
	UserID      string    `json:"user_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
	LatencyMS   int64     `json:"confirmation_latency_ms"`
}

// Execution is one attempt to perform a confirmed draft.
type Execution struct {
	ID             string          `json:"id"`
	DraftID        string          `json:"draft_id"`
	Status         ExecutionStatus `json:"status"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	FinalCostCents *int64          `json:"final_cost_cents,omitempty"`
	Payload        Blob            `json:"execution_payload_json"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}

// Receipt is an artifact produced by a successful execution.
type Receipt struct {
	ID                  string    `json:"id"`
	ExecutionID         string    `json:"execution_id"`
	Type                string    `json:"type"`
	ContentText         string    `json:"content_text"`
	ExternalReferenceID string    `json:"external_reference_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Event is an immutable row of the append-only event log. Seq is assigned by
// the store and orders events totally.
type Event struct {
	Seq         int64      `json:"seq"`
	ID          string     `json:"id"`
	HouseholdID string     `json:"household_id"`
	UserID      string     `json:"user_id,omitempty"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	EventType   EventType  `json:"event_type"`
	Payload     Blob       `json:"event_payload_json"`
	PayloadHash string     `json:"payload_hash"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HistoryRow is one household execution joined with its draft and the
// routine key of the command that produced it.
type HistoryRow struct {
	Execution    Execution `json:"execution"`
	DraftVerb    Verb      `json:"draft_verb"`
	DraftVendor  string    `json:"draft_vendor"`
	DraftPayload Blob      `json:"draft_payload"`
	RoutineKey   string    `json:"routine_key"`
}
