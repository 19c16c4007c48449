package domain

// EventType names a domain occurrence recorded in the event log.
type EventType string

const (
	EventCommandReceived         EventType = "COMMAND_RECEIVED"
	EventIntentExtracted         EventType = "INTENT_EXTRACTED"
	EventDraftCreated            EventType = "DRAFT_CREATED"
	EventDraftModified           EventType = "DRAFT_MODIFIED"
	EventDraftConfirmed          EventType = "DRAFT_CONFIRMED"
	EventExecutionStarted        EventType = "EXECUTION_STARTED"
	EventExecutionDone           EventType = "EXECUTION_DONE"
	EventExecutionFailed         EventType = "EXECUTION_FAILED"
	EventReceiptCreated          EventType = "RECEIPT_CREATED"
	EventAutopilotSignalComputed EventType = "AUTOPILOT_SIGNAL_COMPUTED"
)

// EntityType names the kind of record an event is keyed by.
type EntityType string

const (
	EntityCommand      EntityType = "ExecutionRequest"
	EntityDraft        EntityType = "Draft"
	EntityConfirmation EntityType = "Confirmation"
	EntityExecution    EntityType = "Execution"
	EntityReceipt      EntityType = "ReceiptArtifact"
)

// ExecutionStatus is the state of an Execution. IN_PROGRESS is the only
// non-terminal state.
type ExecutionStatus string

const (
	StatusInProgress ExecutionStatus = "IN_PROGRESS"
	StatusDone       ExecutionStatus = "DONE"
	StatusFailed     ExecutionStatus = "FAILED"
)

// Terminal reports whether s is DONE or FAILED.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Receipt artifact types.
const (
	ReceiptOrder               = "ORDER_RECEIPT"
	ReceiptCancelConfirmation  = "CANCEL_CONFIRMATION"
	ReceiptBookingConfirmation = "BOOKING_CONFIRMATION"
)
