package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/karanuppal/halo/internal/domain"
)

// InsertCommand records a submitted command with its intent snapshot.
func (q queries) InsertCommand(ctx context.Context, c domain.Command) error {
	intentJSON, err := marshalBlob(c.Intent)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO execution_requests
		(id, household_id, user_id, channel, raw_command_text, normalized_intent_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.HouseholdID, c.UserID, c.Channel, c.RawText, intentJSON, toNanos(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// GetCommand returns a command by id.
func (q queries) GetCommand(ctx context.Context, id string) (domain.Command, error) {
	var c domain.Command
	var intentJSON string
	var created int64
	err := q.q.QueryRowContext(ctx, `
		SELECT id, household_id, user_id, channel, raw_command_text, normalized_intent_json, created_at
		FROM execution_requests
		WHERE id = ?
	`, id).Scan(&c.ID, &c.HouseholdID, &c.UserID, &c.Channel, &c.RawText, &intentJSON, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Command{}, fmt.Errorf("get command %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Command{}, fmt.Errorf("get command: %w", err)
	}
	if c.Intent, err = unmarshalBlob(intentJSON); err != nil {
		return domain.Command{}, fmt.Errorf("get command: %w", err)
	}
	c.CreatedAt = fromNanos(created)
	return c, nil
}

// InsertDraft writes a new draft.
func (q queries) InsertDraft(ctx context.Context, d domain.Draft) error {
	payloadJSON, err := marshalBlob(d.Payload)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	updated := d.UpdatedAt
	if updated.IsZero() {
		updated = d.CreatedAt
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO drafts
		(id, execution_request_id, verb, vendor, estimated_cost_cents, draft_payload_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.CommandID, string(d.Verb), d.Vendor, nullableInt(d.EstimatedCostCents), payloadJSON,
		toNanos(d.CreatedAt), toNanos(updated))
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

// GetDraft returns a draft by id.
func (q queries) GetDraft(ctx context.Context, id string) (domain.Draft, error) {
	var d domain.Draft
	var verb, payloadJSON string
	var cost sql.NullInt64
	var created, updated int64
	err := q.q.QueryRowContext(ctx, `
		SELECT id, execution_request_id, verb, vendor, estimated_cost_cents, draft_payload_json, created_at, updated_at
		FROM drafts
		WHERE id = ?
	`, id).Scan(&d.ID, &d.CommandID, &verb, &d.Vendor, &cost, &payloadJSON, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Draft{}, fmt.Errorf("get draft %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Draft{}, fmt.Errorf("get draft: %w", err)
	}
	if d.Payload, err = unmarshalBlob(payloadJSON); err != nil {
		return domain.Draft{}, fmt.Errorf("get draft: %w", err)
	}
	d.Verb = domain.Verb(verb)
	d.EstimatedCostCents = intPtr(cost)
	d.CreatedAt = fromNanos(created)
	d.UpdatedAt = fromNanos(updated)
	return d, nil
}

// UpdateDraft replaces a draft's estimated cost and payload.
func (q queries) UpdateDraft(ctx context.Context, id string, estimatedCost *int64, payload domain.Blob, now time.Time) error {
	payloadJSON, err := marshalBlob(payload)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	res, err := q.q.ExecContext(ctx, `
		UPDATE drafts
		SET estimated_cost_cents = ?, draft_payload_json = ?, updated_at = ?
		WHERE id = ?
	`, nullableInt(estimatedCost), payloadJSON, toNanos(now), id)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update draft: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update draft %s: %w", id, ErrNotFound)
	}
	return nil
}

// InsertConfirmation records a confirmation. Latency must already be clamped
// at zero; the schema rejects negatives.
func (q queries) InsertConfirmation(ctx context.Context, c domain.Confirmation) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO confirmations (id, draft_id, user_id, confirmed_at, confirmation_latency_ms)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.DraftID, c.UserID, toNanos(c.ConfirmedAt), c.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert confirmation: %w", err)
	}
	return nil
}

// LatestConfirmation returns the most recent confirmation for a draft, or nil
// if the draft was never confirmed.
func (q queries) LatestConfirmation(ctx context.Context, draftID string) (*domain.Confirmation, error) {
	var c domain.Confirmation
	var confirmed int64
	err := q.q.QueryRowContext(ctx, `
		SELECT id, draft_id, user_id, confirmed_at, confirmation_latency_ms
		FROM confirmations
		WHERE draft_id = ?
		ORDER BY confirmed_at DESC, rowid DESC
		LIMIT 1
	`, draftID).Scan(&c.ID, &c.DraftID, &c.UserID, &confirmed, &c.LatencyMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest confirmation: %w", err)
	}
	c.ConfirmedAt = fromNanos(confirmed)
	return &c, nil
}

// InsertExecution writes a new execution row.
func (q queries) InsertExecution(ctx context.Context, e domain.Execution) error {
	payloadJSON, err := marshalBlob(e.Payload)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO executions
		(id, draft_id, status, started_at, finished_at, final_cost_cents, execution_payload_json, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.DraftID, string(e.Status), toNanos(e.StartedAt), nullableNanos(e.FinishedAt),
		nullableInt(e.FinalCostCents), payloadJSON, nullableString(e.ErrorMessage))
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// FinishExecution moves an IN_PROGRESS execution to a terminal status.
// Returns ErrNotInProgress if the execution is missing or already terminal.
func (q queries) FinishExecution(ctx context.Context, e domain.Execution) error {
	if !e.Status.Terminal() {
		return fmt.Errorf("finish execution %s: status %s is not terminal", e.ID, e.Status)
	}
	payloadJSON, err := marshalBlob(e.Payload)
	if err != nil {
		return fmt.Errorf("finish execution: %w", err)
	}
	res, err := q.q.ExecContext(ctx, `
		UPDATE executions
		SET status = ?, finished_at = ?, final_cost_cents = ?, execution_payload_json = ?, error_message = ?
		WHERE id = ? AND status = 'IN_PROGRESS'
	`, string(e.Status), nullableNanos(e.FinishedAt), nullableInt(e.FinalCostCents), payloadJSON,
		nullableString(e.ErrorMessage), e.ID)
	if err != nil {
		return fmt.Errorf("finish execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish execution: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish execution %s: %w", e.ID, ErrNotInProgress)
	}
	return nil
}

const executionColumns = `id, draft_id, status, started_at, finished_at, final_cost_cents, execution_payload_json, error_message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(r rowScanner) (domain.Execution, error) {
	var e domain.Execution
	var status, payloadJSON string
	var started int64
	var finished, cost sql.NullInt64
	var errMsg sql.NullString
	if err := r.Scan(&e.ID, &e.DraftID, &status, &started, &finished, &cost, &payloadJSON, &errMsg); err != nil {
		return domain.Execution{}, err
	}
	payload, err := unmarshalBlob(payloadJSON)
	if err != nil {
		return domain.Execution{}, err
	}
	e.Status = domain.ExecutionStatus(status)
	e.StartedAt = fromNanos(started)
	e.FinishedAt = timePtr(finished)
	e.FinalCostCents = intPtr(cost)
	e.Payload = payload
	e.ErrorMessage = errMsg.String
	return e, nil
}

// GetExecution returns an execution by id.
func (q queries) GetExecution(ctx context.Context, id string) (domain.Execution, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Execution{}, fmt.Errorf("get execution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Execution{}, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

// ExecutionsForDraft returns every execution of a draft, oldest first.
func (q queries) ExecutionsForDraft(ctx context.Context, draftID string) ([]domain.Execution, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE draft_id = ?
		ORDER BY started_at ASC, rowid ASC
	`, draftID)
	if err != nil {
		return nil, fmt.Errorf("executions for draft: %w", err)
	}
	defer rows.Close()

	out := []domain.Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return out, nil
}

// InsertReceipt writes a receipt artifact.
func (q queries) InsertReceipt(ctx context.Context, r domain.Receipt) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO receipt_artifacts (id, execution_id, type, content_text, external_reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.ExecutionID, r.Type, r.ContentText, nullableString(r.ExternalReferenceID), toNanos(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// ReceiptsForExecution returns an execution's receipts, newest first.
// Returns an empty slice (not nil) for unknown executions.
func (q queries) ReceiptsForExecution(ctx context.Context, executionID string) ([]domain.Receipt, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, execution_id, type, content_text, external_reference_id, created_at
		FROM receipt_artifacts
		WHERE execution_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("receipts for execution: %w", err)
	}
	defer rows.Close()

	out := []domain.Receipt{}
	for rows.Next() {
		var r domain.Receipt
		var ext sql.NullString
		var created int64
		if err := rows.Scan(&r.ID, &r.ExecutionID, &r.Type, &r.ContentText, &ext, &created); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		r.ExternalReferenceID = ext.String
		r.CreatedAt = fromNanos(created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return out, nil
}
