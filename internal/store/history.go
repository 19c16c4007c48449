package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/karanuppal/halo/internal/domain"
)

// HouseholdExecutionHistory returns every execution of a household joined
// with its draft and its command's routine key, oldest first.
func (q queries) HouseholdExecutionHistory(ctx context.Context, householdID string) ([]domain.HistoryRow, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT e.id, e.draft_id, e.status, e.started_at, e.finished_at, e.final_cost_cents,
		       e.execution_payload_json, e.error_message,
		       d.verb, d.vendor, d.draft_payload_json,
		       COALESCE(json_extract(r.normalized_intent_json, '$.routine_key'), '')
		FROM executions e
		JOIN drafts d ON d.id = e.draft_id
		JOIN execution_requests r ON r.id = d.execution_request_id
		WHERE r.household_id = ?
		ORDER BY e.started_at ASC, e.rowid ASC
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("household execution history: %w", err)
	}
	defer rows.Close()

	out := []domain.HistoryRow{}
	for rows.Next() {
		var h domain.HistoryRow
		var status, execPayload, verb, draftPayload string
		var started int64
		var finished, cost sql.NullInt64
		var errMsg sql.NullString
		if err := rows.Scan(&h.Execution.ID, &h.Execution.DraftID, &status, &started, &finished, &cost,
			&execPayload, &errMsg, &verb, &h.DraftVendor, &draftPayload, &h.RoutineKey); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if h.Execution.Payload, err = unmarshalBlob(execPayload); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if h.DraftPayload, err = unmarshalBlob(draftPayload); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		h.Execution.Status = domain.ExecutionStatus(status)
		h.Execution.StartedAt = fromNanos(started)
		h.Execution.FinishedAt = timePtr(finished)
		h.Execution.FinalCostCents = intPtr(cost)
		h.Execution.ErrorMessage = errMsg.String
		h.DraftVerb = domain.Verb(verb)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// ListExecutions returns a household's executions, newest first, capped at
// limit rows.
func (q queries) ListExecutions(ctx context.Context, householdID string, limit int) ([]domain.ExecutionSummary, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := q.q.QueryContext(ctx, `
		SELECT e.id, d.id, d.verb, e.status, e.started_at, e.finished_at, d.vendor, e.final_cost_cents
		FROM executions e
		JOIN drafts d ON d.id = e.draft_id
		JOIN execution_requests r ON r.id = d.execution_request_id
		WHERE r.household_id = ?
		ORDER BY e.started_at DESC, e.rowid DESC
		LIMIT ?
	`, householdID, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	out := []domain.ExecutionSummary{}
	for rows.Next() {
		var s domain.ExecutionSummary
		var verb, status string
		var started int64
		var finished, cost sql.NullInt64
		if err := rows.Scan(&s.ExecutionID, &s.DraftID, &verb, &status, &started, &finished, &s.Vendor, &cost); err != nil {
			return nil, fmt.Errorf("scan execution summary: %w", err)
		}
		s.Verb = domain.Verb(verb)
		s.Status = domain.ExecutionStatus(status)
		s.StartedAt = fromNanos(started)
		s.FinishedAt = timePtr(finished)
		s.FinalCostCents = intPtr(cost)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution summaries: %w", err)
	}
	return out, nil
}

// GetExecutionDetail assembles the audit view of one execution.
func (q queries) GetExecutionDetail(ctx context.Context, executionID string) (domain.ExecutionDetail, error) {
	var d domain.ExecutionDetail
	var verb, status, execPayload, draftPayload, intentJSON string
	var started int64
	var finished sql.NullInt64
	var errMsg sql.NullString
	err := q.q.QueryRowContext(ctx, `
		SELECT e.id, d.id, d.verb, e.status, e.started_at, e.finished_at,
		       r.raw_command_text, r.normalized_intent_json, d.draft_payload_json,
		       e.execution_payload_json, e.error_message
		FROM executions e
		JOIN drafts d ON d.id = e.draft_id
		JOIN execution_requests r ON r.id = d.execution_request_id
		WHERE e.id = ?
	`, executionID).Scan(&d.ExecutionID, &d.DraftID, &verb, &status, &started, &finished,
		&d.RawCommandText, &intentJSON, &draftPayload, &execPayload, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExecutionDetail{}, fmt.Errorf("get execution detail %s: %w", executionID, ErrNotFound)
	}
	if err != nil {
		return domain.ExecutionDetail{}, fmt.Errorf("get execution detail: %w", err)
	}
	if d.Intent, err = unmarshalBlob(intentJSON); err != nil {
		return domain.ExecutionDetail{}, fmt.Errorf("get execution detail: %w", err)
	}
	if d.DraftPayload, err = unmarshalBlob(draftPayload); err != nil {
		return domain.ExecutionDetail{}, fmt.Errorf("get execution detail: %w", err)
	}
	if d.ExecutionPayload, err = unmarshalBlob(execPayload); err != nil {
		return domain.ExecutionDetail{}, fmt.Errorf("get execution detail: %w", err)
	}
	d.Verb = domain.Verb(verb)
	d.Status = domain.ExecutionStatus(status)
	d.StartedAt = fromNanos(started)
	d.FinishedAt = timePtr(finished)
	if errMsg.Valid {
		msg := errMsg.String
		d.ErrorMessage = &msg
	}

	conf, err := q.LatestConfirmation(ctx, d.DraftID)
	if err != nil {
		return domain.ExecutionDetail{}, fmt.Errorf("get execution detail: %w", err)
	}
	if conf != nil {
		latency := conf.LatencyMS
		d.ConfirmationLatencyMS = &latency
	}

	if d.Receipts, err = q.ReceiptsForExecution(ctx, executionID); err != nil {
		return domain.ExecutionDetail{}, fmt.Errorf("get execution detail: %w", err)
	}
	return d, nil
}
