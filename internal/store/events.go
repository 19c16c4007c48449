package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/karanuppal/halo/internal/domain"
)

// AppendEvent writes an event to the append-only log. The payload is stored
// as canonical JSON and the integrity hash is computed here; the returned
// event carries the assigned seq and hash.
func (q queries) AppendEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	if e.Payload == nil {
		e.Payload = domain.Blob{}
	}
	canonical, err := domain.MarshalCanonical(e.Payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("append event: %w", err)
	}
	e.PayloadHash = domain.EventPayloadHash(e.EventType, canonical)

	res, err := q.q.ExecContext(ctx, `
		INSERT INTO event_log
		(id, household_id, user_id, entity_type, entity_id, event_type, event_payload_json, payload_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.HouseholdID, nullableString(e.UserID), string(e.EntityType), e.EntityID, string(e.EventType),
		string(canonical), e.PayloadHash, toNanos(e.CreatedAt))
	if err != nil {
		return domain.Event{}, fmt.Errorf("append event %s: %w", e.EventType, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return domain.Event{}, fmt.Errorf("append event: last insert id: %w", err)
	}
	e.Seq = seq
	return e, nil
}

const eventColumns = `seq, id, household_id, user_id, entity_type, entity_id, event_type, event_payload_json, payload_hash, created_at`

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var userID sql.NullString
		var entityType, eventType, payloadJSON string
		var created int64
		if err := rows.Scan(&e.Seq, &e.ID, &e.HouseholdID, &userID, &entityType, &e.EntityID, &eventType,
			&payloadJSON, &e.PayloadHash, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		payload, err := unmarshalBlob(payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("scan event %s: %w", e.ID, err)
		}
		e.UserID = userID.String
		e.EntityType = domain.EntityType(entityType)
		e.EventType = domain.EventType(eventType)
		e.Payload = payload
		e.CreatedAt = fromNanos(created)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// EventsForEntity returns the events keyed by an entity id, in seq order.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
func (q queries) EventsForEntity(ctx context.Context, entityID string) ([]domain.Event, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM event_log
		WHERE entity_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("events for entity: %w", err)
	}
	return scanEvents(rows)
}

// EventsForExecution returns every event belonging to an execution: events
// keyed by the execution itself plus draft- and receipt-keyed events whose
// payload names it.
func (q queries) EventsForExecution(ctx context.Context, executionID string) ([]domain.Event, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM event_log
		WHERE entity_id = ?
		   OR json_extract(event_payload_json, '$.execution_id') = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, executionID, executionID)
	if err != nil {
		return nil, fmt.Errorf("events for execution: %w", err)
	}
	return scanEvents(rows)
}

// EventsForHousehold returns a household's events in seq order.
func (q queries) EventsForHousehold(ctx context.Context, householdID string) ([]domain.Event, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM event_log
		WHERE household_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("events for household: %w", err)
	}
	return scanEvents(rows)
}

// CountEvents counts events of one type keyed by an entity.
func (q queries) CountEvents(ctx context.Context, entityType domain.EntityType, entityID string, eventType domain.EventType) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM event_log
		WHERE entity_type = ? AND entity_id = ? AND event_type = ?
	`, string(entityType), entityID, string(eventType)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
