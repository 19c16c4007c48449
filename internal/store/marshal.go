package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/karanuppal/halo/internal/domain"
)

// marshalBlob serializes a payload to canonical JSON text. A nil blob is
// stored as "{}".
func marshalBlob(b domain.Blob) (string, error) {
	if b == nil {
		b = domain.Blob{}
	}
	data, err := domain.MarshalCanonical(b)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalBlob parses stored JSON text. Empty text yields an empty blob.
func unmarshalBlob(data string) (domain.Blob, error) {
	if data == "" {
		return domain.Blob{}, nil
	}
	var b domain.Blob
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if b == nil {
		b = domain.Blob{}
	}
	return b, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullableInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
