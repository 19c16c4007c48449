package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/karanuppal/halo/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedDraft writes household, user, command and draft rows and returns the
// draft.
func seedDraft(t *testing.T, s *Store, household, draftID string, payload domain.Blob) domain.Draft {
	t.Helper()
	ctx := context.Background()

	_, err := s.EnsureHousehold(ctx, household, "", t0)
	require.NoError(t, err)
	require.NoError(t, s.EnsureUser(ctx, "u-1", household, "", t0))

	cmd := domain.Command{
		ID:          "cmd-" + draftID,
		HouseholdID: household,
		UserID:      "u-1",
		Channel:     "API",
		RawText:     "reorder the usual",
		Intent:      domain.Blob{"verb": "REORDER", "routine_key": "REORDER:USUAL"},
		CreatedAt:   t0,
	}
	require.NoError(t, s.InsertCommand(ctx, cmd))

	d := domain.Draft{
		ID:                 draftID,
		CommandID:          cmd.ID,
		Verb:               domain.VerbReorder,
		Vendor:             "AMAZON_MOCK",
		EstimatedCostCents: domain.Cents(2898),
		Payload:            payload,
		CreatedAt:          t0,
	}
	require.NoError(t, s.InsertDraft(ctx, d))
	return d
}

func startExecution(t *testing.T, s *Store, id, draftID string, at time.Time) domain.Execution {
	t.Helper()
	e := domain.Execution{
		ID:        id,
		DraftID:   draftID,
		Status:    domain.StatusInProgress,
		StartedAt: at,
		Payload:   domain.Blob{},
	}
	require.NoError(t, s.InsertExecution(context.Background(), e))
	return e
}
