package autopilot

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/store"
	"github.com/karanuppal/halo/internal/testutil"
)

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedRun writes a confirmed draft and its finished execution.
func seedRun(t *testing.T, s *store.Store, n string, finished time.Time, status domain.ExecutionStatus) (domain.Draft, domain.Execution) {
	t.Helper()
	ctx := context.Background()

	_, err := s.EnsureHousehold(ctx, "hh-1", "", t0)
	require.NoError(t, err)
	require.NoError(t, s.EnsureUser(ctx, "u-1", "hh-1", "", t0))

	intent := domain.Blob{"verb": "REORDER", "routine_key": "REORDER:USUAL"}
	require.NoError(t, s.InsertCommand(ctx, domain.Command{
		ID: "cmd-" + n, HouseholdID: "hh-1", UserID: "u-1", Channel: "API",
		RawText: "reorder the usual", Intent: intent, CreatedAt: finished.Add(-time.Minute),
	}))
	d := domain.Draft{
		ID:        "d-" + n,
		CommandID: "cmd-" + n,
		Verb:      domain.VerbReorder,
		Vendor:    "AMAZON_MOCK",
		Payload:   domain.Blob{"intent": map[string]any(intent), "items": items("detergent", 1)},
		CreatedAt: finished.Add(-time.Minute),
	}
	require.NoError(t, s.InsertDraft(ctx, d))
	require.NoError(t, s.InsertConfirmation(ctx, domain.Confirmation{
		ID: "c-" + n, DraftID: d.ID, UserID: "u-1", ConfirmedAt: finished.Add(-time.Second), LatencyMS: 59000,
	}))

	ex := domain.Execution{ID: "e-" + n, DraftID: d.ID, Status: domain.StatusInProgress, StartedAt: finished.Add(-time.Second), Payload: domain.Blob{}}
	require.NoError(t, s.InsertExecution(ctx, ex))
	ex.Status = status
	ex.FinishedAt = &finished
	if status == domain.StatusDone {
		ex.FinalCostCents = domain.Cents(1599)
	}
	require.NoError(t, s.FinishExecution(ctx, ex))
	return d, ex
}

func TestEngine_EmitAppendsSignal(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedRun(t, s, "1", t0, domain.StatusDone)
	d, ex := seedRun(t, s, "2", t0.Add(24*time.Hour), domain.StatusDone)

	engine := NewEngine(s, testutil.NewSequenceIDs(), func() time.Time { return t0.Add(25 * time.Hour) })
	require.True(t, engine.Emit(ctx, "hh-1", "u-1", d, ex))

	events, err := s.EventsForEntity(ctx, ex.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, domain.EventAutopilotSignalComputed, e.EventType)
	assert.Equal(t, domain.EntityExecution, e.EntityType)
	assert.NoError(t, domain.VerifyEvent(e))

	var sig Signal
	require.NoError(t, e.Payload.Decode(&sig))
	assert.Equal(t, "REORDER:USUAL", sig.RoutineKey)
	assert.Equal(t, 2, sig.RepeatsCount)
	require.NotNil(t, sig.Cadence.AverageIntervalMS)
	assert.Equal(t, (24 * time.Hour).Milliseconds(), *sig.Cadence.AverageIntervalMS)
	require.NotNil(t, sig.Variance.ItemChangesCount)
	assert.EqualValues(t, 0, *sig.Variance.ItemChangesCount)
	require.NotNil(t, sig.Trust.ConfirmationLatencyMS)
	assert.EqualValues(t, 59000, *sig.Trust.ConfirmationLatencyMS)
	assert.Equal(t, 2, sig.Adapter.TotalExecutions)
}

func TestEngine_HistoryFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM executions e")).
		WithArgs("hh-1").
		WillReturnError(errors.New("disk I/O error"))

	engine := NewEngine(store.New(db), testutil.NewSequenceIDs(), nil)
	at := t0
	ok := engine.Emit(context.Background(), "hh-1", "u-1",
		domain.Draft{ID: "d-1", Verb: domain.VerbReorder, Vendor: "AMAZON_MOCK"},
		domain.Execution{ID: "e-1", Status: domain.StatusDone, StartedAt: at, FinishedAt: &at})

	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type panickingStore struct {
	Store
}

func (panickingStore) HouseholdExecutionHistory(context.Context, string) ([]domain.HistoryRow, error) {
	panic("boom")
}

func TestEngine_PanicIsSwallowed(t *testing.T) {
	engine := NewEngine(panickingStore{}, testutil.NewSequenceIDs(), nil)

	assert.NotPanics(t, func() {
		ok := engine.Emit(context.Background(), "hh-1", "u-1", domain.Draft{}, domain.Execution{})
		assert.False(t, ok)
	})
}
