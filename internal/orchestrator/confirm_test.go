package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/autopilot"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/testutil"
)

// flakyReorder fails Execute with the queued errors before delegating to
// the mock.
type flakyReorder struct {
	*adapter.MockReorder

	mu       sync.Mutex
	failures []error
	panics   bool
}

func (f *flakyReorder) Execute(ctx context.Context, householdID string, items []domain.PricedItem, expected int64) (adapter.OrderResult, error) {
	f.mu.Lock()
	if f.panics {
		f.mu.Unlock()
		panic("checkout page changed")
	}
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		f.mu.Unlock()
		return adapter.OrderResult{}, err
	}
	f.mu.Unlock()
	return f.MockReorder.Execute(ctx, householdID, items, expected)
}

// renamedReorder reports a different vendor id than the drafts it is
// asked to execute.
type renamedReorder struct {
	*adapter.MockReorder
	vendor string
}

func (r renamedReorder) Vendor() string { return r.vendor }

func newFlakyFixture(t *testing.T, failures ...error) (*fixture, *flakyReorder) {
	t.Helper()
	clock := testutil.NewSteppingClock(t0, time.Second)
	flaky := &flakyReorder{
		MockReorder: adapter.NewMockReorder(adapter.WithNow(clock.Peek), adapter.WithHexID(hexSequence())),
		failures:    failures,
	}
	f := newFixtureWith(t, clock, flaky, adapter.NewMockBooking(adapter.WithNow(clock.Peek)))
	return f, flaky
}

func TestConfirm_FailedExecutionOffersRetry(t *testing.T) {
	linkErr := adapter.NewLinkRequiredError(adapter.VendorAmazonMock, "Amazon", "/tmp/amazon.json")
	f, _ := newFlakyFixture(t, linkErr)
	ctx := context.Background()

	draft := f.submit(t, "reorder the usual")
	failed := f.confirm(t, draft.DraftID)

	require.Equal(t, domain.CardFailed, failed.Type)
	assert.Equal(t, []domain.ActionType{domain.ActionRetry}, actionTypes(failed))
	assert.Equal(t, string(adapter.KindLinkRequired), failed.Body.String("error_kind"))
	assert.Equal(t, false, failed.Body["retryable"])
	assert.Equal(t, true, failed.Body["user_actionable"])

	ex, err := f.store.GetExecution(ctx, failed.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, ex.Status)
	assert.Equal(t, linkErr.Error(), ex.ErrorMessage)
	assert.Equal(t, linkErr.Error(), ex.Payload.String("error"))
	require.NotNil(t, ex.FinishedAt)

	events, err := f.orch.Events(ctx, EventQuery{ExecutionID: failed.ExecutionID})
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{
		domain.EventDraftConfirmed,
		domain.EventExecutionStarted,
		domain.EventExecutionFailed,
		domain.EventAutopilotSignalComputed,
	}, eventTypes(events))
	assert.Equal(t, string(adapter.KindLinkRequired), events[2].Payload.String("error_kind"))

	receipts, err := f.orch.ListReceipts(ctx, failed.ExecutionID)
	require.NoError(t, err)
	assert.Empty(t, receipts)

	// The draft stays confirmable after a failure.
	retried := f.confirm(t, draft.DraftID)
	require.Equal(t, domain.CardDone, retried.Type)
	assert.NotEqual(t, failed.ExecutionID, retried.ExecutionID)

	execs, err := f.store.ExecutionsForDraft(ctx, draft.DraftID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, domain.StatusFailed, execs[0].Status)
	assert.Equal(t, domain.StatusDone, execs[1].Status)

	list, err := f.orch.ListExecutions(ctx, testHousehold, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, retried.ExecutionID, list[0].ExecutionID)
}

// cancellingReorder cancels the confirm request while checkout is in
// flight, as a client disconnecting mid-execution would.
type cancellingReorder struct {
	*adapter.MockReorder

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *cancellingReorder) Execute(ctx context.Context, householdID string, items []domain.PricedItem, expected int64) (adapter.OrderResult, error) {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return c.MockReorder.Execute(ctx, householdID, items, expected)
	}
	cancel()
	return adapter.OrderResult{}, ctx.Err()
}

func TestConfirm_CancelledRequestStillFailsExecution(t *testing.T) {
	clock := testutil.NewSteppingClock(t0, time.Second)
	reorder := &cancellingReorder{
		MockReorder: adapter.NewMockReorder(adapter.WithNow(clock.Peek), adapter.WithHexID(hexSequence())),
	}
	f := newFixtureWith(t, clock, reorder, adapter.NewMockBooking(adapter.WithNow(clock.Peek)))
	draft := f.submit(t, "reorder the usual")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reorder.cancel = cancel

	failed, err := f.orch.Confirm(ctx, ConfirmRequest{DraftID: draft.DraftID, UserID: testUser})
	require.NoError(t, err)
	require.Equal(t, domain.CardFailed, failed.Type)
	assert.Contains(t, failed.Body.String("error"), context.Canceled.Error())

	bg := context.Background()
	ex, err := f.store.GetExecution(bg, failed.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, ex.Status)
	require.NotNil(t, ex.FinishedAt)

	events, err := f.orch.Events(bg, EventQuery{ExecutionID: failed.ExecutionID})
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{
		domain.EventDraftConfirmed,
		domain.EventExecutionStarted,
		domain.EventExecutionFailed,
		domain.EventAutopilotSignalComputed,
	}, eventTypes(events))

	retried := f.confirm(t, draft.DraftID)
	require.Equal(t, domain.CardDone, retried.Type)
	assert.NotEqual(t, failed.ExecutionID, retried.ExecutionID)
}

func TestConfirm_UnstorableCompletionFailsExecution(t *testing.T) {
	f := newFixture(t)
	bg := context.Background()
	draft := f.submit(t, "reorder the usual")

	_, err := f.store.DB().Exec(`CREATE TRIGGER receipts_unavailable BEFORE INSERT ON receipt_artifacts
BEGIN SELECT RAISE(ABORT, 'receipts unavailable'); END`)
	require.NoError(t, err)

	failed := f.confirm(t, draft.DraftID)
	require.Equal(t, domain.CardFailed, failed.Type)
	assert.Equal(t, []domain.ActionType{domain.ActionRetry}, actionTypes(failed))
	assert.Contains(t, failed.Body.String("error"), "receipts unavailable")

	ex, err := f.store.GetExecution(bg, failed.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, ex.Status)
	assert.Contains(t, ex.ErrorMessage, "receipts unavailable")

	events, err := f.orch.Events(bg, EventQuery{ExecutionID: failed.ExecutionID})
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{
		domain.EventDraftConfirmed,
		domain.EventExecutionStarted,
		domain.EventExecutionFailed,
		domain.EventAutopilotSignalComputed,
	}, eventTypes(events))

	receipts, err := f.orch.ListReceipts(bg, failed.ExecutionID)
	require.NoError(t, err)
	assert.Empty(t, receipts)

	_, err = f.store.DB().Exec(`DROP TRIGGER receipts_unavailable`)
	require.NoError(t, err)
	retried := f.confirm(t, draft.DraftID)
	assert.Equal(t, domain.CardDone, retried.Type)
}

func TestConfirm_UnknownAdapterErrorIsRetryable(t *testing.T) {
	f, _ := newFlakyFixture(t, assert.AnError)

	draft := f.submit(t, "reorder the usual")
	failed := f.confirm(t, draft.DraftID)

	require.Equal(t, domain.CardFailed, failed.Type)
	assert.Equal(t, string(adapter.KindUnknown), failed.Body.String("error_kind"))
	assert.Equal(t, true, failed.Body["retryable"])
}

func TestConfirm_PanickingAdapterFailsExecution(t *testing.T) {
	f, flaky := newFlakyFixture(t)
	flaky.panics = true

	draft := f.submit(t, "reorder the usual")
	failed := f.confirm(t, draft.DraftID)

	require.Equal(t, domain.CardFailed, failed.Type)
	assert.Contains(t, failed.Body.String("error"), "executor panic")

	ex, err := f.store.GetExecution(context.Background(), failed.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, ex.Status)
}

func TestConfirm_EventSetPerExecution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.submit(t, "reorder the usual")
	done := f.confirm(t, draft.DraftID)

	events, err := f.orch.Events(ctx, EventQuery{ExecutionID: done.ExecutionID})
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{
		domain.EventDraftConfirmed,
		domain.EventExecutionStarted,
		domain.EventExecutionDone,
		domain.EventReceiptCreated,
		domain.EventAutopilotSignalComputed,
	}, eventTypes(events))

	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
	for _, e := range events {
		assert.NoError(t, domain.VerifyEvent(e))
		assert.Equal(t, testHousehold, e.HouseholdID)
	}

	var sig autopilot.Signal
	require.NoError(t, events[4].Payload.Decode(&sig))
	assert.Equal(t, "REORDER:USUAL", sig.RoutineKey)
	assert.Equal(t, domain.StatusDone, sig.Status)
	assert.Equal(t, 1, sig.RepeatsCount)
	assert.Equal(t, 1, sig.Adapter.TotalExecutions)
}

func TestConfirm_LatencyNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.submit(t, "reorder the usual")
	f.clock.Advance(-time.Hour)
	done := f.confirm(t, draft.DraftID)

	detail, err := f.orch.GetExecution(ctx, done.ExecutionID)
	require.NoError(t, err)
	require.NotNil(t, detail.ConfirmationLatencyMS)
	assert.Equal(t, int64(0), *detail.ConfirmationLatencyMS)

	conf, err := f.store.LatestConfirmation(ctx, draft.DraftID)
	require.NoError(t, err)
	require.NotNil(t, conf)
	assert.Equal(t, int64(0), conf.LatencyMS)
}

func TestConfirm_LatencyMeasuredFromDraft(t *testing.T) {
	f := newFixture(t)

	draft := f.submit(t, "reorder the usual")
	f.clock.Advance(90 * time.Second)
	f.confirm(t, draft.DraftID)

	conf, err := f.store.LatestConfirmation(context.Background(), draft.DraftID)
	require.NoError(t, err)
	require.NotNil(t, conf)
	assert.GreaterOrEqual(t, conf.LatencyMS, int64(90_000))
}

func TestConfirm_VendorMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.submit(t, "reorder the usual")

	other := New(f.store, f.orch.extractor,
		renamedReorder{MockReorder: adapter.NewMockReorder(), vendor: adapter.VendorAmazonBrowser},
		adapter.NewMockBooking(),
		WithClock(f.clock), WithIDGenerator(f.ids))

	_, err := other.Confirm(ctx, ConfirmRequest{DraftID: draft.DraftID})
	require.Error(t, err)
	assert.True(t, IsVendorMismatch(err), "got %v", err)
	assert.Contains(t, err.Error(), adapter.VendorAmazonMock)

	execs, err := f.store.ExecutionsForDraft(ctx, draft.DraftID)
	require.NoError(t, err)
	assert.Empty(t, execs)
	conf, err := f.store.LatestConfirmation(ctx, draft.DraftID)
	require.NoError(t, err)
	assert.Nil(t, conf)

	_, err = other.Modify(ctx, ModifyRequest{
		DraftID:       draft.DraftID,
		Modifications: domain.Blob{"items": []any{map[string]any{"name": "detergent", "quantity": 2}}},
	})
	assert.True(t, IsVendorMismatch(err), "got %v", err)
}

func TestConfirm_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Confirm(ctx, ConfirmRequest{DraftID: "missing"})
	assert.True(t, IsNotFound(err), "got %v", err)

	_, err = f.orch.Confirm(ctx, ConfirmRequest{})
	assert.True(t, IsInvalidRequest(err), "got %v", err)
}

func TestConfirm_ConcurrentConfirmsExecuteOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.submit(t, "reorder the usual")

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		rejected int
		other    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := f.orch.Confirm(ctx, ConfirmRequest{DraftID: draft.DraftID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && c.Type == domain.CardDone:
				done++
			case IsAlreadyConfirmed(err):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, done)
	assert.Equal(t, workers-1, rejected)

	execs, err := f.store.ExecutionsForDraft(ctx, draft.DraftID)
	require.NoError(t, err)
	assert.Len(t, execs, 1)
}

func TestGetDraft_StatusAfterConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.submit(t, "reorder the usual")

	before, err := f.orch.GetDraft(ctx, draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, domain.CardDraft, before.Type)
	assert.Equal(t, draft.Body, before.Body)

	done := f.confirm(t, draft.DraftID)

	after, err := f.orch.GetDraft(ctx, draft.DraftID)
	require.NoError(t, err)
	assert.Equal(t, domain.CardStatus, after.Type)
	assert.Equal(t, done.ExecutionID, after.ExecutionID)
	assert.Equal(t, string(domain.StatusDone), after.Body.String("status"))
	assert.Empty(t, after.Actions)
}
