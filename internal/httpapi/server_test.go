package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/intent"
	"github.com/karanuppal/halo/internal/orchestrator"
	"github.com/karanuppal/halo/internal/store"
	"github.com/karanuppal/halo/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// unlinkedReorder drafts normally but has no linked session at execute
// time.
type unlinkedReorder struct {
	*adapter.MockReorder
}

func (unlinkedReorder) Execute(context.Context, string, []domain.PricedItem, int64) (adapter.OrderResult, error) {
	return adapter.OrderResult{}, adapter.NewLinkRequiredError(adapter.VendorAmazonMock, "Amazon", "/sessions/hh-1.json")
}

// failingBooking cannot reach its automation service.
type failingBooking struct {
	*adapter.MockBooking
}

func (failingBooking) BuildDraft(context.Context, string, adapter.BookingRequest) (adapter.BookingQuote, error) {
	return adapter.BookingQuote{}, adapter.NewAutomationUnavailableError(adapter.VendorResyBrowser, errors.New("connection refused"))
}

func newTestServer(t *testing.T, reorder adapter.ReorderAdapter, booking adapter.BookingAdapter) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "halo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewSteppingClock(t0, time.Second)
	if reorder == nil {
		reorder = adapter.NewMockReorder(adapter.WithNow(clock.Peek))
	}
	if booking == nil {
		booking = adapter.NewMockBooking(adapter.WithNow(clock.Peek))
	}
	logger := slog.New(slog.DiscardHandler)
	o := orchestrator.New(s, intent.NewRuleExtractor(), reorder, booking,
		orchestrator.WithClock(clock),
		orchestrator.WithIDGenerator(testutil.NewSequenceIDs()),
		orchestrator.WithLogger(logger))

	srv := httptest.NewServer(NewServer(o, WithLogger(logger), WithHealth(s)).Handler())
	t.Cleanup(srv.Close)
	return srv, s
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func decodeCard(t *testing.T, data []byte) domain.Card {
	t.Helper()
	var c domain.Card
	require.NoError(t, json.Unmarshal(data, &c))
	return c
}

func decodeError(t *testing.T, data []byte) ErrorBody {
	t.Helper()
	var e ErrorBody
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func submit(t *testing.T, srv *httptest.Server, text string) domain.Card {
	t.Helper()
	status, body := do(t, srv, http.MethodPost, "/v1/command", map[string]any{
		"household_id":     "hh-1",
		"user_id":          "u-1",
		"raw_command_text": text,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	return decodeCard(t, body)
}

func TestServer_DraftConfirmFlow(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	draft := submit(t, srv, "book cleaner next week")
	require.Equal(t, domain.CardDraft, draft.Type)

	status, body := do(t, srv, http.MethodPost, "/v1/draft/modify", map[string]any{
		"draft_id":      draft.DraftID,
		"modifications": map[string]any{"selected_time_window_index": 2},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	idx, _ := decodeCard(t, body).Body.Int("selected_time_window_index")
	assert.Equal(t, int64(2), idx)

	status, body = do(t, srv, http.MethodGet, "/v1/drafts/"+draft.DraftID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.CardDraft, decodeCard(t, body).Type)

	status, body = do(t, srv, http.MethodPost, "/v1/draft/confirm", map[string]any{"draft_id": draft.DraftID})
	require.Equal(t, http.StatusOK, status, string(body))
	done := decodeCard(t, body)
	assert.Equal(t, domain.CardDone, done.Type)

	status, body = do(t, srv, http.MethodPost, "/v1/draft/confirm", map[string]any{"draft_id": draft.DraftID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_CONFIRMED", decodeError(t, body).Code)

	status, body = do(t, srv, http.MethodPost, "/v1/draft/modify", map[string]any{
		"draft_id":      draft.DraftID,
		"modifications": map[string]any{"selected_time_window_index": 0},
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DRAFT_LOCKED", decodeError(t, body).Code)

	status, body = do(t, srv, http.MethodGet, "/v1/drafts/"+draft.DraftID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.CardStatus, decodeCard(t, body).Type)

	status, body = do(t, srv, http.MethodGet, "/v1/executions?household_id=hh-1", nil)
	require.Equal(t, http.StatusOK, status)
	var list []domain.ExecutionSummary
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, done.ExecutionID, list[0].ExecutionID)

	status, body = do(t, srv, http.MethodGet, "/v1/executions/"+done.ExecutionID, nil)
	require.Equal(t, http.StatusOK, status)
	var detail domain.ExecutionDetail
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Equal(t, "book cleaner next week", detail.RawCommandText)
	assert.Len(t, detail.Receipts, 1)

	status, body = do(t, srv, http.MethodGet, "/v1/receipts/"+done.ExecutionID, nil)
	require.Equal(t, http.StatusOK, status)
	var receipts []domain.Receipt
	require.NoError(t, json.Unmarshal(body, &receipts))
	require.Len(t, receipts, 1)
	assert.Equal(t, domain.ReceiptBookingConfirmation, receipts[0].Type)

	status, body = do(t, srv, http.MethodGet, "/v1/events?execution_id="+done.ExecutionID, nil)
	require.Equal(t, http.StatusOK, status)
	var events []domain.Event
	require.NoError(t, json.Unmarshal(body, &events))
	assert.Len(t, events, 5)
}

func TestServer_Parse(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	status, body := do(t, srv, http.MethodPost, "/v1/command/parse", map[string]any{
		"household_id":     "hh-1",
		"user_id":          "u-1",
		"raw_command_text": "cancel my netflix subscription",
	})
	require.Equal(t, http.StatusOK, status)
	var in domain.Intent
	require.NoError(t, json.Unmarshal(body, &in))
	assert.Equal(t, domain.VerbCancelSubscription, in.Verb)
}

func TestServer_ClientErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"unknown draft", http.MethodGet, "/v1/drafts/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"unknown execution", http.MethodGet, "/v1/executions/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"receipts of unknown execution", http.MethodGet, "/v1/receipts/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"confirm unknown draft", http.MethodPost, "/v1/draft/confirm", map[string]any{"draft_id": "nope"}, http.StatusNotFound, "NOT_FOUND"},
		{"missing text", http.MethodPost, "/v1/command", map[string]any{"household_id": "hh-1", "user_id": "u-1"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing household", http.MethodGet, "/v1/executions", nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad limit", http.MethodGet, "/v1/executions?household_id=hh-1&limit=x", nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"no event selector", http.MethodGet, "/v1/events", nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"empty body", http.MethodPost, "/v1/draft/confirm", nil, http.StatusBadRequest, codeBadJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status, string(body))
			e := decodeError(t, body)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.NotEmpty(t, e.Detail)
		})
	}
}

func TestServer_MalformedJSON(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp, err := srv.Client().Post(srv.URL+"/v1/command", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	status, _ := do(t, srv, http.MethodGet, "/v1/command", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestServer_ExecutionFailureIsACard(t *testing.T) {
	srv, _ := newTestServer(t, unlinkedReorder{adapter.NewMockReorder()}, nil)

	draft := submit(t, srv, "reorder the usual")
	status, body := do(t, srv, http.MethodPost, "/v1/draft/confirm", map[string]any{"draft_id": draft.DraftID})
	require.Equal(t, http.StatusOK, status)

	c := decodeCard(t, body)
	assert.Equal(t, domain.CardFailed, c.Type)
	assert.Equal(t, string(adapter.KindLinkRequired), c.Body.String("error_kind"))
	require.Len(t, c.Actions, 1)
	assert.Equal(t, domain.ActionRetry, c.Actions[0].Type)
}

func TestServer_DraftTimeAdapterFailure(t *testing.T) {
	srv, _ := newTestServer(t, nil, failingBooking{adapter.NewMockBooking()})

	status, body := do(t, srv, http.MethodPost, "/v1/command", map[string]any{
		"household_id":     "hh-1",
		"user_id":          "u-1",
		"raw_command_text": "book cleaner next week",
	})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	e := decodeError(t, body)
	assert.Equal(t, string(adapter.KindAutomationUnavailable), e.Code)
	assert.Contains(t, e.Detail, "connection refused")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{&orchestrator.Error{Code: orchestrator.ErrCodeVendorMismatch}, http.StatusConflict, "VENDOR_MISMATCH"},
		{&orchestrator.Error{Code: orchestrator.ErrCodeUnknownVerb}, http.StatusConflict, "UNKNOWN_VERB"},
		{adapter.NewCostDriftError("AMAZON_BROWSER", 1000, 2000), http.StatusConflict, "COST_DRIFT"},
		{adapter.NewBotDetectedError("AMAZON_BROWSER", ""), http.StatusBadGateway, "BOT_DETECTED"},
		{adapter.NewAdapterError("MOCK_BOOKING", "boom", nil), http.StatusBadGateway, "ADAPTER_ERROR"},
		{adapter.NewLinkRequiredError("AMAZON_BROWSER", "Amazon", "/x"), http.StatusPreconditionFailed, "LINK_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			status, code, ok := statusFor(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}

	_, _, ok := statusFor(errors.New("disk full"))
	assert.False(t, ok)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	status, _ := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)

	down := httptest.NewServer(NewServer(nil,
		WithLogger(slog.New(slog.DiscardHandler)),
		WithHealth(stubPinger{err: errors.New("database is locked")})).Handler())
	defer down.Close()

	status, body := do(t, down, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "UNHEALTHY", decodeError(t, body).Code)
}
