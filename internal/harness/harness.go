package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/intent"
	"github.com/karanuppal/halo/internal/orchestrator"
	"github.com/karanuppal/halo/internal/store"
	"github.com/karanuppal/halo/internal/testutil"
)

// Start is the clock origin of every scenario run.
var Start = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// StepResult is the outcome of one step.
type StepResult struct {
	Kind  string       `json:"kind"`
	Card  *domain.Card `json:"card,omitempty"`
	Error string       `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Pass       bool                      `json:"pass"`
	Steps      []StepResult              `json:"steps"`
	Events     []domain.Event            `json:"events"`
	Executions []domain.ExecutionSummary `json:"executions"`
	Errors     []string                  `json:"errors,omitempty"`
}

func newResult() *Result {
	return &Result{Pass: true, Steps: []StepResult{}, Errors: []string{}}
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Option configures a run.
type Option func(*runner)

// WithLogger sets the orchestrator logger. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithExtractor replaces the rule-based intent extractor.
func WithExtractor(e intent.Extractor) Option {
	return func(r *runner) {
		if e != nil {
			r.extractor = e
		}
	}
}

type runner struct {
	logger    *slog.Logger
	extractor intent.Extractor
}

// Run executes a scenario in a fresh in-memory store. The returned error is
// reserved for infrastructure failures; expectation mismatches are reported
// in Result.Errors.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	r := &runner{
		logger:    slog.New(slog.DiscardHandler),
		extractor: intent.NewRuleExtractor(),
	}
	for _, opt := range opts {
		opt(r)
	}

	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("open scenario store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewSteppingClock(Start, time.Second)
	hex := newHexSequence()
	reorder := &scriptedReorder{
		MockReorder: adapter.NewMockReorder(adapter.WithNow(clock.Peek), adapter.WithHexID(hex)),
		failures:    append([]adapter.Kind(nil), sc.ReorderFailures...),
	}
	booking := adapter.NewMockBooking(adapter.WithNow(clock.Peek), adapter.WithHexID(hex))

	o := orchestrator.New(st, r.extractor, reorder, booking,
		orchestrator.WithClock(clock),
		orchestrator.WithIDGenerator(testutil.NewSequenceIDs()),
		orchestrator.WithLogger(r.logger))

	res := newResult()
	if sc.Seed != nil {
		if _, err := o.ApplySeed(ctx, *sc.Seed); err != nil {
			return nil, fmt.Errorf("apply seed: %w", err)
		}
	}

	var draftID string
	for i, step := range sc.Steps {
		sr := runStep(ctx, o, sc, step, draftID)
		if sr.Kind == StepSubmit && sr.Card != nil && sr.Card.DraftID != "" {
			draftID = sr.Card.DraftID
		}
		res.Steps = append(res.Steps, sr)
		for _, msg := range checkStep(step.Expect, sr) {
			res.addError("steps[%d] %s: %s", i, sr.Kind, msg)
		}
	}

	if res.Events, err = o.Events(ctx, orchestrator.EventQuery{HouseholdID: sc.Household}); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	if res.Executions, err = o.ListExecutions(ctx, sc.Household, 0); err != nil {
		return nil, fmt.Errorf("read executions: %w", err)
	}
	for i, a := range sc.Assertions {
		if err := evaluate(a, res); err != nil {
			res.addError("assertions[%d]: %v", i, err)
		}
	}
	return res, nil
}

func runStep(ctx context.Context, o *orchestrator.Orchestrator, sc *Scenario, step Step, draftID string) StepResult {
	sr := StepResult{Kind: step.Kind()}
	var (
		c   domain.Card
		err error
	)
	switch sr.Kind {
	case StepSubmit:
		c, err = o.Submit(ctx, orchestrator.SubmitRequest{
			HouseholdID: sc.Household,
			UserID:      sc.User,
			Text:        step.Submit,
			Answers:     step.Answers,
		})
	case StepModify:
		c, err = o.Modify(ctx, orchestrator.ModifyRequest{
			DraftID:       draftID,
			UserID:        sc.User,
			Modifications: domain.Blob(step.Modify),
		})
	case StepConfirm:
		c, err = o.Confirm(ctx, orchestrator.ConfirmRequest{DraftID: draftID, UserID: sc.User})
	case StepGetDraft:
		c, err = o.GetDraft(ctx, draftID)
	}
	if err != nil {
		sr.Error = errorCode(err)
		return sr
	}
	sr.Card = &c
	return sr
}

// errorCode reduces err to the code a client would see.
func errorCode(err error) string {
	if code := orchestrator.CodeOf(err); code != "" {
		return string(code)
	}
	return string(adapter.KindOf(err))
}

// scriptedReorder fails executions with queued failure kinds before
// delegating to the mock.
type scriptedReorder struct {
	*adapter.MockReorder

	mu       sync.Mutex
	failures []adapter.Kind
}

func (s *scriptedReorder) Execute(ctx context.Context, householdID string, items []domain.PricedItem, expectedTotalCents int64) (adapter.OrderResult, error) {
	s.mu.Lock()
	var next adapter.Kind
	if len(s.failures) > 0 {
		next, s.failures = s.failures[0], s.failures[1:]
	}
	s.mu.Unlock()

	if next != "" {
		return adapter.OrderResult{}, failureFor(next)
	}
	return s.MockReorder.Execute(ctx, householdID, items, expectedTotalCents)
}

// failureFor builds a representative error of the given kind, or nil for
// a kind outside the taxonomy.
func failureFor(k adapter.Kind) error {
	vendor := adapter.VendorAmazonMock
	switch k {
	case adapter.KindLinkRequired:
		return adapter.NewLinkRequiredError(vendor, "Amazon", "sessions/"+DefaultHousehold+".json")
	case adapter.KindAutomationUnavailable:
		return adapter.NewAutomationUnavailableError(vendor, errors.New("connection refused"))
	case adapter.KindCostDrift:
		return adapter.NewCostDriftError(vendor, 2898, 3400)
	case adapter.KindBotDetected:
		return adapter.NewBotDetectedError(vendor, "")
	case adapter.KindAdapter:
		return adapter.NewAdapterError(vendor, "checkout failed", nil)
	case adapter.KindUnknown:
		return errors.New("scripted failure")
	}
	return nil
}

// newHexSequence returns a generator of 10-digit hex strings counting up
// from 1, standing in for random confirmation suffixes.
func newHexSequence() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%010x", n)
	}
}
