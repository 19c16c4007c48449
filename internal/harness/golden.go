package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Trace renders a run as stable text: one line per step outcome and one
// line per event. Ids, hashes and timestamps are left out so the trace only
// changes when behaviour does.
func Trace(name string, res *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", name)
	for i, sr := range res.Steps {
		switch {
		case sr.Card == nil:
			fmt.Fprintf(&b, "step %d %s -> error %s\n", i+1, sr.Kind, sr.Error)
		case sr.Card.EstimatedCostCents != nil:
			fmt.Fprintf(&b, "step %d %s -> %s cost=%d\n", i+1, sr.Kind, sr.Card.Type, *sr.Card.EstimatedCostCents)
		default:
			fmt.Fprintf(&b, "step %d %s -> %s\n", i+1, sr.Kind, sr.Card.Type)
		}
	}
	for _, e := range res.Events {
		fmt.Fprintf(&b, "event %d %s %s\n", e.Seq, e.EventType, e.EntityType)
	}
	for _, ex := range res.Executions {
		fmt.Fprintf(&b, "execution %s %s %s\n", ex.Verb, ex.Vendor, ex.Status)
	}
	return []byte(b.String())
}

// RunWithGolden runs a scenario, fails the test on any expectation
// mismatch, and compares its trace with testdata/golden/<name>.golden.
//
// Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario, opts ...Option) *Result {
	t.Helper()

	res, err := Run(context.Background(), sc, opts...)
	if err != nil {
		t.Fatalf("run scenario %s: %v", sc.Name, err)
	}
	for _, msg := range res.Errors {
		t.Errorf("%s: %s", sc.Name, msg)
	}
	AssertGolden(t, sc.Name, res)
	return res
}

// AssertGolden compares the trace of an existing result with its golden
// file.
func AssertGolden(t *testing.T, name string, res *Result) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Trace(name, res))
}
