package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/karanuppal/halo/internal/domain"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// checkStep compares a step outcome with its expectation and returns one
// message per mismatch.
func checkStep(e *Expect, sr StepResult) []string {
	if sr.Card == nil && (e == nil || e.Error == "") {
		return []string{fmt.Sprintf("unexpected error %s", sr.Error)}
	}
	if e == nil {
		return nil
	}
	if e.Error != "" {
		if sr.Error != e.Error {
			got := sr.Error
			if sr.Card != nil {
				got = string(sr.Card.Type) + " card"
			}
			return []string{fmt.Sprintf("expected error %s, got %s", e.Error, got)}
		}
		return nil
	}

	var msgs []string
	c := sr.Card
	if e.Card != "" && c.Type != e.Card {
		msgs = append(msgs, fmt.Sprintf("card type: expected %s, got %s", e.Card, c.Type))
	}
	if e.Vendor != "" && c.Vendor != e.Vendor {
		msgs = append(msgs, fmt.Sprintf("vendor: expected %s, got %s", e.Vendor, c.Vendor))
	}
	if e.CostCents != nil {
		switch {
		case c.EstimatedCostCents == nil:
			msgs = append(msgs, fmt.Sprintf("cost: expected %d, got none", *e.CostCents))
		case *c.EstimatedCostCents != *e.CostCents:
			msgs = append(msgs, fmt.Sprintf("cost: expected %d, got %d", *e.CostCents, *c.EstimatedCostCents))
		}
	}
	if e.Actions != nil {
		got := make([]string, len(c.Actions))
		for i, a := range c.Actions {
			got[i] = string(a.Type)
		}
		if !slices.Equal(got, e.Actions) {
			msgs = append(msgs, fmt.Sprintf("actions: expected %v, got %v", e.Actions, got))
		}
	}
	if e.Body != nil {
		want, err := normalize(e.Body)
		if err != nil {
			return append(msgs, fmt.Sprintf("body: %v", err))
		}
		got, err := normalize(c.Body)
		if err != nil {
			return append(msgs, fmt.Sprintf("body: %v", err))
		}
		if path, ok := subset(want, got, "body"); !ok {
			msgs = append(msgs, fmt.Sprintf("%s does not match", path))
		}
	}
	return msgs
}

// normalize round-trips v through JSON so that YAML integers compare equal
// to the float64 numbers of a decoded card body.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// subset reports whether every key of want is present in got with a
// matching value. Lists must have the same length and match element-wise.
// On mismatch it returns the path of the first differing value.
func subset(want, got any, path string) (string, bool) {
	switch w := want.(type) {
	case map[string]any:
		g, ok := asMap(got)
		if !ok {
			return path, false
		}
		for k, wv := range w {
			gv, ok := g[k]
			if !ok {
				return path + "." + k, false
			}
			if p, ok := subset(wv, gv, path+"."+k); !ok {
				return p, false
			}
		}
		return "", true
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return path, false
		}
		for i := range w {
			if p, ok := subset(w[i], g[i], fmt.Sprintf("%s[%d]", path, i)); !ok {
				return p, false
			}
		}
		return "", true
	default:
		return path, reflect.DeepEqual(want, got)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case domain.Blob:
		return m, true
	}
	return nil, false
}

func evaluate(a Assertion, res *Result) error {
	switch a.Type {
	case AssertEventOrder:
		return assertEventOrder(res.Events, a.Events)
	case AssertEventCount:
		return assertEventCount(res.Events, a.Event, a.Count)
	case AssertExecutionCount:
		return assertExecutionCount(res.Executions, a.Status, a.Count)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertEventOrder checks that want occurs as a subsequence of the log.
// Other events may appear in between.
func assertEventOrder(events []domain.Event, want []domain.EventType) error {
	i := 0
	for _, e := range events {
		if i < len(want) && e.EventType == want[i] {
			i++
		}
	}
	if i == len(want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: fmt.Sprintf("%v in order", want),
		Actual:   fmt.Sprintf("%s missing after %v", want[i], eventTypeList(events)),
	}
}

func assertEventCount(events []domain.Event, t domain.EventType, want int) error {
	n := 0
	for _, e := range events {
		if e.EventType == t {
			n++
		}
	}
	if n == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d %s", want, t),
		Actual:   fmt.Sprintf("%d", n),
	}
}

// assertExecutionCount counts executions, optionally only those with the
// given status.
func assertExecutionCount(execs []domain.ExecutionSummary, status domain.ExecutionStatus, want int) error {
	n := 0
	for _, ex := range execs {
		if status == "" || ex.Status == status {
			n++
		}
	}
	if n == want {
		return nil
	}
	label := "executions"
	if status != "" {
		label = string(status) + " executions"
	}
	return &AssertionError{
		Type:     AssertExecutionCount,
		Expected: fmt.Sprintf("%d %s", want, label),
		Actual:   fmt.Sprintf("%d", n),
	}
}

func eventTypeList(events []domain.Event) string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = string(e.EventType)
	}
	return "[" + strings.Join(names, " ") + "]"
}
