package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/orchestrator"
)

// Default audience for scenarios that do not name one.
const (
	DefaultHousehold = "hh-scenario"
	DefaultUser      = "u-scenario"
)

// Scenario is one end-to-end command flow with expectations.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Household and User default to DefaultHousehold and DefaultUser.
	Household string `yaml:"household,omitempty"`
	User      string `yaml:"user,omitempty"`

	// Seed is applied before the first step. Its household id defaults to
	// the scenario household.
	Seed *orchestrator.Seed `yaml:"seed,omitempty"`

	// ReorderFailures lists adapter failure kinds returned by successive
	// reorder executions.
	ReorderFailures []adapter.Kind `yaml:"reorder_failures,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is exactly one of Submit, Modify, Confirm or GetDraft.
type Step struct {
	Submit  string            `yaml:"submit,omitempty"`
	Answers map[string]string `yaml:"answers,omitempty"`

	Modify   map[string]any `yaml:"modify,omitempty"`
	Confirm  bool           `yaml:"confirm,omitempty"`
	GetDraft bool           `yaml:"get_draft,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Step kinds.
const (
	StepSubmit   = "submit"
	StepModify   = "modify"
	StepConfirm  = "confirm"
	StepGetDraft = "get_draft"
)

// Kind returns which operation the step performs, or "" when it names
// none or several.
func (s Step) Kind() string {
	var kinds []string
	if s.Submit != "" {
		kinds = append(kinds, StepSubmit)
	}
	if s.Modify != nil {
		kinds = append(kinds, StepModify)
	}
	if s.Confirm {
		kinds = append(kinds, StepConfirm)
	}
	if s.GetDraft {
		kinds = append(kinds, StepGetDraft)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Expect describes the outcome of a step. Error is an orchestrator error
// code or adapter failure kind; when set, the step must fail with it.
type Expect struct {
	Card      domain.CardType `yaml:"card,omitempty"`
	Error     string          `yaml:"error,omitempty"`
	CostCents *int64          `yaml:"cost_cents,omitempty"`
	Vendor    string          `yaml:"vendor,omitempty"`
	Actions   []string        `yaml:"actions,omitempty"`
	Body      map[string]any  `yaml:"body,omitempty"`
}

// Assertion checks the event log or execution history after all steps.
type Assertion struct {
	Type string `yaml:"type"`

	// Events is the expected subsequence for event_order.
	Events []domain.EventType `yaml:"events,omitempty"`

	// Event and Count are used by event_count; Status and Count by
	// execution_count.
	Event  domain.EventType       `yaml:"event,omitempty"`
	Status domain.ExecutionStatus `yaml:"status,omitempty"`
	Count  int                    `yaml:"count"`
}

// Assertion types.
const (
	AssertEventOrder     = "event_order"
	AssertEventCount     = "event_count"
	AssertExecutionCount = "execution_count"
)

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Household == "" {
		s.Household = DefaultHousehold
	}
	if s.User == "" {
		s.User = DefaultUser
	}
	if s.Seed != nil && s.Seed.Household.ID == "" {
		s.Seed.Household.ID = s.Household
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate checks required fields and step shapes.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if s.Seed != nil && s.Seed.Household.ID != s.Household {
		return fmt.Errorf("seed household %q does not match scenario household %q", s.Seed.Household.ID, s.Household)
	}
	for _, k := range s.ReorderFailures {
		if failureFor(k) == nil {
			return fmt.Errorf("reorder_failures: unknown kind %q", k)
		}
	}

	submitted := false
	for i, st := range s.Steps {
		kind := st.Kind()
		switch kind {
		case "":
			return fmt.Errorf("steps[%d]: exactly one of submit, modify, confirm or get_draft is required", i)
		case StepSubmit:
			submitted = true
		default:
			if !submitted {
				return fmt.Errorf("steps[%d]: %s needs an earlier submit", i, kind)
			}
		}
		if st.Answers != nil && kind != StepSubmit {
			return fmt.Errorf("steps[%d]: answers only apply to submit", i)
		}
		if e := st.Expect; e != nil && e.Error != "" && (e.Card != "" || e.Body != nil || e.CostCents != nil) {
			return fmt.Errorf("steps[%d].expect: error excludes card expectations", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", i)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", i)
		}
	case AssertExecutionCount:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", i)
	}
	return nil
}
