package domain

import "strings"

// Bounds on clarification questions carried by an Intent.
const (
	MaxClarifications       = 2
	MaxClarificationChoices = 8
)

// ClarificationQuestion asks the user for a missing piece of information.
// Answers come back keyed by ID.
type ClarificationQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

// Intent is the structured interpretation of a free-text command.
type Intent struct {
	Verb           Verb                    `json:"verb"`
	Object         string                  `json:"object"`
	Params         Blob                    `json:"params"`
	Confidence     float64                 `json:"confidence"`
	RoutineKey     string                  `json:"routine_key"`
	Clarifications []ClarificationQuestion `json:"clarifications"`
}

// Normalize enforces Intent bounds: confidence clamped to [0,1], at most
// MaxClarifications questions with at most MaxClarificationChoices choices
// each, and non-nil collections.
func (i Intent) Normalize() Intent {
	if i.Params == nil {
		i.Params = Blob{}
	}
	switch {
	case i.Confidence < 0 || i.Confidence != i.Confidence:
		i.Confidence = 0
	case i.Confidence > 1:
		i.Confidence = 1
	}
	if _, err := ParseVerb(string(i.Verb)); err != nil {
		i.Verb = VerbUnsupported
	}
	if len(i.Clarifications) > MaxClarifications {
		i.Clarifications = i.Clarifications[:MaxClarifications]
	}
	qs := make([]ClarificationQuestion, 0, len(i.Clarifications))
	for _, q := range i.Clarifications {
		q.Choices = ClampChoices(q.Choices)
		qs = append(qs, q)
	}
	i.Clarifications = qs
	i.Object = strings.TrimSpace(i.Object)
	i.RoutineKey = strings.TrimSpace(i.RoutineKey)
	return i
}

// NeedsClarification reports whether the intent carries open questions.
func (i Intent) NeedsClarification() bool {
	return len(i.Clarifications) > 0
}

// Blob returns the intent as an open payload, as stored on commands and
// embedded in drafts.
func (i Intent) Blob() Blob {
	return MustBlob(i.Normalize())
}

// IntentFromBlob decodes an intent snapshot. A nil blob yields a zero Intent.
func IntentFromBlob(b Blob) (Intent, error) {
	var i Intent
	if b == nil {
		return i, nil
	}
	if err := b.Decode(&i); err != nil {
		return Intent{}, err
	}
	return i.Normalize(), nil
}

// UnsupportedIntent is the fail-closed intent returned when extraction
// cannot produce anything usable.
func UnsupportedIntent(reason string) Intent {
	params := Blob{}
	if reason != "" {
		params["error"] = reason
	}
	return Intent{
		Verb:       VerbUnsupported,
		Params:     params,
		Confidence: 0,
		RoutineKey: string(VerbUnsupported),
		Clarifications: []ClarificationQuestion{{
			ID:      "q0",
			Prompt:  "Which action do you want Halo to take? (Supported: " + strings.Join(SupportedVerbNames(), ", ") + ")",
			Choices: SupportedVerbNames(),
		}},
	}
}

// ClampChoices returns a non-nil copy of choices limited to
// MaxClarificationChoices entries.
func ClampChoices(choices []string) []string {
	if len(choices) > MaxClarificationChoices {
		choices = choices[:MaxClarificationChoices]
	}
	out := make([]string, len(choices))
	copy(out, choices)
	return out
}
