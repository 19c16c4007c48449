package domain

import "fmt"

// Verb is the action family an Intent or Draft belongs to.
type Verb string

const (
	VerbReorder            Verb = "REORDER"
	VerbCancelSubscription Verb = "CANCEL_SUBSCRIPTION"
	VerbBookAppointment    Verb = "BOOK_APPOINTMENT"
	VerbUnsupported        Verb = "UNSUPPORTED"
)

// SupportedVerbs lists the verbs that can produce a Draft, in display order.
var SupportedVerbs = []Verb{VerbReorder, VerbCancelSubscription, VerbBookAppointment}

// Supported reports whether v can be drafted and executed.
func (v Verb) Supported() bool {
	for _, s := range SupportedVerbs {
		if s == v {
			return true
		}
	}
	return false
}

// Display returns the verb with underscores replaced by spaces, as used in
// card titles ("CANCEL SUBSCRIPTION").
func (v Verb) Display() string {
	out := []byte(v)
	for i, c := range out {
		if c == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}

// ParseVerb converts s to a Verb, rejecting anything outside the closed set.
func ParseVerb(s string) (Verb, error) {
	v := Verb(s)
	if v == VerbUnsupported || v.Supported() {
		return v, nil
	}
	return "", fmt.Errorf("unknown verb %q", s)
}

// SupportedVerbNames returns SupportedVerbs as plain strings.
func SupportedVerbNames() []string {
	out := make([]string, len(SupportedVerbs))
	for i, v := range SupportedVerbs {
		out[i] = string(v)
	}
	return out
}
