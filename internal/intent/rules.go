package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/karanuppal/halo/internal/domain"
)

// Confidence levels assigned by RuleExtractor.
const (
	confidenceNeedsSubscription = 0.35
	confidenceCancel            = 0.85
	confidenceBook              = 0.75
	confidenceItems             = 0.8
	confidenceUsual             = 0.85
	confidenceUnrecognized      = 0.2
)

var (
	cancelWords  = []string{"cancel", "unsubscribe", "stop"}
	bookWords    = []string{"book", "schedule", "reservation", "reserve"}
	reorderWords = []string{"reorder", "order", "usual", "restock", "buy", "refill"}

	// catalogItems are the household nouns recognised in free text, in
	// output order.
	catalogItems = []string{"paper towels", "detergent", "pet food"}

	cancelNameRe  = regexp.MustCompile(`\bcancel\s+([a-z0-9][a-z0-9\s\-]{0,40})`)
	planSuffixRe  = regexp.MustCompile(`\b(subscription|plan)\b`)
	quantityRes   = buildQuantityRes()
	defaultChoice = []string{"Netflix", "Spotify"}
)

func buildQuantityRes() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(catalogItems))
	for _, name := range catalogItems {
		out[name] = regexp.MustCompile(`(\d+)\s+` + regexp.QuoteMeta(name))
	}
	return out
}

// RuleExtractor is a deterministic keyword extractor for tests and local
// development.
type RuleExtractor struct{}

// NewRuleExtractor creates a RuleExtractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// Extract classifies text by keyword, checking cancel words first, then
// booking words, then catalog items and reorder words.
func (RuleExtractor) Extract(_ context.Context, req Request) domain.Intent {
	text := strings.ToLower(strings.TrimSpace(req.Text))

	switch {
	case containsAny(text, cancelWords):
		return cancelIntent(text, req.Answers)
	case containsAny(text, bookWords):
		return bookIntent(text)
	}

	if items := extractItems(text); len(items) > 0 {
		raw := make([]any, 0, len(items))
		for _, it := range items {
			raw = append(raw, map[string]any{"name": it.Name, "quantity": it.Quantity})
		}
		return domain.Intent{
			Verb:           domain.VerbReorder,
			Object:         "items",
			Params:         domain.Blob{"items": raw},
			Confidence:     confidenceItems,
			RoutineKey:     "REORDER:ITEMS",
			Clarifications: []domain.ClarificationQuestion{},
		}.Normalize()
	}

	if containsAny(text, reorderWords) {
		return domain.Intent{
			Verb:           domain.VerbReorder,
			Object:         "usual",
			Params:         domain.Blob{"usual": true},
			Confidence:     confidenceUsual,
			RoutineKey:     "REORDER:USUAL",
			Clarifications: []domain.ClarificationQuestion{},
		}.Normalize()
	}

	return domain.Intent{
		Verb:           domain.VerbUnsupported,
		Object:         text,
		Params:         domain.Blob{},
		Confidence:     confidenceUnrecognized,
		RoutineKey:     string(domain.VerbUnsupported),
		Clarifications: []domain.ClarificationQuestion{},
	}.Normalize()
}

func cancelIntent(text string, answers map[string]string) domain.Intent {
	name := subscriptionName(text)
	if name == "" {
		name = strings.TrimSpace(answers["q0"])
	}
	if name == "" {
		return domain.Intent{
			Verb:       domain.VerbCancelSubscription,
			Params:     domain.Blob{},
			Confidence: confidenceNeedsSubscription,
			RoutineKey: string(domain.VerbCancelSubscription),
			Clarifications: []domain.ClarificationQuestion{{
				ID:      "q0",
				Prompt:  "Which subscription should I cancel?",
				Choices: defaultChoice,
			}},
		}.Normalize()
	}
	return domain.Intent{
		Verb:           domain.VerbCancelSubscription,
		Object:         name,
		Params:         domain.Blob{"subscription_name": name},
		Confidence:     confidenceCancel,
		RoutineKey:     "CANCEL_SUBSCRIPTION:" + strings.ToLower(name),
		Clarifications: []domain.ClarificationQuestion{},
	}.Normalize()
}

func bookIntent(text string) domain.Intent {
	service := serviceType(text)
	pref := "soon"
	if strings.Contains(text, "next week") {
		pref = "next_week"
	}
	return domain.Intent{
		Verb:           domain.VerbBookAppointment,
		Object:         service,
		Params:         domain.Blob{"service_type": service, "time_preference": pref},
		Confidence:     confidenceBook,
		RoutineKey:     "BOOK_APPOINTMENT:" + service,
		Clarifications: []domain.ClarificationQuestion{},
	}.Normalize()
}

// subscriptionName pulls "netflix" out of "cancel my netflix subscription"
// style text and title-cases it. The leading "my" is not stripped.
func subscriptionName(text string) string {
	m := cancelNameRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	name = strings.TrimSpace(planSuffixRe.ReplaceAllString(name, ""))
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	// Casers are stateful and must not be shared between goroutines.
	return cases.Title(language.English).String(name)
}

func serviceType(text string) string {
	switch {
	case containsAny(text, []string{"clean", "cleaner", "cleaning"}):
		return "cleaning"
	case containsAny(text, []string{"facial", "spa"}):
		return "facial"
	case containsAny(text, []string{"restaurant", "dinner", "resy"}):
		return "restaurant"
	default:
		return "appointment"
	}
}

func extractItems(text string) []domain.OrderItem {
	var items []domain.OrderItem
	for _, name := range catalogItems {
		if !strings.Contains(text, name) {
			continue
		}
		qty := 1
		if m := quantityRes[name].FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 1 {
				qty = n
			}
		}
		items = append(items, domain.OrderItem{Name: name, Quantity: qty})
	}
	return items
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
