// Package autopilot computes autopilot-readiness signals: how regularly a
// household routine recurs, how much it varies between runs, how much the
// user trusts the draft, and how reliable the vendor adapter has been.
//
// Compute is pure. Engine.Emit gathers the inputs from storage, computes the
// signal and appends an AUTOPILOT_SIGNAL_COMPUTED event, absorbing every
// failure so that the caller's flow is never affected.
package autopilot

import (
	"math"
	"sort"
	"time"

	"github.com/karanuppal/halo/internal/domain"
)

// Signal is the payload of an AUTOPILOT_SIGNAL_COMPUTED event. Nil pointer
// fields are unknown and serialize as null.
type Signal struct {
	RoutineKey   string                 `json:"routine_key"`
	Status       domain.ExecutionStatus `json:"status"`
	RepeatsCount int                    `json:"repeats_count"`
	Cadence      Cadence                `json:"cadence"`
	Variance     Variance               `json:"variance"`
	Trust        Trust                  `json:"trust"`
	Adapter      AdapterStats           `json:"adapter"`
}

// Cadence describes how often the routine completes.
type Cadence struct {
	TimeSinceLastCompletionMS *int64 `json:"time_since_last_completion_ms"`
	AverageIntervalMS         *int64 `json:"average_interval_ms"`
}

// Variance describes how this run differs from earlier runs.
type Variance struct {
	ItemChangesCount   *int64 `json:"item_changes_count"`
	BaselineCostCents  *int64 `json:"baseline_cost_cents"`
	CostDeviationCents *int64 `json:"cost_deviation_cents"`
}

// Trust describes how readily the user accepted the draft.
type Trust struct {
	ConfirmationLatencyMS    *int64 `json:"confirmation_latency_ms"`
	ModifyCountBeforeConfirm int    `json:"modify_count_before_confirm"`
}

// AdapterStats describes the reliability of the draft's vendor.
type AdapterStats struct {
	Vendor           string  `json:"vendor"`
	FailedExecutions int     `json:"failed_executions"`
	TotalExecutions  int     `json:"total_executions"`
	FailureRate      float64 `json:"failure_rate"`
}

// Input is everything Compute needs.
type Input struct {
	Draft     domain.Draft
	Execution domain.Execution

	// History is every execution of the household, oldest first. It may
	// include Execution itself.
	History []domain.HistoryRow

	Confirmation *domain.Confirmation
	ModifyCount  int
}

// Compute derives the signal for one terminal execution.
func Compute(in Input) Signal {
	d, ex := in.Draft, in.Execution
	routineKey := domain.RoutineKeyFromDraft(d.Verb, d.Payload)

	var prior []domain.HistoryRow
	stats := AdapterStats{Vendor: d.Vendor}
	for _, h := range in.History {
		if h.DraftVendor == d.Vendor {
			stats.TotalExecutions++
			if h.Execution.Status == domain.StatusFailed {
				stats.FailedExecutions++
			}
		}
		if h.RoutineKey != routineKey || h.Execution.ID == ex.ID {
			continue
		}
		if h.Execution.Status == domain.StatusDone && h.Execution.FinishedAt != nil {
			prior = append(prior, h)
		}
	}
	if stats.TotalExecutions > 0 {
		rate := float64(stats.FailedExecutions) / float64(stats.TotalExecutions)
		stats.FailureRate = math.Round(rate*10000) / 10000
	}

	currentDone := ex.Status == domain.StatusDone
	sig := Signal{
		RoutineKey:   routineKey,
		Status:       ex.Status,
		RepeatsCount: len(prior),
		Adapter:      stats,
		Trust:        Trust{ModifyCountBeforeConfirm: in.ModifyCount},
	}
	if currentDone {
		sig.RepeatsCount++
	}

	sig.Cadence = cadence(prior, ex)
	sig.Variance = variance(prior, d, ex)

	if in.Confirmation != nil {
		sig.Trust.ConfirmationLatencyMS = ptr(in.Confirmation.LatencyMS)
	}
	return sig
}

func cadence(prior []domain.HistoryRow, ex domain.Execution) Cadence {
	completions := make([]time.Time, 0, len(prior)+1)
	for _, h := range prior {
		completions = append(completions, *h.Execution.FinishedAt)
	}
	sort.Slice(completions, func(i, j int) bool { return completions[i].Before(completions[j]) })

	var c Cadence
	ref := ex.StartedAt
	if ex.Status == domain.StatusDone && ex.FinishedAt != nil {
		ref = *ex.FinishedAt
	}
	if len(completions) > 0 && !ref.IsZero() {
		c.TimeSinceLastCompletionMS = ptr(ref.Sub(completions[len(completions)-1]).Milliseconds())
	}

	series := completions
	if ex.Status == domain.StatusDone && ex.FinishedAt != nil {
		series = append(series, *ex.FinishedAt)
	}
	if len(series) >= 2 {
		var sum int64
		for i := 1; i < len(series); i++ {
			sum += series[i].Sub(series[i-1]).Milliseconds()
		}
		c.AverageIntervalMS = ptr(sum / int64(len(series)-1))
	}
	return c
}

func variance(prior []domain.HistoryRow, d domain.Draft, ex domain.Execution) Variance {
	var v Variance

	current := domain.ItemQuantities(d.Payload)
	if len(current) > 0 {
		previous := map[string]int64{}
		if len(prior) > 0 {
			previous = domain.ItemQuantities(prior[len(prior)-1].DraftPayload)
		}
		v.ItemChangesCount = ptr(itemChangeCount(current, previous))
	}

	var sum, n int64
	for _, h := range prior {
		if h.Execution.FinalCostCents != nil {
			sum += *h.Execution.FinalCostCents
			n++
		}
	}
	if n > 0 {
		v.BaselineCostCents = ptr(sum / n)
	}
	if ex.FinalCostCents != nil && v.BaselineCostCents != nil {
		v.CostDeviationCents = ptr(*ex.FinalCostCents - *v.BaselineCostCents)
	}
	return v
}

// itemChangeCount is the sum of absolute quantity differences over the
// union of item names.
func itemChangeCount(current, previous map[string]int64) int64 {
	var total int64
	for name, q := range current {
		total += abs(q - previous[name])
	}
	for name, q := range previous {
		if _, ok := current[name]; !ok {
			total += q
		}
	}
	return total
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func ptr(n int64) *int64 {
	return &n
}
