package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName scopes halo's tracers and meters.
const InstrumentationName = "github.com/karanuppal/halo"

// Metrics holds the orchestrator's instruments.
type Metrics struct {
	commands   metric.Int64Counter
	drafts     metric.Int64Counter
	executions metric.Int64Counter
	latency    metric.Int64Histogram
}

// NewMetrics registers instruments on meter. A nil meter uses the global
// meter provider, which is a no-op unless one was installed.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	var m Metrics
	var err error
	if m.commands, err = meter.Int64Counter("halo.commands",
		metric.WithDescription("Commands submitted, by outcome card type.")); err != nil {
		return nil, fmt.Errorf("commands counter: %w", err)
	}
	if m.drafts, err = meter.Int64Counter("halo.drafts",
		metric.WithDescription("Drafts created, by verb.")); err != nil {
		return nil, fmt.Errorf("drafts counter: %w", err)
	}
	if m.executions, err = meter.Int64Counter("halo.executions",
		metric.WithDescription("Executions finished, by verb, vendor and status.")); err != nil {
		return nil, fmt.Errorf("executions counter: %w", err)
	}
	if m.latency, err = meter.Int64Histogram("halo.confirmation.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Time from draft creation to confirmation.")); err != nil {
		return nil, fmt.Errorf("latency histogram: %w", err)
	}
	return &m, nil
}

// MustMetrics is NewMetrics for the global meter; the global provider never
// rejects these instruments.
func MustMetrics() *Metrics {
	m, err := NewMetrics(nil)
	if err != nil {
		panic(err)
	}
	return m
}

// CommandHandled counts a submitted command by the card type it produced.
func (m *Metrics) CommandHandled(ctx context.Context, cardType string) {
	m.commands.Add(ctx, 1, metric.WithAttributes(attribute.String("card_type", cardType)))
}

// DraftCreated counts a new draft.
func (m *Metrics) DraftCreated(ctx context.Context, verb, vendor string) {
	m.drafts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("verb", verb),
		attribute.String("vendor", vendor),
	))
}

// ExecutionFinished counts a terminal execution.
func (m *Metrics) ExecutionFinished(ctx context.Context, verb, vendor, status string) {
	m.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("verb", verb),
		attribute.String("vendor", vendor),
		attribute.String("status", status),
	))
}

// Confirmed records confirmation latency.
func (m *Metrics) Confirmed(ctx context.Context, verb string, latencyMS int64) {
	m.latency.Record(ctx, latencyMS, metric.WithAttributes(attribute.String("verb", verb)))
}
