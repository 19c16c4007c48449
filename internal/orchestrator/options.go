package orchestrator

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/karanuppal/halo/internal/lock"
	"github.com/karanuppal/halo/internal/telemetry"
)

// Defaults for the tunable policy constants.
const (
	// DefaultConfidenceThreshold is the minimum intent confidence the
	// orchestrator drafts from. Lower confidence fails closed to an
	// UNSUPPORTED card.
	DefaultConfidenceThreshold = 0.55

	// DefaultExecutionListLimit caps ListExecutions.
	DefaultExecutionListLimit = 200
)

// Clock supplies wall-clock time. Tests inject a deterministic clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// IDGenerator generates record ids.
// Implemented by UUIDv7Generator (production) and testutil.SequenceIDs
// (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithIDGenerator sets the id source for every record and event.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) {
		o.ids = g
	}
}

// WithLocker sets the per-draft lock. Default: an in-process lock.Local.
// Use a lock.RedisLocker when several processes share one database.
func WithLocker(l lock.Locker) Option {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

// WithConfidenceThreshold sets the minimum confidence to draft from.
// Values outside [0,1] are ignored.
func WithConfidenceThreshold(t float64) Option {
	return func(o *Orchestrator) {
		if t >= 0 && t <= 1 {
			o.threshold = t
		}
	}
}

// WithTimeWindowCount sets how many windows a booking draft must offer.
// Values below 1 are ignored.
func WithTimeWindowCount(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.windowCount = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}
