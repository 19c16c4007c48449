// Package httpapi serves the orchestrator over JSON/HTTP.
//
// Rejected requests answer with {"detail", "code"}: NOT_FOUND is 404,
// INVALID_REQUEST is 400, other orchestrator rejections are 409 and adapter
// failures while drafting use adapter.Kind.HTTPStatus.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/orchestrator"
	"github.com/karanuppal/halo/internal/telemetry"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Orchestrator is the part of *orchestrator.Orchestrator the server uses.
type Orchestrator interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (domain.Card, error)
	Parse(ctx context.Context, req orchestrator.SubmitRequest) (domain.Intent, error)
	Modify(ctx context.Context, req orchestrator.ModifyRequest) (domain.Card, error)
	Confirm(ctx context.Context, req orchestrator.ConfirmRequest) (domain.Card, error)
	GetDraft(ctx context.Context, draftID string) (domain.Card, error)
	ListExecutions(ctx context.Context, householdID string, limit int) ([]domain.ExecutionSummary, error)
	GetExecution(ctx context.Context, executionID string) (domain.ExecutionDetail, error)
	ListReceipts(ctx context.Context, executionID string) ([]domain.Receipt, error)
	Events(ctx context.Context, q orchestrator.EventQuery) ([]domain.Event, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes HTTP requests to the orchestrator.
type Server struct {
	orch   Orchestrator
	health Pinger
	logger *slog.Logger
	tracer trace.Tracer
	mux    *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithHealth enables storage checks on GET /healthz.
func WithHealth(p Pinger) Option {
	return func(s *Server) {
		s.health = p
	}
}

// NewServer creates a Server.
func NewServer(orch Orchestrator, opts ...Option) *Server {
	s := &Server{
		orch:   orch,
		logger: slog.Default(),
		tracer: otel.Tracer(telemetry.InstrumentationName),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/command", s.handleSubmit)
	s.mux.HandleFunc("POST /v1/command/parse", s.handleParse)
	s.mux.HandleFunc("POST /v1/draft/modify", s.handleModify)
	s.mux.HandleFunc("POST /v1/draft/confirm", s.handleConfirm)
	s.mux.HandleFunc("GET /v1/drafts/{id}", s.handleGetDraft)
	s.mux.HandleFunc("GET /v1/executions", s.handleListExecutions)
	s.mux.HandleFunc("GET /v1/executions/{id}", s.handleGetExecution)
	s.mux.HandleFunc("GET /v1/receipts/{id}", s.handleListReceipts)
	s.mux.HandleFunc("GET /v1/events", s.handleEvents)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the routed handler wrapped in tracing and request
// logging.
func (s *Server) Handler() http.Handler {
	return s.traced(s.logged(s.mux))
}

// decode reads a JSON body. Unknown fields are ignored.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		detail := "Invalid JSON body: " + err.Error()
		if errors.Is(err, io.EOF) {
			detail = "Request body is required"
		}
		writeError(w, http.StatusBadRequest, codeBadJSON, detail)
		return false
	}
	return true
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.SubmitRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.orch.Submit(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.SubmitRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := s.orch.Parse(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.ModifyRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.orch.Modify(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.ConfirmRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.orch.Confirm(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	c, err := s.orch.GetDraft(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, string(orchestrator.ErrCodeInvalidRequest), "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := s.orch.ListExecutions(r.Context(), q.Get("household_id"), limit)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if list == nil {
		list = []domain.ExecutionSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	detail, err := s.orch.GetExecution(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.orch.ListReceipts(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if receipts == nil {
		receipts = []domain.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := s.orch.Events(r.Context(), orchestrator.EventQuery{
		EntityID:    q.Get("entity_id"),
		ExecutionID: q.Get("execution_id"),
		HouseholdID: q.Get("household_id"),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "UNHEALTHY", "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
