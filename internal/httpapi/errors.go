package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/orchestrator"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// Codes for errors that do not come from the orchestrator or an adapter.
const (
	codeBadJSON  = "BAD_REQUEST"
	codeInternal = "INTERNAL"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorBody{Detail: detail, Code: code})
}

// statusFor maps an orchestrator rejection or adapter failure to a status
// code. ok is false for anything else.
func statusFor(err error) (status int, code string, ok bool) {
	var oe *orchestrator.Error
	if errors.As(err, &oe) {
		switch oe.Code {
		case orchestrator.ErrCodeNotFound:
			return http.StatusNotFound, string(oe.Code), true
		case orchestrator.ErrCodeInvalidRequest:
			return http.StatusBadRequest, string(oe.Code), true
		default:
			return http.StatusConflict, string(oe.Code), true
		}
	}
	var ae *adapter.Error
	if errors.As(err, &ae) {
		return ae.Kind.HTTPStatus(), string(ae.Kind), true
	}
	return 0, "", false
}

// writeErr renders err. Unclassified errors are logged and hidden behind a
// generic 500.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	if status, code, ok := statusFor(err); ok {
		detail := err.Error()
		var oe *orchestrator.Error
		if errors.As(err, &oe) {
			detail = oe.Message
		}
		writeError(w, status, code, detail)
		return
	}
	s.logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, codeInternal, "An unexpected error occurred.")
}
