package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/domain"
	"github.com/karanuppal/halo/internal/orchestrator"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("NOT_FOUND", "Draft not found", map[string]string{"draft_id": "d-1"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "Draft not found", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("DRAFT_LOCKED", "draft is locked", "execution e-1"))
			assert.Contains(t, buf.String(), "Error [DRAFT_LOCKED]: draft is locked")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: execution e-1")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("opening %s", "halo.db")

	assert.Empty(t, out.String())
	assert.Equal(t, "opening halo.db\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("hidden")
	assert.Equal(t, "opening halo.db\n", errOut.String())
}

func TestOutputFormatter_Emit(t *testing.T) {
	card := domain.Card{Type: domain.CardDone, Title: "Done"}

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		called := false
		require.NoError(t, f.Emit(card, func(io.Writer) { called = true }))

		assert.False(t, called)
		var resp struct {
			Status string      `json:"status"`
			Data   domain.Card `json:"data"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, domain.CardDone, resp.Data.Type)
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, f.Emit(card, func(w io.Writer) { writeCard(w, card) }))
		assert.Equal(t, "[DONE] Done\n", buf.String())
	})
}

func TestOutputFormatter_Reject(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "orchestrator error",
			err:      &orchestrator.Error{Code: orchestrator.ErrCodeNotFound, Message: "Draft not found"},
			wantCode: "NOT_FOUND",
			wantMsg:  "Draft not found",
		},
		{
			name:     "adapter error",
			err:      adapter.NewAutomationUnavailableError(adapter.VendorResyBrowser, errors.New("connection refused")),
			wantCode: "AUTOMATION_UNAVAILABLE",
			wantMsg:  "connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: buf}

			err := f.Reject(tt.err)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.wantMsg)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		cause := errors.New("disk full")

		err := f.Reject(cause)
		assert.Same(t, cause, err)
		assert.Empty(t, buf.String())
	})
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := WrapExitError(ExitFailure, "request rejected", errors.New("cause"))
	assert.Equal(t, "request rejected: cause", wrapped.Error())
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{2898, "$28.98"},
		{9000, "$90.00"},
		{-150, "-$1.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatCents(tt.cents))
	}
}

func TestWriteCard(t *testing.T) {
	buf := &bytes.Buffer{}
	writeCard(buf, domain.Card{
		Type:               domain.CardDraft,
		Title:              "Cancel Netflix",
		Summary:            "Cancel your Netflix subscription.",
		DraftID:            "d-1",
		Vendor:             "MOCK_SUBS",
		EstimatedCostCents: domain.Cents(1599),
		Body:               domain.Blob{"name": "Netflix"},
		Actions: []domain.CardAction{
			{Type: domain.ActionConfirm, Label: "Confirm"},
			{Type: domain.ActionCancel, Label: "Cancel"},
		},
		Warnings: []string{"This may be irreversible."},
	})

	out := buf.String()
	assert.Contains(t, out, "[DRAFT] Cancel Netflix\n")
	assert.Contains(t, out, "Cancel your Netflix subscription.\n")
	assert.Contains(t, out, "draft:     d-1")
	assert.Contains(t, out, "cost:      $15.99")
	assert.Contains(t, out, "actions:   CONFIRM, CANCEL")
	assert.Contains(t, out, "warning:   This may be irreversible.")
	assert.Contains(t, out, `body:      {"name":"Netflix"}`)
	assert.NotContains(t, out, "execution:")
}
