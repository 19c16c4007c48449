package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/domain"
)

func TestParseScenario_Defaults(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: minimal
steps:
  - submit: reorder the usual
seed:
  household: {name: Home}
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultHousehold, sc.Household)
	assert.Equal(t, DefaultUser, sc.User)
	require.NotNil(t, sc.Seed)
	assert.Equal(t, DefaultHousehold, sc.Seed.Household.ID)
	assert.Equal(t, StepSubmit, sc.Steps[0].Kind())
}

func TestParseScenario_Fields(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/reorder-retry.yaml")
	require.NoError(t, err)

	assert.Equal(t, "reorder-retry", sc.Name)
	assert.Equal(t, []adapter.Kind{adapter.KindBotDetected}, sc.ReorderFailures)
	require.Len(t, sc.Steps, 3)
	assert.Equal(t, StepConfirm, sc.Steps[1].Kind())
	require.NotNil(t, sc.Steps[1].Expect)
	assert.Equal(t, domain.CardFailed, sc.Steps[1].Expect.Card)
	assert.Equal(t, []string{"RETRY"}, sc.Steps[1].Expect.Actions)
	require.NotNil(t, sc.Steps[2].Expect.CostCents)
	assert.Equal(t, int64(2898), *sc.Steps[2].Expect.CostCents)
	assert.Equal(t, domain.StatusFailed, sc.Assertions[1].Status)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown field", "name: x\nstep: []\n", "field step not found"},
		{"missing name", "steps:\n  - submit: hi\n", "name is required"},
		{"no steps", "name: x\n", "steps list is required"},
		{"empty step", "name: x\nsteps:\n  - expect: {card: DRAFT}\n", "exactly one of"},
		{"two operations", "name: x\nsteps:\n  - {submit: hi, confirm: true}\n", "exactly one of"},
		{"confirm before submit", "name: x\nsteps:\n  - confirm: true\n", "needs an earlier submit"},
		{"answers on confirm", "name: x\nsteps:\n  - submit: cancel\n  - {confirm: true, answers: {q0: Netflix}}\n", "answers only apply to submit"},
		{"error with card", "name: x\nsteps:\n  - submit: hi\n    expect: {error: NOT_FOUND, card: DRAFT}\n", "error excludes card"},
		{"unknown failure", "name: x\nreorder_failures: [TIMEOUT]\nsteps:\n  - submit: hi\n", "unknown kind"},
		{"seed for other household", "name: x\nseed:\n  household: {id: other}\nsteps:\n  - submit: hi\n", "does not match"},
		{"unknown assertion", "name: x\nsteps:\n  - submit: hi\nassertions:\n  - type: final_state\n", "unknown assertion type"},
		{"order without events", "name: x\nsteps:\n  - submit: hi\nassertions:\n  - type: event_order\n", "events list is required"},
		{"count without event", "name: x\nsteps:\n  - submit: hi\nassertions:\n  - type: event_count\n    count: 1\n", "event is required"},
		{"negative count", "name: x\nsteps:\n  - submit: hi\nassertions:\n  - type: execution_count\n    count: -1\n", "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
