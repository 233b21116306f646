package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	steps := []PlanStep{
		{StepNumber: 1, Action: "wallet_balance"},
		{StepNumber: 2, Action: "wallet_transfer"},
	}
	p := New("check then move funds", steps)

	require.NotEmpty(t, p.PlanID)
	assert.Equal(t, 2, p.TotalSteps)
	assert.Equal(t, RiskLow, p.RiskLevel)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Empty(t, p.PlanHash)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      ExecStatus
	}{
		{"all completed", 3, 3, ExecSuccess},
		{"some completed", 1, 3, ExecPartial},
		{"none completed", 0, 3, ExecFailed},
		{"empty plan", 0, 0, ExecFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.completed, tt.total))
		})
	}
}

func TestStep(t *testing.T) {
	p := New("lookup", []PlanStep{
		{StepNumber: 1, Action: "a"},
		{StepNumber: 5, Action: "b"},
	})

	s, ok := p.Step(5)
	require.True(t, ok)
	assert.Equal(t, "b", s.Action)

	_, ok = p.Step(2)
	assert.False(t, ok)
}

func TestDuplicateStepNumbers(t *testing.T) {
	p := New("dups", []PlanStep{
		{StepNumber: 1, Action: "a"},
		{StepNumber: 2, Action: "b"},
		{StepNumber: 1, Action: "c"},
		{StepNumber: 1, Action: "d"},
	})

	assert.Equal(t, []int{1}, p.DuplicateStepNumbers())

	clean := New("clean", []PlanStep{{StepNumber: 1, Action: "a"}})
	assert.Empty(t, clean.DuplicateStepNumbers())
}

func TestValidate(t *testing.T) {
	t.Run("valid plan", func(t *testing.T) {
		p := New("ok", []PlanStep{{StepNumber: 1, Action: "a"}})
		assert.NoError(t, p.Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		p := New("", []PlanStep{{StepNumber: 1, Action: "a"}})
		p.PlanID = ""
		assert.Error(t, p.Validate())
	})

	t.Run("totalSteps mismatch", func(t *testing.T) {
		p := New("ok", []PlanStep{{StepNumber: 1, Action: "a"}})
		p.TotalSteps = 3
		assert.Error(t, p.Validate())
	})

	t.Run("bad step number", func(t *testing.T) {
		p := New("ok", []PlanStep{{StepNumber: 0, Action: "a"}})
		assert.Error(t, p.Validate())
	})

	t.Run("missing action", func(t *testing.T) {
		p := New("ok", []PlanStep{{StepNumber: 1}})
		assert.Error(t, p.Validate())
	})
}
