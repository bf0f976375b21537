package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnforcerNoCapsAlwaysOK(t *testing.T) {
	e := NewEnforcer(nil, nil)
	assert.False(t, e.HasBudget())
	e.Record(1_000_000, 1_000_000)
	assert.Equal(t, BudgetOK, e.Check())
}

func TestEnforcerWarningFiresOnceThenOK(t *testing.T) {
	maxTokens := 100
	e := NewEnforcer(&maxTokens, nil)

	e.Record(85, 0)
	assert.Equal(t, BudgetWarning, e.Check())

	// Still over threshold, but warning already fired this run.
	assert.Equal(t, BudgetOK, e.Check())
}

func TestEnforcerExceededIsSticky(t *testing.T) {
	maxTokens := 100
	e := NewEnforcer(&maxTokens, nil)

	e.Record(150, 0)
	assert.Equal(t, BudgetExceeded, e.Check())
	assert.Equal(t, BudgetExceeded, e.Check())
	assert.Equal(t, BudgetExceeded, e.Check())
}

func TestEnforcerCostCap(t *testing.T) {
	maxCost := 1.0
	e := NewEnforcer(nil, &maxCost)
	e.Record(0, 1.5)
	assert.Equal(t, BudgetExceeded, e.Check())
}

func TestEnforcerStatusDoesNotConsumeWarningLatch(t *testing.T) {
	maxTokens := 100
	e := NewEnforcer(&maxTokens, nil)

	e.Record(85, 0)
	assert.Equal(t, BudgetWarning, e.Status())
	assert.Equal(t, BudgetWarning, e.Status())
	assert.Equal(t, BudgetWarning, e.Check())
	assert.Equal(t, BudgetOK, e.Check())
}

func TestEnforcerStatusDoesNotLatchExceeded(t *testing.T) {
	maxTokens := 100
	e := NewEnforcer(&maxTokens, nil)

	e.Record(150, 0)
	assert.Equal(t, BudgetExceeded, e.Status())
	assert.Equal(t, BudgetExceeded, e.Check())
}
