package graph

import "sync"

// BudgetCheck is the verdict Enforcer.Check returns.
type BudgetCheck string

const (
	BudgetOK       BudgetCheck = "ok"
	BudgetWarning  BudgetCheck = "warning"
	BudgetExceeded BudgetCheck = "exceeded"
)

// warningThreshold is the consumed/cap ratio at which Check starts
// returning BudgetWarning instead of BudgetOK.
const warningThreshold = 0.8

// Enforcer is a mid-flight counter the executor consults after every
// completed agent. Once it reports BudgetExceeded it never reports
// anything else for the rest of the run — "once exceeded always
// exceeded" — and a warning is only ever surfaced once per run, even if
// consumption dips back under the threshold and crosses it again.
type Enforcer struct {
	mu sync.Mutex

	maxTokens *int
	maxCost   *float64

	tokens int
	cost   float64

	warned   bool
	exceeded bool
}

// NewEnforcer creates an Enforcer with optional token and cost caps. A
// nil cap means that dimension is never enforced.
func NewEnforcer(maxTokens *int, maxCost *float64) *Enforcer {
	return &Enforcer{maxTokens: maxTokens, maxCost: maxCost}
}

// HasBudget reports whether any cap is configured at all.
func (e *Enforcer) HasBudget() bool {
	return e.maxTokens != nil || e.maxCost != nil
}

// Record accumulates consumption from one completed agent call.
func (e *Enforcer) Record(tokens int, cost float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tokens += tokens
	e.cost += cost
}

// Status classifies current consumption against the configured caps
// without any side effect: it neither latches the sticky "exceeded"
// bit nor consumes the once-per-run warning. Use it for guards that
// only need to branch on the verdict without being the one place that
// reports it; use Check at the single call site responsible for
// emitting the corresponding event.
func (e *Enforcer) Status() BudgetCheck {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status()
}

// Check classifies current consumption against the configured caps and
// latches the result: the first BudgetExceeded verdict sets the sticky
// "always exceeded" bit, and the first BudgetWarning verdict consumes
// the once-per-run warning so later calls see BudgetOK instead. Call
// this only where the verdict itself is also reported, or a caller
// earlier in the same consumption event will starve it of the verdict.
func (e *Enforcer) Check() BudgetCheck {
	e.mu.Lock()
	defer e.mu.Unlock()

	check := e.status()
	switch check {
	case BudgetExceeded:
		e.exceeded = true
	case BudgetWarning:
		e.warned = true
	}
	return check
}

// status computes the verdict under the held lock, with no side
// effects of its own — callers decide what to latch.
func (e *Enforcer) status() BudgetCheck {
	if e.exceeded {
		return BudgetExceeded
	}
	if !e.HasBudget() {
		return BudgetOK
	}

	tokenRatio, costRatio := 0.0, 0.0
	if e.maxTokens != nil && *e.maxTokens > 0 {
		tokenRatio = float64(e.tokens) / float64(*e.maxTokens)
	}
	if e.maxCost != nil && *e.maxCost > 0 {
		costRatio = e.cost / *e.maxCost
	}

	if (e.maxTokens != nil && e.tokens >= *e.maxTokens) || (e.maxCost != nil && e.cost >= *e.maxCost) {
		return BudgetExceeded
	}

	if !e.warned && (tokenRatio >= warningThreshold || costRatio >= warningThreshold) {
		return BudgetWarning
	}

	return BudgetOK
}

// Consumed returns the running totals, for building budget_warning and
// budget_exceeded event payloads.
func (e *Enforcer) Consumed() (tokens int, cost float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens, e.cost
}
