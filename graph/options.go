package graph

import "time"

// Option configures an Executor at construction time.
type Option func(*executorConfig)

type executorConfig struct {
	maxTokens          *int
	maxCost            *float64
	defaultNodeTimeout time.Duration
	defaultBaseDelay   time.Duration
	metrics            *Metrics
	recaller           Recaller
}

// WithTokenBudget caps an execution's total prompt+completion tokens.
func WithTokenBudget(maxTokens int) Option {
	return func(cfg *executorConfig) {
		cfg.maxTokens = &maxTokens
	}
}

// WithCostBudget caps an execution's total cost in USD.
func WithCostBudget(maxCost float64) Option {
	return func(cfg *executorConfig) {
		cfg.maxCost = &maxCost
	}
}

// WithDefaultNodeTimeout sets the timeout applied to a node that doesn't
// configure TimeoutSeconds itself, rounded down to whole seconds (a value
// under one second applies no timeout). Default: no timeout.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *executorConfig) {
		cfg.defaultNodeTimeout = d
	}
}

// WithDefaultRetryBaseDelay sets the base backoff delay used for every
// node's retries; nodes have no delay setting of their own. Default: 1s.
func WithDefaultRetryBaseDelay(d time.Duration) Option {
	return func(cfg *executorConfig) {
		cfg.defaultBaseDelay = d
	}
}

// WithMetrics attaches Prometheus instrumentation to the executor.
func WithMetrics(metrics *Metrics) Option {
	return func(cfg *executorConfig) {
		cfg.metrics = metrics
	}
}

// WithRecaller attaches a memory-recall hook consulted before building
// each node's prompt. Omitted by default: no recall block is added.
func WithRecaller(r Recaller) Option {
	return func(cfg *executorConfig) {
		cfg.recaller = r
	}
}
