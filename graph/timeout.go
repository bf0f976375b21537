package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// nodeTimeout returns node.TimeoutSeconds as a Duration, or zero
// (unlimited) when unset. The executor fills in its WithDefaultNodeTimeout
// value (whole seconds) for a node that sets none before calling here.
func nodeTimeout(cfg NodeConfig) time.Duration {
	if cfg.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

// withNodeTimeout bounds one attempt of fn by cfg's configured timeout,
// translating a deadline exceeded into a retryable EngineError rather
// than leaking context.DeadlineExceeded to the retry handler directly —
// the error still satisfies errors.Is(err, context.DeadlineExceeded) for
// callers that care, via wrapping.
func withNodeTimeout(ctx context.Context, nodeID string, cfg NodeConfig, fn func(ctx context.Context) error) error {
	timeout := nodeTimeout(cfg)
	if timeout == 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err != nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return &EngineError{
			Message: fmt.Sprintf("node %s exceeded timeout of %v", nodeID, timeout),
			Code:    "NODE_TIMEOUT",
		}
	}
	return err
}
