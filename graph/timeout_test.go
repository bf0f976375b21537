package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeTimeoutZeroWhenUnset(t *testing.T) {
	assert.Equal(t, time.Duration(0), nodeTimeout(NodeConfig{}))
	assert.Equal(t, time.Duration(0), nodeTimeout(NodeConfig{TimeoutSeconds: -1}))
}

func TestNodeTimeoutConvertsSeconds(t *testing.T) {
	assert.Equal(t, 5*time.Second, nodeTimeout(NodeConfig{TimeoutSeconds: 5}))
}

func TestWithNodeTimeoutUnboundedWhenZero(t *testing.T) {
	err := withNodeTimeout(context.Background(), "n1", NodeConfig{}, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestWithNodeTimeoutTranslatesDeadlineExceeded(t *testing.T) {
	err := withNodeTimeout(context.Background(), "n1", NodeConfig{TimeoutSeconds: 1}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, err)
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "NODE_TIMEOUT", engineErr.Code)
}

func TestWithNodeTimeoutPassesThroughNonTimeoutError(t *testing.T) {
	err := withNodeTimeout(context.Background(), "n1", NodeConfig{TimeoutSeconds: 5}, func(ctx context.Context) error {
		return assert.AnError
	})

	require.Error(t, err)
	assert.Equal(t, assert.AnError, err)
}
