package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAdapterReturnsResponsesInOrderThenRepeatsLast(t *testing.T) {
	m := &MockAdapter{Responses: []Response{{Text: "first"}, {Text: "second"}}}

	out, err := m.Complete(context.Background(), "p", "", CompletionConfig{})
	require.NoError(t, err)
	assert.Equal(t, "first", out.Text)

	out, err = m.Complete(context.Background(), "p", "", CompletionConfig{})
	require.NoError(t, err)
	assert.Equal(t, "second", out.Text)

	out, err = m.Complete(context.Background(), "p", "", CompletionConfig{})
	require.NoError(t, err)
	assert.Equal(t, "second", out.Text)

	assert.Equal(t, 3, m.CallCount())
}

func TestMockAdapterReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("boom")
	m := &MockAdapter{Err: wantErr}
	_, err := m.Complete(context.Background(), "p", "", CompletionConfig{})
	assert.ErrorIs(t, err, wantErr)
}

func TestMockAdapterRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &MockAdapter{Responses: []Response{{Text: "x"}}}
	_, err := m.Complete(ctx, "p", "", CompletionConfig{})
	assert.Error(t, err)
	assert.Equal(t, 0, m.CallCount())
}

func TestFuncAdapterFailsThenSucceeds(t *testing.T) {
	attempts := 0
	a := FuncAdapter(func(ctx context.Context, prompt, systemPrompt string, config CompletionConfig) (Response, error) {
		attempts++
		if attempts < 3 {
			return Response{}, errors.New("transient")
		}
		return Response{Text: "ok"}, nil
	})

	_, err := a.Complete(context.Background(), "p", "", CompletionConfig{})
	assert.Error(t, err)
	_, err = a.Complete(context.Background(), "p", "", CompletionConfig{})
	assert.Error(t, err)
	out, err := a.Complete(context.Background(), "p", "", CompletionConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
}
