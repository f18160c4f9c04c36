package httpx_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptguard/promptguard/pkg/infra/httpx"
)

func TestCircuitBreaker_WrapsErrors(t *testing.T) {
	cb := httpx.NewCircuitBreaker("upstream", time.Minute, 3)

	err := cb.Execute(func() error { return errors.New("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "breaker (upstream)")
	assert.Contains(t, err.Error(), "boom")
}

func TestCircuitBreaker_PassesThroughSuccess(t *testing.T) {
	cb := httpx.NewCircuitBreaker("upstream", time.Minute, 3)

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := httpx.NewCircuitBreaker("upstream", time.Minute, 2)

	for i := 0; i < 2; i++ {
		require.Error(t, cb.Execute(func() error { return errors.New("boom") }))
	}

	calls := 0
	err := cb.Execute(func() error {
		calls++
		return nil
	})
	assert.Error(t, err)
	assert.Zero(t, calls)
}
