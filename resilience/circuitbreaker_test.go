package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/astraweave-go/astraweave/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func managerWithClock(clock *fakeClock) *CircuitBreakerManager {
	return NewCircuitBreakerManager(CircuitBreakerConfig{
		FailureThreshold: 5,
		FailureWindow:    time.Minute,
		MinimumRequests:  5,
		RecoveryTimeout:  10 * time.Second,
		SuccessThreshold: 1,
		Clock:            clock,
	})
}

var errProvider = errors.New("provider unavailable")

func TestCircuitTripsAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	m := managerWithClock(clock)

	for i := 0; i < 5; i++ {
		err := m.Execute(context.Background(), "gpt-4", func() error { return errProvider })
		assert.ErrorIs(t, err, errProvider)
	}

	assert.Equal(t, StateOpen, m.State("gpt-4"))
}

func TestCircuitOpenShortCircuitsWithoutCallingProvider(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	m := managerWithClock(clock)

	for i := 0; i < 5; i++ {
		_ = m.Execute(context.Background(), "gpt-4", func() error { return errProvider })
	}
	require.Equal(t, StateOpen, m.State("gpt-4"))

	called := false
	err := m.Execute(context.Background(), "gpt-4", func() error { called = true; return nil })

	assert.False(t, called, "provider must not be called while circuit is open")
	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "gpt-4", openErr.Model)
	assert.ErrorIs(t, err, core.ErrCircuitOpen)
}

func TestCircuitRecoversAfterRecoveryTimeoutOnSuccessfulProbe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	m := managerWithClock(clock)

	for i := 0; i < 5; i++ {
		_ = m.Execute(context.Background(), "gpt-4", func() error { return errProvider })
	}
	require.Equal(t, StateOpen, m.State("gpt-4"))

	clock.now = clock.now.Add(11 * time.Second)

	err := m.Execute(context.Background(), "gpt-4", func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, m.State("gpt-4"))
}

func TestCircuitHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	m := managerWithClock(clock)

	for i := 0; i < 5; i++ {
		_ = m.Execute(context.Background(), "gpt-4", func() error { return errProvider })
	}
	clock.now = clock.now.Add(11 * time.Second)

	err := m.Execute(context.Background(), "gpt-4", func() error { return errProvider })
	assert.Error(t, err)
	assert.Equal(t, StateOpen, m.State("gpt-4"))
}

func TestCircuitPerModelIsolation(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	m := managerWithClock(clock)

	for i := 0; i < 5; i++ {
		_ = m.Execute(context.Background(), "gpt-4", func() error { return errProvider })
	}
	require.Equal(t, StateOpen, m.State("gpt-4"))
	assert.Equal(t, StateClosed, m.State("claude"))

	err := m.Execute(context.Background(), "claude", func() error { return nil })
	assert.NoError(t, err)
}

func TestCircuitBelowMinimumRequestsNeverTrips(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	m := managerWithClock(clock)

	for i := 0; i < 4; i++ {
		_ = m.Execute(context.Background(), "gpt-4", func() error { return errProvider })
	}
	assert.Equal(t, StateClosed, m.State("gpt-4"))
}
