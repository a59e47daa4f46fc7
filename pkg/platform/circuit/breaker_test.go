package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("audit-sink")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "audit-sink", b.Name())
}

func TestBreaker_OpensOnConsecutiveFailures(t *testing.T) {
	b := New("audit-sink", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	// Further failures keep the open state without re-reporting a transition.
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)
}

func TestBreaker_SuccessClearsFailureStreak(t *testing.T) {
	b := New("audit-sink", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_ClosesAfterSuccessStreak(t *testing.T) {
	b := New("audit-sink", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_FailureWhileOpenResetsSuccessStreak(t *testing.T) {
	b := New("audit-sink", WithFailureThreshold(1), WithSuccessThreshold(3))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordSuccess()
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.RecordSuccess()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("audit-sink", WithFailureThreshold(1))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CooldownAdmitsProbes(t *testing.T) {
	b := New("audit-sink", WithFailureThreshold(1), WithSuccessThreshold(1), WithCooldown(10*time.Millisecond))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	time.Sleep(20 * time.Millisecond)

	// Cooldown elapsed: calls are admitted again even though state is open.
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateOpen, b.State())

	// A failed probe re-arms the cooldown.
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	time.Sleep(20 * time.Millisecond)
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ConcurrentRecording(t *testing.T) {
	b := New("audit-sink", WithFailureThreshold(50))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()

	// 100 consecutive failures with threshold 50 must open the breaker.
	assert.True(t, b.IsOpen())
}
