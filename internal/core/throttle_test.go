package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func blockSignal() Classification {
	return Classification{Verdict: VerdictLimited, BlockSignal: true}
}

func timeoutSignal() Classification {
	return Classification{Verdict: VerdictError, Timeout: true}
}

func cleanResponse() Classification {
	return Classification{Verdict: VerdictNotFound}
}

func TestThrottleEscalationSequence(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		BaseDelay:      1 * time.Second,
		MaxDelay:       8 * time.Second,
		BlockThreshold: 3,
		MaxConcurrency: 4,
	})

	// Five consecutive block signals with threshold 3: delay holds at
	// baseline for the first two, then doubles on every further signal
	// until it hits the ceiling.
	wantDelays := []time.Duration{
		1 * time.Second,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}
	for i, want := range wantDelays {
		th.AfterProbe(blockSignal())
		assert.Equal(t, want, th.State().Delay, "after block signal %d", i+1)
	}

	// Further signals stay capped.
	th.AfterProbe(blockSignal())
	assert.Equal(t, 8*time.Second, th.State().Delay)
}

func TestThrottleConcurrencyHalving(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       time.Second,
		BlockThreshold: 1,
		MaxConcurrency: 8,
	})

	wantConcurrency := []int{4, 2, 1, 1}
	for i, want := range wantConcurrency {
		th.AfterProbe(blockSignal())
		assert.Equal(t, want, th.Concurrency(), "after block signal %d", i+1)
	}
}

func TestThrottleCountersAreIndependent(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		BaseDelay:        time.Second,
		MaxDelay:         8 * time.Second,
		BlockThreshold:   3,
		TimeoutThreshold: 3,
		MaxConcurrency:   4,
	})

	// Two blocks plus two timeouts: neither counter reaches its threshold.
	th.AfterProbe(blockSignal())
	th.AfterProbe(blockSignal())
	th.AfterProbe(timeoutSignal())
	th.AfterProbe(timeoutSignal())

	state := th.State()
	assert.Equal(t, 2, state.ConsecutiveBlocks)
	assert.Equal(t, 2, state.ConsecutiveTimeouts)
	assert.Equal(t, time.Second, state.Delay)
	assert.Equal(t, 4, state.Concurrency)
}

func TestThrottleCleanResponseResetsAndDecays(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		BaseDelay:      time.Second,
		MaxDelay:       8 * time.Second,
		BlockThreshold: 1,
		MaxConcurrency: 4,
	})

	// Escalate to 8s delay, concurrency 1.
	for i := 0; i < 3; i++ {
		th.AfterProbe(blockSignal())
	}
	assert.Equal(t, 8*time.Second, th.State().Delay)
	assert.Equal(t, 1, th.State().Concurrency)

	// Clean responses reset counters and walk the delay back toward
	// baseline geometrically, recovering one worker each time.
	th.AfterProbe(cleanResponse())
	state := th.State()
	assert.Equal(t, 0, state.ConsecutiveBlocks)
	assert.Equal(t, 4500*time.Millisecond, state.Delay)
	assert.Equal(t, 2, state.Concurrency)

	th.AfterProbe(cleanResponse())
	assert.Equal(t, 2750*time.Millisecond, th.State().Delay)

	for i := 0; i < 20; i++ {
		th.AfterProbe(cleanResponse())
	}
	state = th.State()
	assert.Equal(t, time.Second, state.Delay)
	assert.Equal(t, 4, state.Concurrency)
}

func TestThrottleNonTimeoutErrorLeavesStateAlone(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		BaseDelay:      time.Second,
		MaxDelay:       8 * time.Second,
		BlockThreshold: 3,
		MaxConcurrency: 4,
	})

	th.AfterProbe(blockSignal())
	th.AfterProbe(blockSignal())
	th.AfterProbe(Classification{Verdict: VerdictError}) // connection refused etc.

	state := th.State()
	assert.Equal(t, 2, state.ConsecutiveBlocks, "plain transport error must not reset the block counter")
	assert.Equal(t, time.Second, state.Delay)
}

func TestThrottleDisabled(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		JitterMax:      time.Second,
		BlockThreshold: 1,
		MaxConcurrency: 4,
		Disabled:       true,
	})

	for i := 0; i < 10; i++ {
		th.AfterProbe(blockSignal())
		assert.Equal(t, 500*time.Millisecond, th.BeforeProbe(), "disabled throttle never adds jitter or escalates")
		assert.Equal(t, 4, th.Concurrency())
	}
}

func TestThrottleJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	jitter := 50 * time.Millisecond
	th := NewThrottle(ThrottleConfig{
		BaseDelay:      base,
		MaxDelay:       time.Second,
		JitterMax:      jitter,
		BlockThreshold: 3,
		MaxConcurrency: 1,
	})

	for i := 0; i < 100; i++ {
		d := th.BeforeProbe()
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+jitter)
	}
}
