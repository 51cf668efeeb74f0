package core

import (
	"math/rand"
	"sync"
	"time"
)

// ThrottleConfig holds the knobs for the adaptive throttle.
type ThrottleConfig struct {
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	JitterMax        time.Duration
	BlockThreshold   int
	TimeoutThreshold int
	MaxConcurrency   int
	Disabled         bool
}

// ThrottleState is a point-in-time copy of the throttle's internals.
type ThrottleState struct {
	ConsecutiveBlocks   int
	ConsecutiveTimeouts int
	Delay               time.Duration
	Concurrency         int
}

// Throttle reacts to block and timeout signals by raising the inter-probe
// delay (doubling, ceiling-capped) and shrinking the effective concurrency
// (halving, floor 1). Clean responses decay the delay back toward baseline
// and recover concurrency one worker at a time. It is the only adaptive,
// history-dependent component in the engine; all state transitions happen
// under its lock.
type Throttle struct {
	mu  sync.Mutex
	cfg ThrottleConfig
	rng *rand.Rand

	consecutiveBlocks   int
	consecutiveTimeouts int
	delay               time.Duration
	concurrency         int
}

// NewThrottle creates a throttle starting at the baseline delay and the
// configured maximum concurrency.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	return &Throttle{
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		delay:       cfg.BaseDelay,
		concurrency: cfg.MaxConcurrency,
	}
}

// BeforeProbe returns how long the caller must wait before issuing the next
// probe. When throttling is enabled, bounded random jitter is added so
// workers do not fire in synchronized bursts.
func (t *Throttle) BeforeProbe() time.Duration {
	if t.cfg.Disabled {
		return t.cfg.BaseDelay
	}
	t.mu.Lock()
	delay := t.delay
	if t.cfg.JitterMax > 0 {
		delay += time.Duration(t.rng.Int63n(int64(t.cfg.JitterMax)))
	}
	t.mu.Unlock()
	return delay
}

// AfterProbe feeds a probe's classification back into the throttle.
func (t *Throttle) AfterProbe(cls Classification) {
	if t.cfg.Disabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case cls.BlockSignal:
		t.consecutiveBlocks++
		if t.consecutiveBlocks >= t.cfg.BlockThreshold {
			t.escalateLocked()
		}
	case cls.Timeout:
		t.consecutiveTimeouts++
		if t.consecutiveTimeouts >= t.cfg.TimeoutThreshold {
			t.escalateLocked()
		}
	case cls.Verdict == VerdictError:
		// Non-timeout transport errors are neither hostile nor clean;
		// they leave both counters untouched.
	default:
		t.consecutiveBlocks = 0
		t.consecutiveTimeouts = 0
		t.decayLocked()
	}
}

// Concurrency returns the effective worker bound right now.
func (t *Throttle) Concurrency() int {
	if t.cfg.Disabled {
		return t.cfg.MaxConcurrency
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.concurrency
}

// State returns a copy of the current throttle state.
func (t *Throttle) State() ThrottleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ThrottleState{
		ConsecutiveBlocks:   t.consecutiveBlocks,
		ConsecutiveTimeouts: t.consecutiveTimeouts,
		Delay:               t.delay,
		Concurrency:         t.concurrency,
	}
}

func (t *Throttle) escalateLocked() {
	if t.delay <= 0 {
		t.delay = 500 * time.Millisecond
	} else {
		t.delay *= 2
	}
	if t.delay > t.cfg.MaxDelay {
		t.delay = t.cfg.MaxDelay
	}
	if t.concurrency > 1 {
		t.concurrency /= 2
		if t.concurrency < 1 {
			t.concurrency = 1
		}
	}
}

// decayLocked moves the delay geometrically back toward baseline instead of
// resetting it outright, and recovers one worker. An instant reset after a
// single clean response would oscillate against a still-hostile endpoint.
func (t *Throttle) decayLocked() {
	if t.delay > t.cfg.BaseDelay {
		t.delay = t.cfg.BaseDelay + (t.delay-t.cfg.BaseDelay)/2
		if t.delay-t.cfg.BaseDelay < 10*time.Millisecond {
			t.delay = t.cfg.BaseDelay
		}
	}
	if t.concurrency < t.cfg.MaxConcurrency {
		t.concurrency++
	}
}
