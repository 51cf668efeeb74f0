package core

import (
	"sync"
	"time"

	"github.com/rafabd1/Nightshade/internal/input"
)

// ProbeOutcome is the final, recorded result for one candidate. Attempts
// counts every issued probe including transient-error retries.
type ProbeOutcome struct {
	Candidate input.Candidate
	Verdict   Verdict
	Detail    string
	Latency   time.Duration
	Attempts  int
}

// Snapshot is a consistent point-in-time copy of the result set: Tested
// always equals the sum of all verdict list lengths.
type Snapshot struct {
	Tested   int
	Outcomes map[Verdict][]ProbeOutcome
}

// Tokens returns the candidate codes recorded under a verdict, in order.
func (s Snapshot) Tokens(v Verdict) []string {
	outcomes := s.Outcomes[v]
	tokens := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		tokens = append(tokens, o.Candidate.Code)
	}
	return tokens
}

// Aggregator is the thread-safe categorized store of probe outcomes. The
// first SUCCESS recorded fires the success signal exactly once; racing
// workers observing it later are a no-op.
type Aggregator struct {
	mu       sync.Mutex
	outcomes map[Verdict][]ProbeOutcome
	tested   int

	successOnce sync.Once
	successCh   chan struct{}
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes:  make(map[Verdict][]ProbeOutcome),
		successCh: make(chan struct{}),
	}
}

// Record stores an outcome. The verdict list append and the tested increment
// are one critical section, so observers never see them out of step.
func (a *Aggregator) Record(outcome ProbeOutcome) {
	a.mu.Lock()
	a.outcomes[outcome.Verdict] = append(a.outcomes[outcome.Verdict], outcome)
	a.tested++
	a.mu.Unlock()

	if outcome.Verdict == VerdictSuccess {
		a.successOnce.Do(func() { close(a.successCh) })
	}
}

// SuccessSignal is closed when the first SUCCESS outcome is recorded.
func (a *Aggregator) SuccessSignal() <-chan struct{} {
	return a.successCh
}

// Found reports whether a SUCCESS outcome has been recorded.
func (a *Aggregator) Found() bool {
	select {
	case <-a.successCh:
		return true
	default:
		return false
	}
}

// Tested returns the number of recorded outcomes.
func (a *Aggregator) Tested() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tested
}

// Snapshot returns a deep copy of the current state. It holds the lock only
// for the copy, so it cannot block indefinitely behind records.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := Snapshot{
		Tested:   a.tested,
		Outcomes: make(map[Verdict][]ProbeOutcome, len(a.outcomes)),
	}
	for verdict, list := range a.outcomes {
		copied := make([]ProbeOutcome, len(list))
		copy(copied, list)
		out.Outcomes[verdict] = copied
	}
	return out
}
