package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rafabd1/Nightshade/internal/config"
	"github.com/rafabd1/Nightshade/internal/input"
	"github.com/rafabd1/Nightshade/internal/networking"
	"github.com/rafabd1/Nightshade/internal/utils"
)

// parkInterval is how long a worker sleeps before re-checking a shrunken
// concurrency bound.
const parkInterval = 250 * time.Millisecond

// RunStatus distinguishes how a run ended. Early terminations still carry a
// complete snapshot of everything recorded so far.
type RunStatus string

const (
	StatusCompleted      RunStatus = "completed"
	StatusSuccess        RunStatus = "success"
	StatusAborted        RunStatus = "aborted"
	StatusSessionInvalid RunStatus = "session_invalid"
)

// RunResult is what a finished (or aborted) run hands back to the caller.
type RunResult struct {
	Status   RunStatus
	Snapshot Snapshot
	Duration time.Duration
}

// Scheduler wires the candidate source, throttle, classifier and aggregator
// into a bounded worker pool and owns the run's cancellation signal.
type Scheduler struct {
	cfg        *config.Config
	client     *networking.Client
	classifier *Classifier
	throttle   *Throttle
	source     input.Source
	agg        *Aggregator
	logger     utils.Logger

	// drained is closed by the first worker that observes an exhausted
	// source, so throttle-parked workers do not wait for work that can
	// never arrive.
	drainOnce sync.Once
	drained   chan struct{}
}

// NewScheduler creates a Scheduler. The client is the template every worker
// clones its transport from.
func NewScheduler(cfg *config.Config, client *networking.Client, classifier *Classifier, throttle *Throttle, source input.Source, logger utils.Logger) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		client:     client,
		classifier: classifier,
		throttle:   throttle,
		source:     source,
		agg:        NewAggregator(),
		logger:     logger,
		drained:    make(chan struct{}),
	}
}

// Aggregator exposes the result store for progress feedback and reporting.
func (s *Scheduler) Aggregator() *Aggregator {
	return s.agg
}

// ValidateSession issues a single probe with the control token and reports
// whether the session credentials are live, plus the verdict for diagnostics.
// Any classified verdict counts as live; only transport failure does not.
func (s *Scheduler) ValidateSession(ctx context.Context) (bool, Classification) {
	control := s.client.Session().ControlToken()
	resp := s.client.ProbeToken(ctx, control)
	if resp.Err != nil {
		return false, s.classifier.ClassifyError(resp.Err)
	}
	cls := s.classifier.Classify(resp.StatusCode, resp.Body, resp.Header)
	return cls.Verdict != VerdictError, cls
}

// Run validates the session, runs the worker pool until the source is
// exhausted, a SUCCESS is recorded, or ctx is cancelled, and returns the
// final result set. Success- and abort-driven shutdown share one
// cooperative cancellation path; only the returned status differs.
func (s *Scheduler) Run(ctx context.Context) (RunResult, error) {
	start := time.Now()

	if s.client.Session().ControlToken() != "" {
		live, cls := s.ValidateSession(ctx)
		if !live {
			s.logger.Errorf("Session validation failed: %s", cls.Detail)
			return RunResult{Status: StatusSessionInvalid, Snapshot: s.agg.Snapshot(), Duration: time.Since(start)},
				fmt.Errorf("session validation failed: %s", cls.Detail)
		}
		s.logger.Infof("Session is live (control verdict: %s)", cls.Verdict)
	} else {
		s.logger.Warnf("No control token configured, skipping session validation.")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First SUCCESS cancels the run; workers observe it at their next
	// loop check.
	go func() {
		select {
		case <-s.agg.SuccessSignal():
			cancel()
		case <-runCtx.Done():
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go s.worker(runCtx, i, &wg)
	}
	wg.Wait()

	status := StatusCompleted
	switch {
	case s.agg.Found():
		status = StatusSuccess
	case ctx.Err() != nil:
		status = StatusAborted
	}

	return RunResult{Status: status, Snapshot: s.agg.Snapshot(), Duration: time.Since(start)}, nil
}

// worker is one pool member. A worker whose index is at or beyond the
// throttle's current concurrency parks until the bound recovers, the
// source drains, or the run is cancelled; in-flight probes always run to
// completion before cancellation is observed. Worker 0 is never parked,
// so the source always drains eventually.
func (s *Scheduler) worker(ctx context.Context, id int, wg *sync.WaitGroup) {
	defer wg.Done()

	client, err := s.client.Clone()
	if err != nil {
		s.logger.Errorf("[Worker %d] Failed to clone probe client: %v", id, err)
		return
	}
	defer client.CloseIdleConnections()

	for {
		if ctx.Err() != nil {
			return
		}
		if id >= s.throttle.Concurrency() {
			select {
			case <-s.drained:
				s.logger.Debugf("[Worker %d] Source drained while parked, exiting.", id)
				return
			default:
			}
			if !sleepCtx(ctx, parkInterval) {
				return
			}
			continue
		}

		candidate, ok := s.source.Next()
		if !ok {
			s.drainOnce.Do(func() { close(s.drained) })
			s.logger.Debugf("[Worker %d] Source exhausted, exiting.", id)
			return
		}

		outcome, ok := s.probeCandidate(ctx, client, candidate)
		if !ok {
			return
		}
		s.agg.Record(outcome)
		s.logOutcome(id, outcome)
	}
}

// probeCandidate runs the throttle-gated probe for one candidate, retrying
// transient transport errors up to the configured cap. It reports ok=false
// when cancellation interrupted the pre-probe wait, in which case nothing is
// recorded for the candidate.
func (s *Scheduler) probeCandidate(ctx context.Context, client *networking.Client, candidate input.Candidate) (ProbeOutcome, bool) {
	var cls Classification
	var latency time.Duration
	attempts := 0

	for {
		attempts++
		if !sleepCtx(ctx, s.throttle.BeforeProbe()) {
			return ProbeOutcome{}, false
		}

		// Deliberately not the run context: an in-flight probe finishes
		// its network wait instead of being torn down mid-request.
		resp := client.ProbeToken(context.Background(), candidate.Code)
		latency = resp.Latency

		if resp.Err != nil {
			cls = s.classifier.ClassifyError(resp.Err)
			s.throttle.AfterProbe(cls)
			if attempts <= s.cfg.MaxRetries {
				s.logger.Debugf("Transient error for %s (attempt %d/%d): %s", candidate.Code, attempts, s.cfg.MaxRetries+1, cls.Detail)
				continue
			}
			break
		}

		cls = s.classifier.Classify(resp.StatusCode, resp.Body, resp.Header)
		s.throttle.AfterProbe(cls)
		break
	}

	return ProbeOutcome{
		Candidate: candidate,
		Verdict:   cls.Verdict,
		Detail:    cls.Detail,
		Latency:   latency,
		Attempts:  attempts,
	}, true
}

func (s *Scheduler) logOutcome(workerID int, outcome ProbeOutcome) {
	switch outcome.Verdict {
	case VerdictSuccess:
		s.logger.Infof("[Worker %d] VALID CODE FOUND: %s (%s)", workerID, outcome.Candidate.Code, outcome.Detail)
	case VerdictExpired:
		s.logger.Infof("[Worker %d] Expired but valid format: %s", workerID, outcome.Candidate.Code)
	case VerdictUsed:
		s.logger.Infof("[Worker %d] Already redeemed: %s", workerID, outcome.Candidate.Code)
	case VerdictLimited:
		s.logger.Warnf("[Worker %d] Limited/blocked for %s: %s (throttle: %+v)", workerID, outcome.Candidate.Code, outcome.Detail, s.throttle.State())
	case VerdictUnknown:
		s.logger.Warnf("[Worker %d] Unknown response for %s: %s", workerID, outcome.Candidate.Code, outcome.Detail)
	case VerdictError:
		s.logger.Debugf("[Worker %d] Error for %s after %d attempts: %s", workerID, outcome.Candidate.Code, outcome.Attempts, outcome.Detail)
	default:
		s.logger.Debugf("[Worker %d] %s: %s", workerID, outcome.Verdict, outcome.Candidate.Code)
	}
}

// sleepCtx waits for d or until ctx is cancelled; it returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
