package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafabd1/Nightshade/internal/config"
	"github.com/rafabd1/Nightshade/internal/input"
	"github.com/rafabd1/Nightshade/internal/networking"
	"github.com/rafabd1/Nightshade/internal/utils"
)

func testConfig(target string) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Target = target
	cfg.SessionCookieValue = "test-session"
	cfg.CSRFToken = "test-csrf"
	cfg.Concurrency = 3
	cfg.BaseDelay = 0
	cfg.MaxDelay = 100 * time.Millisecond
	cfg.JitterMax = 0
	cfg.RequestTimeout = 5 * time.Second
	cfg.MaxRetries = 2
	return cfg
}

func newTestScheduler(t *testing.T, cfg *config.Config, source input.Source) *Scheduler {
	t.Helper()
	logger := utils.NewDefaultLogger(utils.LevelError, true, true)
	session, err := networking.NewSessionContext(cfg)
	require.NoError(t, err)
	client, err := networking.NewClient(session, cfg.RequestTimeout, logger)
	require.NoError(t, err)
	throttle := NewThrottle(ThrottleConfig{
		BaseDelay:        cfg.BaseDelay,
		MaxDelay:         cfg.MaxDelay,
		JitterMax:        cfg.JitterMax,
		BlockThreshold:   cfg.BlockThreshold,
		TimeoutThreshold: cfg.TimeoutThreshold,
		MaxConcurrency:   cfg.Concurrency,
		Disabled:         cfg.NoThrottle,
	})
	return NewScheduler(cfg, client, NewClassifier(config.DefaultMarkerRules()), throttle, source, logger)
}

// redeemHandler answers like a typical redemption-check endpoint, keyed on
// the submitted code.
func redeemHandler(responses map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		code := r.PostFormValue("voucher")
		body, ok := responses[code]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestRunStopsOnFirstSuccess(t *testing.T) {
	server := httptest.NewServer(redeemHandler(map[string]string{
		"AAA": `{"success": false, "message": "not known in our database"}`,
		"BBB": `{"success": false, "message": "not known in our database"}`,
		"CCC": `{"success": true, "discount": 100}`,
	}))
	defer server.Close()

	source := input.NewSliceSource([]string{"AAA", "BBB", "CCC"}, input.OriginWordlist)
	sched := newTestScheduler(t, testConfig(server.URL), source)

	result, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, []string{"CCC"}, result.Snapshot.Tokens(VerdictSuccess))
	assert.GreaterOrEqual(t, result.Snapshot.Tested, 1)
	assert.LessOrEqual(t, result.Snapshot.Tested, 3)
}

func TestRunCompletesAndPartitionsOutcomes(t *testing.T) {
	server := httptest.NewServer(redeemHandler(map[string]string{
		"USED": `{"success": false, "message": "This code has already been used"}`,
		"EXPD": `{"success": false, "message": "This voucher has expired"}`,
		"ODD":  `<html>unexpected</html>`,
	}))
	defer server.Close()

	codes := []string{"USED", "EXPD", "ODD", "MISSING"}
	source := input.NewSliceSource(codes, input.OriginWordlist)
	sched := newTestScheduler(t, testConfig(server.URL), source)

	result, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, len(codes), result.Snapshot.Tested)

	// Every candidate lands in exactly one verdict list.
	total := 0
	for _, list := range result.Snapshot.Outcomes {
		total += len(list)
	}
	assert.Equal(t, result.Snapshot.Tested, total)
	assert.Equal(t, []string{"USED"}, result.Snapshot.Tokens(VerdictUsed))
	assert.Equal(t, []string{"EXPD"}, result.Snapshot.Tokens(VerdictExpired))
	assert.Equal(t, []string{"ODD"}, result.Snapshot.Tokens(VerdictUnknown))
	assert.Equal(t, []string{"MISSING"}, result.Snapshot.Tokens(VerdictNotFound))
}

func TestRunRetriesTransientErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			panic(http.ErrAbortHandler) // drop the connection
		}
		_, _ = w.Write([]byte(`{"success": false, "message": "expired"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Concurrency = 1
	source := input.NewSliceSource([]string{"AAA"}, input.OriginWordlist)
	sched := newTestScheduler(t, cfg, source)

	result, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.Snapshot.Outcomes[VerdictExpired], 1)
	outcome := result.Snapshot.Outcomes[VerdictExpired][0]
	assert.Equal(t, "AAA", outcome.Candidate.Code)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 1, result.Snapshot.Tested, "retries must not produce extra outcomes")
}

func TestRunExhaustedRetriesRecordError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Concurrency = 1
	source := input.NewSliceSource([]string{"AAA"}, input.OriginWordlist)
	sched := newTestScheduler(t, cfg, source)

	result, err := sched.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Snapshot.Outcomes[VerdictError], 1)
	assert.Equal(t, cfg.MaxRetries+1, result.Snapshot.Outcomes[VerdictError][0].Attempts)
}

func TestRunTerminatesWithParkedWorkers(t *testing.T) {
	// A hostile endpoint halves concurrency down to one worker; the
	// parked workers must still exit once that worker drains the source.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Concurrency = 3
	cfg.BlockThreshold = 1
	cfg.MaxDelay = 10 * time.Millisecond
	source := input.NewSliceSource([]string{"AAA", "BBB", "CCC", "DDD", "EEE"}, input.OriginWordlist)
	sched := newTestScheduler(t, cfg, source)

	type runReturn struct {
		result RunResult
		err    error
	}
	done := make(chan runReturn, 1)
	go func() {
		result, err := sched.Run(context.Background())
		done <- runReturn{result, err}
	}()

	select {
	case ret := <-done:
		require.NoError(t, ret.err)
		assert.Equal(t, StatusCompleted, ret.result.Status)
		assert.Equal(t, 5, ret.result.Snapshot.Tested)
		assert.Len(t, ret.result.Snapshot.Outcomes[VerdictLimited], 5)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the source was exhausted")
	}
}

func TestRunSnapshotMatchesAggregator(t *testing.T) {
	server := httptest.NewServer(redeemHandler(map[string]string{
		"AAA": `{"success": false, "message": "expired"}`,
	}))
	defer server.Close()

	source := input.NewSliceSource([]string{"AAA", "BBB"}, input.OriginWordlist)
	sched := newTestScheduler(t, testConfig(server.URL), source)

	result, err := sched.Run(context.Background())
	require.NoError(t, err)

	// With no candidates pending, the returned snapshot and any later
	// snapshot of the same run agree exactly.
	assert.Equal(t, result.Snapshot, sched.Aggregator().Snapshot())
}

func TestRunEmptySource(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	sched := newTestScheduler(t, testConfig(server.URL), input.NewSliceSource(nil, input.OriginWordlist))
	result, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 0, result.Snapshot.Tested)
	assert.Equal(t, int32(0), requests.Load())
}

func TestRunAbortsOnCancelledContext(t *testing.T) {
	server := httptest.NewServer(redeemHandler(nil))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.BaseDelay = 50 * time.Millisecond
	source := input.NewSliceSource([]string{"AAA", "BBB", "CCC"}, input.OriginWordlist)
	sched := newTestScheduler(t, cfg, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := sched.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusAborted, result.Status)
	assert.Equal(t, 0, result.Snapshot.Tested)
}

func TestValidateSession(t *testing.T) {
	server := httptest.NewServer(redeemHandler(map[string]string{
		"CONTROL": `{"success": false, "message": "This code has already been used"}`,
	}))

	cfg := testConfig(server.URL)
	cfg.ControlToken = "control" // upper-cased by the session context
	sched := newTestScheduler(t, cfg, input.NewSliceSource(nil, input.OriginWordlist))

	live, cls := sched.ValidateSession(context.Background())
	assert.True(t, live)
	assert.Equal(t, VerdictUsed, cls.Verdict)

	// A dead endpoint makes the session check fail and the run abort.
	server.Close()
	live, cls = sched.ValidateSession(context.Background())
	assert.False(t, live)
	assert.Equal(t, VerdictError, cls.Verdict)

	result, err := sched.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StatusSessionInvalid, result.Status)
	assert.Equal(t, 0, result.Snapshot.Tested)
}
