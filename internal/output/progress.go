package output

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Tracker prints a periodic progress line to stderr while a run is active.
// On a terminal it rewrites one line in place; otherwise it emits a plain
// line at a slower cadence so logs stay readable.
type Tracker struct {
	total    int
	fetch    func() int
	interval time.Duration
	isTTY    bool

	start    time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTracker creates a progress tracker. total < 0 means the source size is
// unknown; fetch returns the current tested count.
func NewTracker(total int, fetch func() int) *Tracker {
	isTTY := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	interval := 2 * time.Second
	if !isTTY {
		interval = 15 * time.Second
	}
	return &Tracker{
		total:    total,
		fetch:    fetch,
		interval: interval,
		isTTY:    isTTY,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins printing in a background goroutine.
func (t *Tracker) Start() {
	t.start = time.Now()
	go func() {
		defer close(t.doneCh)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.print(false)
			case <-t.stopCh:
				t.print(true)
				return
			}
		}
	}()
}

// Stop prints the final line and waits for the goroutine to exit.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	<-t.doneCh
}

func (t *Tracker) print(final bool) {
	tested := t.fetch()
	elapsed := time.Since(t.start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(tested) / elapsed
	}

	var line string
	if t.total >= 0 {
		line = fmt.Sprintf("[*] Progress: %d/%d | Rate: %.1f req/s", tested, t.total, rate)
	} else {
		line = fmt.Sprintf("[*] Progress: %d tested | Rate: %.1f req/s", tested, rate)
	}

	if t.isTTY {
		fmt.Fprintf(os.Stderr, "\r\033[2K%s", line)
		if final {
			fmt.Fprintln(os.Stderr)
		}
	} else {
		fmt.Fprintln(os.Stderr, line)
	}
}
