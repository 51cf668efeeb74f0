package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rafabd1/Nightshade/internal/core"
)

// Report is the serializable shape of a finished run: each verdict name
// mapped to its token list, plus the total tested count and run status.
type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Status      string              `json:"status"`
	Tested      int                 `json:"tested"`
	Duration    string              `json:"duration"`
	Results     map[string][]string `json:"results"`
}

// Reporter renders run results to a file or stdout.
type Reporter struct{}

// NewReporter creates a new Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Build converts a run result into its serializable report.
func (r *Reporter) Build(result core.RunResult) Report {
	results := make(map[string][]string, len(core.Verdicts()))
	for _, verdict := range core.Verdicts() {
		results[string(verdict)] = result.Snapshot.Tokens(verdict)
	}
	return Report{
		GeneratedAt: time.Now(),
		Status:      string(result.Status),
		Tested:      result.Snapshot.Tested,
		Duration:    result.Duration.Round(time.Millisecond).String(),
		Results:     results,
	}
}

// Generate writes the report in the requested format ("json" or "text").
// An empty outputPath writes to stdout.
func (r *Reporter) Generate(result core.RunResult, outputPath string, format string) error {
	var out io.Writer = os.Stdout
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer file.Close()
		out = file
	}

	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r.Build(result))
	case "text":
		return r.writeText(out, result)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func (r *Reporter) writeText(out io.Writer, result core.RunResult) error {
	fmt.Fprintf(out, "Run status: %s\n", result.Status)
	fmt.Fprintf(out, "Total tested: %d (in %s)\n", result.Snapshot.Tested, result.Duration.Round(time.Millisecond))
	for _, verdict := range core.Verdicts() {
		outcomes := result.Snapshot.Outcomes[verdict]
		if len(outcomes) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s (%d):\n", verdict, len(outcomes))
		for _, o := range outcomes {
			if _, err := fmt.Fprintf(out, "  %s  [%s, %d attempt(s), %s]\n",
				o.Candidate.Code, o.Candidate.Origin, o.Attempts, o.Latency.Round(time.Millisecond)); err != nil {
				return err
			}
		}
	}
	return nil
}
