package report

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rafabd1/Nightshade/internal/core"
	"github.com/rafabd1/Nightshade/internal/utils"
)

const outcomesSchema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_at TEXT NOT NULL,
	run_status TEXT NOT NULL,
	code TEXT NOT NULL,
	origin TEXT NOT NULL,
	verdict TEXT NOT NULL,
	detail TEXT,
	latency_ms INTEGER,
	attempts INTEGER
);`

// SaveSQLite appends every outcome of a run to an SQLite results file,
// creating the file and schema on first use.
func SaveSQLite(path string, result core.RunResult) error {
	if err := utils.EnsureFilepathExists(path); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite file %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.Exec(outcomesSchema); err != nil {
		return fmt.Errorf("failed to create outcomes table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(
		"INSERT INTO outcomes (run_at, run_status, code, origin, verdict, detail, latency_ms, attempts) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	runAt := time.Now().UTC().Format(time.RFC3339)
	for _, verdict := range core.Verdicts() {
		for _, o := range result.Snapshot.Outcomes[verdict] {
			if _, err := stmt.Exec(
				runAt,
				string(result.Status),
				o.Candidate.Code,
				string(o.Candidate.Origin),
				string(o.Verdict),
				o.Detail,
				o.Latency.Milliseconds(),
				o.Attempts,
			); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert outcome for %s: %w", o.Candidate.Code, err)
			}
		}
	}
	return tx.Commit()
}
