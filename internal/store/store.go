package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/probelab/webprobe/internal/suite"
)

// ErrNotFound is returned when no run exists for the requested id.
var ErrNotFound = errors.New("run not found")

// Notification is one user-facing event derived from a finished run.
type Notification struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists runs, quality metrics, and notifications in SQLite. Writes
// for one run go through a single transaction so concurrent runs never leave
// interleaved partial rows.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS test_runs (
	run_id          TEXT PRIMARY KEY,
	url             TEXT NOT NULL,
	test_type       TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	started_at      TIMESTAMP,
	finished_at     TIMESTAMP,
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	total_scenarios INTEGER NOT NULL DEFAULT 0,
	passed          INTEGER NOT NULL DEFAULT 0,
	failed          INTEGER NOT NULL DEFAULT 0,
	success_rate    REAL NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	payload         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quality_metrics (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL REFERENCES test_runs(run_id),
	overall_score REAL NOT NULL,
	scores        TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notifications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at DESC);
`

// New opens (creating if needed) the SQLite database at path.
func New(path string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun upserts the run row keyed by run id, records its quality metrics,
// and emits the notifications the run's outcome warrants. Saving the same
// run id again replaces the run row rather than duplicating it.
func (s *Store) SaveRun(result *suite.RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO test_runs (
			run_id, url, test_type, status, started_at, finished_at,
			duration_ms, total_scenarios, passed, failed, success_rate, error, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			duration_ms = excluded.duration_ms,
			total_scenarios = excluded.total_scenarios,
			passed = excluded.passed,
			failed = excluded.failed,
			success_rate = excluded.success_rate,
			error = excluded.error,
			payload = excluded.payload`,
		result.RunID, result.URL, string(result.TestType), string(result.Status),
		result.StartedAt, result.FinishedAt, result.Duration.Milliseconds(),
		result.TotalScenarios, result.Passed, result.Failed, result.SuccessRate,
		result.Error, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if result.Quality != nil {
		scores, err := json.Marshal(result.Quality.Scores)
		if err != nil {
			return fmt.Errorf("failed to encode scores: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO quality_metrics (run_id, overall_score, scores) VALUES (?, ?, ?)`,
			result.RunID, result.Quality.Overall, string(scores),
		)
		if err != nil {
			return fmt.Errorf("failed to save quality metrics: %w", err)
		}
	}

	for _, n := range notificationsFor(result) {
		_, err = tx.Exec(
			`INSERT INTO notifications (run_id, type, message) VALUES (?, ?, ?)`,
			result.RunID, n.Type, n.Message,
		)
		if err != nil {
			return fmt.Errorf("failed to save notification: %w", err)
		}
	}

	return tx.Commit()
}

// notificationsFor derives the user-facing events one finished run produces.
func notificationsFor(result *suite.RunResult) []Notification {
	var out []Notification

	if result.Status == suite.StatusFailed {
		msg := fmt.Sprintf("test run %s failed", result.RunID)
		if result.Error != "" {
			msg = fmt.Sprintf("test run %s failed: %s", result.RunID, result.Error)
		}
		out = append(out, Notification{Type: "error", Message: msg})
	}

	if result.Quality != nil {
		score := result.Quality.Overall
		switch {
		case score < 70:
			out = append(out, Notification{
				Type:    "warning",
				Message: fmt.Sprintf("quality score %.1f for %s is below 70", score, result.URL),
			})
		case score >= 90:
			out = append(out, Notification{
				Type:    "success",
				Message: fmt.Sprintf("quality score %.1f for %s", score, result.URL),
			})
		default:
			out = append(out, Notification{
				Type:    "info",
				Message: fmt.Sprintf("quality score %.1f for %s", score, result.URL),
			})
		}
	}

	return out
}

// SaveError records a run-level failure message as an error notification.
func (s *Store) SaveError(runID, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO notifications (run_id, type, message) VALUES (?, 'error', ?)`,
		runID, message,
	)
	if err != nil {
		return fmt.Errorf("failed to save error: %w", err)
	}
	return nil
}

// GetRun loads a run by id, or ErrNotFound.
func (s *Store) GetRun(runID string) (*suite.RunResult, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM test_runs WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var result suite.RunResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode run payload: %w", err)
	}
	return &result, nil
}

// RecentRuns lists run ids with status, newest first.
func (s *Store) RecentRuns(limit int) ([]*suite.RunResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT payload FROM test_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var results []*suite.RunResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var result suite.RunResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, fmt.Errorf("failed to decode run payload: %w", err)
		}
		results = append(results, &result)
	}
	return results, rows.Err()
}

// Notifications lists stored notifications, newest first.
func (s *Store) Notifications(limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, run_id, type, message, created_at FROM notifications ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.RunID, &n.Type, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
