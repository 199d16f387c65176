package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/refdrift/internal/dataset"
)

// RunStatus is the outcome of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned when a run ID has no ledger row.
var ErrRunNotFound = errors.New("run not found")

// Run is one compare invocation.
type Run struct {
	ID         string    `json:"id"`
	Version1   string    `json:"version1"`
	Version2   string    `json:"version2"`
	Notebooks  string    `json:"notebooks"`
	SaveDir    string    `json:"save_dir"`
	Installed1 string    `json:"installed1,omitempty"`
	Installed2 string    `json:"installed2,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`

	// Filled by ListRuns.
	Comparisons int `json:"comparisons"`
	Different   int `json:"different"`
}

// Comparison is one recorded artifact pair.
type Comparison struct {
	RunID  string         `json:"run_id"`
	Seq    int            `json:"seq"`
	Digest string         `json:"digest"`
	Report dataset.Report `json:"report"`
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// BeginRun records a new run in the running state.
func (s *Store) BeginRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, version1, version2, notebooks, save_dir, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Version1,
		r.Version2,
		r.Notebooks,
		r.SaveDir,
		formatTime(r.StartedAt),
		string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordInstalled stores the library versions the environment actually held
// for each side of a run.
func (s *Store) RecordInstalled(ctx context.Context, id string, installed1, installed2 string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET installed1 = ?, installed2 = ? WHERE id = ?
	`, installed1, installed2, id)
	if err != nil {
		return fmt.Errorf("record installed versions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record installed versions: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record installed versions for %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// FinishRun sets the final status of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, finished time.Time, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE id = ?
	`, string(status), formatTime(finished), errMsg, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// WriteComparison stores a report and its findings atomically and returns
// the report digest.
func (s *Store) WriteComparison(ctx context.Context, runID string, seq int, r dataset.Report) (string, error) {
	digest, err := r.Digest()
	if err != nil {
		return "", fmt.Errorf("write comparison: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write comparison: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO comparisons (run_id, seq, source_path, target_path, equal, digest)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, seq, r.Source, r.Target, r.Equal(), digest)
	if err != nil {
		return "", fmt.Errorf("write comparison: %w", err)
	}
	compID, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("write comparison: %w", err)
	}

	for i, f := range r.Findings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO findings (comparison_id, seq, kind, name, variable, missing_from)
			VALUES (?, ?, ?, ?, ?, ?)
		`, compID, i, string(f.Kind), f.Name, f.Variable, string(f.MissingFrom))
		if err != nil {
			return "", fmt.Errorf("write finding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write comparison: commit: %w", err)
	}
	return digest, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT r.id, r.version1, r.version2, r.notebooks, r.save_dir,
		       r.installed1, r.installed2, r.started_at, r.finished_at, r.status, r.error,
		       COUNT(c.id), COALESCE(SUM(CASE WHEN c.equal = 0 THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN comparisons c ON c.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.version1, r.version2, r.notebooks, r.save_dir,
		       r.installed1, r.installed2, r.started_at, r.finished_at, r.status, r.error,
		       COUNT(c.id), COALESCE(SUM(CASE WHEN c.equal = 0 THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN comparisons c ON c.run_id = r.id
		WHERE r.id = ?
		GROUP BY r.id
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		started, finished string
		status            string
	)
	if err := sc.Scan(&r.ID, &r.Version1, &r.Version2, &r.Notebooks, &r.SaveDir,
		&r.Installed1, &r.Installed2, &started, &finished, &status, &r.Error, &r.Comparisons, &r.Different); err != nil {
		return Run{}, err
	}
	r.Status = RunStatus(status)

	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return r, nil
}

// Comparisons returns a run's comparisons with their findings, in seq order.
func (s *Store) Comparisons(ctx context.Context, runID string) ([]Comparison, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, source_path, target_path, digest
		FROM comparisons
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read comparisons: %w", err)
	}

	var (
		comps []Comparison
		ids   []int64
	)
	for rows.Next() {
		var (
			id int64
			c  Comparison
		)
		if err := rows.Scan(&id, &c.Seq, &c.Report.Source, &c.Report.Target, &c.Digest); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read comparisons: %w", err)
		}
		c.RunID = runID
		comps = append(comps, c)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("read comparisons: %w", err)
	}
	rows.Close()

	for i, id := range ids {
		findings, err := s.findings(ctx, id)
		if err != nil {
			return nil, err
		}
		comps[i].Report.Findings = findings
	}
	return comps, nil
}

func (s *Store) findings(ctx context.Context, comparisonID int64) ([]dataset.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, name, variable, missing_from
		FROM findings
		WHERE comparison_id = ?
		ORDER BY seq ASC
	`, comparisonID)
	if err != nil {
		return nil, fmt.Errorf("read findings: %w", err)
	}
	defer rows.Close()

	var findings []dataset.Finding
	for rows.Next() {
		var kind, side string
		var f dataset.Finding
		if err := rows.Scan(&kind, &f.Name, &f.Variable, &side); err != nil {
			return nil, fmt.Errorf("read findings: %w", err)
		}
		f.Kind = dataset.Kind(kind)
		f.MissingFrom = dataset.Side(side)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
