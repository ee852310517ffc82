package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/verdict/internal/framework"
	"github.com/hyperengineering/verdict/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed decision database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// DB exposes the underlying handle for migrations tooling.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const decisionColumns = `id, owner_id, question, framework_id, data, step_index, status, version,
	summary, summary_status, created_at, updated_at, completed_at`

// CreateDecision stores a new decision at step 0.
func (s *SQLiteStore) CreateDecision(ctx context.Context, d types.NewDecision) (*types.Decision, error) {
	now := time.Now().UTC()
	dec := &types.Decision{
		ID:            ulid.Make().String(),
		OwnerID:       d.OwnerID,
		Question:      d.Question,
		FrameworkID:   d.FrameworkID,
		Data:          map[string]json.RawMessage{},
		StepIndex:     0,
		Status:        types.StatusInProgress,
		Version:       1,
		SummaryStatus: types.SummaryNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, owner_id, question, framework_id, data, step_index, status, version, summary_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, '{}', 0, ?, 1, ?, ?, ?)
	`, dec.ID, dec.OwnerID, dec.Question, dec.FrameworkID, dec.Status, dec.SummaryStatus,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}

	// Round-trip through the stored precision.
	dec.CreatedAt = dec.CreatedAt.Truncate(time.Second)
	dec.UpdatedAt = dec.CreatedAt
	return dec, nil
}

// GetDecision retrieves a decision by ID.
func (s *SQLiteStore) GetDecision(ctx context.Context, id string) (*types.Decision, error) {
	return getDecision(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDecision(ctx context.Context, q queryer, id string) (*types.Decision, error) {
	row := q.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id = ?`, id)
	d, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return d, nil
}

// ListDecisions returns the owner's decisions, newest first.
func (s *SQLiteStore) ListDecisions(ctx context.Context, ownerID string) ([]types.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// DeleteDecision removes a decision and, by cascade, its feedback.
func (s *SQLiteStore) DeleteDecision(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete decision: %w", err)
	}
	return requireRow(result)
}

// UpdateProgress writes new step state if the stored version still matches
// u.ExpectedVersion, incrementing the version. It returns ErrConflict when
// another write got there first.
func (s *SQLiteStore) UpdateProgress(ctx context.Context, u types.ProgressUpdate) (*types.Decision, error) {
	data := u.Data
	if data == nil {
		data = map[string]json.RawMessage{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal step data: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	var completedAt sql.NullString
	if u.Status == types.StatusCompleted {
		completedAt = sql.NullString{String: now, Valid: true}
	}
	summaryStatus := u.SummaryStatus
	if summaryStatus == "" {
		summaryStatus = types.SummaryNone
	}
	var leaseUntil sql.NullString
	if !u.SummaryLeaseUntil.IsZero() {
		leaseUntil = sql.NullString{String: formatTime(u.SummaryLeaseUntil), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE decisions
		SET data = ?, step_index = ?, status = ?, summary_status = ?, summary_lease_until = ?,
		    version = version + 1, updated_at = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ? AND version = ?
	`, string(dataJSON), u.StepIndex, u.Status, summaryStatus, leaseUntil, now, completedAt, u.ID, u.ExpectedVersion)
	if err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM decisions WHERE id = ?`, u.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("check decision: %w", err)
		}
		return nil, ErrConflict
	}

	d, err := getDecision(ctx, tx, u.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return d, nil
}

// SetSummary stores the generated summary and marks it complete.
func (s *SQLiteStore) SetSummary(ctx context.Context, id, summary string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE decisions
		SET summary = ?, summary_status = 'complete', summary_lease_until = NULL, updated_at = ?
		WHERE id = ?
	`, summary, now, id)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	return requireRow(result)
}

// GetPendingSummaries retrieves completed decisions still waiting for a
// summary. Decisions under an unexpired lease are skipped.
func (s *SQLiteStore) GetPendingSummaries(ctx context.Context, limit int) ([]types.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+decisionColumns+`
		FROM decisions
		WHERE summary_status = 'pending' AND status = 'completed'
		  AND (summary_lease_until IS NULL OR summary_lease_until <= ?)
		ORDER BY completed_at ASC, id ASC
		LIMIT ?
	`, formatTime(time.Now()), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending summaries: %w", err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// ClaimSummary takes the lease on a pending summary until the given time.
// It reports false when the summary is no longer pending or another
// holder's lease has not yet run out.
func (s *SQLiteStore) ClaimSummary(ctx context.Context, id string, until time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET summary_lease_until = ?
		WHERE id = ? AND summary_status = 'pending'
		  AND (summary_lease_until IS NULL OR summary_lease_until <= ?)
	`, formatTime(until), id, formatTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("claim summary: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReleaseSummary drops the lease so the retry worker can pick the summary
// up on its next pass.
func (s *SQLiteStore) ReleaseSummary(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET summary_lease_until = NULL WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("release summary: %w", err)
	}
	return requireRow(result)
}

// MarkSummaryFailed gives up on a decision's summary.
func (s *SQLiteStore) MarkSummaryFailed(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET summary_status = 'failed', summary_lease_until = NULL, updated_at = ? WHERE id = ?
	`, now, id)
	if err != nil {
		return fmt.Errorf("mark summary failed: %w", err)
	}
	return requireRow(result)
}

// CreateFeedback records feedback on an existing decision.
func (s *SQLiteStore) CreateFeedback(ctx context.Context, f types.NewFeedback) (*types.Feedback, error) {
	now := time.Now().UTC()
	fb := &types.Feedback{
		ID:         ulid.Make().String(),
		DecisionID: f.DecisionID,
		OwnerID:    f.OwnerID,
		Rating:     f.Rating,
		Comment:    f.Comment,
		CreatedAt:  now.Truncate(time.Second),
	}

	// Inserting through a SELECT leaves no row when the decision is gone.
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, decision_id, owner_id, rating, comment, created_at)
		SELECT ?, id, ?, ?, ?, ? FROM decisions WHERE id = ?
	`, fb.ID, fb.OwnerID, fb.Rating, fb.Comment, now.Format(time.RFC3339), fb.DecisionID)
	if err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}
	return fb, nil
}

// ListFeedback returns a decision's feedback, oldest first.
func (s *SQLiteStore) ListFeedback(ctx context.Context, decisionID string) ([]types.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, decision_id, owner_id, rating, comment, created_at
		FROM feedback
		WHERE decision_id = ?
		ORDER BY created_at ASC, id ASC
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []types.Feedback
	for rows.Next() {
		var fb types.Feedback
		var createdAt string
		if err := rows.Scan(&fb.ID, &fb.DecisionID, &fb.OwnerID, &fb.Rating, &fb.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			fb.CreatedAt = t
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// GetStats returns aggregate store statistics
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	var stats types.StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN summary_status = 'pending' THEN 1 ELSE 0 END), 0)
		FROM decisions
	`).Scan(&stats.DecisionCount, &stats.CompletedCount, &stats.PendingSummaries)
	if err != nil {
		return nil, fmt.Errorf("query decision stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&stats.FeedbackCount); err != nil {
		return nil, fmt.Errorf("query feedback stats: %w", err)
	}
	return &stats, nil
}

// formatTime renders t the way every timestamp column stores it, so that
// string comparison orders them.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDecisions(rows *sql.Rows) ([]types.Decision, error) {
	var out []types.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// scanDecision scans a row into a Decision, decoding the data column defensively.
func scanDecision(scanner interface{ Scan(...any) error }) (*types.Decision, error) {
	var d types.Decision
	var data, summary, completedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Question,
		&d.FrameworkID,
		&data,
		&d.StepIndex,
		&d.Status,
		&d.Version,
		&summary,
		&d.SummaryStatus,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Data = decodeStepData(d.FrameworkID, data.String)
	d.Summary = summary.String

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		d.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		d.UpdatedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			d.CompletedAt = &t
		}
	}
	return &d, nil
}

// decodeStepData reads the untyped data column. NULL, malformed or
// non-object values become an empty mapping, and keys the decision's
// framework does not declare are dropped.
func decodeStepData(frameworkID, raw string) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return out
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return out
	}

	fw, err := framework.Lookup(frameworkID)
	for k, v := range m {
		if err == nil && !fw.IsStepKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}
