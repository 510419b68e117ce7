package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/docintel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pipeline_reports (
	id            TEXT PRIMARY KEY,
	applicant_id  TEXT NOT NULL,
	document_type TEXT NOT NULL,
	status        TEXT NOT NULL,
	body          TEXT NOT NULL,
	finished_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decisions (
	id           TEXT PRIMARY KEY,
	applicant_id TEXT NOT NULL,
	label        TEXT NOT NULL,
	confidence   REAL NOT NULL DEFAULT 0,
	body         TEXT NOT NULL,
	decided_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reports_applicant ON pipeline_reports(applicant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_applicant ON decisions(applicant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_label ON decisions(label);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveReport(ctx context.Context, r *model.PipelineReport) error {
	if r == nil || r.ID == "" {
		return eris.New("sqlite: report without id")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipeline_reports (id, applicant_id, document_type, status, body, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, body = excluded.body, finished_at = excluded.finished_at`,
		r.ID, r.ApplicantID, string(r.DocumentType), string(r.Status), string(body), stamp(r.FinishedAt),
	)
	return eris.Wrapf(err, "sqlite: save report %s", r.ID)
}

func (s *SQLiteStore) ListReports(ctx context.Context, applicantID string) ([]model.PipelineReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM pipeline_reports WHERE applicant_id = ? ORDER BY finished_at DESC, id`,
		applicantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PipelineReport
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		var r model.PipelineReport
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, d *model.Decision) error {
	if d == nil || d.ID == "" {
		return eris.New("sqlite: decision without id")
	}
	body, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal decision")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, applicant_id, label, confidence, body, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET label = excluded.label, confidence = excluded.confidence, body = excluded.body`,
		d.ID, d.ApplicantID, string(d.Label), d.Confidence, string(body), stamp(d.DecidedAt),
	)
	return eris.Wrapf(err, "sqlite: save decision %s", d.ID)
}

func (s *SQLiteStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM decisions WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "decision %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get decision %s", id)
	}
	var d model.Decision
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal decision")
	}
	return &d, nil
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error) {
	query := `SELECT body FROM decisions WHERE 1=1`
	var args []any

	if filter.ApplicantID != "" {
		query += ` AND applicant_id = ?`
		args = append(args, filter.ApplicantID)
	}
	if filter.Label != "" {
		query += ` AND label = ?`
		args = append(args, string(filter.Label))
	}
	query += ` ORDER BY decided_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Decision
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		var d model.Decision
		if err := json.Unmarshal([]byte(body), &d); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal decision")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

// stamp returns t in UTC, or now when t is unset.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
