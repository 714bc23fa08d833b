package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/orsg/prisme/internal/history"
)

// HistoryRepo implements history.Store against PostgreSQL.
type HistoryRepo struct{ db *sql.DB }

// NewHistoryRepo creates a Postgres-backed history store.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// Open connects with lib/pq and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the history table. It is safe to run on every start.
func (r *HistoryRepo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS prisme_reports (
			id          UUID PRIMARY KEY,
			dataset     VARCHAR(200) NOT NULL,
			year        VARCHAR(20) NOT NULL,
			status      VARCHAR(20) NOT NULL DEFAULT 'invoked',
			filename    VARCHAR(500),
			error       TEXT,
			logs        TEXT[] NOT NULL DEFAULT '{}',
			created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			started_at  TIMESTAMP WITH TIME ZONE,
			finished_at TIMESTAMP WITH TIME ZONE
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate prisme_reports: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS prisme_reports_created_at_idx ON prisme_reports (created_at DESC)`)
	if err != nil {
		return fmt.Errorf("migrate prisme_reports index: %w", err)
	}
	return nil
}

func (r *HistoryRepo) Create(ctx context.Context, rec history.Record) error {
	if rec.Status == "" {
		rec.Status = history.StatusInvoked
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prisme_reports (id, dataset, year, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.Dataset, rec.Year, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create report record: %w", err)
	}
	return nil
}

func (r *HistoryRepo) MarkRunning(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE prisme_reports SET status = $2, started_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, id, string(history.StatusRunning))
	if err != nil {
		return fmt.Errorf("mark report running: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.exists(ctx, id)
	}
	return nil
}

func (r *HistoryRepo) Finish(ctx context.Context, id string, o history.Outcome) error {
	logs := o.Logs
	if logs == nil {
		logs = []string{}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE prisme_reports
		SET status = $2, filename = NULLIF($3, ''), error = NULLIF($4, ''), logs = $5, finished_at = NOW()
		WHERE id = $1
	`, id, string(o.Status), o.Filename, o.Error, pq.Array(logs))
	if err != nil {
		return fmt.Errorf("finish report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return history.ErrNotFound
	}
	return nil
}

const selectColumns = `
	SELECT id, dataset, year, status, COALESCE(filename,''), COALESCE(error,''),
	       logs, created_at, started_at, finished_at
	FROM prisme_reports`

func (r *HistoryRepo) List(ctx context.Context, limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []history.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *HistoryRepo) Get(ctx context.Context, id string) (history.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return history.Record{}, history.ErrNotFound
	}
	if err != nil {
		return history.Record{}, fmt.Errorf("get report: %w", err)
	}
	return rec, nil
}

func (r *HistoryRepo) exists(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM prisme_reports WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return history.ErrNotFound
	}
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (history.Record, error) {
	var rec history.Record
	var status string
	var logs pq.StringArray
	var started, finished sql.NullTime
	if err := s.Scan(&rec.ID, &rec.Dataset, &rec.Year, &status, &rec.Filename, &rec.Error,
		&logs, &rec.CreatedAt, &started, &finished); err != nil {
		return history.Record{}, err
	}
	rec.Status = history.Status(status)
	rec.Logs = []string(logs)
	if rec.Logs == nil {
		rec.Logs = []string{}
	}
	if started.Valid {
		t := started.Time
		rec.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}
