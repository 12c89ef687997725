package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
	"github.com/rampellisaieshwar/GravityEdits/internal/jobs"
)

type Repository interface {
	SaveProject(ctx context.Context, p *edl.Project) error
	GetProject(ctx context.Context, name string) (*edl.Project, error)
	ListProjects(ctx context.Context) ([]ProjectSummary, error)
	DeleteProject(ctx context.Context, name string) error

	UpsertJob(ctx context.Context, j jobs.Job) error
	GetJob(ctx context.Context, id string) (*jobs.Job, error)
	ListJobs(ctx context.Context, project string, limit int) ([]jobs.Job, error)

	RecordBackup(ctx context.Context, b Backup) error
	ListBackups(ctx context.Context, project string) ([]Backup, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// SaveProject inserts or replaces the project keyed by its name. The
// original creation time survives replacement.
func (r *SQLiteRepository) SaveProject(ctx context.Context, p *edl.Project) error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("save project: %w: name is required", edl.ErrInvalidArgument)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal project %q: %w", p.Name, err)
	}
	now := r.now().UTC().Format(time.RFC3339Nano)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (name, data, clip_count, duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			clip_count = excluded.clip_count,
			duration = excluded.duration,
			updated_at = excluded.updated_at
	`, p.Name, string(data), len(p.EDL), p.TotalDuration(), now, now)
	return err
}

// GetProject returns nil, nil when no project has that name.
func (r *SQLiteRepository) GetProject(ctx context.Context, name string) (*edl.Project, error) {
	var data string
	err := r.db.QueryRowContext(ctx, "SELECT data FROM projects WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p edl.Project
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode project %q: %w", name, err)
	}
	p.ApplyDefaults()
	return &p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, clip_count, duration, created_at, updated_at
		FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectSummary
	for rows.Next() {
		var s ProjectSummary
		var createdAt, updatedAt string
		if err := rows.Scan(&s.Name, &s.ClipCount, &s.Duration, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt = parseTime(createdAt)
		s.UpdatedAt = parseTime(updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	return nil
}

func (r *SQLiteRepository) UpsertJob(ctx context.Context, j jobs.Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, project, status, progress, message, url, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			message = excluded.message,
			url = excluded.url,
			attempts = excluded.attempts,
			updated_at = excluded.updated_at
	`, j.ID, string(j.Kind), j.Project, string(j.State), j.Progress, j.Message, j.URL, j.Attempts,
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

const jobColumns = "id, kind, project, status, progress, message, url, attempts, created_at, updated_at"

// GetJob returns nil, nil for an unknown id.
func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs returns the newest jobs first. An empty project lists all.
func (r *SQLiteRepository) ListJobs(ctx context.Context, project string, limit int) ([]jobs.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE ? = '' OR project = ?
		ORDER BY created_at DESC LIMIT ?
	`, project, project, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) RecordBackup(ctx context.Context, b Backup) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backups (project, object_key, size, created_at) VALUES (?, ?, ?, ?)
	`, b.Project, b.ObjectKey, b.Size, formatTime(b.CreatedAt))
	return err
}

func (r *SQLiteRepository) ListBackups(ctx context.Context, project string) ([]Backup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project, object_key, size, created_at FROM backups
		WHERE project = ? ORDER BY id DESC
	`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Backup
	for rows.Next() {
		var b Backup
		var createdAt string
		if err := rows.Scan(&b.ID, &b.Project, &b.ObjectKey, &b.Size, &createdAt); err != nil {
			return nil, err
		}
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetConfig returns "" for a missing key.
func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (jobs.Job, error) {
	var j jobs.Job
	var kind, status, createdAt, updatedAt string
	err := s.Scan(&j.ID, &kind, &j.Project, &status, &j.Progress, &j.Message, &j.URL, &j.Attempts, &createdAt, &updatedAt)
	if err != nil {
		return jobs.Job{}, err
	}
	j.Kind = jobs.Kind(kind)
	j.State = jobs.State(status)
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return j, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}
