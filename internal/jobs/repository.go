package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context, limit int) ([]*Job, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	ActiveJobIDs(ctx context.Context) (map[string]struct{}, error)

	// ClaimJob moves a pending job to running. It reports false when
	// another worker got there first.
	ClaimJob(ctx context.Context, id string) (bool, error)
	UpdateJobStage(ctx context.Context, id, stage string) error
	CompleteJob(ctx context.Context, id string, outcome Outcome) error
	FailJob(ctx context.Context, id, stage, errorMsg string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const jobColumns = `id, status, stage, original_filename, audio_path, lyrics_path,
	output_name, segments, matched, tempo, error, created_at, updated_at, started_at, finished_at`

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	if j.Status == "" {
		j.Status = StatusPending
	}
	if j.Stage == "" {
		j.Stage = "idle"
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = j.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, stage, original_filename, audio_path, lyrics_path, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Status, j.Stage, j.OriginalFilename, j.AudioPath, j.LyricsPath, nullString(j.Error),
		j.CreatedAt.UTC().Format(timeLayout), j.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs WHERE status = 'pending' ORDER BY created_at ASC, rowid ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{
		StatusPending:   0,
		StatusRunning:   0,
		StatusCompleted: 0,
		StatusFailed:    0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *SQLiteRepository) ActiveJobIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM jobs WHERE status IN ('pending', 'running')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) ClaimJob(ctx context.Context, id string) (bool, error) {
	ts := now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'running', started_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, ts, ts, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *SQLiteRepository) UpdateJobStage(ctx context.Context, id, stage string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET stage = ?, updated_at = ? WHERE id = ?
	`, stage, now(), id)
	return err
}

func (r *SQLiteRepository) CompleteJob(ctx context.Context, id string, o Outcome) error {
	ts := now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', stage = 'done', output_name = ?, segments = ?,
			matched = ?, tempo = ?, error = NULL, updated_at = ?, finished_at = ?
		WHERE id = ?
	`, nullString(o.OutputName), o.Segments, o.Matched, o.Tempo, ts, ts, id)
	return err
}

func (r *SQLiteRepository) FailJob(ctx context.Context, id, stage, errorMsg string) error {
	ts := now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', stage = ?, error = ?, updated_at = ?, finished_at = ?
		WHERE id = ?
	`, stage, nullString(errorMsg), ts, ts, id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, key, value)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var outputName, errMsg, startedAt, finishedAt sql.NullString
	var tempo sql.NullFloat64
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Status, &j.Stage, &j.OriginalFilename, &j.AudioPath, &j.LyricsPath,
		&outputName, &j.Segments, &j.Matched, &tempo, &errMsg, &createdAt, &updatedAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	j.OutputName = outputName.String
	j.Tempo = tempo.Float64
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	j.StartedAt = parseNullTime(startedAt)
	j.FinishedAt = parseNullTime(finishedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// datetime('now') format
		t, _ = time.Parse(time.DateTime, s)
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
