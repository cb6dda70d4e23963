package history

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateMerge(ctx context.Context, m *Merge) error
	GetMerge(ctx context.Context, id string) (*Merge, error)
	ListMerges(ctx context.Context, limit int) ([]*Merge, error)
	CountMerges(ctx context.Context) (int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateMerge(ctx context.Context, m *Merge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO merges (id, status, audio_filename, audio_bytes, output_bytes, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Status, nullString(m.AudioFilename), m.AudioBytes, m.OutputBytes,
		m.DurationMS, nullString(m.Error), m.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetMerge(ctx context.Context, id string) (*Merge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, audio_filename, audio_bytes, output_bytes, duration_ms, error, created_at
		FROM merges WHERE id = ?
	`, id)
	return r.scanMerge(row)
}

func (r *SQLiteRepository) scanMerge(row *sql.Row) (*Merge, error) {
	var m Merge
	var audioFilename, errMsg sql.NullString
	var createdAt string

	err := row.Scan(&m.ID, &m.Status, &audioFilename, &m.AudioBytes, &m.OutputBytes, &m.DurationMS, &errMsg, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.AudioFilename = audioFilename.String
	m.Error = errMsg.String
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &m, nil
}

func (r *SQLiteRepository) ListMerges(ctx context.Context, limit int) ([]*Merge, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, audio_filename, audio_bytes, output_bytes, duration_ms, error, created_at
		FROM merges ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var merges []*Merge
	for rows.Next() {
		var m Merge
		var audioFilename, errMsg sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Status, &audioFilename, &m.AudioBytes, &m.OutputBytes, &m.DurationMS, &errMsg, &createdAt); err != nil {
			return nil, err
		}
		m.AudioFilename = audioFilename.String
		m.Error = errMsg.String
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		merges = append(merges, &m)
	}
	return merges, rows.Err()
}

func (r *SQLiteRepository) CountMerges(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM merges").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
