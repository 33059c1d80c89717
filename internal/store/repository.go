// Package store persists agent settings and the local clip history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vidslicer/vidslicer/internal/media"
)

type Repository interface {
	CreateClip(ctx context.Context, clip *media.Clip) error
	GetClip(ctx context.Context, id int64) (*media.Clip, error)
	ListClips(ctx context.Context, limit int) ([]media.Clip, error)
	CountClips(ctx context.Context) (int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// createdAtLayout is fixed width so created_at sorts chronologically as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// CreateClip inserts c and fills in its ID and CreatedAt.
func (r *SQLiteRepository) CreateClip(ctx context.Context, c *media.Clip) error {
	createdAt := r.now().UTC().Format(createdAtLayout)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (url, title, platform, thumbnail_url, format_label, start_time, end_time, duration, file_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.URL, c.Title, nullString(c.Platform), nullString(c.ThumbnailURL), c.FormatLabel,
		c.StartTime, c.EndTime, c.Duration, nullString(c.FileName), createdAt)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = createdAt
	return nil
}

func (r *SQLiteRepository) GetClip(ctx context.Context, id int64) (*media.Clip, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, url, title, platform, thumbnail_url, format_label, start_time, end_time, duration, file_name, created_at
		FROM clips WHERE id = ?
	`, id)

	c, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListClips returns clips newest first. Ties on created_at fall back to id.
func (r *SQLiteRepository) ListClips(ctx context.Context, limit int) ([]media.Clip, error) {
	if limit <= 0 {
		limit = media.MaxHistory
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, title, platform, thumbnail_url, format_label, start_time, end_time, duration, file_name, created_at
		FROM clips ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clips := make([]media.Clip, 0)
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, *c)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) CountClips(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clips").Scan(&count)
	return count, err
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
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClip(s scanner) (*media.Clip, error) {
	var c media.Clip
	var platform, thumbnail, fileName sql.NullString
	var endTime, duration sql.NullFloat64

	err := s.Scan(&c.ID, &c.URL, &c.Title, &platform, &thumbnail, &c.FormatLabel,
		&c.StartTime, &endTime, &duration, &fileName, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	c.Platform = platform.String
	c.ThumbnailURL = thumbnail.String
	c.FileName = fileName.String
	c.EndTime = endTime.Float64
	c.Duration = duration.Float64
	return &c, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
