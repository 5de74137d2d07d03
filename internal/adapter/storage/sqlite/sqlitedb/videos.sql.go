package sqlitedb

import (
	"context"
	"time"
)

const videoColumns = `id, source_url, options, status, formats, thumbnails, metadata, duration,
    original_size, processing_time_ms, error_message, attempts, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row scanner) (Video, error) {
	var i Video
	err := row.Scan(
		&i.ID,
		&i.SourceUrl,
		&i.Options,
		&i.Status,
		&i.Formats,
		&i.Thumbnails,
		&i.Metadata,
		&i.Duration,
		&i.OriginalSize,
		&i.ProcessingTimeMs,
		&i.ErrorMessage,
		&i.Attempts,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertVideo = `-- name: InsertVideo :exec
INSERT INTO videos (id, source_url, options, status, error_message, attempts, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertVideoParams struct {
	ID           string
	SourceUrl    string
	Options      string
	Status       string
	ErrorMessage string
	Attempts     int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) InsertVideo(ctx context.Context, arg InsertVideoParams) error {
	_, err := q.db.ExecContext(ctx, insertVideo,
		arg.ID,
		arg.SourceUrl,
		arg.Options,
		arg.Status,
		arg.ErrorMessage,
		arg.Attempts,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getVideo = `-- name: GetVideo :one
SELECT ` + videoColumns + `
FROM videos
WHERE id = ?
`

func (q *Queries) GetVideo(ctx context.Context, id string) (Video, error) {
	row := q.db.QueryRowContext(ctx, getVideo, id)
	return scanVideo(row)
}

const updateVideoStatus = `-- name: UpdateVideoStatus :execrows
UPDATE videos
SET status = ?, error_message = ?, attempts = attempts + ?, updated_at = ?
WHERE id = ?
`

type UpdateVideoStatusParams struct {
	Status       string
	ErrorMessage string
	AttemptDelta int64
	UpdatedAt    time.Time
	ID           string
}

func (q *Queries) UpdateVideoStatus(ctx context.Context, arg UpdateVideoStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateVideoStatus,
		arg.Status,
		arg.ErrorMessage,
		arg.AttemptDelta,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const completeVideo = `-- name: CompleteVideo :execrows
UPDATE videos
SET status = 'completed',
    formats = ?,
    thumbnails = ?,
    metadata = ?,
    duration = ?,
    original_size = ?,
    processing_time_ms = ?,
    error_message = '',
    updated_at = ?
WHERE id = ?
`

type CompleteVideoParams struct {
	Formats          string
	Thumbnails       string
	Metadata         string
	Duration         float64
	OriginalSize     int64
	ProcessingTimeMs int64
	UpdatedAt        time.Time
	ID               string
}

func (q *Queries) CompleteVideo(ctx context.Context, arg CompleteVideoParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeVideo,
		arg.Formats,
		arg.Thumbnails,
		arg.Metadata,
		arg.Duration,
		arg.OriginalSize,
		arg.ProcessingTimeMs,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listVideosByStatus = `-- name: ListVideosByStatus :many
SELECT ` + videoColumns + `
FROM videos
WHERE status = ?
ORDER BY created_at ASC
`

func (q *Queries) ListVideosByStatus(ctx context.Context, status string) ([]Video, error) {
	rows, err := q.db.QueryContext(ctx, listVideosByStatus, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Video
	for rows.Next() {
		i, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countVideosByStatus = `-- name: CountVideosByStatus :many
SELECT status, COUNT(*) AS total
FROM videos
GROUP BY status
`

type CountVideosByStatusRow struct {
	Status string
	Total  int64
}

func (q *Queries) CountVideosByStatus(ctx context.Context) ([]CountVideosByStatusRow, error) {
	rows, err := q.db.QueryContext(ctx, countVideosByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountVideosByStatusRow
	for rows.Next() {
		var i CountVideosByStatusRow
		if err := rows.Scan(&i.Status, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
