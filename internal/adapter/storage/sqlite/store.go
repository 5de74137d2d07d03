package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bnema/reel/internal/adapter/storage/sqlite/sqlitedb"
	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db      *sql.DB
	queries *sqlitedb.Queries
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
				"PRAGMA cache_size = -8000", // 8MB
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "reel.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:      db,
		queries: sqlitedb.New(db),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, v *domain.Video) error {
	options, err := json.Marshal(v.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	err = s.queries.InsertVideo(ctx, sqlitedb.InsertVideoParams{
		ID:           v.ID,
		SourceUrl:    v.SourceURL,
		Options:      string(options),
		Status:       string(v.Status),
		ErrorMessage: v.ErrorMessage,
		Attempts:     int64(v.Attempts),
		CreatedAt:    v.CreatedAt.UTC(),
		UpdatedAt:    v.UpdatedAt.UTC(),
	})
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("video %s: %w", v.ID, domain.ErrAlreadyExists)
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Video, error) {
	row, err := s.queries.GetVideo(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return videoFromRow(row)
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMsg string) error {
	var delta int64
	if status == domain.StatusProcessing {
		delta = 1
	}
	n, err := s.queries.UpdateVideoStatus(ctx, sqlitedb.UpdateVideoStatusParams{
		Status:       string(status),
		ErrorMessage: errMsg,
		AttemptDelta: delta,
		UpdatedAt:    time.Now().UTC(),
		ID:           id,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, id string, result *domain.ProcessedVideo) error {
	formats, err := json.Marshal(nonNil(result.Formats))
	if err != nil {
		return fmt.Errorf("encode formats: %w", err)
	}
	thumbnails, err := json.Marshal(nonNil(result.Thumbnails))
	if err != nil {
		return fmt.Errorf("encode thumbnails: %w", err)
	}
	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	n, err := s.queries.CompleteVideo(ctx, sqlitedb.CompleteVideoParams{
		Formats:          string(formats),
		Thumbnails:       string(thumbnails),
		Metadata:         string(metadata),
		Duration:         result.Duration,
		OriginalSize:     result.OriginalSize,
		ProcessingTimeMs: result.ProcessingTime,
		UpdatedAt:        time.Now().UTC(),
		ID:               id,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.ProcessingStatus) ([]*domain.Video, error) {
	rows, err := s.queries.ListVideosByStatus(ctx, string(status))
	if err != nil {
		return nil, err
	}
	return videoListFromRows(rows)
}

func (s *Store) ListStale(ctx context.Context, olderThan time.Time) ([]*domain.Video, error) {
	videos, err := s.ListByStatus(ctx, domain.StatusProcessing)
	if err != nil {
		return nil, err
	}
	stale := videos[:0]
	for _, v := range videos {
		if v.UpdatedAt.Before(olderThan) {
			stale = append(stale, v)
		}
	}
	return stale, nil
}

func (s *Store) CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error) {
	rows, err := s.queries.CountVideosByStatus(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.ProcessingStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.ProcessingStatus(row.Status)] = int(row.Total)
	}
	return counts, nil
}

// Helper conversions

func videoFromRow(row sqlitedb.Video) (*domain.Video, error) {
	v := &domain.Video{
		ID:             row.ID,
		SourceURL:      row.SourceUrl,
		Status:         domain.ProcessingStatus(row.Status),
		Duration:       row.Duration,
		OriginalSize:   row.OriginalSize,
		ProcessingTime: row.ProcessingTimeMs,
		ErrorMessage:   row.ErrorMessage,
		Attempts:       int(row.Attempts),
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}

	if err := json.Unmarshal([]byte(row.Options), &v.Options); err != nil {
		return nil, fmt.Errorf("decode options of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Formats), &v.Formats); err != nil {
		return nil, fmt.Errorf("decode formats of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Thumbnails), &v.Thumbnails); err != nil {
		return nil, fmt.Errorf("decode thumbnails of %s: %w", row.ID, err)
	}
	if row.Metadata != "" {
		var meta domain.SourceMetadata
		if err := json.Unmarshal([]byte(row.Metadata), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", row.ID, err)
		}
		v.Metadata = &meta
	}

	return v, nil
}

func videoListFromRows(rows []sqlitedb.Video) ([]*domain.Video, error) {
	result := make([]*domain.Video, 0, len(rows))
	for _, row := range rows {
		v, err := videoFromRow(row)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

var _ port.VideoStore = (*Store)(nil)
