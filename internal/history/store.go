// Package history persists processed-invoice records so users can review
// past uploads per entity. The store is optional: without database
// configuration the service runs stateless and every method on a nil Store
// is a no-op.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

// ErrNotFound is returned when no entry matches the requested id.
var ErrNotFound = errors.New("history entry not found")

type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open connects using DATABASE_URL or the DB_* variables. A nil Store with
// a nil error means no database is configured, which is a supported mode.
func Open(ctx context.Context) (*Store, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		host := os.Getenv("DB_HOST")
		user := os.Getenv("DB_USER")
		dbname := os.Getenv("DB_NAME")
		if host == "" || user == "" || dbname == "" {
			return nil, nil
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		databaseURL = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
			user, os.Getenv("DB_PASSWORD"), host, port, dbname)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, log: log.With().Str("component", "history").Logger()}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s.log.Info().Msg("history store ready")
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS invoice_history (
			id            uuid PRIMARY KEY,
			file_name     text NOT NULL,
			file_size     bigint NOT NULL DEFAULT 0,
			entity_id     text NOT NULL DEFAULT '1',
			processed_at  timestamptz NOT NULL DEFAULT now(),
			completed_at  timestamptz,
			extracted     jsonb,
			result        jsonb,
			document_url  text NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s == nil {
		return
	}
	s.pool.Close()
}

// Enabled reports whether persistence is configured.
func (s *Store) Enabled() bool { return s != nil }

// Save inserts an entry, assigning the id when empty.
func (s *Store) Save(ctx context.Context, entry *models.HistoryEntry) error {
	if s == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now()
	}

	extracted, err := json.Marshal(entry.Extracted)
	if err != nil {
		return err
	}
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO invoice_history (id, file_name, file_size, entity_id, processed_at, completed_at, extracted, result, document_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.FileName, entry.FileSize, entry.EntityID,
		entry.ProcessedAt, entry.CompletedAt, extracted, result, entry.DocumentURL,
	)
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}

// SetResult attaches the processing outcome to an existing entry and stamps
// completed_at. Called when the user confirms and the invoice is created.
func (s *Store) SetResult(ctx context.Context, id string, result *models.ProcessingResult) error {
	if s == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoice_history SET result = $2, completed_at = $3 WHERE id = $1`,
		id, payload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update history entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the newest entries for one entity.
func (s *Store) List(ctx context.Context, entityID string, limit int) ([]models.HistoryEntry, error) {
	if s == nil {
		return []models.HistoryEntry{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, file_name, file_size, entity_id, processed_at, completed_at,
		       COALESCE(extracted, 'null'), COALESCE(result, 'null'), document_url
		FROM invoice_history
		WHERE entity_id = $1
		ORDER BY processed_at DESC
		LIMIT $2`, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Get fetches one entry by id.
func (s *Store) Get(ctx context.Context, id string) (*models.HistoryEntry, error) {
	if s == nil {
		return nil, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, file_name, file_size, entity_id, processed_at, completed_at,
		       COALESCE(extracted, 'null'), COALESCE(result, 'null'), document_url
		FROM invoice_history WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

// Delete removes one entry by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM invoice_history WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	var extracted, result []byte
	if err := row.Scan(&entry.ID, &entry.FileName, &entry.FileSize, &entry.EntityID,
		&entry.ProcessedAt, &entry.CompletedAt, &extracted, &result, &entry.DocumentURL); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(extracted, &entry.Extracted); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(result, &entry.Result); err != nil {
		return nil, err
	}
	return &entry, nil
}
