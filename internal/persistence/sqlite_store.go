// Package persistence caches fetched transcripts in SQLite so a link is only
// sent to the AI service once per TTL.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/linklingua/internal/transcript"
	_ "modernc.org/sqlite"
)

// DefaultTTL applies when an entry has no expiry of its own.
const DefaultTTL = 7 * 24 * time.Hour

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		// embed.FS paths always use forward slashes
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// CacheKey normalizes a link so trivially different spellings share an entry.
func CacheKey(rawURL string) string {
	return strings.TrimRight(strings.TrimSpace(rawURL), "/")
}

func (s *SQLiteStore) PutTranscript(ctx context.Context, entry TranscriptCacheEntry) error {
	if entry.CacheKey == "" {
		return fmt.Errorf("cache key is required")
	}
	payload, err := json.Marshal(entry.Set)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	updatedAt := entry.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	expiresAt := entry.ExpiresAt.UTC()
	if expiresAt.IsZero() {
		expiresAt = updatedAt.Add(DefaultTTL)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO transcript_cache (
			cache_key, video_id, kind, model, sentence_count, payload_json, expires_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			video_id=excluded.video_id,
			kind=excluded.kind,
			model=excluded.model,
			sentence_count=excluded.sentence_count,
			payload_json=excluded.payload_json,
			expires_at=excluded.expires_at,
			updated_at=excluded.updated_at`,
		entry.CacheKey,
		entry.Set.VideoID,
		entry.Set.Kind,
		entry.Model,
		len(entry.Set.Sentences),
		string(payload),
		expiresAt,
		updatedAt,
	)
	return err
}

// GetTranscript returns the entry for key unless it has expired at now.
func (s *SQLiteStore) GetTranscript(ctx context.Context, cacheKey string, now time.Time) (transcript.Set, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT payload_json
		 FROM transcript_cache
		 WHERE cache_key = ? AND expires_at > ?`,
		cacheKey,
		now.UTC(),
	)
	var payloadJSON string
	if err := row.Scan(&payloadJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transcript.Set{}, false, nil
		}
		return transcript.Set{}, false, err
	}
	var set transcript.Set
	if err := json.Unmarshal([]byte(payloadJSON), &set); err != nil {
		return transcript.Set{}, false, fmt.Errorf("decode cached transcript: %w", err)
	}
	return set, true, nil
}

func (s *SQLiteStore) ListTranscripts(ctx context.Context) ([]TranscriptSummary, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT cache_key, video_id, kind, model, sentence_count, expires_at, updated_at
		 FROM transcript_cache
		 ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]TranscriptSummary, 0)
	for rows.Next() {
		var item TranscriptSummary
		if err := rows.Scan(
			&item.CacheKey,
			&item.VideoID,
			&item.Kind,
			&item.Model,
			&item.SentenceCount,
			&item.ExpiresAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) DeleteTranscript(ctx context.Context, cacheKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transcript_cache WHERE cache_key = ?`, cacheKey)
	return err
}

// DeleteExpiredTranscripts removes rows whose expires_at is not after now.
func (s *SQLiteStore) DeleteExpiredTranscripts(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcript_cache WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
