package internal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// Kind separates the values a Store keeps
type Kind string

const (
	KindTranscript Kind = "transcript"
	KindMetadata   Kind = "metadata"
	KindSummary    Kind = "summary"
)

// Store is a small key-value cache for transcripts, metadata and summaries
type Store interface {
	Get(ctx context.Context, kind Kind, key string) ([]byte, bool, error)
	Put(ctx context.Context, kind Kind, key string, value []byte) error
	Close() error
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%x", hash[:12])
}

// OpenStore creates the store selected by cache_backend
func OpenStore(ctx context.Context, config *Config) (Store, error) {
	switch config.CacheBackend {
	case "", "file":
		return NewFileStore(config.TranscriptsDir), nil
	case "sqlite":
		return NewSQLiteStore(ctx, config.SQLitePath, config.CacheTTL)
	case "redis":
		return NewRedisStore(ctx, config.RedisURL, config.CacheTTL)
	case "none":
		return NopStore{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend: %s", config.CacheBackend)
}

// FileStore keeps entries as files: <id>.txt, <id>.meta.json and summaries/<key>.md
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(kind Kind, key string) (string, error) {
	if key == "" || filepath.Base(key) != key || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid cache key: %q", key)
	}
	switch kind {
	case KindTranscript:
		return filepath.Join(s.dir, key+".txt"), nil
	case KindMetadata:
		return filepath.Join(s.dir, key+".meta.json"), nil
	case KindSummary:
		return filepath.Join(s.dir, "summaries", key+".md"), nil
	}
	return "", fmt.Errorf("unknown cache kind: %s", kind)
}

func (s *FileStore) Get(_ context.Context, kind Kind, key string) ([]byte, bool, error) {
	p, err := s.path(kind, key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached %s: %w", kind, err)
	}
	return data, true, nil
}

func (s *FileStore) Put(_ context.Context, kind Kind, key string, value []byte) error {
	p, err := s.path(kind, key)
	if err != nil {
		return err
	}
	if err := EnsureDirs(filepath.Dir(p)); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(p, value, 0644); err != nil {
		return fmt.Errorf("saving %s: %w", kind, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

const sqliteSchema = `CREATE TABLE IF NOT EXISTS entries (
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (kind, key)
)`

// SQLiteStore keeps entries in a single sqlite table
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteStore(ctx context.Context, path string, ttl time.Duration) (*SQLiteStore, error) {
	if err := EnsureDirs(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache table: %w", err)
	}
	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, kind Kind, key string) ([]byte, bool, error) {
	var value []byte
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, created_at FROM entries WHERE kind = ? AND key = ?`,
		string(kind), key).Scan(&value, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cache: %w", err)
	}
	if s.ttl > 0 && s.now().Sub(time.Unix(createdAt, 0)) > s.ttl {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, kind Kind, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (kind, key, value, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, key) DO UPDATE SET value = excluded.value, created_at = excluded.created_at`,
		string(kind), key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("saving %s: %w", kind, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RedisStore keeps entries under utube:<kind>:<key> with an optional TTL
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func redisKey(kind Kind, key string) string {
	return appName + ":" + string(kind) + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, kind Kind, key string) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, redisKey(kind, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}
	return data, true, nil
}

func (s *RedisStore) Put(ctx context.Context, kind Kind, key string, value []byte) error {
	if err := s.rdb.Set(ctx, redisKey(kind, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving %s: %w", kind, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// NopStore disables caching
type NopStore struct{}

func (NopStore) Get(context.Context, Kind, string) ([]byte, bool, error) { return nil, false, nil }
func (NopStore) Put(context.Context, Kind, string, []byte) error         { return nil }
func (NopStore) Close() error                                            { return nil }

// cachedVideoMetadata extends VideoMetadata with cache information
type cachedVideoMetadata struct {
	VideoMetadata
	CachedAt time.Time `json:"cached_at"`
}

func encodeMetadata(metadata *VideoMetadata, now time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(cachedVideoMetadata{VideoMetadata: *metadata, CachedAt: now}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return data, nil
}

func decodeMetadata(data []byte) (*VideoMetadata, error) {
	var cached cachedVideoMetadata
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("parsing metadata cache: %w", err)
	}
	return &cached.VideoMetadata, nil
}
