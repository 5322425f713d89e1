package enrich

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// LookupCache stores raw lookup responses keyed by kind and key so
// repeated runs can skip external requests. Only external responses
// are cached; derived results are recomputed every run.
type LookupCache interface {
	Get(ctx context.Context, kind, key string) ([]byte, bool, error)
	Put(ctx context.Context, kind, key string, value []byte) error
}

// cacheGet reads through a cache, treating errors as misses.
func cacheGet(ctx context.Context, cache LookupCache, kind, key string) ([]byte, bool) {
	if cache == nil {
		return nil, false
	}
	value, ok, err := cache.Get(ctx, kind, key)
	if err != nil || !ok {
		return nil, false
	}
	return value, true
}

// cachePut writes through a cache, ignoring failures. A cache write
// that fails only costs a repeat lookup later. Nil values are stored
// as empty entries so negative results cache too.
func cachePut(ctx context.Context, cache LookupCache, kind, key string, value []byte) {
	if cache == nil {
		return
	}
	if value == nil {
		value = []byte{}
	}
	_ = cache.Put(ctx, kind, key, value)
}

// MemoryCache is a process-local LookupCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func memoryKey(kind, key string) string {
	return kind + "\x00" + key
}

// Get returns the cached value for kind/key.
func (m *MemoryCache) Get(_ context.Context, kind, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[memoryKey(kind, key)]
	return value, ok, nil
}

// Put stores a value for kind/key.
func (m *MemoryCache) Put(_ context.Context, kind, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey(kind, key)] = append([]byte(nil), value...)
	return nil
}

// SQLiteCache is a LookupCache persisted in a local SQLite file, so
// portrait lookups survive across runs.
type SQLiteCache struct {
	sqlDB *sql.DB
}

// OpenSQLiteCache opens (and initializes) a SQLite lookup cache.
func OpenSQLiteCache(path string) (*SQLiteCache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	_, err = sqlDB.Exec(`CREATE TABLE IF NOT EXISTS lookup_cache (
	   kind TEXT NOT NULL,
	   key TEXT NOT NULL,
	   value BLOB NOT NULL,
	   updated_at INTEGER NOT NULL,
	   PRIMARY KEY (kind, key)
	 )`)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLiteCache{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (c *SQLiteCache) Close() error {
	if c == nil || c.sqlDB == nil {
		return nil
	}
	return c.sqlDB.Close()
}

// Get returns the cached value for kind/key.
func (c *SQLiteCache) Get(ctx context.Context, kind, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	row := c.sqlDB.QueryRowContext(
		ctx,
		`SELECT value FROM lookup_cache WHERE kind = ? AND key = ?`,
		kind, key,
	)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return value, true, nil
}

// Put stores a value for kind/key, replacing any previous entry.
func (c *SQLiteCache) Put(ctx context.Context, kind, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.sqlDB.ExecContext(
		ctx,
		`INSERT INTO lookup_cache (kind, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (kind, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		kind, key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

var (
	_ LookupCache = (*MemoryCache)(nil)
	_ LookupCache = (*SQLiteCache)(nil)
)
