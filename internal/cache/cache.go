// Package cache provides the durable key/value cache shared by the fetch,
// extract, and geocode stages. Entries never expire on their own; operators
// clear namespaces explicitly.
package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Namespace scopes cache keys so a URL, a file hash, and an address string
// can never collide.
type Namespace string

const (
	NamespaceDetailPage   Namespace = "detail-page"
	NamespaceDocumentText Namespace = "document-text"
	NamespaceGeocode      Namespace = "geocode"
)

// Namespaces lists every defined namespace.
func Namespaces() []Namespace {
	return []Namespace{NamespaceDetailPage, NamespaceDocumentText, NamespaceGeocode}
}

// Entry is one cached value. Negative marks a "tried and failed" result,
// distinct from a plain miss.
type Entry struct {
	Namespace Namespace
	Key       string
	Value     []byte
	Negative  bool
	CachedAt  time.Time
}

// Store is the on-disk cache. Safe for concurrent use; writes are serialized
// by sqlite with WAL and a busy timeout, last writer wins.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "cache: create dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     BLOB,
	negative  INTEGER NOT NULL DEFAULT 0,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (namespace, key)
);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(cacheMigration)
	return eris.Wrap(err, "cache: migrate")
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry for (ns, key). found is false on a plain miss.
// A negative entry is returned with found=true and Negative=true.
func (s *Store) Get(ctx context.Context, ns Namespace, key string) (*Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, negative, cached_at FROM cache_entries WHERE namespace = ? AND key = ?`,
		string(ns), key,
	)
	e := &Entry{Namespace: ns, Key: key}
	var negative int
	if err := row.Scan(&e.Value, &negative, &e.CachedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, eris.Wrapf(err, "cache: get %s/%s", ns, key)
	}
	e.Negative = negative != 0
	return e, true, nil
}

// Put stores value under (ns, key), replacing any prior entry.
func (s *Store) Put(ctx context.Context, ns Namespace, key string, value []byte) error {
	return s.put(ctx, ns, key, value, false)
}

// PutNegative records that resolution for (ns, key) was attempted and failed,
// so later runs skip the expensive call instead of retrying it.
func (s *Store) PutNegative(ctx context.Context, ns Namespace, key string) error {
	return s.put(ctx, ns, key, nil, true)
}

func (s *Store) put(ctx context.Context, ns Namespace, key string, value []byte, negative bool) error {
	neg := 0
	if negative {
		neg = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (namespace, key, value, negative, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			negative = excluded.negative,
			cached_at = excluded.cached_at`,
		string(ns), key, value, neg, time.Now().UTC(),
	)
	return eris.Wrapf(err, "cache: put %s/%s", ns, key)
}

// Clear removes all entries in the given namespace and returns the count.
func (s *Store) Clear(ctx context.Context, ns Namespace) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ?`, string(ns))
	if err != nil {
		return 0, eris.Wrapf(err, "cache: clear %s", ns)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: rows affected")
	}
	return n, nil
}

// Count returns the number of entries in the given namespace.
func (s *Store) Count(ctx context.Context, ns Namespace) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE namespace = ?`, string(ns),
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "cache: count %s", ns)
	}
	return n, nil
}
