// Package plancache is a supplemental performance layer absent from the
// base specification: an optional, process-wide cache from a normalized
// query key to a previously rendered SQL string, avoiding re-parsing and
// re-planning hot queries. It is purely additive and never required for
// correctness — a cache miss always falls back to the full parse/plan/
// render/emit pipeline.
//
// Grounded on trigo/internal/storage.BadgerStorage for the Badger-backed
// implementation and trigo/internal/encoding.TermEncoder for xxh3-based
// key hashing; the in-memory default has no direct teacher analogue and
// is a plain map guarded by a mutex.
package plancache

import (
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"
)

// Key identifies one cached plan: the schema version guards against a
// catalog reload invalidating stale entries, and the query text is the
// Cypher statement exactly as the caller passed it. Any normalization
// (whitespace trimming or collapsing, parameter stripping) is left to the
// caller.
type Key struct {
	SchemaVersion string
	QueryText     string
}

func (k Key) hash() uint64 {
	h := xxh3.Hash128([]byte(k.SchemaVersion + "\x00" + k.QueryText))
	return h.Hi ^ h.Lo
}

func (k Key) bytes() []byte {
	return []byte(fmt.Sprintf("%016x", k.hash()))
}

// Backend is the storage contract a plan cache implementation must
// satisfy. Both implementations in this package are safe for concurrent
// use by multiple goroutines.
type Backend interface {
	Get(key Key) (sql string, ok bool)
	Set(key Key, sql string)
	Len() int
	Close() error
}

// Stats reports cumulative cache activity; String formats it with
// go-humanize. Nothing in this module logs it.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Entries   int
	ByteSize  uint64
}

// String renders stats in the teacher's humanized style, e.g.
// "plancache: 128 entries, 2.1 kB, 94% hit rate (9,412 hits / 602 misses)".
func (s Stats) String() string {
	total := s.Hits + s.Misses
	rate := 0.0
	if total > 0 {
		rate = 100 * float64(s.Hits) / float64(total)
	}
	return fmt.Sprintf("plancache: %s entries, %s, %.0f%% hit rate (%s hits / %s misses)",
		humanize.Comma(int64(s.Entries)),
		humanize.Bytes(s.ByteSize),
		rate,
		humanize.Comma(int64(s.Hits)),
		humanize.Comma(int64(s.Misses)),
	)
}

// Cache wraps a Backend with hit/miss accounting, independent of which
// storage implementation backs it.
type Cache struct {
	backend Backend
	mu      sync.Mutex
	hits    uint64
	misses  uint64
}

func New(backend Backend) *Cache {
	return &Cache{backend: backend}
}

func (c *Cache) Get(key Key) (string, bool) {
	sql, ok := c.backend.Get(key)
	c.mu.Lock()
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
	return sql, ok
}

func (c *Cache) Set(key Key, sql string) {
	c.backend.Set(key, sql)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: c.backend.Len(),
	}
}

func (c *Cache) Close() error {
	return c.backend.Close()
}

// MemoryBackend is the default Backend: a plain map guarded by a mutex,
// with no eviction. Suitable for a single query-at-a-time CLI process
// where the cache's lifetime is the process's lifetime.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[uint64]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: map[uint64]string{}}
}

func (m *MemoryBackend) Get(key Key) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sql, ok := m.entries[key.hash()]
	return sql, ok
}

func (m *MemoryBackend) Set(key Key, sql string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key.hash()] = sql
}

func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryBackend) Close() error { return nil }

// BadgerBackend persists cached plans across process restarts, for a
// long-lived server process (`cmd/cyphersqld serve` with the
// CYPHERSQLD_CACHE_DIR environment variable set). It is opt-in;
// nothing in this module requires it.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadgerBackend opens (or creates) a Badger store at path.
func OpenBadgerBackend(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("plancache: opening badger store at %s: %w", path, err)
	}
	return &BadgerBackend{db: db}, nil
}

func (b *BadgerBackend) Get(key Key) (string, bool) {
	var sql string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.bytes())
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			sql = string(val)
			return nil
		})
	})
	return sql, err == nil
}

func (b *BadgerBackend) Set(key Key, sql string) {
	_ = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key.bytes(), []byte(sql))
	})
}

func (b *BadgerBackend) Len() int {
	n := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
