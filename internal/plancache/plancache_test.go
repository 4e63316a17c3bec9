package plancache

import "testing"

func TestMemoryBackendGetSet(t *testing.T) {
	b := NewMemoryBackend()
	key := Key{SchemaVersion: "v1", QueryText: "MATCH (u:User) RETURN u.name"}

	if _, ok := b.Get(key); ok {
		t.Fatalf("expected a miss before Set")
	}
	b.Set(key, "SELECT full_name FROM users AS t")
	sql, ok := b.Get(key)
	if !ok || sql != "SELECT full_name FROM users AS t" {
		t.Errorf("Get after Set = %q, %v", sql, ok)
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestKeyHashDistinguishesSchemaVersion(t *testing.T) {
	a := Key{SchemaVersion: "v1", QueryText: "RETURN 1"}
	b := Key{SchemaVersion: "v2", QueryText: "RETURN 1"}
	if a.hash() == b.hash() {
		t.Errorf("expected distinct hashes for distinct schema versions")
	}
}

func TestCacheTracksHitsAndMisses(t *testing.T) {
	c := New(NewMemoryBackend())
	key := Key{SchemaVersion: "v1", QueryText: "RETURN 1"}

	if _, ok := c.Get(key); ok {
		t.Fatalf("expected a miss before Set")
	}
	c.Set(key, "SELECT 1")
	if _, ok := c.Get(key); !ok {
		t.Fatalf("expected a hit after Set")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
	if stats.Entries != 1 {
		t.Errorf("stats.Entries = %d, want 1", stats.Entries)
	}
}

func TestStatsStringIncludesHitRate(t *testing.T) {
	s := Stats{Hits: 9, Misses: 1, Entries: 2}
	str := s.String()
	if str == "" {
		t.Fatalf("expected a non-empty stats summary")
	}
}

func TestBadgerBackendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key := Key{SchemaVersion: "v1", QueryText: "MATCH (u:User) RETURN u.name"}

	first, err := OpenBadgerBackend(dir)
	if err != nil {
		t.Fatalf("OpenBadgerBackend: %v", err)
	}
	first.Set(key, "SELECT full_name FROM users AS t")
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := OpenBadgerBackend(dir)
	if err != nil {
		t.Fatalf("reopen OpenBadgerBackend: %v", err)
	}
	defer second.Close()

	sql, ok := second.Get(key)
	if !ok || sql != "SELECT full_name FROM users AS t" {
		t.Errorf("Get after reopen = %q, %v, want the persisted SQL", sql, ok)
	}
	if second.Len() != 1 {
		t.Errorf("Len() after reopen = %d, want 1", second.Len())
	}
}
