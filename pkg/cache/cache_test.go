package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// storeContract runs the behaviour every backend must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := KeyFor("https://example.org/svc?sort=1&file=metabase.txt.gz")

	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}
	fresh, err := s.IsFresh(ctx, key, Forever())
	if err != nil || fresh {
		t.Fatalf("IsFresh on empty store = %v, %v; want false", fresh, err)
	}

	if err := s.Put(ctx, key, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(e.Payload, []byte("payload")) {
		t.Errorf("Payload = %q, want %q", e.Payload, "payload")
	}
	if e.StoredAt.IsZero() {
		t.Error("StoredAt not set")
	}

	tests := []struct {
		name   string
		policy Policy
		want   bool
	}{
		{"forever", Forever(), true},
		{"max age zero", WithMaxAge(0), false},
		{"max age hour", WithMaxAge(time.Hour), true},
		{"force refresh", Refresh(), false},
	}
	for _, tt := range tests {
		got, err := s.IsFresh(ctx, key, tt.policy)
		if err != nil {
			t.Fatalf("IsFresh(%s): %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("IsFresh(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}

	if err := s.Put(ctx, key, []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if e, _ := s.Get(ctx, key); e == nil || string(e.Payload) != "second" {
		t.Errorf("overwrite not visible: %+v", e)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestFileStore(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "cache"))
	defer s.Close()
	storeContract(t, s)
}

func TestFileStoreLazyDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s := NewFileStore(dir)
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("directory created before first Put: %v", err)
	}
	key := KeyFor("u")
	if err := s.Put(context.Background(), key, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Path(key)); err != nil {
		t.Errorf("entry file missing: %v", err)
	}
}

func TestFileStoreDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	if err := os.WriteFile(path, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)
	err := s.Put(context.Background(), KeyFor("u"), []byte("x"))
	if !bulkerr.Is(err, bulkerr.ErrCodeStorage) {
		t.Fatalf("Put err = %v, want STORAGE_ERROR", err)
	}
	if _, err := s.Get(context.Background(), KeyFor("u")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreMaxAge(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()
	key := KeyFor("u")
	if err := s.Put(ctx, key, []byte("x")); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(s.Path(key), old, old); err != nil {
		t.Fatal(err)
	}
	if fresh, _ := s.IsFresh(ctx, key, WithMaxAge(time.Hour)); fresh {
		t.Error("two-hour-old entry fresh under one-hour max age")
	}
	if fresh, _ := s.IsFresh(ctx, key, WithMaxAge(3*time.Hour)); !fresh {
		t.Error("two-hour-old entry stale under three-hour max age")
	}
}

func TestFileStoreConcurrentPut(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()
	key := KeyFor("u")
	payload := bytes.Repeat([]byte("abcdef"), 10000)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Put(ctx, key, payload); err != nil {
				t.Errorf("Put: %v", err)
			}
		}()
	}
	wg.Wait()

	e, err := s.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(e.Payload, payload) {
		t.Error("payload corrupted by concurrent writes")
	}
	matches, _ := filepath.Glob(filepath.Join(s.Dir(), "*", ".tmp-*"))
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}

func TestFileStoreClear(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()
	for _, u := range []string{"a", "b", "c"} {
		if err := s.Put(ctx, KeyFor(u), []byte(u)); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Clear(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Clear removed %d, want 3", n)
	}

	missing := NewFileStore(filepath.Join(t.TempDir(), "never-created"))
	if n, err := missing.Clear(ctx); err != nil || n != 0 {
		t.Errorf("Clear on missing dir = %d, %v", n, err)
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestBigCacheStore(t *testing.T) {
	s, err := NewBigCacheStore(context.Background(), BigCacheConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestRistrettoStore(t *testing.T) {
	s, err := NewRistrettoStore(RistrettoConfig{MaxCostMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("BULKSTAT_TEST_REDIS")
	if addr == "" {
		t.Skip("BULKSTAT_TEST_REDIS not set")
	}
	s, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr, Prefix: "bulkstat-test:"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("BULKSTAT_TEST_MONGO")
	if uri == "" {
		t.Skip("BULKSTAT_TEST_MONGO not set")
	}
	s, err := NewMongoStore(context.Background(), MongoConfig{URI: uri, Database: "bulkstat_test"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestNullStore(t *testing.T) {
	ctx := context.Background()
	s := NewNullStore()
	key := KeyFor("u")
	if err := s.Put(ctx, key, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("NullStore.Get err = %v, want ErrNotFound", err)
	}
	if fresh, _ := s.IsFresh(ctx, key, Forever()); fresh {
		t.Error("NullStore entry reported fresh")
	}
}

func TestEnvelopeCodecs(t *testing.T) {
	cb, err := NewCBOR()
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, c := range []Codec{Msgpack{}, cb} {
		t.Run(c.Name(), func(t *testing.T) {
			raw, err := encodeEnvelope(c, envelope{StoredAt: at, Payload: []byte("p")})
			if err != nil {
				t.Fatal(err)
			}
			got, err := decodeEnvelope(c, raw)
			if err != nil {
				t.Fatal(err)
			}
			if !got.StoredAt.Equal(at) || string(got.Payload) != "p" {
				t.Errorf("decoded %+v", got)
			}
		})
	}

	raw, _ := encodeEnvelope(Msgpack{}, envelope{StoredAt: at})
	if _, err := decodeEnvelope(cb, raw); !errors.Is(err, errCorrupt) {
		t.Errorf("cross-codec decode err = %v, want errCorrupt", err)
	}
	if _, err := decodeEnvelope(Msgpack{}, []byte("garbage")); !errors.Is(err, errCorrupt) {
		t.Errorf("garbage decode err = %v, want errCorrupt", err)
	}
}

func TestPolicyFresh(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		policy   Policy
		storedAt time.Time
		want     bool
	}{
		{"zero value never expires", Policy{}, now.Add(-24 * 365 * time.Hour), true},
		{"force refresh", Policy{ForceRefresh: true}, now, false},
		{"max age zero always stale", WithMaxAge(0), now, false},
		{"within max age", WithMaxAge(time.Minute), now.Add(-30 * time.Second), true},
		{"at max age boundary", WithMaxAge(time.Minute), now.Add(-time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Fresh(tt.storedAt, now); got != tt.want {
				t.Errorf("Fresh = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyFor(t *testing.T) {
	k1 := KeyFor("https://example.org/a")
	k2 := KeyFor("https://example.org/a")
	k3 := KeyFor("https://example.org/b")
	if k1 != k2 {
		t.Error("KeyFor should be deterministic")
	}
	if k1 == k3 {
		t.Error("different URLs should produce different keys")
	}
	if !k1.Valid() {
		t.Errorf("KeyFor produced invalid key %q", k1)
	}
	if Key("../etc/passwd").Valid() {
		t.Error("path-like key reported valid")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		opts Options
		name string
	}{
		{Options{Dir: dir}, BackendFile},
		{Options{Backend: BackendMemory}, BackendMemory},
		{Options{Backend: BackendNone}, BackendNone},
		{Options{Backend: BackendSQLite, Dir: dir}, BackendSQLite},
		{Options{Backend: BackendBigCache, Codec: "cbor"}, BackendBigCache},
		{Options{Backend: BackendRistretto, MemoryMB: 2}, BackendRistretto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer s.Close()
			n, ok := s.(Namer)
			if !ok || n.Name() != tt.name {
				t.Errorf("Open picked %T, want %s", s, tt.name)
			}
		})
	}

	if _, err := Open(ctx, Options{Backend: "floppy"}); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
		t.Errorf("unknown backend err = %v, want CONFIG_ERROR", err)
	}
	if _, err := Open(ctx, Options{Backend: BackendMemory, Codec: "xml"}); !bulkerr.Is(err, bulkerr.ErrCodeConfig) {
		t.Errorf("unknown codec err = %v, want CONFIG_ERROR", err)
	}
}
