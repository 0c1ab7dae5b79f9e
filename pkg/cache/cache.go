// Package cache stores fetched payloads keyed by a digest of their canonical URL.
//
// A [Store] maps a [Key] to an [Entry] holding the payload bytes and the time
// they were written. Freshness is decided by a [Policy] at read time, so the
// same stored entry can be trusted by one caller and refetched by another.
//
// Several backends are provided and chosen by the host at startup with [Open]:
//
//   - [FileStore]: one file per entry on disk, atomic writes. The default.
//   - [MemoryStore]: a mutex-guarded map, for tests and short-lived processes.
//   - [NullStore]: never stores anything.
//   - [SQLiteStore]: a single database file (modernc.org/sqlite).
//   - [RedisStore], [MongoStore]: shared caches for server deployments.
//   - [BigCacheStore], [RistrettoStore]: bounded in-process response caches.
//
// Byte-oriented backends that have no notion of a write timestamp store an
// envelope encoded with a [Codec] (msgpack or cbor).
package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned by [Store.Get] when no entry exists for a key.
// A miss is not a storage failure.
var ErrNotFound = errors.New("cache: entry not found")

// Key is the lowercase hex SHA-256 digest of a canonical URL.
type Key string

// KeyFor derives the cache key for a canonical URL.
func KeyFor(url string) Key {
	return Key(Hash([]byte(url)))
}

// Valid reports whether k has the shape produced by [KeyFor].
func (k Key) Valid() bool {
	if len(k) != 64 {
		return false
	}
	_, err := hex.DecodeString(string(k))
	return err == nil
}

func (k Key) String() string { return string(k) }

// Entry is one cached payload.
type Entry struct {
	Key      Key
	Payload  []byte
	StoredAt time.Time
}

// Store is a pluggable cache backend.
//
// Put must be atomic with respect to Get: a reader sees either the previous
// entry or the new one, never a partial write. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the entry for key, or ErrNotFound.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Put stores payload under key, replacing any previous entry.
	Put(ctx context.Context, key Key, payload []byte) error

	// IsFresh reports whether an entry exists for key and may be used under p.
	IsFresh(ctx context.Context, key Key, p Policy) (bool, error)

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// Close releases resources held by the store.
	Close() error
}

// Clearer is implemented by stores that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Namer is implemented by stores that report a short backend name.
type Namer interface {
	Name() string
}

// isFresh implements [Store.IsFresh] for stores that have to read the entry
// to learn its timestamp.
func isFresh(ctx context.Context, s Store, key Key, p Policy) (bool, error) {
	if p.ForceRefresh {
		return false, nil
	}
	e, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Fresh(e.StoredAt, time.Now()), nil
}
