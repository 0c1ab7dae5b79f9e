package cache

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// FileStore keeps one file per entry under a root directory.
//
// Entries are sharded by the first two characters of the key to avoid huge
// flat directories. The payload is stored verbatim and the file modification
// time is the entry's StoredAt. The root directory is created lazily by the
// first Put, and each Put writes to a temporary file in the target shard and
// renames it into place, so readers never observe a partial entry.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. Nothing is created on disk
// until the first Put.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// Name implements [Namer].
func (s *FileStore) Name() string { return "file" }

// Path returns the file that holds (or would hold) the entry for key.
func (s *FileStore) Path(key Key) string {
	k := string(key)
	if len(k) < 3 {
		return filepath.Join(s.dir, k)
	}
	return filepath.Join(s.dir, k[:2], k[2:])
}

// Get reads the entry for key.
func (s *FileStore) Get(ctx context.Context, key Key) (*Entry, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "open cache entry %s", key)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "stat cache entry %s", key)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "read cache entry %s", key)
	}
	return &Entry{Key: key, Payload: data, StoredAt: info.ModTime()}, nil
}

// IsFresh only stats the entry file; the payload is not read.
func (s *FileStore) IsFresh(ctx context.Context, key Key, p Policy) (bool, error) {
	if p.ForceRefresh {
		return false, nil
	}
	if err := checkKey(key); err != nil {
		return false, err
	}
	info, err := os.Stat(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
		return false, nil
	}
	if err != nil {
		return false, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "stat cache entry %s", key)
	}
	return p.Fresh(info.ModTime(), time.Now()), nil
}

// Put writes payload atomically.
func (s *FileStore) Put(ctx context.Context, key Key, payload []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return err
	}

	path := s.Path(key)
	shard := filepath.Dir(path)
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "create cache shard %s", shard)
	}

	tmp, err := os.CreateTemp(shard, ".tmp-*")
	if err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "create temp file in %s", shard)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "write cache entry %s", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "close cache entry %s", key)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "commit cache entry %s", key)
	}
	return nil
}

// Delete removes the entry for key.
func (s *FileStore) Delete(ctx context.Context, key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := os.Remove(s.Path(key))
	if err == nil || errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
		return nil
	}
	return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "delete cache entry %s", key)
}

// Clear removes every entry and returns how many were deleted.
// A missing root directory is an empty cache.
func (s *FileStore) Clear(ctx context.Context) (int, error) {
	n := 0
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "clear cache %s", s.dir)
	}
	return n, nil
}

// Close does nothing for file stores.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) ensureDir() error {
	info, err := os.Stat(s.dir)
	switch {
	case err == nil && !info.IsDir():
		return bulkerr.New(bulkerr.ErrCodeStorage, "cache location %s exists and is not a directory", s.dir)
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "create cache dir %s", s.dir)
		}
		return nil
	}
	return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "stat cache dir %s", s.dir)
}

func checkKey(key Key) error {
	if !key.Valid() {
		return bulkerr.New(bulkerr.ErrCodeInvalidName, "malformed cache key %q", key)
	}
	return nil
}

// isNotDir reports ENOTDIR-style failures, which happen when a path component
// that should be a directory is a regular file.
func isNotDir(err error) bool {
	var pe *fs.PathError
	if !errors.As(err, &pe) {
		return false
	}
	return errors.Is(pe.Err, syscall.ENOTDIR)
}

// Ensure FileStore implements Store.
var (
	_ Store   = (*FileStore)(nil)
	_ Clearer = (*FileStore)(nil)
)
