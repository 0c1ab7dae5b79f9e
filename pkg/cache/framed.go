package cache

import (
	"context"
	"errors"
	"time"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// blob is a byte-transparent key/value backend.
type blob interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, value []byte) error
	del(ctx context.Context, key string) error
	close() error
}

// blobClearer is implemented by blobs that can drop all their keys.
type blobClearer interface {
	clear(ctx context.Context) (int, error)
}

// framed adapts a blob to [Store] by wrapping payloads in an envelope that
// records when they were written.
type framed struct {
	name  string
	blob  blob
	codec Codec
	now   func() time.Time
}

func newFramed(name string, b blob, c Codec) framed {
	if c == nil {
		c = Msgpack{}
	}
	return framed{name: name, blob: b, codec: c, now: time.Now}
}

func (s *framed) Name() string { return s.name }

// Codec returns the envelope codec.
func (s *framed) Codec() Codec { return s.codec }

func (s *framed) Get(ctx context.Context, key Key) (*Entry, error) {
	raw, ok, err := s.blob.get(ctx, string(key))
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "%s: get %s", s.name, key)
	}
	if !ok {
		return nil, ErrNotFound
	}
	env, err := decodeEnvelope(s.codec, raw)
	if err != nil {
		// Written by another codec or version: drop it and treat as a miss.
		_ = s.blob.del(ctx, string(key))
		return nil, ErrNotFound
	}
	return &Entry{Key: key, Payload: env.Payload, StoredAt: env.StoredAt}, nil
}

func (s *framed) Put(ctx context.Context, key Key, payload []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	raw, err := encodeEnvelope(s.codec, envelope{StoredAt: s.now().UTC(), Payload: payload})
	if err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "%s: encode %s", s.name, key)
	}
	if err := s.blob.set(ctx, string(key), raw); err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "%s: put %s", s.name, key)
	}
	return nil
}

func (s *framed) IsFresh(ctx context.Context, key Key, p Policy) (bool, error) {
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
	return p.Fresh(e.StoredAt, s.now()), nil
}

func (s *framed) Delete(ctx context.Context, key Key) error {
	if err := s.blob.del(ctx, string(key)); err != nil {
		return bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "%s: delete %s", s.name, key)
	}
	return nil
}

func (s *framed) Clear(ctx context.Context) (int, error) {
	c, ok := s.blob.(blobClearer)
	if !ok {
		return 0, bulkerr.New(bulkerr.ErrCodeStorage, "%s: clear not supported", s.name)
	}
	n, err := c.clear(ctx)
	if err != nil {
		return n, bulkerr.Wrap(bulkerr.ErrCodeStorage, err, "%s: clear", s.name)
	}
	return n, nil
}

func (s *framed) Close() error {
	return s.blob.close()
}
