package cache

import (
	"context"

	rc "github.com/dgraph-io/ristretto"
)

// RistrettoConfig sizes a [RistrettoStore].
type RistrettoConfig struct {
	// MaxCostMB bounds the total payload size kept in memory. Zero means 64.
	MaxCostMB int64

	Codec Codec
}

// RistrettoStore is a bounded in-process cache with admission control,
// backed by dgraph-io/ristretto. Entries may be rejected or evicted at any
// time, which callers observe as misses.
type RistrettoStore struct {
	framed
}

// NewRistrettoStore creates a ristretto-backed store.
func NewRistrettoStore(cfg RistrettoConfig) (*RistrettoStore, error) {
	mb := cfg.MaxCostMB
	if mb <= 0 {
		mb = 64
	}
	maxCost := mb << 20
	c, err := rc.NewCache(&rc.Config{
		NumCounters: max(maxCost>>10, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoStore{newFramed("ristretto", &ristrettoBlob{c: c}, cfg.Codec)}, nil
}

type ristrettoBlob struct {
	c *rc.Cache
}

func (b *ristrettoBlob) get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, _ := v.([]byte)
	if data == nil {
		b.c.Del(key)
		return nil, false, nil
	}
	return data, true, nil
}

func (b *ristrettoBlob) set(_ context.Context, key string, value []byte) error {
	// A rejected write is indistinguishable from an immediate eviction.
	if b.c.Set(key, value, int64(len(value))) {
		b.c.Wait()
	}
	return nil
}

func (b *ristrettoBlob) del(_ context.Context, key string) error {
	b.c.Del(key)
	return nil
}

func (b *ristrettoBlob) clear(_ context.Context) (int, error) {
	b.c.Clear()
	return 0, nil
}

func (b *ristrettoBlob) close() error {
	b.c.Wait()
	b.c.Close()
	return nil
}

var (
	_ Store   = (*RistrettoStore)(nil)
	_ Clearer = (*RistrettoStore)(nil)
)
