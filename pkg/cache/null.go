package cache

import "context"

// NullStore is a no-op store that never keeps anything.
// Every lookup misses, so every fetch goes to the network.
type NullStore struct{}

// NewNullStore creates a null store.
func NewNullStore() *NullStore {
	return &NullStore{}
}

// Name implements [Namer].
func (NullStore) Name() string { return "none" }

// Get always misses.
func (NullStore) Get(ctx context.Context, key Key) (*Entry, error) {
	return nil, ErrNotFound
}

// Put does nothing.
func (NullStore) Put(ctx context.Context, key Key, payload []byte) error {
	return nil
}

// IsFresh is always false.
func (NullStore) IsFresh(ctx context.Context, key Key, p Policy) (bool, error) {
	return false, nil
}

// Delete does nothing.
func (NullStore) Delete(ctx context.Context, key Key) error {
	return nil
}

// Close does nothing.
func (NullStore) Close() error {
	return nil
}

// Ensure NullStore implements Store.
var _ Store = (*NullStore)(nil)
