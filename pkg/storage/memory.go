package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"inventory-service/internal/model"
)

// MemoryStore is an in-process single-slot store. It round-trips the
// collection through JSON so it exercises the same serialization path as
// the Redis driver; used in development mode and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	var products []model.Product
	if err := json.Unmarshal(s.data, &products); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return products, nil
}

func (s *MemoryStore) Set(ctx context.Context, products []model.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("storage marshal error: %w", err)
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Raw returns the stored payload as written. Tests use it to assert that
// failed operations left storage byte-for-byte unchanged.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// SetRaw overwrites the stored payload without encoding, so tests can
// plant malformed data.
func (s *MemoryStore) SetRaw(data []byte) {
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}
