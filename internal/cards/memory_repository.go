package cards

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	expiry map[string]string
	art    map[string][]byte
}

// NewMemoryRepository constructs an in-memory display cache.
func NewMemoryRepository() Repository {
	return &memoryRepository{expiry: make(map[string]string), art: make(map[string][]byte)}
}

func (r *memoryRepository) SavePanExpiry(_ context.Context, panSuffix, expiry string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expiry[panSuffix] = expiry
	return nil
}

func (r *memoryRepository) PanExpiry(_ context.Context, panSuffix string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.expiry[panSuffix]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (r *memoryRepository) SaveCardArt(_ context.Context, digitalCardID string, art []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.art[digitalCardID] = append([]byte(nil), art...)
	return nil
}

func (r *memoryRepository) CardArt(_ context.Context, digitalCardID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.art[digitalCardID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}
