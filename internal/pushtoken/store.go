package pushtoken

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	recordKey   = "pushtoken:v1"
	fieldLocal  = "local"
	fieldRemote = "remote"
)

// Record is the persisted pair of push tokens.
type Record struct {
	Local  string
	Remote string
}

// Store persists the push token record.
type Store interface {
	Load(ctx context.Context) (Record, error)
	SetLocal(ctx context.Context, token string) error
	SetRemote(ctx context.Context, token string) error
}

// RedisStore keeps the record in a single Redis hash.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load reads both tokens. Missing fields come back empty.
func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	values, err := s.client.HGetAll(ctx, recordKey).Result()
	if err != nil {
		return Record{}, fmt.Errorf("load push token record: %w", err)
	}
	return Record{Local: values[fieldLocal], Remote: values[fieldRemote]}, nil
}

// SetLocal stores the token most recently issued by the platform.
func (s *RedisStore) SetLocal(ctx context.Context, token string) error {
	return s.client.HSet(ctx, recordKey, fieldLocal, token).Err()
}

// SetRemote stores the token the provisioning backend confirmed.
func (s *RedisStore) SetRemote(ctx context.Context, token string) error {
	return s.client.HSet(ctx, recordKey, fieldRemote, token).Err()
}

type memoryStore struct {
	mu  sync.RWMutex
	rec Record
}

// NewMemoryStore constructs an in-memory store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Load(_ context.Context) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec, nil
}

func (s *memoryStore) SetLocal(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Local = token
	return nil
}

func (s *memoryStore) SetRemote(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Remote = token
	return nil
}
