package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store keeps each cart as a JSON string under its cart key. Every save
// refreshes the TTL so abandoned carts expire on their own.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	return s.Client.Set(ctx, key, data, s.TTL).Err()
}
