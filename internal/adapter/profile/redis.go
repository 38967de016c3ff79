package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"perspective/internal/domain"
)

const (
	keyPrefix = "perspective:profile:"
	// sorted set of profile names scored by update time
	latestKey = "perspective:profiles"
)

// RedisStore keeps profile state in redis. A zero ttl keeps keys forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) key(name string) string {
	return keyPrefix + SafeName(name)
}

func (s *RedisStore) Get(ctx context.Context, name string) (*domain.ProfileState, error) {
	val, err := s.client.Get(ctx, s.key(name)).Result()
	if err == redis.Nil {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	var state domain.ProfileState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("invalid profile state for %s: %w", name, err)
	}
	return &state, nil
}

func (s *RedisStore) Put(ctx context.Context, state *domain.ProfileState) error {
	if state.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	val, err := json.Marshal(state)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(state.Name), val, s.ttl)
		pipe.ZAdd(ctx, latestKey, redis.Z{
			Score:  float64(state.UpdatedAt.UnixNano()),
			Member: state.Name,
		})
		return nil
	})
	return err
}

// Latest walks the update-time index newest first, pruning names whose
// state has expired.
func (s *RedisStore) Latest(ctx context.Context) (*domain.ProfileState, error) {
	names, err := s.client.ZRevRange(ctx, latestKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		state, err := s.Get(ctx, name)
		if err == domain.ErrProfileNotFound {
			s.client.ZRem(ctx, latestKey, name)
			continue
		}
		if err != nil {
			return nil, err
		}
		return state, nil
	}
	return nil, domain.ErrProfileNotFound
}

// List returns every live profile, most recently updated first.
func (s *RedisStore) List(ctx context.Context) ([]*domain.ProfileState, error) {
	names, err := s.client.ZRevRange(ctx, latestKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	states := make([]*domain.ProfileState, 0, len(names))
	for _, name := range names {
		state, err := s.Get(ctx, name)
		if err == domain.ErrProfileNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
