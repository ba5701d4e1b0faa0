package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/checkout"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrSessionBusy     = errors.New("checkout session is busy")
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionStore keeps checkout sessions that the customer chose to persist
// between requests. Sessions expire after ttl of inactivity.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, st *checkout.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(st.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (*checkout.State, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var st checkout.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return &st, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Lock takes a short exclusive lease on a session so two requests cannot
// drive the same checkout at once. The returned func releases it.
func (s *SessionStore) Lock(ctx context.Context, id string, lease time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKey(id), token, lease).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return nil, ErrSessionBusy
	}

	return func() {
		_ = unlockScript.Run(context.Background(), s.client, []string{lockKey(id)}, token).Err()
	}, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("checkout:session:%s", id)
}

func lockKey(id string) string {
	return fmt.Sprintf("checkout:session:%s:lock", id)
}
