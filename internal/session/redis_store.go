package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/inlane-funnel/internal/leads"
)

// RedisStore keeps sessions as JSON values with a TTL.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: client, ttl: ttl, now: time.Now}
}

func (s *RedisStore) key(token string) string {
	return fmt.Sprintf("funnel:session:%s", token)
}

func (s *RedisStore) Create(ctx context.Context, lead *leads.Lead) (*Session, error) {
	if lead == nil {
		return nil, fmt.Errorf("session: lead required")
	}
	sess := fromLead(lead, s.now().UTC())
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(sess.Token), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("session: set: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &sess, nil
}

// MarkVerified flips the verified flag, keeping the remaining TTL.
func (s *RedisStore) MarkVerified(ctx context.Context, token string) (*Session, error) {
	sess, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.Verified {
		return sess, nil
	}
	remaining, err := s.redis.TTL(ctx, s.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: ttl: %w", err)
	}
	if remaining <= 0 {
		return nil, ErrNotFound
	}

	now := s.now().UTC()
	sess.Verified = true
	sess.VerifiedAt = &now
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(token), data, remaining).Err(); err != nil {
		return nil, fmt.Errorf("session: set: %w", err)
	}
	return sess, nil
}

// StartSession satisfies leads.SessionStarter.
func (s *RedisStore) StartSession(ctx context.Context, lead *leads.Lead) (string, error) {
	sess, err := s.Create(ctx, lead)
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}
