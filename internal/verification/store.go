package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Challenge is the server-side record of the last code sent for a session.
type Challenge struct {
	CodeHash  string
	Attempts  int
	SentAt    time.Time
	ExpiresAt time.Time
}

// Expired reports whether the code may no longer be used at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ChallengeStore persists challenges. Load returns nil, nil when none exists.
// IncrementAttempts returns ErrNotSent when the challenge vanished.
type ChallengeStore interface {
	Save(ctx context.Context, token string, ch Challenge, retain time.Duration) error
	Load(ctx context.Context, token string) (*Challenge, error)
	IncrementAttempts(ctx context.Context, token string) (int, error)
	Delete(ctx context.Context, token string) error
}

// RedisChallengeStore keeps one hash per session.
type RedisChallengeStore struct {
	redis *redis.Client
}

func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	if client == nil {
		panic("verification: redis client required")
	}
	return &RedisChallengeStore{redis: client}
}

func (s *RedisChallengeStore) key(token string) string {
	return fmt.Sprintf("funnel:otp:%s", token)
}

func (s *RedisChallengeStore) Save(ctx context.Context, token string, ch Challenge, retain time.Duration) error {
	key := s.key(token)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code_hash", ch.CodeHash,
			"attempts", ch.Attempts,
			"sent_at", ch.SentAt.Unix(),
			"expires_at", ch.ExpiresAt.Unix(),
		)
		pipe.Expire(ctx, key, retain)
		return nil
	})
	if err != nil {
		return fmt.Errorf("verification: save challenge: %w", err)
	}
	return nil
}

func (s *RedisChallengeStore) Load(ctx context.Context, token string) (*Challenge, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("verification: load challenge: %w", err)
	}
	if len(fields) == 0 || fields["code_hash"] == "" {
		return nil, nil
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	sentAt, _ := strconv.ParseInt(fields["sent_at"], 10, 64)
	expiresAt, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
	return &Challenge{
		CodeHash:  fields["code_hash"],
		Attempts:  attempts,
		SentAt:    time.Unix(sentAt, 0).UTC(),
		ExpiresAt: time.Unix(expiresAt, 0).UTC(),
	}, nil
}

var incrementAttempts = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

func (s *RedisChallengeStore) IncrementAttempts(ctx context.Context, token string) (int, error) {
	n, err := incrementAttempts.Run(ctx, s.redis, []string{s.key(token)}).Int()
	if err != nil {
		return 0, fmt.Errorf("verification: increment attempts: %w", err)
	}
	if n < 0 {
		return 0, ErrNotSent
	}
	return n, nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("verification: delete challenge: %w", err)
	}
	return nil
}

// MemoryChallengeStore is the in-process ChallengeStore.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	now        func() time.Time
	challenges map[string]memoryChallenge
}

type memoryChallenge struct {
	ch       Challenge
	deadline time.Time
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{now: time.Now, challenges: make(map[string]memoryChallenge)}
}

func (s *MemoryChallengeStore) Save(ctx context.Context, token string, ch Challenge, retain time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[token] = memoryChallenge{ch: ch, deadline: s.now().Add(retain)}
	return nil
}

func (s *MemoryChallengeStore) Load(ctx context.Context, token string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(token)
	if !ok {
		return nil, nil
	}
	out := entry.ch
	return &out, nil
}

func (s *MemoryChallengeStore) IncrementAttempts(ctx context.Context, token string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(token)
	if !ok {
		return 0, ErrNotSent
	}
	entry.ch.Attempts++
	s.challenges[token] = entry
	return entry.ch.Attempts, nil
}

func (s *MemoryChallengeStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.challenges, token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryChallengeStore) live(token string) (memoryChallenge, bool) {
	entry, ok := s.challenges[token]
	if !ok {
		return memoryChallenge{}, false
	}
	if !s.now().Before(entry.deadline) {
		delete(s.challenges, token)
		return memoryChallenge{}, false
	}
	return entry, true
}
