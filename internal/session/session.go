// Package session issues and redeems one-time practice tokens. A token is
// a capability for a single record write: issued when the practice screen
// is requested, redeemed at most once on a successful submission.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"typingclass/internal/models"
)

const keyPrefix = "practice_session:"

// PracticeSession is the server-side state bound to one practice screen.
type PracticeSession struct {
	Token     string      `json:"token"`
	StartedAt time.Time   `json:"started_at"`
	Mode      models.Mode `json:"mode"`
}

// Store is the session collaborator the submission pipeline depends on.
type Store interface {
	// Issue overwrites any in-flight session for sid and returns the
	// fresh one.
	Issue(ctx context.Context, sid string, mode models.Mode) (*PracticeSession, error)
	// Get returns the current session, or nil when none exists.
	Get(ctx context.Context, sid string) (*PracticeSession, error)
	// Claim atomically removes and returns the session, or nil when it
	// was already consumed. Two concurrent claims see it exactly once.
	Claim(ctx context.Context, sid string) (*PracticeSession, error)
}

// RedisStore keeps sessions as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Issue(ctx context.Context, sid string, mode models.Mode) (*PracticeSession, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ps := &PracticeSession{
		Token:     token,
		StartedAt: time.Now().UTC(),
		Mode:      mode,
	}

	payload, err := json.Marshal(ps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+sid, payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return ps, nil
}

func (s *RedisStore) Get(ctx context.Context, sid string) (*PracticeSession, error) {
	payload, err := s.client.Get(ctx, keyPrefix+sid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return decode(payload)
}

func (s *RedisStore) Claim(ctx context.Context, sid string) (*PracticeSession, error) {
	payload, err := s.client.GetDel(ctx, keyPrefix+sid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim session: %w", err)
	}
	return decode(payload)
}

func decode(payload []byte) (*PracticeSession, error) {
	var ps PracticeSession
	if err := json.Unmarshal(payload, &ps); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &ps, nil
}

// newToken returns 32 bytes of CSPRNG output, hex encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
