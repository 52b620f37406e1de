package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore is the table of active session tokens. Implementations must
// make Delete atomic so a token is never resolved after a logout returns.
type TokenStore interface {
	// Put binds token to userID. A non-positive ttl never expires.
	Put(ctx context.Context, token, userID string, ttl time.Duration) error
	// Get returns the user bound to token; ok is false for unknown or
	// expired tokens.
	Get(ctx context.Context, token string) (userID string, ok bool, err error)
	// Delete removes token and reports whether it was bound.
	Delete(ctx context.Context, token string) (bool, error)
	Close() error
}

type memoryEntry struct {
	userID  string
	expires time.Time
}

// MemoryTokenStore keeps tokens in process memory. Tokens do not survive a
// restart.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryEntry
	now    func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryTokenStore) Put(_ context.Context, token, userID string, ttl time.Duration) error {
	e := memoryEntry{userID: userID}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.tokens[token] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tokens[token]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.tokens, token)
		return "", false, nil
	}
	return e.userID, true, nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tokens[token]
	delete(s.tokens, token)
	return ok, nil
}

func (s *MemoryTokenStore) Close() error { return nil }

const redisKeyPrefix = "apifarm:session:"

// RedisTokenStore keeps tokens in Redis so several server processes can
// share sessions and sessions survive restarts.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// NewRedisClient parses redisURL and checks the server answers a PING.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func (s *RedisTokenStore) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, redisKeyPrefix+token, userID, ttl).Err()
}

func (s *RedisTokenStore) Get(ctx context.Context, token string) (string, bool, error) {
	uid, err := s.client.Get(ctx, redisKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return uid, true, nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Del(ctx, redisKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisTokenStore) Close() error { return s.client.Close() }
