package contact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"veranda/internal/platform/redis"
	"veranda/pkg/platform/sentinel"
)

// Cache is the short-lived state behind contact verification: pending OTP
// hashes with attempt counters and spent email token IDs. Entries expire on
// their own; nothing here is durable.
type Cache interface {
	// SetOTP stores the hashed code for a user, replacing any pending one.
	SetOTP(ctx context.Context, userID string, hash []byte, ttl time.Duration) error
	// GetOTP returns the hash and how many failed attempts were recorded.
	GetOTP(ctx context.Context, userID string) (hash []byte, attempts int, err error)
	// IncrementOTPAttempts bumps the failure counter.
	IncrementOTPAttempts(ctx context.Context, userID string) error
	// DeleteOTP removes the pending code after success or lockout.
	DeleteOTP(ctx context.Context, userID string) error

	// MarkTokenUsed records an email token ID as spent. Returns
	// sentinel.ErrAlreadyUsed when it was spent before.
	MarkTokenUsed(ctx context.Context, tokenID string, ttl time.Duration) error
}

func otpKey(userID string) string      { return "contact:otp:" + userID }
func attemptsKey(userID string) string { return "contact:otp-attempts:" + userID }
func tokenKey(tokenID string) string   { return "contact:email-token:" + tokenID }

// RedisCache backs the contact cache with Redis so OTPs survive restarts and
// are shared across replicas.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) SetOTP(ctx context.Context, userID string, hash []byte, ttl time.Duration) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, otpKey(userID), hash, ttl)
	pipe.Set(ctx, attemptsKey(userID), 0, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

func (c *RedisCache) GetOTP(ctx context.Context, userID string) ([]byte, int, error) {
	hash, err := c.client.Get(ctx, otpKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, 0, sentinel.ErrExpired
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load otp: %w", err)
	}
	attempts, err := c.client.Get(ctx, attemptsKey(userID)).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, fmt.Errorf("load otp attempts: %w", err)
	}
	return hash, attempts, nil
}

func (c *RedisCache) IncrementOTPAttempts(ctx context.Context, userID string) error {
	if err := c.client.Incr(ctx, attemptsKey(userID)).Err(); err != nil {
		return fmt.Errorf("increment otp attempts: %w", err)
	}
	return nil
}

func (c *RedisCache) DeleteOTP(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, otpKey(userID), attemptsKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func (c *RedisCache) MarkTokenUsed(ctx context.Context, tokenID string, ttl time.Duration) error {
	set, err := c.client.SetNX(ctx, tokenKey(tokenID), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	if !set {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

// MemoryCache is the in-process fallback when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	otps    map[string]memoryOTP
	spent   map[string]time.Time
	nowFunc func() time.Time
}

type memoryOTP struct {
	hash      []byte
	attempts  int
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		otps:    make(map[string]memoryOTP),
		spent:   make(map[string]time.Time),
		nowFunc: time.Now,
	}
}

func (c *MemoryCache) SetOTP(_ context.Context, userID string, hash []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.otps[userID] = memoryOTP{hash: hash, expiresAt: c.nowFunc().Add(ttl)}
	return nil
}

func (c *MemoryCache) GetOTP(_ context.Context, userID string) ([]byte, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	otp, ok := c.otps[userID]
	if !ok || c.nowFunc().After(otp.expiresAt) {
		delete(c.otps, userID)
		return nil, 0, sentinel.ErrExpired
	}
	return otp.hash, otp.attempts, nil
}

func (c *MemoryCache) IncrementOTPAttempts(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if otp, ok := c.otps[userID]; ok {
		otp.attempts++
		c.otps[userID] = otp
	}
	return nil
}

func (c *MemoryCache) DeleteOTP(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.otps, userID)
	return nil
}

func (c *MemoryCache) MarkTokenUsed(_ context.Context, tokenID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	if until, ok := c.spent[tokenID]; ok && now.Before(until) {
		return sentinel.ErrAlreadyUsed
	}
	c.spent[tokenID] = now.Add(ttl)
	return nil
}
