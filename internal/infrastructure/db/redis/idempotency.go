package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	// claimTTL bounds how long a crashed request can hold a key.
	claimTTL = time.Minute
	// pendingMarker is stored while a claim is in flight. Loan ids are UUIDs,
	// so it never collides with a completed key.
	pendingMarker = "pending"
)

// IdempotencyStore records which loan an Idempotency-Key produced.
// Key format: idempotency:loan:<key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore wraps client. A non-positive ttl selects the default.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim reserves key with SET NX. When the key exists it returns the stored
// loan id, or "" while the owning request is still pending.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (string, bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), pendingMarker, claimTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("idempotency claim: %w", err)
	}
	if ok {
		return "", true, nil
	}

	loanID, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// Released between the two calls; the owner failed and the client
		// can retry.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if loanID == pendingMarker {
		return "", false, nil
	}
	return loanID, false, nil
}

// Complete binds key to loanID for the configured ttl.
func (s *IdempotencyStore) Complete(ctx context.Context, key, loanID string) error {
	if err := s.client.Set(ctx, s.key(key), loanID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

// Release deletes the claim on key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(key string) string {
	return "idempotency:loan:" + key
}
