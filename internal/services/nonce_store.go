/**
 * @description
 * Nonce Store for wallet authentication challenges.
 * Issues single-use, expiring nonces keyed by wallet address and stored in Redis.
 *
 * Semantics:
 * - Issue overwrites any prior live challenge for the address, so at most one
 *   challenge is outstanding per wallet and stale challenges cannot be replayed.
 * - Consume is GETDEL: delete-once, so two concurrent logins racing on the same
 *   nonce resolve to exactly one success.
 * - The Redis TTL doubles as the background sweep; callers still check ExpiresAt
 *   because expiry is judged against the embedded timestamp, not key presence.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 * - standard "crypto/rand"
 */

package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const nonceKeyPrefix = "auth:nonce:"

// challengeMessageTemplate must stay byte-for-byte stable: the signature is
// verified against the exact message handed out at issuance.
const challengeMessageTemplate = "Sign this message to authenticate with Klassik:\n\nNonce: %s\nTimestamp: %s"

// NonceChallenge is one outstanding authentication challenge for an address
type NonceChallenge struct {
	Nonce     string    `json:"nonce"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Message renders the exact challenge string the wallet is asked to sign.
// The timestamp embedded is the expiry fixed at issuance, not wall-clock now.
func (c *NonceChallenge) Message() string {
	return fmt.Sprintf(challengeMessageTemplate, c.Nonce, c.ExpiresAt.UTC().Format(time.RFC3339))
}

// Expired reports whether the challenge is past its validity window
func (c *NonceChallenge) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// NonceStore issues and consumes wallet authentication challenges
type NonceStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewNonceStore(rdb *redis.Client, ttl time.Duration) *NonceStore {
	return &NonceStore{Redis: rdb, TTL: ttl}
}

// Issue creates a fresh challenge for the address, overwriting any prior one
func (s *NonceStore) Issue(ctx context.Context, address string) (*NonceChallenge, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	now := time.Now().UTC()
	challenge := &NonceChallenge{
		Nonce:     hex.EncodeToString(buf),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.TTL),
	}

	payload, err := json.Marshal(challenge)
	if err != nil {
		return nil, fmt.Errorf("marshal challenge: %w", err)
	}

	if err := s.Redis.Set(ctx, s.key(address), payload, s.TTL).Err(); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	return challenge, nil
}

// Consume atomically fetches and deletes the live challenge for the address.
// Returns ErrNotFound when no challenge is outstanding.
func (s *NonceStore) Consume(ctx context.Context, address string) (*NonceChallenge, error) {
	payload, err := s.Redis.GetDel(ctx, s.key(address)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	var challenge NonceChallenge
	if err := json.Unmarshal(payload, &challenge); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &challenge, nil
}

func (s *NonceStore) key(address string) string {
	return nonceKeyPrefix + strings.ToLower(address)
}
