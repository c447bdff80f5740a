// Package session persists USSD session state in Redis.  Each session
// lives under a key derived from the provider's session id with a TTL
// equal to the configured USSD timeout; saving a session refreshes the
// TTL, so an idle session simply vanishes when the deadline passes.
// No explicit deletion is ever needed because the provider does not
// reuse session ids.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tanefack/community-booking/internal/model"
)

const keyPrefix = "ussd:session:"

// Store reads and writes UssdSession records in Redis.
type Store struct {
	rdb     *redis.Client
	timeout time.Duration // absolute session lifetime, refreshed per interaction
}

// NewStore builds a session store.  The timeout is the USSD session
// expiry window (USSD_SESSION_TIMEOUT, default 180s), injected from
// configuration.
func NewStore(rdb *redis.Client, timeout time.Duration) *Store {
	if rdb == nil {
		panic("nil redis client passed to session.NewStore")
	}
	return &Store{rdb: rdb, timeout: timeout}
}

// Load returns the session for the given provider session id, or
// (nil, nil) when none exists so the caller can lazily create one.
func (s *Store) Load(ctx context.Context, sessionID string) (*model.UssdSession, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("session load: %w", err)
	}
	var sess model.UssdSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &sess, nil
}

// Save persists the session and pushes its expiry out by the full
// timeout window.  Every menu interaction ends in a Save, which is
// what keeps an active session alive.
func (s *Store) Save(ctx context.Context, sess *model.UssdSession) error {
	sess.ExpiresAt = time.Now().UTC().Add(s.timeout)
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sess.SessionID, raw, s.timeout).Err(); err != nil {
		return fmt.Errorf("session save: %w", err)
	}
	return nil
}
