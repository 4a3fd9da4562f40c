package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nekonik/registry/internal/cache"
	"github.com/nekonik/registry/pkg/models"
)

// SessionStore keeps signed session records in the cache, keyed by session id.
// Every record is written with the same TTL.
type SessionStore struct {
	cache cache.Cache
	codec *sessionCodec
	ttl   time.Duration
}

func NewSessionStore(c cache.Cache, secret []byte, ttl time.Duration) *SessionStore {
	return &SessionStore{
		cache: c,
		codec: &sessionCodec{secret: secret, now: time.Now},
		ttl:   ttl,
	}
}

// TTL is the lifetime of every stored session.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *SessionStore) Save(ctx context.Context, sess *models.Session) error {
	signed, err := s.codec.encode(sess)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, cache.SessionKey(sess.ID), []byte(signed), s.ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Load returns the record for id. A missing, expired or tampered record is
// reported as not found; only cache failures are errors.
func (s *SessionStore) Load(ctx context.Context, id string) (*models.Session, bool, error) {
	raw, found, err := s.cache.Get(ctx, cache.SessionKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	sess, err := s.codec.decode(string(raw))
	if err != nil {
		slog.Warn("rejecting unverifiable session record", "error", err)
		return nil, false, nil
	}
	if sess.ID != id {
		slog.Warn("session record id does not match its key")
		return nil, false, nil
	}
	return sess, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, cache.SessionKey(id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
