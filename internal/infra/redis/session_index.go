package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.ActiveSessionIndex = (*SessionIndex)(nil)

// SessionIndex tracks the deposit currently in flight for a checkout session.
// It is a fast-path cache in front of the database; entries expire on their
// own so a crashed reconciler never wedges a session forever.
type SessionIndex struct {
	client *redClient
}

func NewSessionIndex(client *redClient) repository.ActiveSessionIndex {
	return &SessionIndex{client: client}
}

func (s *SessionIndex) sessionKey(sessionID string) string {
	return fmt.Sprintf("active_intent:%s", sessionID)
}

func (s *SessionIndex) SetActive(ctx context.Context, sessionID, depositID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.sessionKey(sessionID), depositID, ttl)
}

func (s *SessionIndex) GetActive(ctx context.Context, sessionID string) (string, error) {
	depositID, err := s.client.Get(ctx, s.sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return depositID, nil
}

func (s *SessionIndex) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.sessionKey(sessionID))
}
