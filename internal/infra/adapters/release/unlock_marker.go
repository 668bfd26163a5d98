package release

import (
	"context"
	"fmt"
	"time"

	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"
	"resume-checkout/internal/infra/redis"

	"github.com/rs/zerolog"
)

var _ adapter.DocumentReleaser = (*UnlockMarker)(nil)

// UnlockMarker releases the paid document by writing an unlock marker the
// résumé frontend polls before enabling the export button. The marker maps
// the checkout session to the deposit that paid for it.
type UnlockMarker struct {
	client redis.RedisClient
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewUnlockMarker(client redis.RedisClient, ttl time.Duration, logger *zerolog.Logger) *UnlockMarker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	l := logger.With().Str("component", "UnlockMarker").Logger()
	return &UnlockMarker{client: client, ttl: ttl, log: &l}
}

func markerKey(sessionID string) string {
	return fmt.Sprintf("download_unlocked:%s", sessionID)
}

func (m *UnlockMarker) Release(ctx context.Context, intent *model.PaymentIntent) error {
	if err := m.client.Set(ctx, markerKey(intent.SessionID), intent.DepositID, m.ttl); err != nil {
		return fmt.Errorf("write unlock marker: %w", err)
	}
	m.log.Info().Str("deposit_id", intent.DepositID).Str("session_id", intent.SessionID).
		Msg("document released")
	return nil
}
