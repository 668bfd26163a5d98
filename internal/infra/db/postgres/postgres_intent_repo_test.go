//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
)

func testIntent(sessionID string) *model.PaymentIntent {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return model.NewIntent(uuid.NewString(), sessionID, model.PlanPro, 2, "USD",
		"+243999000000", "mtn", "COD", "ACCEPTED", now)
}

func TestIntentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewIntentRepo(testPool)

	t.Run("should save and find an intent", func(t *testing.T) {
		cleanup(t)
		p := testIntent("sess-1")
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := repo.FindByDepositID(ctx, nil, p.DepositID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.Status != model.IntentStatusPending || got.SessionID != "sess-1" {
			t.Errorf("unexpected intent: %+v", got)
		}
	})

	t.Run("should reject a second active intent for the same session", func(t *testing.T) {
		cleanup(t)
		if err := repo.Save(ctx, nil, testIntent("sess-1")); err != nil {
			t.Fatalf("save first: %v", err)
		}
		err := repo.Save(ctx, nil, testIntent("sess-1"))
		if !errors.Is(err, domain.ErrActiveIntentExists) {
			t.Fatalf("expected ErrActiveIntentExists, got %v", err)
		}
	})

	t.Run("should find the active intent per session", func(t *testing.T) {
		cleanup(t)
		p := testIntent("sess-2")
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := repo.FindActiveBySession(ctx, nil, "sess-2")
		if err != nil {
			t.Fatalf("find active: %v", err)
		}
		if got.DepositID != p.DepositID {
			t.Errorf("depositID=%s, want %s", got.DepositID, p.DepositID)
		}

		if _, err := repo.FindActiveBySession(ctx, nil, "sess-none"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for empty session, got %v", err)
		}
	})

	t.Run("should increment attempts", func(t *testing.T) {
		cleanup(t)
		p := testIntent("sess-3")
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("save: %v", err)
		}
		for want := 1; want <= 3; want++ {
			n, err := repo.IncrementAttempts(ctx, nil, p.DepositID)
			if err != nil {
				t.Fatalf("increment: %v", err)
			}
			if n != want {
				t.Errorf("attempts=%d, want %d", n, want)
			}
		}
	})

	t.Run("should sweep old terminal intents only", func(t *testing.T) {
		cleanup(t)
		old := testIntent("sess-4")
		old.Status = model.IntentStatusFailed
		old.FailureReason = "payment failed"
		old.UpdatedAt = time.Now().Add(-48 * time.Hour)
		if err := repo.Save(ctx, nil, old); err != nil {
			t.Fatalf("save old: %v", err)
		}
		fresh := testIntent("sess-5")
		if err := repo.Save(ctx, nil, fresh); err != nil {
			t.Fatalf("save fresh: %v", err)
		}

		ids, err := repo.DeleteTerminalBefore(ctx, nil, time.Now().Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if len(ids) != 1 || ids[0] != old.DepositID {
			t.Errorf("swept=%v, want only %s", ids, old.DepositID)
		}
		if _, err := repo.FindByDepositID(ctx, nil, fresh.DepositID); err != nil {
			t.Errorf("fresh intent disappeared: %v", err)
		}
	})

	t.Run("should count by status", func(t *testing.T) {
		cleanup(t)
		a := testIntent("sess-6")
		b := testIntent("sess-7")
		b.Status = model.IntentStatusCompleted
		b.Reference = b.DepositID
		for _, p := range []*model.PaymentIntent{a, b} {
			if err := repo.Save(ctx, nil, p); err != nil {
				t.Fatalf("save: %v", err)
			}
		}
		counts, err := repo.CountByStatus(ctx, nil)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if counts[model.IntentStatusPending] != 1 || counts[model.IntentStatusCompleted] != 1 {
			t.Errorf("counts=%v", counts)
		}
	})
}
