package adapter

import (
	"context"

	"resume-checkout/internal/domain/model"
)

// DocumentReleaser is the collaborator boundary for the gated action: it
// hands the paid document (render-and-export) to the user. The unlock gate
// invokes it exactly once per completed intent; explicit re-downloads go
// through the same method while the intent stays unlocked.
type DocumentReleaser interface {
	Release(ctx context.Context, intent *model.PaymentIntent) error
}

// OpsNotifier pushes terminal payment outcomes to an operations channel.
type OpsNotifier interface {
	NotifyTerminal(ctx context.Context, intent *model.PaymentIntent)
}
