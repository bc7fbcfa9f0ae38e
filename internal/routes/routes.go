package routes

import (
	"context"

	"volunteer-attendance/internal/reconcile"
)

// Syncer runs the reconciliation engine.
type Syncer interface {
	RunEventDiscovery(ctx context.Context) (reconcile.DiscoveryResult, error)
	RunAttendeeSync(ctx context.Context) (reconcile.AttendeeResult, error)
	RunCombinedSync(ctx context.Context) (reconcile.CombinedResult, error)
	ListUnmatchedEvents(ctx context.Context) ([]reconcile.UnmatchedEvent, error)
}
