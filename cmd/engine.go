package cmd

import (
	"volunteer-attendance/internal/reconcile"
	"volunteer-attendance/internal/ticketing"

	"github.com/prometheus/client_golang/prometheus"
)

// newEngine wires the reconciliation engine to the configured platform and store.
func newEngine(reg prometheus.Registerer) *reconcile.Engine {
	client := ticketing.NewClient(&cfg.Ticketing)
	opts := []reconcile.Option{reconcile.WithLockTTL(cfg.Sync.LockTTL)}
	if reg != nil {
		opts = append(opts, reconcile.WithMetrics(reconcile.NewMetrics(reg)))
	}
	return reconcile.New(repo, client, reconcile.PolicyFromConfig(&cfg.Sync), opts...)
}
