// Package reconcile merges registration data from the ticketing platform into
// the record store.
//
// A run first discovers sessions from the organisation's live events and then
// appends attendance entries for every session dated today or later. Entries
// are never changed once written and consent answers are overwritten by the
// chronologically latest registration. At most one run is active at a time,
// across every process sharing the record store when the store provides a
// RunLock.
package reconcile

import (
	"context"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"volunteer-attendance/internal/identity"
	"volunteer-attendance/internal/records"
	"volunteer-attendance/internal/ticketing"
)

// Source is the read-only registration platform.
type Source interface {
	ListOrgEvents(ctx context.Context, filter ticketing.EventFilter) iter.Seq2[ticketing.Event, error]
	ListAttendees(ctx context.Context, eventID string, filter ticketing.AttendeeFilter) iter.Seq2[ticketing.Attendee, error]
}

// Store is the part of the record repository used by sync. Entries can only
// be listed and created through it.
type Store interface {
	identity.ProfileStore

	ListGroups(ctx context.Context) ([]records.Group, error)
	ListSessions(ctx context.Context) ([]records.Session, error)
	CreateSession(ctx context.Context, s records.Session) (int64, error)

	ListEntries(ctx context.Context) ([]records.Entry, error)
	CreateEntry(ctx context.Context, e records.Entry) (int64, error)

	ListConsentRecords(ctx context.Context) ([]records.ConsentRecord, error)
	CreateConsentRecord(ctx context.Context, c records.ConsentRecord) (int64, error)
	UpdateConsentRecord(ctx context.Context, c records.ConsentRecord) error
}

// RunLock is a lock shared by every process writing to the record store.
type RunLock interface {
	TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name, owner string) error
}

const (
	runLockName    = "sync"
	DefaultLockTTL = 10 * time.Minute
)

type Engine struct {
	store    Store
	source   Source
	resolver *identity.Resolver
	policy   Policy
	metrics  *Metrics
	now      func() time.Time

	lock    RunLock
	lockTTL time.Duration
	owner   string

	running atomic.Bool
	logger  *slog.Logger
}

type Option func(*Engine)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRunLock replaces the lock taken from the store. Nil keeps runs
// exclusive within this process only.
func WithRunLock(l RunLock) Option {
	return func(e *Engine) { e.lock = l }
}

// WithLockTTL sets how long a run lock survives without being renewed. A
// running engine renews it every third of the TTL.
func WithLockTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTTL = d
		}
	}
}

func New(store Store, source Source, policy Policy, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		source:   source,
		resolver: identity.NewResolver(store),
		policy:   policy,
		now:      time.Now,
		lockTTL:  DefaultLockTTL,
		owner:    uuid.NewString(),
		logger:   slog.With("component", "reconcile"),
	}
	if l, ok := store.(RunLock); ok {
		e.lock = l
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// acquire takes the run guard and the shared run lock. The returned release
// must be called when the run ends.
func (e *Engine) acquire(ctx context.Context, phase string) (release func(), err error) {
	if !e.running.CompareAndSwap(false, true) {
		e.reject(phase, "process")
		return nil, ErrRunInProgress
	}
	if e.lock == nil {
		return func() { e.running.Store(false) }, nil
	}

	ok, err := e.lock.TryLock(ctx, runLockName, e.owner, e.lockTTL)
	if err != nil {
		e.running.Store(false)
		return nil, err
	}
	if !ok {
		e.running.Store(false)
		e.reject(phase, "store")
		return nil, ErrRunInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go e.renewLock(context.WithoutCancel(ctx), stop, done)

	return func() {
		close(stop)
		<-done
		if err := e.lock.Unlock(context.WithoutCancel(ctx), runLockName, e.owner); err != nil {
			e.logger.Error("Failed to release run lock", "error", err)
		}
		e.running.Store(false)
	}, nil
}

func (e *Engine) reject(phase, holder string) {
	e.logger.Warn("Rejected sync run, another run is active", "phase", phase, "held_by", holder)
	e.metrics.rejected(phase)
}

// renewLock extends the run lock until stop is closed.
func (e *Engine) renewLock(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.lockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ok, err := e.lock.TryLock(ctx, runLockName, e.owner, e.lockTTL)
		if err != nil || !ok {
			e.logger.Error("Failed to renew run lock", "held", ok, "error", err)
		}
	}
}

// Running reports whether a run is in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

func (e *Engine) RunEventDiscovery(ctx context.Context) (DiscoveryResult, error) {
	release, err := e.acquire(ctx, "discovery")
	if err != nil {
		return DiscoveryResult{}, err
	}
	defer release()

	return e.discoveryPhase(ctx, uuid.NewString())
}

func (e *Engine) RunAttendeeSync(ctx context.Context) (AttendeeResult, error) {
	release, err := e.acquire(ctx, "attendees")
	if err != nil {
		return AttendeeResult{}, err
	}
	defer release()

	return e.attendeePhase(ctx, uuid.NewString())
}

// RunCombinedSync runs discovery and then attendee sync, the latter including
// sessions created by the former.
func (e *Engine) RunCombinedSync(ctx context.Context) (CombinedResult, error) {
	release, err := e.acquire(ctx, "combined")
	if err != nil {
		return CombinedResult{}, err
	}
	defer release()

	runID := uuid.NewString()
	started := e.now().UTC()

	sessions, err := e.discoveryPhase(ctx, runID)
	if err != nil {
		return CombinedResult{}, err
	}
	attendees, err := e.attendeePhase(ctx, runID)
	if err != nil {
		return CombinedResult{}, err
	}

	result := CombinedResult{
		RunID:      runID,
		Summary:    Summary(sessions, attendees),
		Sessions:   sessions,
		Attendees:  attendees,
		StartedAt:  started,
		FinishedAt: e.now().UTC(),
	}
	e.logger.Info("Sync complete", "run_id", runID, "summary", result.Summary)
	return result, nil
}

// ListUnmatchedEvents classifies the live events without writing anything and
// returns the series events that have no Group.
func (e *Engine) ListUnmatchedEvents(ctx context.Context) ([]UnmatchedEvent, error) {
	res, err := e.discover(ctx, true)
	if err != nil {
		return nil, err
	}
	return res.UnmatchedEvents, nil
}

func (e *Engine) discoveryPhase(ctx context.Context, runID string) (DiscoveryResult, error) {
	start := time.Now()
	logger := e.logger.With("run_id", runID, "phase", "discovery")

	res, err := e.discover(ctx, false)
	e.metrics.observePhase("discovery", start, err)
	if err != nil {
		logger.Error("Event discovery failed", "error", err)
		return DiscoveryResult{}, err
	}
	res.RunID = runID
	e.metrics.recordDiscovery(res)

	logger.Info("Event discovery complete",
		"events", res.TotalEvents,
		"matched", res.MatchedEvents,
		"new_sessions", res.NewSessions,
		"skipped", res.SkippedEvents,
		"unmatched", len(res.UnmatchedEvents))
	return res, nil
}

func (e *Engine) attendeePhase(ctx context.Context, runID string) (AttendeeResult, error) {
	start := time.Now()
	logger := e.logger.With("run_id", runID, "phase", "attendees")

	res, err := e.syncAttendees(ctx, logger)
	e.metrics.observePhase("attendees", start, err)
	if err != nil {
		logger.Error("Attendee sync failed", "error", err)
		return AttendeeResult{}, err
	}
	res.RunID = runID
	e.metrics.recordAttendees(res)

	logger.Info("Attendee sync complete",
		"sessions", res.SessionsProcessed,
		"new_profiles", res.NewProfiles,
		"new_entries", res.NewEntries,
		"consent_records", res.NewRecords,
		"failed_sessions", len(res.Errors))
	return res, nil
}
