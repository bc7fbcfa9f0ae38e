package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"volunteer-attendance/internal/cache"
	"volunteer-attendance/internal/storage"
)

var ErrInUse = errors.New("record is still referenced")

// Repository reads and writes entities through a list store. Whole lists are
// cached under their list name and each write drops that list's snapshot
// before returning, whether or not the write succeeded.
type Repository struct {
	store  storage.Provider
	cache  cache.Cache
	fields FieldMap
	logger *slog.Logger
}

func NewRepository(store storage.Provider, c cache.Cache, fields FieldMap) *Repository {
	if c == nil {
		c = cache.Nop{}
	}
	return &Repository{
		store:  store,
		cache:  c,
		fields: fields,
		logger: slog.With("component", "records"),
	}
}

type snapshot[T any] struct {
	version int64
	rows    []T
}

// cachedList returns the decoded list. A snapshot is used only while the
// store reports the version it was read at, so writes made by other
// processes sharing the store are observed too.
func cachedList[T any](ctx context.Context, r *Repository, list string, decode func(storage.Item) T) ([]T, error) {
	version, err := r.store.ListVersion(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s version: %w", list, err)
	}
	if v, ok := r.cache.Get(list); ok {
		if snap, ok := v.(snapshot[T]); ok && snap.version == version {
			return slices.Clone(snap.rows), nil
		}
	}

	gen := r.cache.Generation(list)
	rows, err := freshList(ctx, r, list, decode)
	if err != nil {
		return nil, err
	}
	// The version was read before the rows, so rows are at least that new.
	r.cache.SetIfUnchanged(list, gen, snapshot[T]{version: version, rows: rows})
	return slices.Clone(rows), nil
}

// freshList reads the list from the store, bypassing the cache. Uniqueness
// checks use it so they never decide on a snapshot.
func freshList[T any](ctx context.Context, r *Repository, list string, decode func(storage.Item) T) ([]T, error) {
	items, err := r.store.ListAll(ctx, list, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", list, err)
	}

	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, decode(it))
	}
	return out, nil
}

// TryLock takes a lock shared with every process using the same store.
func (r *Repository) TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return r.store.TryLock(ctx, name, owner, ttl)
}

func (r *Repository) Unlock(ctx context.Context, name, owner string) error {
	return r.store.Unlock(ctx, name, owner)
}

func (r *Repository) create(ctx context.Context, list string, fields storage.Fields) (int64, error) {
	id, err := r.store.Create(ctx, list, fields)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s item: %w", list, err)
	}
	r.logger.Debug("Created record", "list", list, "id", id)
	return id, nil
}

func (r *Repository) update(ctx context.Context, list string, id int64, fields storage.Fields) error {
	if err := r.store.Update(ctx, list, id, fields); err != nil {
		return fmt.Errorf("failed to update %s item %d: %w", list, id, err)
	}
	r.logger.Debug("Updated record", "list", list, "id", id)
	return nil
}

// ---------------------------------------------------------------------------
// / Groups
// ---------------------------------------------------------------------------

func (r *Repository) ListGroups(ctx context.Context) ([]Group, error) {
	return cachedList(ctx, r, storage.ListGroups, r.fields.decodeGroup)
}

func (r *Repository) validateGroup(ctx context.Context, g Group) error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: group name", ErrMissingField)
	}
	if g.ExternalSeriesID == "" {
		return nil
	}
	groups, err := freshList(ctx, r, storage.ListGroups, r.fields.decodeGroup)
	if err != nil {
		return err
	}
	for _, other := range groups {
		if other.ID != g.ID && other.ExternalSeriesID == g.ExternalSeriesID {
			return fmt.Errorf("%w: series %s already mapped to group %d", ErrDuplicate, g.ExternalSeriesID, other.ID)
		}
	}
	return nil
}

func (r *Repository) CreateGroup(ctx context.Context, g Group) (int64, error) {
	defer r.cache.Invalidate(storage.ListGroups)

	g.ID = 0
	if err := r.validateGroup(ctx, g); err != nil {
		return 0, err
	}
	return r.create(ctx, storage.ListGroups, r.fields.encodeGroup(g))
}

func (r *Repository) UpdateGroup(ctx context.Context, g Group) error {
	defer r.cache.Invalidate(storage.ListGroups)

	if err := r.validateGroup(ctx, g); err != nil {
		return err
	}
	return r.update(ctx, storage.ListGroups, g.ID, r.fields.encodeGroup(g))
}

// ---------------------------------------------------------------------------
// / Sessions
// ---------------------------------------------------------------------------

func (r *Repository) ListSessions(ctx context.Context) ([]Session, error) {
	return cachedList(ctx, r, storage.ListSessions, r.fields.decodeSession)
}

func (r *Repository) CreateSession(ctx context.Context, s Session) (int64, error) {
	defer r.cache.Invalidate(storage.ListSessions)

	switch {
	case strings.TrimSpace(s.Name) == "":
		return 0, fmt.Errorf("%w: session name", ErrMissingField)
	case s.Key == "":
		return 0, fmt.Errorf("%w: session key", ErrMissingField)
	case s.Date.IsZero():
		return 0, fmt.Errorf("%w: session date", ErrMissingField)
	}

	if s.GroupID > 0 {
		groups, err := r.ListGroups(ctx)
		if err != nil {
			return 0, err
		}
		if !slices.ContainsFunc(groups, func(g Group) bool { return g.ID == s.GroupID }) {
			return 0, fmt.Errorf("%w: group %d", ErrInvalidReference, s.GroupID)
		}
	}

	if s.ExternalEventID != "" {
		sessions, err := freshList(ctx, r, storage.ListSessions, r.fields.decodeSession)
		if err != nil {
			return 0, err
		}
		if slices.ContainsFunc(sessions, func(o Session) bool { return o.ExternalEventID == s.ExternalEventID }) {
			return 0, fmt.Errorf("%w: event %s", ErrDuplicate, s.ExternalEventID)
		}
	}

	return r.create(ctx, storage.ListSessions, r.fields.encodeSession(s))
}

// DeleteSession removes a session that has no entries. Only used by manual tooling.
func (r *Repository) DeleteSession(ctx context.Context, id int64) error {
	defer r.cache.Invalidate(storage.ListSessions)

	entries, err := r.ListEntries(ctx)
	if err != nil {
		return err
	}
	if n := countFunc(entries, func(e Entry) bool { return e.SessionID == id }); n > 0 {
		return fmt.Errorf("%w: session %d has %d entries", ErrInUse, id, n)
	}

	if err := r.store.Delete(ctx, storage.ListSessions, id); err != nil {
		return fmt.Errorf("failed to delete session %d: %w", id, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// / Profiles
// ---------------------------------------------------------------------------

func (r *Repository) ListProfiles(ctx context.Context) ([]Profile, error) {
	return cachedList(ctx, r, storage.ListProfiles, r.fields.decodeProfile)
}

func validateProfile(p Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: profile name", ErrMissingField)
	}
	if p.MatchKey == "" {
		return fmt.Errorf("%w: profile match key", ErrMissingField)
	}
	return nil
}

// CreateProfile rejects a match key that another profile already has.
func (r *Repository) CreateProfile(ctx context.Context, p Profile) (int64, error) {
	defer r.cache.Invalidate(storage.ListProfiles)

	if err := validateProfile(p); err != nil {
		return 0, err
	}

	profiles, err := freshList(ctx, r, storage.ListProfiles, r.fields.decodeProfile)
	if err != nil {
		return 0, err
	}
	if i := slices.IndexFunc(profiles, func(o Profile) bool { return o.MatchKey == p.MatchKey }); i >= 0 {
		return 0, fmt.Errorf("%w: match key %q used by profile %d", ErrDuplicate, p.MatchKey, profiles[i].ID)
	}
	return r.create(ctx, storage.ListProfiles, r.fields.encodeProfile(p))
}

// UpdateProfile writes every profile attribute. Callers renaming a profile
// should keep its match key.
func (r *Repository) UpdateProfile(ctx context.Context, p Profile) error {
	defer r.cache.Invalidate(storage.ListProfiles)

	if err := validateProfile(p); err != nil {
		return err
	}
	return r.update(ctx, storage.ListProfiles, p.ID, r.fields.encodeProfile(p))
}

func (r *Repository) profileExists(ctx context.Context, id int64) (bool, error) {
	profiles, err := r.ListProfiles(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(profiles, func(p Profile) bool { return p.ID == id }), nil
}

// ---------------------------------------------------------------------------
// / Entries
// ---------------------------------------------------------------------------

func (r *Repository) ListEntries(ctx context.Context) ([]Entry, error) {
	return cachedList(ctx, r, storage.ListEntries, r.fields.decodeEntry)
}

// CreateEntry appends an attendance fact. A second entry for the same
// session and profile is rejected with ErrDuplicate. There is no update or
// delete for entries in this repository.
func (r *Repository) CreateEntry(ctx context.Context, e Entry) (int64, error) {
	defer r.cache.Invalidate(storage.ListEntries)

	if e.Count < 1 {
		return 0, fmt.Errorf("%w: entry count %d", ErrInvalidValue, e.Count)
	}
	if e.FiscalYear == "" {
		return 0, fmt.Errorf("%w: entry fiscal year", ErrMissingField)
	}

	sessions, err := r.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	if !slices.ContainsFunc(sessions, func(s Session) bool { return s.ID == e.SessionID }) {
		return 0, fmt.Errorf("%w: session %d", ErrInvalidReference, e.SessionID)
	}

	ok, err := r.profileExists(ctx, e.ProfileID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: profile %d", ErrInvalidReference, e.ProfileID)
	}

	entries, err := freshList(ctx, r, storage.ListEntries, r.fields.decodeEntry)
	if err != nil {
		return 0, err
	}
	if slices.ContainsFunc(entries, func(o Entry) bool { return o.SessionID == e.SessionID && o.ProfileID == e.ProfileID }) {
		return 0, fmt.Errorf("%w: entry for session %d and profile %d", ErrDuplicate, e.SessionID, e.ProfileID)
	}

	return r.create(ctx, storage.ListEntries, r.fields.encodeEntry(e))
}

// ---------------------------------------------------------------------------
// / Consent records
// ---------------------------------------------------------------------------

func (r *Repository) ListConsentRecords(ctx context.Context) ([]ConsentRecord, error) {
	return cachedList(ctx, r, storage.ListConsentRecords, r.fields.decodeConsent)
}

func (r *Repository) validateConsent(ctx context.Context, c ConsentRecord) error {
	switch {
	case c.Type == "":
		return fmt.Errorf("%w: consent type", ErrMissingField)
	case !c.Status.Valid():
		return fmt.Errorf("%w: consent status %q", ErrInvalidValue, c.Status)
	case c.Date.IsZero():
		return fmt.Errorf("%w: consent date", ErrMissingField)
	}

	ok, err := r.profileExists(ctx, c.ProfileID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: profile %d", ErrInvalidReference, c.ProfileID)
	}
	return nil
}

func (r *Repository) CreateConsentRecord(ctx context.Context, c ConsentRecord) (int64, error) {
	defer r.cache.Invalidate(storage.ListConsentRecords)

	if err := r.validateConsent(ctx, c); err != nil {
		return 0, err
	}

	consents, err := freshList(ctx, r, storage.ListConsentRecords, r.fields.decodeConsent)
	if err != nil {
		return 0, err
	}
	if slices.ContainsFunc(consents, func(o ConsentRecord) bool { return o.ProfileID == c.ProfileID && o.Type == c.Type }) {
		return 0, fmt.Errorf("%w: %s record for profile %d", ErrDuplicate, c.Type, c.ProfileID)
	}
	return r.create(ctx, storage.ListConsentRecords, r.fields.encodeConsent(c))
}

// UpdateConsentRecord overwrites the stored answer of an existing record.
func (r *Repository) UpdateConsentRecord(ctx context.Context, c ConsentRecord) error {
	defer r.cache.Invalidate(storage.ListConsentRecords)

	if err := r.validateConsent(ctx, c); err != nil {
		return err
	}
	return r.update(ctx, storage.ListConsentRecords, c.ID, r.fields.encodeConsent(c))
}

func countFunc[T any](s []T, f func(T) bool) int {
	n := 0
	for _, v := range s {
		if f(v) {
			n++
		}
	}
	return n
}
