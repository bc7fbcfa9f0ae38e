package records

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"volunteer-attendance/internal/cache"
	"volunteer-attendance/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCache wraps a MemoryCache and counts calls per key.
type recordingCache struct {
	*cache.MemoryCache
	hits        map[string]int
	invalidated map[string]int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		MemoryCache: cache.NewMemoryCache(),
		hits:        map[string]int{},
		invalidated: map[string]int{},
	}
}

func (c *recordingCache) Get(key string) (any, bool) {
	v, ok := c.MemoryCache.Get(key)
	if ok {
		c.hits[key]++
	}
	return v, ok
}

func (c *recordingCache) Invalidate(key string) {
	c.invalidated[key]++
	c.MemoryCache.Invalidate(key)
}

// failingStore fails every create.
type failingStore struct {
	*storage.MemoryProvider
}

func (failingStore) Create(context.Context, string, storage.Fields) (int64, error) {
	return 0, errors.New("store offline")
}

// pausingStore blocks the first ListAll of one list after the store has
// been read, until resume is closed.
type pausingStore struct {
	storage.Provider
	list   string
	armed  atomic.Bool
	paused chan struct{}
	resume chan struct{}
}

func newPausingStore(list string) *pausingStore {
	p := &pausingStore{
		Provider: storage.NewMemoryProvider(),
		list:     list,
		paused:   make(chan struct{}),
		resume:   make(chan struct{}),
	}
	p.armed.Store(true)
	return p
}

func (p *pausingStore) ListAll(ctx context.Context, list string, fields []string) ([]storage.Item, error) {
	items, err := p.Provider.ListAll(ctx, list, fields)
	if list == p.list && p.armed.CompareAndSwap(true, false) {
		close(p.paused)
		<-p.resume
	}
	return items, err
}

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRepository_ReadsAreCached(t *testing.T) {
	ctx := context.Background()
	c := newRecordingCache()
	repo := NewRepository(storage.NewMemoryProvider(), c, CurrentFields)

	_, err := repo.ListProfiles(ctx)
	require.NoError(t, err)
	_, err = repo.ListProfiles(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, c.hits[storage.ListProfiles])
}

func TestRepository_WriteInvalidatesBeforeReturning(t *testing.T) {
	ctx := context.Background()
	c := newRecordingCache()
	repo := NewRepository(storage.NewMemoryProvider(), c, CurrentFields)

	profiles, err := repo.ListProfiles(ctx)
	require.NoError(t, err)
	require.Empty(t, profiles)

	id, err := repo.CreateProfile(ctx, Profile{Name: "Jane Doe", MatchKey: "jane doe"})
	require.NoError(t, err)
	assert.Equal(t, 1, c.invalidated[storage.ListProfiles])

	profiles, err = repo.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, id, profiles[0].ID)
}

func TestRepository_FailedWriteStillInvalidates(t *testing.T) {
	ctx := context.Background()
	c := newRecordingCache()
	repo := NewRepository(failingStore{storage.NewMemoryProvider()}, c, CurrentFields)

	_, err := repo.ListProfiles(ctx)
	require.NoError(t, err)

	_, err = repo.CreateProfile(ctx, Profile{Name: "Jane Doe", MatchKey: "jane doe"})
	require.Error(t, err)
	assert.Equal(t, 1, c.invalidated[storage.ListProfiles])

	_, ok := c.MemoryCache.Get(storage.ListProfiles)
	assert.False(t, ok, "snapshot should be gone after a failed write")
}

func TestRepository_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storage.NewMemoryProvider(), cache.NewMemoryCache(), CurrentFields)
	_, err := repo.CreateProfile(ctx, Profile{Name: "Jane Doe", MatchKey: "jane doe"})
	require.NoError(t, err)

	first, _ := repo.ListProfiles(ctx)
	first[0].Name = "changed"

	second, _ := repo.ListProfiles(ctx)
	assert.Equal(t, "Jane Doe", second[0].Name)
}

func TestRepository_SessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storage.NewMemoryProvider(), cache.NewMemoryCache(), CurrentFields)

	groupID, err := repo.CreateGroup(ctx, Group{Key: "dig", Name: "Dig Crew", ExternalSeriesID: "S1"})
	require.NoError(t, err)

	want := Session{
		Key:             "2025-06-01-dig-crew",
		Name:            "Dig Crew",
		Date:            day("2025-06-01"),
		GroupID:         groupID,
		ExternalEventID: "E1",
		ExternalURL:     "https://example.org/e/E1",
	}
	id, err := repo.CreateSession(ctx, want)
	require.NoError(t, err)
	want.ID = id

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, want, sessions[0])
}

func TestRepository_SessionValidation(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storage.NewMemoryProvider(), cache.NewMemoryCache(), CurrentFields)

	_, err := repo.CreateSession(ctx, Session{Key: "k", Name: "No date"})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = repo.CreateSession(ctx, Session{Key: "k", Name: "Bad group", Date: day("2025-06-01"), GroupID: 42})
	assert.ErrorIs(t, err, ErrInvalidReference)

	_, err = repo.CreateSession(ctx, Session{Key: "k", Name: "One", Date: day("2025-06-01"), ExternalEventID: "E1"})
	require.NoError(t, err)
	_, err = repo.CreateSession(ctx, Session{Key: "k2", Name: "Two", Date: day("2025-06-02"), ExternalEventID: "E1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRepository_EntryReferences(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storage.NewMemoryProvider(), cache.NewMemoryCache(), CurrentFields)

	sessionID, err := repo.CreateSession(ctx, Session{Key: "k", Name: "Beach", Date: day("2025-06-01")})
	require.NoError(t, err)
	profileID, err := repo.CreateProfile(ctx, Profile{Name: "Jane", MatchKey: "jane"})
	require.NoError(t, err)

	_, err = repo.CreateEntry(ctx, Entry{SessionID: sessionID, ProfileID: 99, Count: 1, FiscalYear: "FY2025"})
	assert.ErrorIs(t, err, ErrInvalidReference)
	_, err = repo.CreateEntry(ctx, Entry{SessionID: 99, ProfileID: profileID, Count: 1, FiscalYear: "FY2025"})
	assert.ErrorIs(t, err, ErrInvalidReference)
	_, err = repo.CreateEntry(ctx, Entry{SessionID: sessionID, ProfileID: profileID, Count: 0, FiscalYear: "FY2025"})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = repo.CreateEntry(ctx, Entry{SessionID: sessionID, ProfileID: profileID, Count: 1, Notes: "#NewVolunteer", FiscalYear: "FY2025"})
	require.NoError(t, err)

	entries, err := repo.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Count)
	assert.Equal(t, "#NewVolunteer", entries[0].Notes)

	assert.ErrorIs(t, repo.DeleteSession(ctx, sessionID), ErrInUse)
}

func TestRepository_ConsentUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storage.NewMemoryProvider(), cache.NewMemoryCache(), CurrentFields)
	profileID, err := repo.CreateProfile(ctx, Profile{Name: "Jane", MatchKey: "jane"})
	require.NoError(t, err)

	registered := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	id, err := repo.CreateConsentRecord(ctx, ConsentRecord{ProfileID: profileID, Type: PhotoConsent, Status: ConsentDeclined, Date: registered})
	require.NoError(t, err)

	later := registered.AddDate(0, 3, 0)
	require.NoError(t, repo.UpdateConsentRecord(ctx, ConsentRecord{ID: id, ProfileID: profileID, Type: PhotoConsent, Status: ConsentAccepted, Date: later}))

	records, err := repo.ListConsentRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ConsentAccepted, records[0].Status)
	assert.True(t, later.Equal(records[0].Date))

	_, err = repo.CreateConsentRecord(ctx, ConsentRecord{ProfileID: profileID, Type: PhotoConsent, Status: "Maybe", Date: later})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestRepository_LegacyColumnNames(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryProvider()
	repo := NewRepository(store, cache.NewMemoryCache(), LegacyFields)

	_, err := repo.CreateProfile(ctx, Profile{Name: "Jane Doe", MatchKey: "jane doe"})
	require.NoError(t, err)

	items, err := store.ListAll(ctx, storage.ListProfiles, nil)
	require.NoError(t, err)
	assert.Equal(t, "jane doe", items[0].Fields["SearchName"])
	assert.NotContains(t, items[0].Fields, "MatchKey")

	profiles, err := repo.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jane doe", profiles[0].MatchKey)
}

func TestFieldMapFor(t *testing.T) {
	m, err := FieldMapFor("LEGACY")
	require.NoError(t, err)
	assert.Equal(t, LegacyFields, m)

	m, err = FieldMapFor("")
	require.NoError(t, err)
	assert.Equal(t, CurrentFields, m)

	_, err = FieldMapFor("v3")
	assert.Error(t, err)
}

func TestFieldDate(t *testing.T) {
	f := storage.Fields{
		"plain":  "2025-06-01",
		"stamp":  "2025-06-01T10:00:00+02:00",
		"legacy": "2025-06-01 00:00:00",
		"junk":   "soon",
	}
	assert.Equal(t, day("2025-06-01"), fieldDate(f, "plain"))
	assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), fieldDate(f, "stamp"))
	assert.Equal(t, day("2025-06-01"), fieldDate(f, "legacy"))
	assert.True(t, fieldDate(f, "junk").IsZero())
	assert.True(t, fieldDate(f, "missing").IsZero())
}

func TestRepository_SlowReaderDoesNotRestoreStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newPausingStore(storage.ListSessions)
	repo := NewRepository(store, cache.NewMemoryCache(), CurrentFields)

	done := make(chan error)
	go func() {
		_, err := repo.ListSessions(ctx)
		done <- err
	}()
	<-store.paused

	_, err := repo.CreateSession(ctx, Session{Key: "k", Name: "Beach", Date: day("2025-06-01"), ExternalEventID: "E1"})
	require.NoError(t, err)

	close(store.resume)
	require.NoError(t, <-done)

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1, "the write must be visible after the slow read finished")

	_, err = repo.CreateSession(ctx, Session{Key: "k", Name: "Beach", Date: day("2025-06-01"), ExternalEventID: "E1"})
	assert.ErrorIs(t, err, ErrDuplicate)

	items, err := store.ListAll(ctx, storage.ListSessions, nil)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRepository_SeesWritesOfOtherRepositories(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryProvider()
	server := NewRepository(store, cache.NewMemoryCache(), CurrentFields)
	cli := NewRepository(store, cache.NewMemoryCache(), CurrentFields)

	// Warm the server's snapshots.
	groups, err := server.ListGroups(ctx)
	require.NoError(t, err)
	require.Empty(t, groups)
	_, err = server.ListSessions(ctx)
	require.NoError(t, err)

	_, err = cli.CreateGroup(ctx, Group{Key: "dig", Name: "Dig Crew", ExternalSeriesID: "S1"})
	require.NoError(t, err)
	_, err = cli.CreateSession(ctx, Session{Key: "k", Name: "Beach", Date: day("2025-06-01"), ExternalEventID: "E1"})
	require.NoError(t, err)

	groups, err = server.ListGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	sessions, err := server.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	_, err = server.CreateSession(ctx, Session{Key: "k", Name: "Beach", Date: day("2025-06-01"), ExternalEventID: "E1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRepository_OneEntryPerSessionAndProfile(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storage.NewMemoryProvider(), cache.NewMemoryCache(), CurrentFields)

	sessionID, err := repo.CreateSession(ctx, Session{Key: "k", Name: "Beach", Date: day("2025-06-01")})
	require.NoError(t, err)
	profileID, err := repo.CreateProfile(ctx, Profile{Name: "Jane", MatchKey: "jane"})
	require.NoError(t, err)

	entry := Entry{SessionID: sessionID, ProfileID: profileID, Count: 1, FiscalYear: "FY2025"}
	_, err = repo.CreateEntry(ctx, entry)
	require.NoError(t, err)

	_, err = repo.CreateEntry(ctx, entry)
	assert.ErrorIs(t, err, ErrDuplicate)

	entries, err := repo.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRepository_UniqueProfileAndConsent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(storage.NewMemoryProvider(), cache.NewMemoryCache(), CurrentFields)

	profileID, err := repo.CreateProfile(ctx, Profile{Name: "Jane", MatchKey: "jane"})
	require.NoError(t, err)
	_, err = repo.CreateProfile(ctx, Profile{Name: "JANE", MatchKey: "jane"})
	assert.ErrorIs(t, err, ErrDuplicate)

	c := ConsentRecord{ProfileID: profileID, Type: PhotoConsent, Status: ConsentAccepted, Date: day("2025-06-01")}
	_, err = repo.CreateConsentRecord(ctx, c)
	require.NoError(t, err)
	_, err = repo.CreateConsentRecord(ctx, c)
	assert.ErrorIs(t, err, ErrDuplicate)

	c.Type = PrivacyConsent
	_, err = repo.CreateConsentRecord(ctx, c)
	assert.NoError(t, err)
}
