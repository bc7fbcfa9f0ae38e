// Package identity matches attendee names to volunteer profiles.
//
// Names are the only identity shared by the registration platform and the
// record store. Walk-ins have no email and group bookings share one, so a
// profile is found by its case-insensitive name.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"volunteer-attendance/internal/records"
)

// ProfileStore is the subset of the record repository the resolver needs.
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]records.Profile, error)
	CreateProfile(ctx context.Context, p records.Profile) (int64, error)
}

// MatchKey normalises a display name for matching: surrounding whitespace
// removed and case folded to lower case.
func MatchKey(name string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}

type Resolver struct {
	store  ProfileStore
	logger *slog.Logger
}

func NewResolver(store ProfileStore) *Resolver {
	return &Resolver{
		store:  store,
		logger: slog.With("component", "identity"),
	}
}

// Find returns the id of the profile matching name, or 0 when there is none.
// Match keys are compared first. Profiles created before match keys existed
// are found by their display name. Ties go to the lowest id.
func (r *Resolver) Find(ctx context.Context, name string) (int64, error) {
	key := MatchKey(name)
	if key == "" {
		return 0, nil
	}

	profiles, err := r.store.ListProfiles(ctx)
	if err != nil {
		return 0, err
	}

	var byKey, byName int64
	trimmed := strings.TrimSpace(name)
	for _, p := range profiles {
		if p.MatchKey == key && (byKey == 0 || p.ID < byKey) {
			byKey = p.ID
		}
		if strings.EqualFold(strings.TrimSpace(p.Name), trimmed) && (byName == 0 || p.ID < byName) {
			byName = p.ID
		}
	}
	if byKey != 0 {
		return byKey, nil
	}
	return byName, nil
}

// Resolve returns the profile id for name, creating a profile when no
// existing one matches. created reports whether a profile was created.
func (r *Resolver) Resolve(ctx context.Context, name string) (id int64, created bool, err error) {
	key := MatchKey(name)
	if key == "" {
		return 0, false, fmt.Errorf("%w: attendee name", records.ErrMissingField)
	}

	id, err = r.Find(ctx, name)
	if err != nil {
		return 0, false, err
	}
	if id != 0 {
		return id, false, nil
	}

	id, err = r.store.CreateProfile(ctx, records.Profile{
		Name:     strings.TrimSpace(name),
		MatchKey: key,
		IsGroup:  false,
	})
	if errors.Is(err, records.ErrDuplicate) {
		// Created by another writer since Find looked.
		id, findErr := r.Find(ctx, name)
		if findErr != nil {
			return 0, false, findErr
		}
		if id != 0 {
			return id, false, nil
		}
	}
	if err != nil {
		return 0, false, err
	}
	r.logger.Info("Created profile", "id", id, "name", name)
	return id, true, nil
}
