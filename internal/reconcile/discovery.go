package reconcile

import (
	"context"
	"fmt"
	"strings"

	"volunteer-attendance/internal/records"
	"volunteer-attendance/internal/ticketing"
)

// discover maps live events to sessions. With dryRun set nothing is written
// and only the classification is returned.
func (e *Engine) discover(ctx context.Context, dryRun bool) (DiscoveryResult, error) {
	res := DiscoveryResult{UnmatchedEvents: []UnmatchedEvent{}}

	sessions, err := e.store.ListSessions(ctx)
	if err != nil {
		return DiscoveryResult{}, err
	}
	known := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		if s.ExternalEventID != "" {
			known[s.ExternalEventID] = true
		}
	}

	groups, err := e.store.ListGroups(ctx)
	if err != nil {
		return DiscoveryResult{}, err
	}
	bySeries := make(map[string]int64, len(groups))
	for _, g := range groups {
		if g.ExternalSeriesID != "" {
			bySeries[g.ExternalSeriesID] = g.ID
		}
	}

	for ev, err := range e.source.ListOrgEvents(ctx, ticketing.EventFilter{}) {
		if err != nil {
			return DiscoveryResult{}, fmt.Errorf("failed to list organisation events: %w", err)
		}
		res.TotalEvents++

		if ev.ID == "" || ev.Date.IsZero() || strings.TrimSpace(ev.Name) == "" {
			e.logger.Warn("Skipping event with missing fields", "event_id", ev.ID, "name", ev.Name)
			res.SkippedEvents++
			continue
		}

		if known[ev.ID] {
			res.MatchedEvents++
			continue
		}

		var groupID int64
		if ev.SeriesID != "" {
			id, ok := bySeries[ev.SeriesID]
			if !ok {
				res.UnmatchedEvents = append(res.UnmatchedEvents, UnmatchedEvent{
					ExternalID: ev.ID,
					Name:       ev.Name,
					Date:       ev.Date,
					SeriesID:   ev.SeriesID,
					URL:        ev.URL,
				})
				continue
			}
			groupID = id
		}
		res.MatchedEvents++

		if dryRun {
			continue
		}

		id, err := e.store.CreateSession(ctx, records.Session{
			Key:             SessionKey(ev.Date, ev.Name),
			Name:            ev.Name,
			Description:     ev.Description,
			Date:            startOfDay(ev.Date),
			GroupID:         groupID,
			ExternalEventID: ev.ID,
			ExternalURL:     ev.URL,
		})
		if err != nil {
			return DiscoveryResult{}, fmt.Errorf("failed to create session for event %s: %w", ev.ID, err)
		}
		known[ev.ID] = true
		res.NewSessions++
		e.logger.Info("Created session", "id", id, "event_id", ev.ID, "group_id", groupID, "date", ev.Date.Format("2006-01-02"))
	}

	return res, nil
}
