package reconcile

import (
	"fmt"
	"time"
)

// UnmatchedEvent is a series event with no Group mapped to its series.
type UnmatchedEvent struct {
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	SeriesID   string    `json:"seriesId,omitempty"`
	URL        string    `json:"url,omitempty"`
}

type DiscoveryResult struct {
	RunID           string           `json:"runId,omitempty"`
	TotalEvents     int              `json:"totalEvents"`
	MatchedEvents   int              `json:"matchedEvents"`
	NewSessions     int              `json:"newSessions"`
	SkippedEvents   int              `json:"skippedEvents"`
	UnmatchedEvents []UnmatchedEvent `json:"unmatchedEvents"`
}

// SessionError is a per-session failure that did not stop the run.
type SessionError struct {
	SessionID       int64  `json:"sessionId"`
	ExternalEventID string `json:"externalEventId"`
	Error           string `json:"error"`
}

type AttendeeResult struct {
	RunID                string         `json:"runId,omitempty"`
	SessionsProcessed    int            `json:"sessionsProcessed"`
	NewProfiles          int            `json:"newProfiles"`
	NewEntries           int            `json:"newEntries"`
	NewRecords           int            `json:"newRecords"`
	SkippedSessions      int            `json:"skippedSessions"`
	SkippedAttendees     int            `json:"skippedAttendees"`
	PlaceholderAttendees int            `json:"placeholderAttendees"`
	Errors               []SessionError `json:"errors"`
}

type CombinedResult struct {
	RunID      string          `json:"runId"`
	Summary    string          `json:"summary"`
	Sessions   DiscoveryResult `json:"sessions"`
	Attendees  AttendeeResult  `json:"attendees"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// NeedsAttention reports whether an operator should look at the run.
func (r CombinedResult) NeedsAttention() bool {
	return len(r.Sessions.UnmatchedEvents) > 0 || len(r.Attendees.Errors) > 0
}

// Summary renders both phases as one line, e.g.
// "59 events, 59 matched, 0 new sessions / 59 sessions, 0 new profiles, 0 new entries, 18 consent records".
func Summary(d DiscoveryResult, a AttendeeResult) string {
	return fmt.Sprintf("%d events, %d matched, %d new sessions / %d sessions, %d new profiles, %d new entries, %d consent records",
		d.TotalEvents, d.MatchedEvents, d.NewSessions,
		a.SessionsProcessed, a.NewProfiles, a.NewEntries, a.NewRecords)
}
