package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"volunteer-attendance/internal/fiscal"
	"volunteer-attendance/internal/records"
	"volunteer-attendance/internal/ticketing"
)

type entryKey struct {
	sessionID int64
	profileID int64
}

type consentKey struct {
	profileID int64
	typ       records.ConsentType
}

// eligibleSessions returns sessions with an external event dated today or
// later, oldest first. Later sessions must be applied last so their consent
// answers win. skipped counts sessions with an external event but no date.
func eligibleSessions(sessions []records.Session, today time.Time) (out []records.Session, skipped int) {
	for _, s := range sessions {
		if s.ExternalEventID == "" {
			continue
		}
		if s.Date.IsZero() {
			skipped++
			continue
		}
		if s.Date.Before(today) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, skipped
}

func (e *Engine) syncAttendees(ctx context.Context, logger *slog.Logger) (AttendeeResult, error) {
	res := AttendeeResult{Errors: []SessionError{}}

	sessions, err := e.store.ListSessions(ctx)
	if err != nil {
		return AttendeeResult{}, err
	}

	eligible, skipped := eligibleSessions(sessions, startOfDay(e.now()))
	if skipped > 0 {
		logger.Warn("Skipping sessions without a date", "count", skipped)
	}
	res.SkippedSessions = skipped

	for _, s := range eligible {
		if err := ctx.Err(); err != nil {
			return AttendeeResult{}, err
		}

		err := e.syncSession(ctx, s, &res)
		if err == nil {
			res.SessionsProcessed++
			continue
		}
		if !recoverable(err) {
			return AttendeeResult{}, err
		}

		logger.Warn("Session sync failed", "session_id", s.ID, "event_id", s.ExternalEventID, "error", err)
		res.Errors = append(res.Errors, SessionError{
			SessionID:       s.ID,
			ExternalEventID: s.ExternalEventID,
			Error:           err.Error(),
		})
	}
	return res, nil
}

// syncSession consumes every attendee of one session. Counters in res are
// updated as records are written, so a session failing half way still
// reports the writes it made.
func (e *Engine) syncSession(ctx context.Context, s records.Session, res *AttendeeResult) error {
	entries, err := e.store.ListEntries(ctx)
	if err != nil {
		return err
	}
	existing := make(map[entryKey]bool, len(entries))
	hasEntry := make(map[int64]bool, len(entries))
	for _, en := range entries {
		existing[entryKey{en.SessionID, en.ProfileID}] = true
		hasEntry[en.ProfileID] = true
	}

	consents, err := e.store.ListConsentRecords(ctx)
	if err != nil {
		return err
	}
	consentByKey := make(map[consentKey]records.ConsentRecord, len(consents))
	for _, c := range consents {
		k := consentKey{c.ProfileID, c.Type}
		if prev, ok := consentByKey[k]; !ok || c.ID < prev.ID {
			consentByKey[k] = c
		}
	}

	fy := fiscal.Label(s.Date)

	for a, err := range e.source.ListAttendees(ctx, s.ExternalEventID, ticketing.AttendeeFilter{}) {
		if err != nil {
			return &sourceError{eventID: s.ExternalEventID, err: err}
		}

		name := strings.TrimSpace(a.Name)
		if name == "" {
			res.SkippedAttendees++
			continue
		}
		if e.policy.isPlaceholder(name) {
			res.PlaceholderAttendees++
			continue
		}

		profileID, created, err := e.resolver.Resolve(ctx, name)
		if err != nil {
			return err
		}
		if created {
			res.NewProfiles++
		}

		key := entryKey{s.ID, profileID}
		if !existing[key] {
			_, err := e.store.CreateEntry(ctx, records.Entry{
				SessionID:  s.ID,
				ProfileID:  profileID,
				Count:      1,
				CheckedIn:  false,
				Hours:      0,
				Notes:      entryNotes(e.policy.isChild(a.TicketType), !hasEntry[profileID]),
				FiscalYear: fy,
			})
			switch {
			case errors.Is(err, records.ErrDuplicate):
				// Written by another writer since the entries were listed.
			case err != nil:
				return err
			default:
				res.NewEntries++
			}
			existing[key] = true
			hasEntry[profileID] = true
		}

		n, err := e.applyConsent(ctx, profileID, a, s, consentByKey)
		if err != nil {
			return err
		}
		res.NewRecords += n
	}
	return nil
}

// applyConsent writes the attendee's consent answers, replacing any earlier
// answer for the same profile and type. The answer is dated by the
// registration, or by the session when the platform sent no registration
// time. It returns the number of records written.
func (e *Engine) applyConsent(ctx context.Context, profileID int64, a ticketing.Attendee, s records.Session, known map[consentKey]records.ConsentRecord) (int, error) {
	date := a.RegisteredAt
	if date.IsZero() {
		date = s.Date
	}

	written := 0
	for _, ans := range a.Answers {
		typ, ok := e.policy.ConsentQuestions[ans.QuestionID]
		if !ok {
			continue
		}
		status, ok := e.policy.consentStatus(ans.Value)
		if !ok {
			continue
		}

		k := consentKey{profileID, typ}
		rec := records.ConsentRecord{ProfileID: profileID, Type: typ, Status: status, Date: date.UTC()}
		if prev, ok := known[k]; ok {
			rec.ID = prev.ID
			if err := e.store.UpdateConsentRecord(ctx, rec); err != nil {
				return written, err
			}
		} else {
			id, err := e.store.CreateConsentRecord(ctx, rec)
			if err != nil {
				return written, err
			}
			rec.ID = id
		}
		known[k] = rec
		written++
	}
	return written, nil
}
