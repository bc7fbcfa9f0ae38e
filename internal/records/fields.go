package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"volunteer-attendance/internal/storage"
)

// FieldMap names the list columns backing each entity attribute. Deployments
// provisioned before the current naming keep their column names through the
// Legacy map.
type FieldMap struct {
	Title       string
	Key         string
	Description string

	SeriesID string

	Date     string
	GroupRef string
	EventID  string
	URL      string

	MatchKey string
	IsGroup  string

	SessionRef string
	ProfileRef string
	Count      string
	CheckedIn  string
	Hours      string
	Notes      string
	FiscalYear string

	ConsentType string
	Status      string
	ConsentDate string
}

var CurrentFields = FieldMap{
	Title:       "Title",
	Key:         "Key",
	Description: "Description",
	SeriesID:    "ExternalSeriesId",
	Date:        "Date",
	GroupRef:    "GroupLookupId",
	EventID:     "ExternalEventId",
	URL:         "ExternalUrl",
	MatchKey:    "MatchKey",
	IsGroup:     "IsGroup",
	SessionRef:  "SessionLookupId",
	ProfileRef:  "ProfileLookupId",
	Count:       "Count",
	CheckedIn:   "CheckedIn",
	Hours:       "Hours",
	Notes:       "Notes",
	FiscalYear:  "FinancialYear",
	ConsentType: "ConsentType",
	Status:      "Status",
	ConsentDate: "ConsentDate",
}

var LegacyFields = FieldMap{
	Title:       "Title",
	Key:         "Name",
	Description: "Notes",
	SeriesID:    "EventbriteSeriesID",
	Date:        "SessionDate",
	GroupRef:    "CrewLookupId",
	EventID:     "EventbriteEventID",
	URL:         "EventbriteUrl",
	MatchKey:    "SearchName",
	IsGroup:     "IsGroupBooking",
	SessionRef:  "EventLookupId",
	ProfileRef:  "VolunteerLookupId",
	Count:       "Number",
	CheckedIn:   "Attended",
	Hours:       "Hours",
	Notes:       "Notes",
	FiscalYear:  "FY",
	ConsentType: "RecordType",
	Status:      "RecordStatus",
	ConsentDate: "RecordDate",
}

// FieldMapFor returns the field map for a storage schema name.
func FieldMapFor(schema string) (FieldMap, error) {
	switch strings.ToLower(schema) {
	case "", "current":
		return CurrentFields, nil
	case "legacy":
		return LegacyFields, nil
	default:
		return FieldMap{}, fmt.Errorf("%w: unknown schema %q", ErrInvalidValue, schema)
	}
}

func (m FieldMap) encodeGroup(g Group) storage.Fields {
	f := storage.Fields{
		m.Title:       g.Name,
		m.Key:         g.Key,
		m.Description: g.Description,
	}
	if g.ExternalSeriesID != "" {
		f[m.SeriesID] = g.ExternalSeriesID
	}
	return f
}

func (m FieldMap) decodeGroup(it storage.Item) Group {
	return Group{
		ID:               it.ID,
		Key:              fieldString(it.Fields, m.Key),
		Name:             fieldString(it.Fields, m.Title),
		Description:      fieldString(it.Fields, m.Description),
		ExternalSeriesID: fieldString(it.Fields, m.SeriesID),
	}
}

func (m FieldMap) encodeSession(s Session) storage.Fields {
	f := storage.Fields{
		m.Title:       s.Name,
		m.Key:         s.Key,
		m.Date:        s.Date.UTC().Format(DateLayout),
		m.EventID:     s.ExternalEventID,
		m.URL:         s.ExternalURL,
		m.Description: s.Description,
	}
	if s.GroupID > 0 {
		f[m.GroupRef] = s.GroupID
	}
	return f
}

func (m FieldMap) decodeSession(it storage.Item) Session {
	return Session{
		ID:              it.ID,
		Key:             fieldString(it.Fields, m.Key),
		Name:            fieldString(it.Fields, m.Title),
		Description:     fieldString(it.Fields, m.Description),
		Date:            fieldDate(it.Fields, m.Date),
		GroupID:         fieldInt64(it.Fields, m.GroupRef),
		ExternalEventID: fieldString(it.Fields, m.EventID),
		ExternalURL:     fieldString(it.Fields, m.URL),
	}
}

func (m FieldMap) encodeProfile(p Profile) storage.Fields {
	return storage.Fields{
		m.Title:    p.Name,
		m.MatchKey: p.MatchKey,
		m.IsGroup:  p.IsGroup,
	}
}

func (m FieldMap) decodeProfile(it storage.Item) Profile {
	return Profile{
		ID:       it.ID,
		Name:     fieldString(it.Fields, m.Title),
		MatchKey: fieldString(it.Fields, m.MatchKey),
		IsGroup:  fieldBool(it.Fields, m.IsGroup),
	}
}

func (m FieldMap) encodeEntry(e Entry) storage.Fields {
	return storage.Fields{
		m.SessionRef: e.SessionID,
		m.ProfileRef: e.ProfileID,
		m.Count:      e.Count,
		m.CheckedIn:  e.CheckedIn,
		m.Hours:      e.Hours,
		m.Notes:      e.Notes,
		m.FiscalYear: e.FiscalYear,
	}
}

func (m FieldMap) decodeEntry(it storage.Item) Entry {
	return Entry{
		ID:         it.ID,
		SessionID:  fieldInt64(it.Fields, m.SessionRef),
		ProfileID:  fieldInt64(it.Fields, m.ProfileRef),
		Count:      int(fieldInt64(it.Fields, m.Count)),
		CheckedIn:  fieldBool(it.Fields, m.CheckedIn),
		Hours:      fieldFloat(it.Fields, m.Hours),
		Notes:      fieldString(it.Fields, m.Notes),
		FiscalYear: fieldString(it.Fields, m.FiscalYear),
	}
}

func (m FieldMap) encodeConsent(c ConsentRecord) storage.Fields {
	return storage.Fields{
		m.ProfileRef:  c.ProfileID,
		m.ConsentType: string(c.Type),
		m.Status:      string(c.Status),
		m.ConsentDate: c.Date.UTC().Format(time.RFC3339),
	}
}

func (m FieldMap) decodeConsent(it storage.Item) ConsentRecord {
	return ConsentRecord{
		ID:        it.ID,
		ProfileID: fieldInt64(it.Fields, m.ProfileRef),
		Type:      ConsentType(fieldString(it.Fields, m.ConsentType)),
		Status:    ConsentStatus(fieldString(it.Fields, m.Status)),
		Date:      fieldDate(it.Fields, m.ConsentDate),
	}
}

// Field accessors tolerate the value shapes produced by JSON decoding and by
// hand-edited rows (numbers stored as strings and the like).

func fieldString(f storage.Fields, name string) string {
	switch v := f[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func fieldInt64(f storage.Fields, name string) int64 {
	switch v := f[name].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	}
	return 0
}

func fieldFloat(f storage.Fields, name string) float64 {
	switch v := f[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		n, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n
	}
	return 0
}

func fieldBool(f storage.Fields, name string) bool {
	switch v := f[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case float64:
		return v != 0
	}
	return false
}

// fieldDate accepts a plain date or an RFC 3339 timestamp. Plain dates are UTC midnight.
func fieldDate(f storage.Fields, name string) time.Time {
	s := strings.TrimSpace(fieldString(f, name))
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t
	}
	if len(s) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return t
		}
	}
	return time.Time{}
}
