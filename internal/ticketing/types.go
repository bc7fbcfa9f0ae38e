// Package ticketing reads events and attendee registrations from the
// Eventbrite v3 REST API.
package ticketing

import (
	"strings"
	"time"
)

// Event is a live event of the organisation. Date is the local start day at UTC midnight.
type Event struct {
	ID          string
	Name        string
	Description string
	Date        time.Time
	SeriesID    string
	URL         string
}

type Answer struct {
	QuestionID string
	Value      string
}

// Attendee is one ticket holder of an event.
type Attendee struct {
	Name         string
	TicketType   string
	RegisteredAt time.Time
	Answers      []Answer
}

type EventFilter struct {
	// Status defaults to "live".
	Status string
}

type AttendeeFilter struct {
	// Status defaults to "attending", which leaves out cancelled and refunded orders.
	Status string
}

// Wire format

type pagination struct {
	HasMoreItems bool   `json:"has_more_items"`
	Continuation string `json:"continuation"`
	PageCount    int    `json:"page_count"`
	ObjectCount  int    `json:"object_count"`
}

type multipartText struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

type datetimeTZ struct {
	Timezone string `json:"timezone"`
	Local    string `json:"local"`
	UTC      string `json:"utc"`
}

type apiEvent struct {
	ID          string        `json:"id"`
	Name        multipartText `json:"name"`
	Description multipartText `json:"description"`
	Start       datetimeTZ    `json:"start"`
	SeriesID    string        `json:"series_id"`
	URL         string        `json:"url"`
}

type eventsPage struct {
	Pagination pagination `json:"pagination"`
	Events     []apiEvent `json:"events"`
}

type apiAnswer struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

type apiAttendee struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	TicketClassName string      `json:"ticket_class_name"`
	Created         string      `json:"created"`
	Status          string      `json:"status"`
	Answers         []apiAnswer `json:"answers"`
}

type attendeesPage struct {
	Pagination pagination    `json:"pagination"`
	Attendees  []apiAttendee `json:"attendees"`
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// parseDay returns the calendar day of an API timestamp ("2025-06-01T10:00:00"
// or "2025-06-01T09:00:00Z") at UTC midnight.
func parseDay(s string) time.Time {
	s = strings.TrimSpace(s)
	if len(s) < len(time.DateOnly) {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)])
	if err != nil {
		return time.Time{}
	}
	return t
}

func (e apiEvent) toEvent() Event {
	date := parseDay(e.Start.Local)
	if date.IsZero() {
		date = parseDay(e.Start.UTC)
	}
	return Event{
		ID:          e.ID,
		Name:        strings.TrimSpace(e.Name.Text),
		Description: strings.TrimSpace(e.Description.Text),
		Date:        date,
		SeriesID:    e.SeriesID,
		URL:         e.URL,
	}
}

func (a apiAttendee) toAttendee() Attendee {
	registered, _ := time.Parse(time.RFC3339, a.Created)
	out := Attendee{
		Name:         a.Profile.Name,
		TicketType:   a.TicketClassName,
		RegisteredAt: registered.UTC(),
	}
	for _, ans := range a.Answers {
		out.Answers = append(out.Answers, Answer{QuestionID: ans.QuestionID, Value: ans.Answer})
	}
	return out
}
