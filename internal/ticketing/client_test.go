package ticketing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"volunteer-attendance/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.TicketingConfig{
		BaseURL:        srv.URL,
		Token:          "secret-token",
		OrganizationID: "42",
		RequestTimeout: 200 * time.Millisecond,
	})
}

const eventsPage1 = `{
  "pagination": {"has_more_items": true, "continuation": "c2"},
  "events": [
    {"id": "E1", "name": {"text": " Beach Clean "}, "description": {"text": "Bring gloves"},
     "start": {"local": "2025-06-01T10:00:00", "utc": "2025-06-01T09:00:00Z"}, "url": "https://example.org/e/E1"}
  ]
}`

const eventsPage2 = `{
  "pagination": {"has_more_items": false},
  "events": [
    {"id": "E2", "name": {"text": "Dig Crew"}, "start": {"utc": "2025-06-08T23:30:00Z"}, "series_id": "S1"}
  ]
}`

func TestListOrgEvents_Paginates(t *testing.T) {
	var requests atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/organizations/42/events/", r.URL.Path)
		assert.Equal(t, "live", r.URL.Query().Get("status"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "volunteer-sync/"))

		switch r.URL.Query().Get("continuation") {
		case "":
			w.Write([]byte(eventsPage1))
		case "c2":
			w.Write([]byte(eventsPage2))
		default:
			t.Errorf("unexpected continuation %q", r.URL.Query().Get("continuation"))
		}
	})

	var events []Event
	for e, err := range c.ListOrgEvents(context.Background(), EventFilter{}) {
		require.NoError(t, err)
		events = append(events, e)
	}

	require.Len(t, events, 2)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, Event{
		ID:          "E1",
		Name:        "Beach Clean",
		Description: "Bring gloves",
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		URL:         "https://example.org/e/E1",
	}, events[0])
	// Falls back to the UTC start when no local start is given.
	assert.Equal(t, time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC), events[1].Date)
	assert.Equal(t, "S1", events[1].SeriesID)
}

func TestListOrgEvents_StopsWhenConsumerBreaks(t *testing.T) {
	var requests atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(eventsPage1))
	})

	for _, err := range c.ListOrgEvents(context.Background(), EventFilter{}) {
		require.NoError(t, err)
		break
	}
	assert.Equal(t, int32(1), requests.Load())
}

func TestListOrgEvents_ConsumedOnce(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(eventsPage2))
	})

	seq := c.ListOrgEvents(context.Background(), EventFilter{})
	for range seq {
	}

	var got error
	for _, err := range seq {
		got = err
	}
	assert.ErrorIs(t, got, ErrSequenceConsumed)
}

func TestListAttendees(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/E1/attendees/", r.URL.Path)
		assert.Equal(t, "attending", r.URL.Query().Get("status"))
		w.Write([]byte(`{
		  "pagination": {"has_more_items": false},
		  "attendees": [
		    {"profile": {"name": "Alice Smith"}, "ticket_class_name": "Adult", "created": "2025-05-20T08:15:00Z",
		     "answers": [{"question_id": "101", "answer": "Yes"}, {"question_id": "102"}]}
		  ]
		}`))
	})

	var attendees []Attendee
	for a, err := range c.ListAttendees(context.Background(), "E1", AttendeeFilter{}) {
		require.NoError(t, err)
		attendees = append(attendees, a)
	}

	require.Len(t, attendees, 1)
	a := attendees[0]
	assert.Equal(t, "Alice Smith", a.Name)
	assert.Equal(t, "Adult", a.TicketType)
	assert.Equal(t, time.Date(2025, 5, 20, 8, 15, 0, 0, time.UTC), a.RegisteredAt)
	assert.Equal(t, []Answer{{QuestionID: "101", Value: "Yes"}, {QuestionID: "102"}}, a.Answers)
}

func TestClient_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"INVALID_AUTH","error_description":"token invalid"}`))
	})

	for _, err := range c.ListOrgEvents(context.Background(), EventFilter{}) {
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"NOT_FOUND","error_description":"event not found"}`))
	})

	var got error
	for _, err := range c.ListAttendees(context.Background(), "E404", AttendeeFilter{}) {
		got = err
	}

	var apiErr *APIError
	require.True(t, errors.As(got, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.False(t, errors.Is(got, ErrUnauthorized))
}

func TestClient_PageTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	var got error
	for _, err := range c.ListAttendees(context.Background(), "E1", AttendeeFilter{}) {
		got = err
	}
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestParseDay(t *testing.T) {
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), parseDay("2025-03-31T23:59:59"))
	assert.True(t, parseDay("").IsZero())
	assert.True(t, parseDay("31/03/2025").IsZero())
}
