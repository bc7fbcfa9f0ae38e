// Package testfixtures provides in-process stand-ins for the registration
// platform and the wall clock.
package testfixtures

import (
	"context"
	"iter"
	"sync"

	"volunteer-attendance/internal/ticketing"
)

// Source is an in-memory registration platform. Errors set for an event id
// are returned after any attendees already queued for that event.
type Source struct {
	mu sync.Mutex

	Events        []ticketing.Event
	EventsErr     error
	Attendees     map[string][]ticketing.Attendee
	AttendeeErrs  map[string]error
	AttendeeCalls []string
}

func NewSource() *Source {
	return &Source{
		Attendees:    map[string][]ticketing.Attendee{},
		AttendeeErrs: map[string]error{},
	}
}

func (s *Source) AddEvent(e ticketing.Event, attendees ...ticketing.Attendee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, e)
	s.Attendees[e.ID] = append(s.Attendees[e.ID], attendees...)
}

func (s *Source) ListOrgEvents(ctx context.Context, _ ticketing.EventFilter) iter.Seq2[ticketing.Event, error] {
	s.mu.Lock()
	events := append([]ticketing.Event(nil), s.Events...)
	err := s.EventsErr
	s.mu.Unlock()

	return func(yield func(ticketing.Event, error) bool) {
		if err != nil {
			yield(ticketing.Event{}, err)
			return
		}
		for _, e := range events {
			if ctx.Err() != nil {
				yield(ticketing.Event{}, ctx.Err())
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *Source) ListAttendees(ctx context.Context, eventID string, _ ticketing.AttendeeFilter) iter.Seq2[ticketing.Attendee, error] {
	s.mu.Lock()
	s.AttendeeCalls = append(s.AttendeeCalls, eventID)
	attendees := append([]ticketing.Attendee(nil), s.Attendees[eventID]...)
	err := s.AttendeeErrs[eventID]
	s.mu.Unlock()

	return func(yield func(ticketing.Attendee, error) bool) {
		for _, a := range attendees {
			if !yield(a, nil) {
				return
			}
		}
		if err != nil {
			yield(ticketing.Attendee{}, err)
		}
	}
}

// Calls returns the event ids attendees were requested for, in order.
func (s *Source) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.AttendeeCalls...)
}
