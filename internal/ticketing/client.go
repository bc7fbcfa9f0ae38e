package ticketing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"volunteer-attendance/internal/config"
	"volunteer-attendance/internal/utils"
)

var (
	ErrUnauthorized     = errors.New("registration platform rejected credentials")
	ErrSequenceConsumed = errors.New("sequence already consumed")
)

// APIError is a non-success response other than an authentication failure.
type APIError struct {
	StatusCode  int
	Path        string
	Code        string
	Description string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("ticketing API %s returned %d", e.Path, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

type Client struct {
	baseURL        string
	token          string
	organizationID string
	timeout        time.Duration

	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg *config.TicketingConfig) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		token:          cfg.Token,
		organizationID: cfg.OrganizationID,
		timeout:        timeout,
		http:           &http.Client{},
		limiter:        rate.NewLimiter(limit, burst),
		logger:         slog.With("component", "ticketing"),
	}
}

// get fetches one page into out. The request gets its own timeout on top of ctx.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("API request", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: GET %s returned %d", ErrUnauthorized, path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		apiErr := &APIError{StatusCode: resp.StatusCode, Path: path}
		var body errorBody
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)); json.Unmarshal(data, &body) == nil {
			apiErr.Code = body.Error
			apiErr.Description = body.ErrorDescription
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// paginate walks continuation-token pages lazily. A page is requested only
// when the consumer reaches it, and the sequence may be ranged over once.
func paginate[P any, T any](ctx context.Context, c *Client, path string, query url.Values, unpack func(*P) ([]T, pagination)) iter.Seq2[T, error] {
	var used atomic.Bool
	return func(yield func(T, error) bool) {
		var zero T
		if used.Swap(true) {
			yield(zero, ErrSequenceConsumed)
			return
		}

		continuation := ""
		for page := 1; ; page++ {
			q := url.Values{}
			for k, v := range query {
				q[k] = v
			}
			if continuation != "" {
				q.Set("continuation", continuation)
			}

			var body P
			if err := c.get(ctx, path, q, &body); err != nil {
				yield(zero, err)
				return
			}

			items, pg := unpack(&body)
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			if !pg.HasMoreItems || pg.Continuation == "" {
				c.logger.Debug("Pagination complete", "path", path, "pages", page)
				return
			}
			continuation = pg.Continuation
		}
	}
}

// ListOrgEvents returns the organisation's events, live ones by default.
func (c *Client) ListOrgEvents(ctx context.Context, filter EventFilter) iter.Seq2[Event, error] {
	status := filter.Status
	if status == "" {
		status = "live"
	}
	path := fmt.Sprintf("/organizations/%s/events/", url.PathEscape(c.organizationID))
	return paginate(ctx, c, path, url.Values{"status": {status}}, func(p *eventsPage) ([]Event, pagination) {
		events := make([]Event, 0, len(p.Events))
		for _, e := range p.Events {
			events = append(events, e.toEvent())
		}
		return events, p.Pagination
	})
}

// ListAttendees returns the attendees of one event, excluding cancelled
// registrations by default.
func (c *Client) ListAttendees(ctx context.Context, eventID string, filter AttendeeFilter) iter.Seq2[Attendee, error] {
	status := filter.Status
	if status == "" {
		status = "attending"
	}
	path := fmt.Sprintf("/events/%s/attendees/", url.PathEscape(eventID))
	return paginate(ctx, c, path, url.Values{"status": {status}}, func(p *attendeesPage) ([]Attendee, pagination) {
		attendees := make([]Attendee, 0, len(p.Attendees))
		for _, a := range p.Attendees {
			attendees = append(attendees, a.toAttendee())
		}
		return attendees, p.Pagination
	})
}
