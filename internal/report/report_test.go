package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"volunteer-attendance/internal/config"
	"volunteer-attendance/internal/email"
	"volunteer-attendance/internal/reconcile"
)

type recordingSender struct {
	sent []*email.Message
}

func (r *recordingSender) Send(_ context.Context, msg *email.Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func resultWithIssues() reconcile.CombinedResult {
	start := time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC)
	return reconcile.CombinedResult{
		RunID:      "run-1",
		Summary:    "2 events, 1 matched, 1 new sessions / 1 sessions, 0 new profiles, 0 new entries, 0 consent records",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Sessions: reconcile.DiscoveryResult{
			UnmatchedEvents: []reconcile.UnmatchedEvent{{
				ExternalID: "E2", Name: "Night <Walk>", SeriesID: "S9",
				Date: time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC),
			}},
		},
		Attendees: reconcile.AttendeeResult{
			Errors: []reconcile.SessionError{{SessionID: 4, ExternalEventID: "E4", Error: "timeout"}},
		},
	}
}

func TestRender(t *testing.T) {
	body, err := Render(resultWithIssues())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for _, want := range []string{"run-1", "2025-05-09", "Night &lt;Walk&gt;", "S9", "E4", "timeout"} {
		if !strings.Contains(body, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestNotify_SendsOnlyWhenNeeded(t *testing.T) {
	sender := &recordingSender{}
	r := NewReporter(sender, &config.ReportConfig{Recipients: []string{"ops@example.org"}})

	sent, err := r.Notify(context.Background(), reconcile.CombinedResult{RunID: "clean"})
	if err != nil || sent {
		t.Fatalf("clean run should not be reported, sent=%v err=%v", sent, err)
	}

	sent, err = r.Notify(context.Background(), resultWithIssues())
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if !sent || len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	if sender.sent[0].Subject != "Volunteer sync report" {
		t.Errorf("unexpected subject %q", sender.sent[0].Subject)
	}
}

func TestNotify_NoRecipients(t *testing.T) {
	sender := &recordingSender{}
	r := NewReporter(sender, &config.ReportConfig{})
	if sent, _ := r.Notify(context.Background(), resultWithIssues()); sent {
		t.Fatal("should not send without recipients")
	}
}
