// Package report emails operators about sync runs that need attention.
package report

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"log/slog"

	"volunteer-attendance/internal/config"
	"volunteer-attendance/internal/email"
	"volunteer-attendance/internal/reconcile"
)

//go:embed templates/*.html
var templatesFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templatesFS, "templates/report.html"))

type Reporter struct {
	sender     email.Sender
	recipients []string
	subject    string
	logger     *slog.Logger
}

func NewReporter(sender email.Sender, cfg *config.ReportConfig) *Reporter {
	subject := cfg.Subject
	if subject == "" {
		subject = "Volunteer sync report"
	}
	return &Reporter{
		sender:     sender,
		recipients: cfg.Recipients,
		subject:    subject,
		logger:     slog.With("component", "report"),
	}
}

// Render returns the HTML body for a run.
func Render(result reconcile.CombinedResult) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, struct{ Result reconcile.CombinedResult }{result}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Notify mails the run report when it has unmatched events or failed
// sessions. Runs that went cleanly send nothing. sent reports whether a
// message went out.
func (r *Reporter) Notify(ctx context.Context, result reconcile.CombinedResult) (sent bool, err error) {
	if len(r.recipients) == 0 || !result.NeedsAttention() {
		return false, nil
	}

	body, err := Render(result)
	if err != nil {
		return false, err
	}

	msg := &email.Message{
		To:      r.recipients,
		Subject: r.subject,
		HTML:    body,
	}
	if err := r.sender.Send(ctx, msg); err != nil {
		return false, err
	}
	r.logger.Info("Sent sync report", "run_id", result.RunID, "recipients", len(r.recipients))
	return true, nil
}
