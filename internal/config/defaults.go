package config

var defaults = map[string]any{
	"log_level": "info",

	"listen":           ":8080",
	"allowed_networks": "",
	"base_url":         "/",

	"storage.type":         "sqlite",
	"storage.schema":       "current",
	"storage.sqlite.path":  "./data/attendance.db",
	"storage.postgres.dsn": "",

	"ticketing.base_url":            DEFAULT_TICKETING_URL,
	"ticketing.token":               "",
	"ticketing.organization_id":     "",
	"ticketing.request_timeout":     "30s",
	"ticketing.requests_per_second": 5.0,
	"ticketing.burst":               5,

	"sync.interval":          "0s",
	"sync.lock_ttl":          "10m",
	"sync.placeholder_name":  "Info Requested",
	"sync.child_ticket_word": "child",
	"sync.accepted_answers":  []string{"yes", "accepted", "agree", "i agree"},
	"sync.consent_questions": map[string]string{},

	"report.recipients": []string{},
	"report.subject":    "Volunteer sync report",

	"email.host":     "host.docker.internal",
	"email.port":     25,
	"email.username": "",
	"email.password": "",
	"email.from":     "noreply@example.com",
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
