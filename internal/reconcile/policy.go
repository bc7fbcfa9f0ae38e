package reconcile

import (
	"strings"

	"volunteer-attendance/internal/config"
	"volunteer-attendance/internal/records"
)

const (
	TagChild        = "#Child"
	TagNewVolunteer = "#NewVolunteer"
)

// Policy is the fixed transformation applied to attendee data.
type Policy struct {
	// Attendee name the platform uses for seats whose holder has not been named yet.
	PlaceholderName string
	// Ticket labels containing this word are child tickets.
	ChildTicketWord string
	// Answers counted as acceptance, lower case.
	AcceptedAnswers []string
	// Custom question id -> consent type.
	ConsentQuestions map[string]records.ConsentType
}

func DefaultPolicy() Policy {
	return Policy{
		PlaceholderName: "Info Requested",
		ChildTicketWord: "child",
		AcceptedAnswers: []string{"yes", "accepted", "agree", "i agree"},
	}
}

func PolicyFromConfig(cfg *config.SyncConfig) Policy {
	p := DefaultPolicy()
	if cfg.PlaceholderName != "" {
		p.PlaceholderName = cfg.PlaceholderName
	}
	if cfg.ChildTicketWord != "" {
		p.ChildTicketWord = cfg.ChildTicketWord
	}
	if len(cfg.AcceptedAnswers) > 0 {
		p.AcceptedAnswers = nil
		for _, a := range cfg.AcceptedAnswers {
			p.AcceptedAnswers = append(p.AcceptedAnswers, strings.ToLower(strings.TrimSpace(a)))
		}
	}
	p.ConsentQuestions = make(map[string]records.ConsentType, len(cfg.ConsentQuestions))
	for id, typ := range cfg.ConsentQuestions {
		p.ConsentQuestions[id] = records.ConsentType(typ)
	}
	return p
}

func (p Policy) isPlaceholder(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(p.PlaceholderName))
}

func (p Policy) isChild(ticketType string) bool {
	word := strings.ToLower(p.ChildTicketWord)
	return word != "" && strings.Contains(strings.ToLower(ticketType), word)
}

// consentStatus maps an answer to a status. ok is false for empty answers.
func (p Policy) consentStatus(answer string) (status records.ConsentStatus, ok bool) {
	v := strings.ToLower(strings.TrimSpace(answer))
	if v == "" {
		return "", false
	}
	for _, a := range p.AcceptedAnswers {
		if v == a {
			return records.ConsentAccepted, true
		}
	}
	return records.ConsentDeclined, true
}

// entryNotes builds the tag markers stored in Entry notes.
func entryNotes(child, newVolunteer bool) string {
	var tags []string
	if child {
		tags = append(tags, TagChild)
	}
	if newVolunteer {
		tags = append(tags, TagNewVolunteer)
	}
	return strings.Join(tags, " ")
}
