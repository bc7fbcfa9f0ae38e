// Package records maps list items to the attendance entities and back.
package records

import (
	"errors"
	"time"
)

var (
	ErrInvalidReference = errors.New("referenced record does not exist")
	ErrMissingField     = errors.New("required field missing")
	ErrInvalidValue     = errors.New("invalid field value")
	ErrDuplicate        = errors.New("duplicate external identifier")
)

// DateLayout is the on-disk form of calendar dates.
const DateLayout = "2006-01-02"

type ConsentType string

const (
	PrivacyConsent ConsentType = "Privacy Consent"
	PhotoConsent   ConsentType = "Photo Consent"
)

type ConsentStatus string

const (
	ConsentInvited  ConsentStatus = "Invited"
	ConsentAccepted ConsentStatus = "Accepted"
	ConsentDeclined ConsentStatus = "Declined"
)

func (s ConsentStatus) Valid() bool {
	switch s {
	case ConsentInvited, ConsentAccepted, ConsentDeclined:
		return true
	}
	return false
}

// Group is a recurring volunteer crew. Groups are created by operators only.
type Group struct {
	ID               int64  `json:"id" yaml:"-"`
	Key              string `json:"key" yaml:"key"`
	Name             string `json:"name" yaml:"name"`
	Description      string `json:"description,omitempty" yaml:"description"`
	ExternalSeriesID string `json:"externalSeriesId,omitempty" yaml:"series_id"`
}

// Session is one scheduled event. Date is a calendar day at UTC midnight.
type Session struct {
	ID              int64     `json:"id"`
	Key             string    `json:"key"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Date            time.Time `json:"date"`
	GroupID         int64     `json:"groupId,omitempty"`
	ExternalEventID string    `json:"externalEventId,omitempty"`
	ExternalURL     string    `json:"externalUrl,omitempty"`
}

// Profile is a volunteer identity. MatchKey is derived from the name the
// profile was first seen with and is not changed by renames.
type Profile struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	MatchKey string `json:"matchKey"`
	IsGroup  bool   `json:"isGroup"`
}

// Entry is one attendance fact for a (Session, Profile) pair.
type Entry struct {
	ID         int64   `json:"id"`
	SessionID  int64   `json:"sessionId"`
	ProfileID  int64   `json:"profileId"`
	Count      int     `json:"count"`
	CheckedIn  bool    `json:"checkedIn"`
	Hours      float64 `json:"hours"`
	Notes      string  `json:"notes,omitempty"`
	FiscalYear string  `json:"fiscalYear"`
}

// ConsentRecord is the latest known consent answer of a profile for one type.
type ConsentRecord struct {
	ID        int64         `json:"id"`
	ProfileID int64         `json:"profileId"`
	Type      ConsentType   `json:"type"`
	Status    ConsentStatus `json:"status"`
	Date      time.Time     `json:"date"`
}
