package storage

import (
	"errors"
	"time"
)

// Names of the lists provisioned by the migrations.
const (
	ListGroups         = "Groups"
	ListSessions       = "Sessions"
	ListProfiles       = "Profiles"
	ListEntries        = "Entries"
	ListConsentRecords = "ConsentRecords"
)

var (
	ErrListNotFound = errors.New("list not found")
	ErrItemNotFound = errors.New("list item not found")
)

// Fields holds the column values of one list item. Values are JSON compatible:
// strings, float64 numbers, bools or nil.
type Fields map[string]any

// Item is one row of a list.
type Item struct {
	ID       int64
	Fields   Fields
	Created  time.Time
	Modified time.Time
}

// selectFields returns a copy of fields limited to selector. A nil selector keeps every field.
func selectFields(fields Fields, selector []string) Fields {
	out := make(Fields, len(fields))
	if selector == nil {
		for k, v := range fields {
			out[k] = v
		}
		return out
	}
	for _, k := range selector {
		if v, ok := fields[k]; ok {
			out[k] = v
		}
	}
	return out
}
