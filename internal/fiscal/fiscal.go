// Package fiscal maps calendar dates to April-to-March financial years.
package fiscal

import (
	"fmt"
	"time"
)

// StartMonth is the first month of a financial year.
const StartMonth = time.April

// Year is a financial year identified by the calendar year it starts in.
type Year int

// Label returns the display form used in attendance records, e.g. "FY2025".
func (y Year) Label() string {
	return fmt.Sprintf("FY%d", int(y))
}

func (y Year) String() string {
	return y.Label()
}

// Start returns the first instant of the financial year in UTC.
func (y Year) Start() time.Time {
	return time.Date(int(y), StartMonth, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant after the financial year in UTC.
func (y Year) End() time.Time {
	return y.Start().AddDate(1, 0, 0)
}

// YearOf returns the financial year containing t. The date is always taken in
// UTC so that callers in different zones agree on the boundary at midnight.
func YearOf(t time.Time) Year {
	t = t.UTC()
	if t.Month() >= StartMonth {
		return Year(t.Year())
	}
	return Year(t.Year() - 1)
}

// Label is shorthand for YearOf(t).Label().
func Label(t time.Time) string {
	return YearOf(t).Label()
}
