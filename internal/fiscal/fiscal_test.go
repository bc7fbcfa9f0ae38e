package fiscal

import (
	"testing"
	"time"
)

func TestLabel_Boundary(t *testing.T) {
	cases := []struct {
		date string
		want string
	}{
		{"2025-03-31", "FY2024"},
		{"2025-04-01", "FY2025"},
		{"2025-12-31", "FY2025"},
		{"2026-01-01", "FY2025"},
		{"2024-02-29", "FY2023"},
	}

	for _, tc := range cases {
		d, err := time.Parse("2006-01-02", tc.date)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.date, err)
		}
		if got := Label(d); got != tc.want {
			t.Errorf("Label(%s) = %s, want %s", tc.date, got, tc.want)
		}
	}
}

func TestYearOf_UsesUTC(t *testing.T) {
	// 00:30 on 1 April in UTC+2 is still 31 March in UTC.
	zone := time.FixedZone("UTC+2", 2*60*60)
	local := time.Date(2025, time.April, 1, 0, 30, 0, 0, zone)

	if got := YearOf(local); got != 2024 {
		t.Fatalf("YearOf(%s) = %d, want 2024", local, got)
	}
}

func TestYear_Range(t *testing.T) {
	y := Year(2025)
	if !y.Start().Equal(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %s", y.Start())
	}
	if !y.End().Equal(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %s", y.End())
	}
	if YearOf(y.End().Add(-time.Nanosecond)) != y {
		t.Errorf("last instant of year should belong to %s", y)
	}
}
