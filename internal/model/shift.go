package model

import "time"

// ParsedShift is a single shift extracted from a roster by the filter phase.
// MappedJobID is either empty or the id of a currently-known job config;
// stale references are cleared during reconciliation.
type ParsedShift struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"` // YYYY-MM-DD
	RosterJobName string   `json:"rosterJobName"`
	MappedJobID   string   `json:"mappedJobId,omitempty"`
	Selected      bool     `json:"selected"`
	StartTime     string   `json:"startTime,omitempty"` // HH:MM
	EndTime       string   `json:"endTime,omitempty"`   // HH:MM
	TotalHours    *float64 `json:"totalHours,omitempty"`
}

// ShiftRecord is the finished record handed to the shift store at commit.
type ShiftRecord struct {
	ID          string  `json:"id"`
	JobConfigID string  `json:"job_config_id"`
	Date        string  `json:"date"`
	StartTime   string  `json:"start_time,omitempty"`
	EndTime     string  `json:"end_time,omitempty"`
	Hours       float64 `json:"hours"`
}

// IdentifiedPerson is the roster owner the remote service believes it found.
// Advisory only; never required for correctness.
type IdentifiedPerson struct {
	Name       string `json:"name,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

// ParseShiftDate parses the shift date in its wire format.
func ParseShiftDate(date string) (time.Time, error) {
	return time.Parse("2006-01-02", date)
}

// IsWeekend reports whether the shift date falls on a Saturday or Sunday.
// Unparseable dates count as weekdays.
func IsWeekend(date string) bool {
	d, err := ParseShiftDate(date)
	if err != nil {
		return false
	}
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
