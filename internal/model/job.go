package model

// JobConfig is one of the user's configured jobs. Weekday/weekend hours are
// the default shift durations used when the roster gives a start time only.
type JobConfig struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	WeekdayHours float64 `json:"weekday_hours,omitempty" yaml:"weekday_hours"`
	WeekendHours float64 `json:"weekend_hours,omitempty" yaml:"weekend_hours"`
}

// JobAlias remembers that a roster label maps to one of the user's jobs.
// Unique per (user, alias).
type JobAlias struct {
	Alias       string `json:"alias"`
	JobConfigID string `json:"job_config_id"`
}

// JobMapping is a user-chosen association between a roster job label and a
// job config, produced on the mapping screen. SaveAsAlias asks for the
// mapping to be remembered for future scans.
type JobMapping struct {
	RosterJobName string `json:"rosterJobName"`
	JobConfigID   string `json:"jobConfigId"`
	SaveAsAlias   bool   `json:"saveAsAlias"`
}
