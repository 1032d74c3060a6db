package model

// ScanUsage is the monthly scan counter for a user.
type ScanUsage struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// Exhausted reports whether the user has no scans left this month.
func (u ScanUsage) Exhausted() bool {
	return u.Used >= u.Limit
}

// Remaining returns the number of scans left, never negative.
func (u ScanUsage) Remaining() int {
	if u.Used >= u.Limit {
		return 0
	}
	return u.Limit - u.Used
}
