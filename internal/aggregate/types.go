package aggregate

// UserStats summarizes one identity over the aggregated range.
type UserStats struct {
	IdentityID    string  `json:"identity_id"`
	DisplayName   string  `json:"display_name"`
	TotalHours    float64 `json:"total_hours"`
	DailyAvgHours float64 `json:"daily_avg_hours"`
	SessionCount  int     `json:"session_count"`
}

// SeriesPoint is one day's total for an identity, for charting.
type SeriesPoint struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

// Report is the result of one aggregation run. Users appear in order of
// first appearance in the store; each Series is sorted by ascending date.
// Rebuilt fresh on every run, never persisted.
type Report struct {
	Users         []UserStats              `json:"users"`
	Series        map[string][]SeriesPoint `json:"series"` // keyed by identity ID
	TotalSessions int                      `json:"total_sessions"`
}

// DailyStats summarizes one identity on one calendar date.
type DailyStats struct {
	IdentityID     string  `json:"identity_id"`
	Date           string  `json:"date"`
	SessionCount   int     `json:"session_count"`
	TotalSeconds   int64   `json:"total_seconds"`
	AverageSeconds float64 `json:"average_seconds"`
}
