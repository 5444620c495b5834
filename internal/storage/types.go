package storage

import (
	"fmt"
	"time"
)

// DateFormat is the calendar date layout used throughout the session log.
const DateFormat = "2006-01-02"

// SessionRecord is one persisted presence session. Timestamps are epoch
// seconds; CalendarDate is the local date of StartTime. A record may be
// extended by a merge (EndTime/DurationSeconds updated) but StartTime and
// CalendarDate never change after creation.
type SessionRecord struct {
	IdentityID      string `json:"identity_id"`
	DisplayName     string `json:"display_name"`
	StartTime       int64  `json:"start_time"`
	EndTime         int64  `json:"end_time"`
	DurationSeconds int64  `json:"duration_seconds"`
	CalendarDate    string `json:"calendar_date"`
}

// Validate checks the structural invariants of a loaded record. Records
// that fail are quarantined at load time rather than propagated into the
// merge logic. The CalendarDate/StartTime relationship is checked for
// format only: re-deriving the date would reject valid records written
// under a different local timezone.
func (r SessionRecord) Validate() error {
	if r.IdentityID == "" {
		return fmt.Errorf("missing identity_id")
	}
	if r.StartTime <= 0 {
		return fmt.Errorf("invalid start_time %d", r.StartTime)
	}
	if r.EndTime <= r.StartTime {
		return fmt.Errorf("end_time %d not after start_time %d", r.EndTime, r.StartTime)
	}
	if r.DurationSeconds != r.EndTime-r.StartTime {
		return fmt.Errorf("duration_seconds %d does not match interval %d", r.DurationSeconds, r.EndTime-r.StartTime)
	}
	if _, err := time.Parse(DateFormat, r.CalendarDate); err != nil {
		return fmt.Errorf("invalid calendar_date %q", r.CalendarDate)
	}
	return nil
}

// CalendarDate returns the local calendar date of t in store format.
func CalendarDate(t time.Time) string {
	return t.Format(DateFormat)
}
