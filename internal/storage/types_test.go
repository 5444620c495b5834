package storage

import (
	"testing"
	"time"
)

func TestSessionRecordValidate(t *testing.T) {
	valid := SessionRecord{
		IdentityID:      "U1",
		DisplayName:     "alice",
		StartTime:       1700000000,
		EndTime:         1700003600,
		DurationSeconds: 3600,
		CalendarDate:    "2023-11-14",
	}

	tests := []struct {
		name    string
		mutate  func(r *SessionRecord)
		wantErr bool
	}{
		{"valid", func(r *SessionRecord) {}, false},
		{"missing identity", func(r *SessionRecord) { r.IdentityID = "" }, true},
		{"zero start", func(r *SessionRecord) { r.StartTime = 0 }, true},
		{"end before start", func(r *SessionRecord) { r.EndTime = r.StartTime - 1 }, true},
		{"end equals start", func(r *SessionRecord) { r.EndTime = r.StartTime }, true},
		{"duration mismatch", func(r *SessionRecord) { r.DurationSeconds = 99 }, true},
		{"bad date format", func(r *SessionRecord) { r.CalendarDate = "14/11/2023" }, true},
		{"empty date", func(r *SessionRecord) { r.CalendarDate = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid
			tt.mutate(&rec)
			err := rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCalendarDate(t *testing.T) {
	at := time.Date(2026, time.January, 5, 23, 59, 59, 0, time.Local)
	if got := CalendarDate(at); got != "2026-01-05" {
		t.Errorf("CalendarDate() = %s, want 2026-01-05", got)
	}
}
