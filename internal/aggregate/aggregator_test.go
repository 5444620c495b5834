package aggregate

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/goodtune/presenced/internal/storage"
	"github.com/rs/zerolog"
)

type staticStore struct {
	records []storage.SessionRecord
	err     error
}

func (s *staticStore) CloseSession(ctx context.Context, identityID, displayName string, start, end time.Time) error {
	return nil
}

func (s *staticStore) Records(ctx context.Context) ([]storage.SessionRecord, error) {
	return s.records, s.err
}

func rec(identityID, displayName, date string, durationSeconds int64) storage.SessionRecord {
	return storage.SessionRecord{
		IdentityID:      identityID,
		DisplayName:     displayName,
		StartTime:       1,
		EndTime:         1 + durationSeconds,
		DurationSeconds: durationSeconds,
		CalendarDate:    date,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregate_EmptyStore(t *testing.T) {
	agg := New(&staticStore{}, zerolog.Nop())

	report, err := agg.Aggregate(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(report.Users) != 0 || report.TotalSessions != 0 {
		t.Errorf("empty store report = %d users, %d sessions, want 0/0",
			len(report.Users), report.TotalSessions)
	}
}

func TestAggregate_StoreErrorIsSurfaced(t *testing.T) {
	agg := New(&staticStore{err: errors.New("read failed")}, zerolog.Nop())

	if _, err := agg.Aggregate(context.Background(), "", ""); err == nil {
		t.Error("Aggregate() with failing store succeeded, want error")
	}
}

func TestAggregate_PerIdentityTotals(t *testing.T) {
	store := &staticStore{records: []storage.SessionRecord{
		rec("U1", "alice", "2026-01-15", 3600),
		rec("U1", "alice", "2026-01-15", 1800),
		rec("U1", "alice", "2026-01-16", 7200),
		rec("U2", "bob", "2026-01-15", 900),
	}}
	agg := New(store, zerolog.Nop())

	report, err := agg.Aggregate(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if report.TotalSessions != 4 {
		t.Errorf("TotalSessions = %d, want 4", report.TotalSessions)
	}
	if len(report.Users) != 2 {
		t.Fatalf("got %d users, want 2", len(report.Users))
	}

	alice := report.Users[0]
	if alice.IdentityID != "U1" {
		t.Fatalf("first user = %s, want U1 (first-appearance order)", alice.IdentityID)
	}
	if !almostEqual(alice.TotalHours, 3.5) {
		t.Errorf("alice TotalHours = %v, want 3.5", alice.TotalHours)
	}
	// 3.5 hours over 2 distinct active days.
	if !almostEqual(alice.DailyAvgHours, 1.75) {
		t.Errorf("alice DailyAvgHours = %v, want 1.75", alice.DailyAvgHours)
	}
	if alice.SessionCount != 3 {
		t.Errorf("alice SessionCount = %d, want 3", alice.SessionCount)
	}

	bob := report.Users[1]
	if !almostEqual(bob.TotalHours, 0.25) || bob.SessionCount != 1 {
		t.Errorf("bob = %vh over %d sessions, want 0.25h over 1", bob.TotalHours, bob.SessionCount)
	}
}

func TestAggregate_SeriesSortedByDate(t *testing.T) {
	// Records deliberately out of chronological order.
	store := &staticStore{records: []storage.SessionRecord{
		rec("U1", "alice", "2026-01-17", 3600),
		rec("U1", "alice", "2026-01-15", 1800),
		rec("U1", "alice", "2026-01-16", 900),
		rec("U1", "alice", "2026-01-15", 1800),
	}}
	agg := New(store, zerolog.Nop())

	report, err := agg.Aggregate(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	series := report.Series["U1"]
	wantDates := []string{"2026-01-15", "2026-01-16", "2026-01-17"}
	if len(series) != len(wantDates) {
		t.Fatalf("got %d series points, want %d", len(series), len(wantDates))
	}
	for i, want := range wantDates {
		if series[i].Date != want {
			t.Errorf("series[%d].Date = %s, want %s", i, series[i].Date, want)
		}
	}
	// Same-day records fold into one point.
	if !almostEqual(series[0].Hours, 1.0) {
		t.Errorf("series[0].Hours = %v, want 1.0", series[0].Hours)
	}
}

func TestAggregate_DateRangeFilter(t *testing.T) {
	store := &staticStore{records: []storage.SessionRecord{
		rec("U1", "alice", "2026-01-14", 3600),
		rec("U1", "alice", "2026-01-15", 3600),
		rec("U1", "alice", "2026-01-16", 3600),
		rec("U1", "alice", "2026-01-17", 3600),
	}}
	agg := New(store, zerolog.Nop())

	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{"unbounded", "", "", 4},
		{"from only", "2026-01-16", "", 2},
		{"to only", "", "2026-01-15", 2},
		{"inclusive bounds", "2026-01-15", "2026-01-16", 2},
		{"no overlap", "2026-02-01", "2026-02-28", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := agg.Aggregate(context.Background(), tt.from, tt.to)
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			if report.TotalSessions != tt.want {
				t.Errorf("TotalSessions = %d, want %d", report.TotalSessions, tt.want)
			}
		})
	}
}

// Aggregation is a pure read; running it twice over the same store gives
// identical results.
func TestAggregate_Idempotent(t *testing.T) {
	store := &staticStore{records: []storage.SessionRecord{
		rec("U1", "alice", "2026-01-15", 3600),
		rec("U2", "bob", "2026-01-15", 1800),
	}}
	agg := New(store, zerolog.Nop())
	ctx := context.Background()

	first, err := agg.Aggregate(ctx, "", "")
	if err != nil {
		t.Fatalf("first Aggregate() error = %v", err)
	}
	second, err := agg.Aggregate(ctx, "", "")
	if err != nil {
		t.Fatalf("second Aggregate() error = %v", err)
	}

	if first.TotalSessions != second.TotalSessions || len(first.Users) != len(second.Users) {
		t.Errorf("reports differ: %d/%d sessions, %d/%d users",
			first.TotalSessions, second.TotalSessions, len(first.Users), len(second.Users))
	}
	for i := range first.Users {
		if first.Users[i] != second.Users[i] {
			t.Errorf("user %d differs between runs: %+v vs %+v", i, first.Users[i], second.Users[i])
		}
	}
}

func TestDailyStats(t *testing.T) {
	store := &staticStore{records: []storage.SessionRecord{
		rec("U1", "alice", "2026-01-15", 3600),
		rec("U1", "alice", "2026-01-15", 1800),
		rec("U1", "alice", "2026-01-16", 7200),
		rec("U2", "bob", "2026-01-15", 900),
	}}
	agg := New(store, zerolog.Nop())

	stats, err := agg.DailyStats(context.Background(), "U1", "2026-01-15")
	if err != nil {
		t.Fatalf("DailyStats() error = %v", err)
	}
	if stats.SessionCount != 2 || stats.TotalSeconds != 5400 {
		t.Errorf("stats = %d sessions, %ds, want 2 sessions, 5400s",
			stats.SessionCount, stats.TotalSeconds)
	}
	if !almostEqual(stats.AverageSeconds, 2700) {
		t.Errorf("AverageSeconds = %v, want 2700", stats.AverageSeconds)
	}
}

func TestDailyStats_NoMatches(t *testing.T) {
	agg := New(&staticStore{}, zerolog.Nop())

	stats, err := agg.DailyStats(context.Background(), "U1", "2026-01-15")
	if err != nil {
		t.Fatalf("DailyStats() error = %v", err)
	}
	if stats.SessionCount != 0 || stats.TotalSeconds != 0 || stats.AverageSeconds != 0 {
		t.Errorf("empty stats = %+v, want zeros", stats)
	}
}
