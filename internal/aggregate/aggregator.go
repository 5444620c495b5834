package aggregate

import (
	"context"
	"sort"

	"github.com/goodtune/presenced/internal/storage"
	"github.com/rs/zerolog"
)

// Aggregator is a read-only consumer of the session store producing
// per-identity statistics and chronological series.
type Aggregator struct {
	store  storage.SessionStore
	logger zerolog.Logger
}

// New creates an aggregator over the given store.
func New(store storage.SessionStore, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate builds a report over records whose calendar date falls within
// [from, to]. Dates are YYYY-MM-DD strings; an empty bound is unbounded,
// so Aggregate(ctx, "", "") covers the whole store. An empty store yields
// an empty report, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, from, to string) (*Report, error) {
	records, err := a.store.Records(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Series: make(map[string][]SeriesPoint),
	}

	type identityAcc struct {
		displayName  string
		totalSeconds int64
		sessionCount int
		daySeconds   map[string]int64
	}

	accs := make(map[string]*identityAcc)
	var order []string

	for _, rec := range records {
		if !inRange(rec.CalendarDate, from, to) {
			continue
		}

		acc, ok := accs[rec.IdentityID]
		if !ok {
			acc = &identityAcc{daySeconds: make(map[string]int64)}
			accs[rec.IdentityID] = acc
			order = append(order, rec.IdentityID)
		}
		acc.displayName = rec.DisplayName
		acc.totalSeconds += rec.DurationSeconds
		acc.sessionCount++
		acc.daySeconds[rec.CalendarDate] += rec.DurationSeconds
	}

	for _, identityID := range order {
		acc := accs[identityID]

		// Grouping guarantees at least one record and therefore at least
		// one active day per accumulated identity.
		totalHours := float64(acc.totalSeconds) / 3600.0
		activeDays := len(acc.daySeconds)

		report.Users = append(report.Users, UserStats{
			IdentityID:    identityID,
			DisplayName:   acc.displayName,
			TotalHours:    totalHours,
			DailyAvgHours: totalHours / float64(activeDays),
			SessionCount:  acc.sessionCount,
		})
		report.TotalSessions += acc.sessionCount

		series := make([]SeriesPoint, 0, activeDays)
		for date, seconds := range acc.daySeconds {
			series = append(series, SeriesPoint{
				Date:  date,
				Hours: float64(seconds) / 3600.0,
			})
		}
		sort.Slice(series, func(i, j int) bool {
			return series[i].Date < series[j].Date
		})
		report.Series[identityID] = series
	}

	a.logger.Debug().
		Int("records", len(records)).
		Int("identities", len(report.Users)).
		Int("total_sessions", report.TotalSessions).
		Msg("Aggregation complete")
	return report, nil
}

// DailyStats summarizes one identity on one calendar date.
func (a *Aggregator) DailyStats(ctx context.Context, identityID, date string) (*DailyStats, error) {
	records, err := a.store.Records(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DailyStats{
		IdentityID: identityID,
		Date:       date,
	}
	for _, rec := range records {
		if rec.IdentityID != identityID || rec.CalendarDate != date {
			continue
		}
		stats.SessionCount++
		stats.TotalSeconds += rec.DurationSeconds
	}
	if stats.SessionCount > 0 {
		stats.AverageSeconds = float64(stats.TotalSeconds) / float64(stats.SessionCount)
	}
	return stats, nil
}

// inRange reports whether a calendar date lies within the requested
// bounds. YYYY-MM-DD strings order lexicographically, so plain string
// comparison is exact.
func inRange(date, from, to string) bool {
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}
