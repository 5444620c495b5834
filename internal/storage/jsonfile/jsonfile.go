package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goodtune/presenced/internal/metrics"
	"github.com/goodtune/presenced/internal/storage"
	"github.com/rs/zerolog"
)

// Store implements storage.SessionStore on a single JSON document.
//
// Every write is a whole-document read-modify-write guarded by a single
// mutex, so two concurrent closes (or a close racing a flush) can never
// lose a record, and an interrupted write never leaves a partially
// written store behind.
type Store struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// Open opens (creating if necessary) a JSON-file backed session store.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	s := &Store{
		path:   path,
		logger: logger.With().Str("component", "session-store").Logger(),
		now:    time.Now,
	}

	// An empty array is the valid initial state.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(nil); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// CloseSession records a finished session, merging near-contiguous
// sessions for the same identity and date into one record.
func (s *Store) CloseSession(ctx context.Context, identityID, displayName string, start, end time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now()
	if !end.After(start) {
		s.logger.Warn().
			Str("identity_id", identityID).
			Time("start", start).
			Time("end", end).
			Msg("Discarding session with non-positive duration")
		metrics.InvalidEventsTotal.WithLabelValues("non_positive_duration").Inc()
		return storage.ErrInvalidInterval
	}
	if start.After(now) || end.After(now) {
		s.logger.Warn().
			Str("identity_id", identityID).
			Time("start", start).
			Time("end", end).
			Msg("Discarding session with future timestamps")
		metrics.InvalidEventsTotal.WithLabelValues("future_timestamp").Inc()
		return storage.ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		metrics.StoreErrors.WithLabelValues("read").Inc()
		return fmt.Errorf("load session log: %w", err)
	}

	// A session crossing midnight still produces one record keyed by the
	// start date; records are never split at day boundaries.
	date := storage.CalendarDate(start)
	startUnix := start.Unix()
	endUnix := end.Unix()

	// Scan backward: sessions arrive roughly in time order, so the most
	// recently appended matching record is the merge candidate.
	merged := false
	for i := len(records) - 1; i >= 0; i-- {
		rec := &records[i]
		if rec.IdentityID != identityID || rec.CalendarDate != date {
			continue
		}
		gap := startUnix - rec.EndTime
		if gap < 0 {
			gap = -gap
		}
		if gap <= int64(storage.MergeThreshold/time.Second) {
			// Extend the record; duration is recomputed from its original
			// start, which never changes.
			rec.EndTime = endUnix
			rec.DurationSeconds = endUnix - rec.StartTime
			merged = true

			s.logger.Info().
				Str("identity_id", identityID).
				Str("display_name", rec.DisplayName).
				Str("date", date).
				Int64("duration_seconds", rec.DurationSeconds).
				Msg("Merged session into existing record")
			break
		}
	}

	if !merged {
		records = append(records, storage.SessionRecord{
			IdentityID:      identityID,
			DisplayName:     displayName,
			StartTime:       startUnix,
			EndTime:         endUnix,
			DurationSeconds: endUnix - startUnix,
			CalendarDate:    date,
		})

		s.logger.Info().
			Str("identity_id", identityID).
			Str("display_name", displayName).
			Str("date", date).
			Int64("duration_seconds", endUnix-startUnix).
			Msg("Appended new session record")
	}

	if err := s.save(records); err != nil {
		metrics.StoreErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("save session log: %w", err)
	}

	metrics.SessionsClosed.Inc()
	if merged {
		metrics.SessionsMerged.Inc()
	}
	return nil
}

// Records returns the persisted session sequence in stored order.
func (s *Store) Records(ctx context.Context) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		metrics.StoreErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("load session log: %w", err)
	}
	return records, nil
}

// load reads and validates the full document. Malformed records are
// quarantined (skipped and logged), never handed to the merge logic.
// Must be called with the mutex held.
func (s *Store) load() ([]storage.SessionRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var raw []storage.SessionRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode session log: %w", err)
	}

	records := raw[:0]
	for _, rec := range raw {
		if err := rec.Validate(); err != nil {
			s.logger.Warn().
				Err(err).
				Str("identity_id", rec.IdentityID).
				Str("date", rec.CalendarDate).
				Msg("Quarantined malformed session record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// save writes the full document atomically: write a temp file in the same
// directory, then rename over the store path. Must be called with the
// mutex held.
func (s *Store) save(records []storage.SessionRecord) error {
	if records == nil {
		records = []storage.SessionRecord{}
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode session log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace session log: %w", err)
	}
	return nil
}
