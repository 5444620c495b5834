package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/presenced/internal/metrics"
	"github.com/goodtune/presenced/internal/storage"
	"github.com/rs/zerolog"
)

// identityState is the in-memory tracking entry for one monitored
// identity. sessionStart is zero when no session is open.
type identityState struct {
	displayName  string
	status       Status
	sessionStart time.Time
}

// Tracker converts a stream of status-change events into session open and
// close transitions, writing closed sessions to the session store.
//
// One mutex serializes the event path, the flush/refresh path, and the
// shutdown path, so a flush can never race an in-flight transition.
type Tracker struct {
	store    storage.SessionStore
	notifier Notifier
	logger   zerolog.Logger
	mu       sync.Mutex
	states   map[string]*identityState
	now      func() time.Time
}

// New creates a presence tracker. notifier may be nil.
func New(store storage.SessionStore, notifier Notifier, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "tracker").Logger(),
		states:   make(map[string]*identityState),
		now:      time.Now,
	}
}

// Observe processes one status-change event for an identity. Events with
// timestamps in the future are discarded. Events that do not change the
// stored status are ignored.
func (t *Tracker) Observe(ctx context.Context, identityID, displayName string, status Status, eventTime time.Time) {
	if !status.Valid() {
		t.logger.Warn().
			Str("identity_id", identityID).
			Str("status", string(status)).
			Msg("Discarding event with unknown status")
		metrics.InvalidEventsTotal.WithLabelValues("unknown_status").Inc()
		return
	}
	if eventTime.After(t.now()) {
		t.logger.Warn().
			Str("identity_id", identityID).
			Time("event_time", eventTime).
			Msg("Discarding event with future timestamp")
		metrics.InvalidEventsTotal.WithLabelValues("future_timestamp").Inc()
		return
	}

	t.mu.Lock()

	state, ok := t.states[identityID]
	if !ok {
		state = &identityState{status: StatusOffline}
		t.states[identityID] = state
	}
	if displayName != "" {
		state.displayName = displayName
	}

	prev := state.status
	if status == prev {
		t.mu.Unlock()
		return
	}

	metrics.PresenceEventsTotal.WithLabelValues(string(status)).Inc()

	switch {
	case !prev.IsActive() && status.IsActive():
		// A second active status without an intervening offline must not
		// restart the session.
		if state.sessionStart.IsZero() {
			state.sessionStart = eventTime
			metrics.OpenSessions.Inc()
			t.logger.Info().
				Str("identity_id", identityID).
				Str("display_name", state.displayName).
				Time("start", eventTime).
				Msg("Session started")
		}

	case prev.IsActive() && !status.IsActive():
		t.closeLocked(ctx, identityID, state, eventTime)
	}

	state.status = status
	name := state.displayName
	t.mu.Unlock()

	if t.notifier != nil {
		t.notifier.NotifyStatusChange(Transition{
			IdentityID:  identityID,
			DisplayName: name,
			From:        prev,
			To:          status,
			At:          eventTime,
		})
	}
}

// FlushOpen closes an identity's open session using asOf as the end time
// without altering its current status, so tracking continues
// uninterrupted afterwards. Returns true if a session was closed.
func (t *Tracker) FlushOpen(ctx context.Context, identityID string, asOf time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[identityID]
	if !ok {
		return false
	}
	return t.closeLocked(ctx, identityID, state, asOf)
}

// FlushAll closes every open session across all identities using asOf as
// the end time and returns the number of sessions closed.
func (t *Tracker) FlushAll(ctx context.Context, asOf time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	flushed := 0
	for identityID, state := range t.states {
		if t.closeLocked(ctx, identityID, state, asOf) {
			flushed++
		}
	}

	t.logger.Info().
		Int("flushed", flushed).
		Time("as_of", asOf).
		Msg("Flushed open sessions")
	return flushed
}

// OpenSessionCount returns the number of identities with an open session.
func (t *Tracker) OpenSessionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, state := range t.states {
		if !state.sessionStart.IsZero() {
			n++
		}
	}
	return n
}

// closeLocked writes the open session, if any, to the store and clears
// the open-session marker on success. On a store failure the marker is
// left set so the next close or flush retries the same write. Must be
// called with the mutex held.
func (t *Tracker) closeLocked(ctx context.Context, identityID string, state *identityState, end time.Time) bool {
	if state.sessionStart.IsZero() {
		return false
	}
	if !end.After(state.sessionStart) {
		t.logger.Warn().
			Str("identity_id", identityID).
			Time("start", state.sessionStart).
			Time("end", end).
			Msg("Discarding close producing non-positive duration")
		metrics.InvalidEventsTotal.WithLabelValues("non_positive_duration").Inc()
		return false
	}

	if err := t.store.CloseSession(ctx, identityID, state.displayName, state.sessionStart, end); err != nil {
		t.logger.Error().
			Err(err).
			Str("identity_id", identityID).
			Msg("Failed to store closed session")
		return false
	}

	t.logger.Info().
		Str("identity_id", identityID).
		Str("display_name", state.displayName).
		Dur("duration", end.Sub(state.sessionStart)).
		Msg("Session closed")

	state.sessionStart = time.Time{}
	metrics.OpenSessions.Dec()
	return true
}
