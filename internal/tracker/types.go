package tracker

import "time"

// Status is the instantaneous presence state of an identity.
type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusDnd     Status = "dnd"
	StatusOffline Status = "offline"
)

// IsActive reports whether the status opens or sustains a session. All
// non-offline statuses behave identically for session purposes; the
// specific label matters only to notifications.
func (s Status) IsActive() bool {
	return s != StatusOffline && s != ""
}

// Valid reports whether the status belongs to the fixed vocabulary.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDnd, StatusOffline:
		return true
	}
	return false
}

// Transition describes one observed status change.
type Transition struct {
	IdentityID  string
	DisplayName string
	From        Status
	To          Status
	At          time.Time
}

// Notifier receives a notification for every observed transition, not
// only session-affecting ones. Delivery failures are the notifier's
// problem; the tracker never blocks on it holding its lock.
type Notifier interface {
	NotifyStatusChange(t Transition)
}
