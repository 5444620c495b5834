package notify

import (
	"fmt"
	"time"

	"github.com/goodtune/presenced/internal/tracker"
)

// statusMarkers map each status to its notification marker.
var statusMarkers = map[tracker.Status]string{
	tracker.StatusOnline:  ":green_circle:",
	tracker.StatusIdle:    ":yellow_circle:",
	tracker.StatusDnd:     ":red_circle:",
	tracker.StatusOffline: ":black_circle:",
}

// FormatDuration renders a second count as HH:MM:SS.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatStatusMessage renders a status-change notification body.
func formatStatusMessage(t tracker.Transition) string {
	marker, ok := statusMarkers[t.To]
	if !ok {
		marker = ":white_circle:"
	}
	return fmt.Sprintf(
		"**Status Update for %s**\n\n%s New Status: %s\n:arrow_right: Previous Status: %s\n:clock3: %s",
		t.DisplayName,
		marker,
		capitalize(string(t.To)),
		capitalize(string(t.From)),
		t.At.Format(time.RFC1123),
	)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
