package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/goodtune/presenced/internal/tracker"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{60, "00:01:00"},
		{3599, "00:59:59"},
		{3600, "01:00:00"},
		{5430, "01:30:30"},
		{90000, "25:00:00"}, // day-spanning totals stay in hours
		{-5, "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.seconds); got != tt.want {
				t.Errorf("FormatDuration(%d) = %s, want %s", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestFormatStatusMessage(t *testing.T) {
	msg := formatStatusMessage(tracker.Transition{
		IdentityID:  "U1",
		DisplayName: "alice",
		From:        tracker.StatusOnline,
		To:          tracker.StatusOffline,
		At:          time.Date(2026, time.January, 15, 9, 30, 0, 0, time.UTC),
	})

	for _, want := range []string{
		"**Status Update for alice**",
		":black_circle: New Status: Offline",
		":arrow_right: Previous Status: Online",
		":clock3:",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatStatusMessage_UnknownStatusMarker(t *testing.T) {
	msg := formatStatusMessage(tracker.Transition{
		DisplayName: "alice",
		From:        tracker.StatusOffline,
		To:          tracker.Status("lurking"),
		At:          time.Now(),
	})

	if !strings.Contains(msg, ":white_circle:") {
		t.Errorf("unknown status did not fall back to the neutral marker:\n%s", msg)
	}
}

func TestCapitalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"online", "Online"},
		{"dnd", "Dnd"},
		{"Already", "Already"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := capitalize(tt.in); got != tt.want {
			t.Errorf("capitalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
