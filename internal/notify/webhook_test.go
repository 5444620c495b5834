package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goodtune/presenced/internal/aggregate"
	"github.com/rs/zerolog"
)

func TestSendText_WrapsPlainContent(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("payload is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	w := NewWebhook("test", Config{URL: server.URL, Username: "Monitor"}, zerolog.Nop())

	if err := w.SendText(context.Background(), "hello"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}

	content, _ := received["content"].(string)
	if !strings.HasPrefix(content, "```\n") || !strings.HasSuffix(content, "\n```") {
		t.Errorf("plain content not code-fenced: %q", content)
	}
	if received["username"] != "Monitor" {
		t.Errorf("username = %v, want Monitor", received["username"])
	}
}

func TestSendText_PreservesFormattedContent(t *testing.T) {
	var content string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		content, _ = payload["content"].(string)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	w := NewWebhook("test", Config{URL: server.URL}, zerolog.Nop())

	if err := w.SendText(context.Background(), "**bold update**"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if content != "**bold update**" {
		t.Errorf("formatted content rewrapped: %q", content)
	}
}

func TestSendText_NoURLIsSilentDrop(t *testing.T) {
	w := NewWebhook("test", Config{}, zerolog.Nop())

	if err := w.SendText(context.Background(), "dropped"); err != nil {
		t.Errorf("SendText() with no URL error = %v, want nil", err)
	}
}

func TestSendText_ErrorStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	w := NewWebhook("test", Config{URL: server.URL}, zerolog.Nop())

	if err := w.SendText(context.Background(), "hello"); err == nil {
		t.Error("SendText() against failing endpoint succeeded, want error")
	}
}

func TestSendReport_EmbedFields(t *testing.T) {
	var payload struct {
		Embeds []struct {
			Title  string `json:"title"`
			Fields []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("payload is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	w := NewWebhook("reports", Config{URL: server.URL}, zerolog.Nop())

	report := &aggregate.Report{
		Users: []aggregate.UserStats{
			{IdentityID: "U1", DisplayName: "alice", TotalHours: 3.5, DailyAvgHours: 1.75, SessionCount: 3},
		},
		TotalSessions: 3,
	}
	if err := w.SendReport(context.Background(), report); err != nil {
		t.Fatalf("SendReport() error = %v", err)
	}

	if len(payload.Embeds) != 1 {
		t.Fatalf("got %d embeds, want 1", len(payload.Embeds))
	}
	embed := payload.Embeds[0]
	// Overview plus one field per user.
	if len(embed.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(embed.Fields))
	}
	if !strings.Contains(embed.Fields[0].Value, "Total Sessions: 3") {
		t.Errorf("overview field = %q", embed.Fields[0].Value)
	}
	if !strings.Contains(embed.Fields[1].Name, "alice") {
		t.Errorf("user field name = %q", embed.Fields[1].Name)
	}
	if !strings.Contains(embed.Fields[1].Value, "Total Time: 3.5h") {
		t.Errorf("user field value = %q", embed.Fields[1].Value)
	}
}
