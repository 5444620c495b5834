package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goodtune/presenced/internal/aggregate"
	"github.com/goodtune/presenced/internal/metrics"
	"github.com/goodtune/presenced/internal/tracker"
	"github.com/rs/zerolog"
)

// Config holds one webhook destination.
type Config struct {
	URL       string
	Username  string
	AvatarURL string
}

// Webhook posts notification payloads to a single destination. A webhook
// with no URL silently drops everything, so callers need no nil checks
// when notifications are unconfigured.
type Webhook struct {
	config Config
	name   string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhook creates a webhook sender. name labels it in logs/metrics.
func NewWebhook(name string, config Config, logger zerolog.Logger) *Webhook {
	return &Webhook{
		config: config,
		name:   name,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.With().Str("component", "webhook").Str("webhook", name).Logger(),
	}
}

// NotifyStatusChange implements tracker.Notifier. Delivery is best
// effort: failures are logged and counted, never propagated back into
// the event path.
func (w *Webhook) NotifyStatusChange(t tracker.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := w.SendText(ctx, formatStatusMessage(t)); err != nil {
		w.logger.Error().
			Err(err).
			Str("identity_id", t.IdentityID).
			Msg("Failed to deliver status notification")
	}
}

// SendText posts a plain content message. Content without a code fence is
// wrapped in one.
func (w *Webhook) SendText(ctx context.Context, content string) error {
	if !strings.Contains(content, "```") && !strings.Contains(content, "**") {
		content = "```\n" + content + "\n```"
	}
	return w.post(ctx, map[string]interface{}{
		"username":   w.config.Username,
		"avatar_url": w.config.AvatarURL,
		"content":    content,
	})
}

// SendReport posts an aggregation report as an embed payload.
func (w *Webhook) SendReport(ctx context.Context, report *aggregate.Report) error {
	fields := []map[string]interface{}{
		{
			"name": "Overview",
			"value": fmt.Sprintf("```\nTotal Users: %d\nTotal Sessions: %d\n```",
				len(report.Users), report.TotalSessions),
			"inline": false,
		},
	}

	for _, user := range report.Users {
		fields = append(fields, map[string]interface{}{
			"name": ":bust_in_silhouette: " + user.DisplayName,
			"value": fmt.Sprintf("```\nTotal Time: %.1fh\nDaily Average: %.1fh\nSessions: %d\n```",
				user.TotalHours, user.DailyAvgHours, user.SessionCount),
			"inline": true,
		})
	}

	return w.post(ctx, map[string]interface{}{
		"username":   w.config.Username,
		"avatar_url": w.config.AvatarURL,
		"embeds": []map[string]interface{}{
			{
				"title":     ":bar_chart: Activity Analysis",
				"color":     0x3498db,
				"fields":    fields,
				"timestamp": time.Now().Format(time.RFC3339),
			},
		},
	})
}

func (w *Webhook) post(ctx context.Context, payload map[string]interface{}) error {
	if w.config.URL == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		metrics.WebhookErrors.WithLabelValues(w.name).Inc()
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.WebhookErrors.WithLabelValues(w.name).Inc()
		return fmt.Errorf("deliver webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
