package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Outbound webhook budget shared by all targets.
const (
	webhookTimeout = 10 * time.Second
	webhookEvery   = time.Second
	webhookBurst   = 5
)

type slackPayload struct {
	Text string `json:"text"`
}

type teamsPayload struct {
	Type       string `json:"@type"`
	Context    string `json:"@context"`
	ThemeColor string `json:"themeColor"`
	Summary    string `json:"summary"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

type httpPayload struct {
	Alert *Alert `json:"alert"`
}

// formatters maps a webhook type to its body encoder.
var formatters = map[string]func(*Alert) interface{}{
	"slack": func(a *Alert) interface{} {
		if a.State == StateResolved {
			return slackPayload{Text: fmt.Sprintf("*[RESOLVED]* %s on session %s", a.RuleName, a.SessionID)}
		}
		return slackPayload{Text: fmt.Sprintf("*%s* %s (value %g)", severityLabel(a.Severity), a.Message, a.Value)}
	},
	"teams": func(a *Alert) interface{} {
		return teamsPayload{
			Type:       "MessageCard",
			Context:    "http://schema.org/extensions",
			ThemeColor: severityColor(a.Severity),
			Summary:    a.RuleName,
			Title:      fmt.Sprintf("Focus monitor: %s on %s (%s)", a.RuleName, a.SessionID, a.State),
			Text:       a.Message,
		}
	},
	"http": func(a *Alert) interface{} {
		return httpPayload{Alert: a}
	},
}

func newWebhookLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(webhookEvery), webhookBurst)
}

// deliver posts a to every configured webhook with a resolvable URL.
// Failures are only logged.
func (e *Engine) deliver(a *Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		format, ok := formatters[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		if err := e.limiter.Wait(ctx); err != nil {
			slog.Warn("alerts: webhook budget exhausted, dropping", "type", wh.Type, "rule", a.RuleName)
			continue
		}

		if err := e.post(ctx, url, format(a)); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"session", a.SessionID,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func (e *Engine) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook answered HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// severityColor returns the Teams card accent.
func severityColor(s string) string {
	switch s {
	case "critical":
		return "D7263D"
	case "warning":
		return "F49D37"
	default:
		return "3F88C5"
	}
}
