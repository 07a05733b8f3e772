package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"splicer/internal/config"
)

const userAgent = "Splicer-Go/0.1.0"

// Event enumerates the notifications the daemon can publish.
type Event string

const (
	EventDaemonStarted  Event = "daemon_started"
	EventDaemonStopped  Event = "daemon_stopped"
	EventAdBreakStarted Event = "ad_break_started"
	EventAdBreakEnded   Event = "ad_break_ended"
	EventDispatchFailed Event = "dispatch_failed"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event fields. Missing keys render as empty values.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		adBreaks: cfg.Notifications.AdBreaks,
		errors:   cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	adBreaks bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventDaemonStarted:
		return message{
			title: "Splicer - Started",
			body:  fmt.Sprintf("▶️ Signaling on %s (%s)", payload.text("target"), payload.text("modes")),
			tags:  []string{"splicer", "daemon", "started"},
		}, true
	case EventDaemonStopped:
		return message{
			title: "Splicer - Stopped",
			body:  fmt.Sprintf("⏹️ Signaling stopped after %s", payload.duration("uptime")),
			tags:  []string{"splicer", "daemon", "stopped"},
		}, true
	case EventAdBreakStarted:
		if !n.adBreaks {
			return message{}, false
		}
		return message{
			title: "Splicer - Ad Break",
			body: fmt.Sprintf("📺 Splice-out #%s at %s for %s (%s)",
				payload.text("eventID"), payload.duration("at"), payload.duration("duration"), payload.text("source")),
			tags:     []string{"splicer", "adbreak", "out"},
			priority: "low",
		}, true
	case EventAdBreakEnded:
		if !n.adBreaks {
			return message{}, false
		}
		return message{
			title:    "Splicer - Back to Program",
			body:     fmt.Sprintf("🔙 Splice-in #%s at %s (break #%s)", payload.text("eventID"), payload.duration("at"), payload.text("pairedID")),
			tags:     []string{"splicer", "adbreak", "in"},
			priority: "low",
		}, true
	case EventDispatchFailed:
		if !n.errors {
			return message{}, false
		}
		return message{
			title:    "Splicer - Signal Lost",
			body:     fmt.Sprintf("⚠️ %s #%s not delivered: %s", payload.text("kind"), payload.text("eventID"), payload.text("error")),
			tags:     []string{"splicer", "dispatch", "failed"},
			priority: "high",
		}, true
	case EventError:
		if !n.errors {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payload.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if text := payload.text("error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Splicer - Error",
			body:     builder.String(),
			tags:     []string{"splicer", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Splicer - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"splicer", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) duration(key string) string {
	switch v := p[key].(type) {
	case time.Duration:
		if v < 0 {
			v = 0
		}
		if v >= time.Second {
			v = v.Round(100 * time.Millisecond)
		}
		return v.String()
	default:
		return p.text(key)
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
