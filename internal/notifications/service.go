package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wallp/internal/config"
)

const userAgent = "wallp/0.1"

// Event identifies a notification type.
type Event string

const (
	EventWallpaperChanged Event = "wallpaper_changed"
	EventChangeFailed     Event = "change_failed"
	EventScheduleUpdated  Event = "schedule_updated"
	EventTest             Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service defines the notification surface exposed to the change flow.
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

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		changes:  cfg.Notifications.Changes,
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
	changes  bool
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
	case EventWallpaperChanged:
		if !n.changes {
			return message{}, false
		}
		body := fmt.Sprintf("🖼️ New wallpaper from %s", fallback(payload.str("source"), "unknown source"))
		if title := payload.str("title"); title != "" {
			body = fmt.Sprintf("%s: %s", body, title)
		}
		if path := payload.str("path"); path != "" {
			body = fmt.Sprintf("%s\nFile: %s", body, path)
		}
		return message{
			title: "wallp - Wallpaper Changed",
			body:  body,
			tags:  []string{"wallp", "wallpaper", "changed"},
		}, true
	case EventChangeFailed:
		if !n.errors {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ Wallpaper change failed")
		if source := payload.str("source"); source != "" {
			builder.WriteString(" with ")
			builder.WriteString(source)
		}
		builder.WriteString(": ")
		builder.WriteString(fallback(payload.str("error"), "unknown"))
		return message{
			title:    "wallp - Error",
			body:     builder.String(),
			tags:     []string{"wallp", "error", "alert"},
			priority: "high",
		}, true
	case EventScheduleUpdated:
		if !n.changes {
			return message{}, false
		}
		return message{
			title: "wallp - Schedule Updated",
			body:  fmt.Sprintf("⏰ Changing wallpaper every %s", fallback(payload.str("frequency"), "?")),
			tags:  []string{"wallp", "schedule"},
		}, true
	case EventTest:
		return message{
			title:    "wallp - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"wallp", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
