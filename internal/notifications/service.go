package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"frcvideos/internal/config"
)

const userAgent = "frcvideos/0.1.0"

// Event names a notification category.
type Event string

const (
	EventRenameCompleted   Event = "rename_completed"
	EventRenameFailed      Event = "rename_failed"
	EventAssociationFailed Event = "association_failed"
	EventTest              Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
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
		rename:   cfg.Notifications.Rename,
		failures: cfg.Notifications.Failures,
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
	rename   bool
	failures bool
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
	case EventRenameCompleted:
		if !n.rename {
			return message{}, false
		}
		from := payload.text("videoFile")
		to := payload.text("newFileName")
		body := fmt.Sprintf("🎬 Renamed: %s → %s", from, to)
		if label := payload.text("videoLabel"); label != "" {
			body = fmt.Sprintf("%s\nLabel: %s", body, label)
		}
		return message{
			title: "FRC Videos - Renamed",
			body:  body,
			tags:  []string{"frcvideos", "rename", "completed"},
		}, true
	case EventRenameFailed:
		if !n.failures {
			return message{}, false
		}
		return message{
			title:    "FRC Videos - Rename Failed",
			body:     fmt.Sprintf("❌ Rename failed for %s: %s", payload.text("filePath"), payload.text("error")),
			tags:     []string{"frcvideos", "rename", "error"},
			priority: "high",
		}, true
	case EventAssociationFailed:
		if !n.failures {
			return message{}, false
		}
		return message{
			title: "FRC Videos - Needs Review",
			body:  fmt.Sprintf("Could not match %s: %s\nManual review required", payload.text("filePath"), payload.text("reason")),
			tags:  []string{"frcvideos", "association", "review"},
		}, true
	case EventTest:
		return message{
			title:    "FRC Videos - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"frcvideos", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
