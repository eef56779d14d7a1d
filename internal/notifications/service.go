package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gestrec/internal/config"
)

const userAgent = "Gestrec-Go/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventScanCompleted       Event = "scan_completed"
	EventQueueStarted        Event = "queue_started"
	EventQueueCompleted      Event = "queue_completed"
	EventTrainingCompleted   Event = "training_completed"
	EventEvaluationCompleted Event = "evaluation_completed"
	EventReviewRequired      Event = "review_required"
	EventError               Event = "error"
	EventTest                Event = "test"
)

// Payload carries event-specific values used when formatting the message.
type Payload map[string]string

// Service defines the notification surface exposed to workflow components.
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
		enabled: map[Event]bool{
			EventScanCompleted:       cfg.Notifications.Scan,
			EventQueueStarted:        cfg.Notifications.Queue,
			EventQueueCompleted:      cfg.Notifications.Queue,
			EventTrainingCompleted:   cfg.Notifications.Training,
			EventEvaluationCompleted: cfg.Notifications.Training,
			EventReviewRequired:      cfg.Notifications.Errors,
			EventError:               cfg.Notifications.Errors,
			EventTest:                true,
		},
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
	enabled  map[Event]bool
}

// Publish formats and sends a notification for the event. Events disabled
// in the configuration are dropped silently.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	get := func(key string) string {
		return strings.TrimSpace(payload[key])
	}

	switch event {
	case EventScanCompleted:
		return message{
			title: "Gestrec - Scan Complete",
			body:  fmt.Sprintf("Scan complete: %s new clips queued, %s already known", orZero(get("added")), orZero(get("known"))),
			tags:  []string{"gestrec", "scan", "completed"},
		}, true
	case EventQueueStarted:
		return message{
			title: "Gestrec - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %s items", orZero(get("count"))),
			tags:  []string{"gestrec", "queue", "started"},
		}, true
	case EventQueueCompleted:
		failed := get("failed")
		body := fmt.Sprintf("Queue processing complete: %s clips processed in %s", orZero(get("processed")), orDash(get("duration")))
		title := "Gestrec - Queue Complete"
		if failed != "" && failed != "0" {
			title = "Gestrec - Queue Complete (with errors)"
			body = fmt.Sprintf("Queue processing complete: %s succeeded, %s failed in %s", orZero(get("processed")), failed, orDash(get("duration")))
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"gestrec", "queue", "completed"},
		}, true
	case EventTrainingCompleted:
		return message{
			title:    "Gestrec - Training Complete",
			body:     fmt.Sprintf("Training run %s finished, best validation accuracy %s", orDash(get("runID")), orDash(get("accuracy"))),
			tags:     []string{"gestrec", "train", "completed"},
			priority: "high",
		}, true
	case EventEvaluationCompleted:
		return message{
			title: "Gestrec - Evaluation Complete",
			body:  fmt.Sprintf("Evaluation on %s: accuracy %s", orDash(get("split")), orDash(get("accuracy"))),
			tags:  []string{"gestrec", "evaluate", "completed"},
		}, true
	case EventReviewRequired:
		return message{
			title: "Gestrec - Review Required",
			body:  fmt.Sprintf("Clip needs review: %s\n%s", orDash(get("title")), get("reason")),
			tags:  []string{"gestrec", "review"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if contextLabel := get("context"); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if errText := get("error"); errText != "" {
			builder.WriteString(errText)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Gestrec - Error",
			body:     builder.String(),
			tags:     []string{"gestrec", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Gestrec - Test",
			body:     "Notification system test",
			tags:     []string{"gestrec", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func orZero(value string) string {
	if value == "" {
		return "0"
	}
	return value
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
