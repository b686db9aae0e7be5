// Package notify pushes run lifecycle notifications through ntfy.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"lectern/internal/logging"
)

// Service delivers user-facing notifications for run lifecycle events.
type Service interface {
	Enabled() bool
	RunStarted(ctx context.Context, folders int) error
	RunFinished(ctx context.Context, success bool, message string, duration time.Duration, counts map[string]int) error
	Test(ctx context.Context) error
}

const defaultTimeout = 10 * time.Second

// NewService builds an ntfy-backed service, or a no-op one when topic
// is empty.
func NewService(topic string, timeout time.Duration, logger *slog.Logger) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "notify")
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return &noopService{logger: logger}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyService{
		topic:  topic,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type ntfyService struct {
	topic  string
	client *http.Client
	logger *slog.Logger
}

var _ Service = (*ntfyService)(nil)

func (s *ntfyService) Enabled() bool { return true }

func (s *ntfyService) RunStarted(ctx context.Context, folders int) error {
	noun := "folders"
	if folders == 1 {
		noun = "folder"
	}
	message := fmt.Sprintf("Transcription run started (%d %s)", folders, noun)
	return s.send(ctx, message, "Lectern", "hourglass_flowing_sand", "")
}

func (s *ntfyService) RunFinished(ctx context.Context, success bool, message string, duration time.Duration, counts map[string]int) error {
	body := message
	if summary := countSummary(counts); summary != "" {
		body += " (" + summary + ")"
	}
	if duration > 0 {
		body += fmt.Sprintf(" in %s", duration.Round(time.Second))
	}
	if success {
		return s.send(ctx, body, "Lectern", "white_check_mark", "")
	}
	return s.send(ctx, body, "Lectern", "x", "high")
}

func (s *ntfyService) Test(ctx context.Context) error {
	return s.send(ctx, "Test notification from lectern", "Lectern", "bell", "")
}

func (s *ntfyService) send(ctx context.Context, message, title, tags, priority string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(s.topic), strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", "lectern")
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if tags != "" {
		req.Header.Set("Tags", tags)
	}
	if priority != "" && priority != "default" {
		req.Header.Set("Priority", priority)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	s.logger.Debug("notification sent", logging.String("title", title))
	return nil
}

// endpointURL treats the configured topic as a full URL when it has a
// scheme, and as a ntfy.sh topic name otherwise.
func endpointURL(topic string) string {
	if strings.HasPrefix(topic, "http://") || strings.HasPrefix(topic, "https://") {
		return topic
	}
	return "https://ntfy.sh/" + topic
}

// countSummary renders progress counts as "7 ok, 2 skipped". Known
// statuses come first so the order is stable.
func countSummary(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	known := []string{"ok", "skipped", "skipped-date", "error"}
	seen := make(map[string]bool, len(known))
	var parts []string
	for _, status := range known {
		seen[status] = true
		if n, ok := counts[status]; ok && n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	var rest []string
	for status, n := range counts {
		if !seen[status] && n > 0 {
			rest = append(rest, fmt.Sprintf("%d %s", n, status))
		}
	}
	sort.Strings(rest)
	parts = append(parts, rest...)
	return strings.Join(parts, ", ")
}

type noopService struct {
	logger *slog.Logger
}

var _ Service = (*noopService)(nil)

func (s *noopService) Enabled() bool { return false }

func (s *noopService) RunStarted(ctx context.Context, folders int) error { return nil }

func (s *noopService) RunFinished(ctx context.Context, success bool, message string, duration time.Duration, counts map[string]int) error {
	return nil
}

func (s *noopService) Test(ctx context.Context) error {
	s.logger.Info("notifications are not configured, skipping test send")
	return nil
}
