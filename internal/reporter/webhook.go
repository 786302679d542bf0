package reporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

// WebhookConfig holds configuration for the webhook reporter.
type WebhookConfig struct {
	// URL is the webhook endpoint URL.
	URL string `yaml:"url"`
	// Headers are additional HTTP headers.
	Headers map[string]string `yaml:"headers,omitempty"`
	// RetryAttempts is the number of retries after the first failure.
	RetryAttempts int `yaml:"retry_attempts"`
	// RetryDelay is the delay between attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultWebhookConfig returns the default webhook configuration.
func DefaultWebhookConfig() *WebhookConfig {
	return &WebhookConfig{
		Headers:       make(map[string]string),
		RetryAttempts: 2,
		RetryDelay:    time.Second,
		Timeout:       10 * time.Second,
	}
}

// Webhook POSTs the report as JSON.
type Webhook struct {
	config *WebhookConfig
	client *fiber.Client
}

// NewWebhook creates a webhook reporter.
func NewWebhook(config *WebhookConfig) *Webhook {
	if config == nil {
		config = DefaultWebhookConfig()
	}
	client := fiber.AcquireClient()
	client.JSONEncoder = sonic.Marshal
	client.JSONDecoder = sonic.Unmarshal
	return &Webhook{config: config, client: client}
}

// Name returns the reporter name.
func (r *Webhook) Name() string {
	return "webhook"
}

// Report sends report, retrying failed attempts.
func (r *Webhook) Report(ctx context.Context, report *Report) error {
	if r.config.URL == "" {
		return errors.New("webhook URL is required")
	}

	var lastErr error
	for attempt := 0; attempt <= r.config.RetryAttempts; attempt++ {
		if attempt > 0 && r.config.RetryDelay > 0 {
			timer := time.NewTimer(r.config.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = r.send(report); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", r.config.RetryAttempts+1, lastErr)
}

func (r *Webhook) send(report *Report) error {
	agent := r.client.Post(r.config.URL)
	if r.config.Timeout > 0 {
		agent.Timeout(r.config.Timeout)
	}
	for k, v := range r.config.Headers {
		agent.Set(k, v)
	}
	agent.JSON(report)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", status, truncate(body, 200))
	}
	return nil
}

// Close releases the HTTP client.
func (r *Webhook) Close() {
	if r.client != nil {
		fiber.ReleaseClient(r.client)
		r.client = nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
