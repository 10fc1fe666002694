package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// WebhookOptions configures the webhook dispatcher
type WebhookOptions struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// WebhookDispatcher posts each notification as JSON to a delivery provider
type WebhookDispatcher struct {
	url    string
	client *retryablehttp.Client
}

// NewWebhookDispatcher creates a dispatcher posting to url
func NewWebhookDispatcher(url string, opts WebhookOptions) *WebhookDispatcher {
	c := retryablehttp.NewClient()
	c.Logger = logrusLeveledLogger{}
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	if opts.RetryMax > 0 {
		c.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		c.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		c.RetryWaitMax = opts.RetryWaitMax
	}
	return &WebhookDispatcher{url: url, client: c}
}

// Send implements Dispatcher
func (d *WebhookDispatcher) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery of %s for alert %s failed: %w", n.Type, n.AlertID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook delivery of %s for alert %s: unexpected status %d", n.Type, n.AlertID, resp.StatusCode)
	}
	return nil
}

// logrusLeveledLogger routes retryablehttp logs through logrus
type logrusLeveledLogger struct{}

func (logrusLeveledLogger) Error(msg string, kv ...interface{}) {
	logrus.WithFields(kvFields(kv)).Error(msg)
}
func (logrusLeveledLogger) Warn(msg string, kv ...interface{}) {
	logrus.WithFields(kvFields(kv)).Warn(msg)
}
func (logrusLeveledLogger) Info(msg string, kv ...interface{}) {
	logrus.WithFields(kvFields(kv)).Debug(msg)
}
func (logrusLeveledLogger) Debug(msg string, kv ...interface{}) {
	logrus.WithFields(kvFields(kv)).Debug(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
