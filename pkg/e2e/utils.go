// Package e2e holds end-to-end tests that run the alert service against a live
// Timeplus instance. They are skipped with -short.
package e2e

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/lead-alert-gateway/pkg/config"
	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
	"github.com/timeplus-io/lead-alert-gateway/pkg/timeplus"
)

// TimeplusTestConfig returns the connection settings for the test instance,
// overridable with TIMEPLUS_ADDRESS, TIMEPLUS_USER, TIMEPLUS_PASSWORD and
// TIMEPLUS_WORKSPACE
func TimeplusTestConfig() *config.TimeplusConfig {
	return &config.TimeplusConfig{
		Enabled:   true,
		Address:   getEnv("TIMEPLUS_ADDRESS", "localhost:8464"),
		Username:  getEnv("TIMEPLUS_USER", "test"),
		Password:  getEnv("TIMEPLUS_PASSWORD", "test123"),
		Workspace: getEnv("TIMEPLUS_WORKSPACE", "default"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// RetryWithBackoff retries fn with exponential backoff starting at one second
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}

		waitTime := time.Duration(1<<uint(i)) * time.Second
		logrus.Warnf("Operation failed, retrying in %v (%d/%d): %v", waitTime, i+1, maxRetries, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

// WaitForResponseEvent polls the response stream until the event of alertID is
// readable
func WaitForResponseEvent(ctx context.Context, events *timeplus.ResponseEventStore, alertID string, from time.Time) (models.ResponseEvent, error) {
	var found models.ResponseEvent
	err := RetryWithBackoff(ctx, 6, func() error {
		all, err := events.Since(ctx, from)
		if err != nil {
			return err
		}
		for _, e := range all {
			if e.AlertID == alertID {
				found = e
				return nil
			}
		}
		return fmt.Errorf("response event for alert %s not visible yet", alertID)
	})
	return found, err
}

// WaitForHistory polls the audit stream until alertID has at least n events
func WaitForHistory(ctx context.Context, audit *timeplus.AlertEventStore, alertID string, n int) ([]models.AlertEvent, error) {
	var history []models.AlertEvent
	err := RetryWithBackoff(ctx, 6, func() error {
		var err error
		history, err = audit.History(ctx, alertID)
		if err != nil {
			return err
		}
		if len(history) < n {
			return fmt.Errorf("alert %s has %d of %d audit events", alertID, len(history), n)
		}
		return nil
	})
	return history, err
}

// CheckTimeplusConnection runs basic diagnostics against the connection and the
// streams the service writes to
func CheckTimeplusConnection(ctx context.Context, client timeplus.TimeplusClient) error {
	logrus.Info("Testing Timeplus connection...")

	result, err := client.ExecuteQuery(ctx, "SELECT 1")
	if err != nil {
		return fmt.Errorf("failed to execute simple query: %w", err)
	}
	logrus.Infof("Simple query result: %v", result)

	for _, stream := range []string{timeplus.ResponseEventsStream, timeplus.AlertEventsStream} {
		exists, err := client.StreamExists(ctx, stream)
		if err != nil {
			return fmt.Errorf("failed to check stream %s: %w", stream, err)
		}
		if !exists {
			return fmt.Errorf("stream %s does not exist", stream)
		}
		logrus.Infof("Stream %s exists", stream)
	}

	logrus.Info("Timeplus connection tests completed successfully")
	return nil
}
