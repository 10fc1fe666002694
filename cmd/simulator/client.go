package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// gatewayClient drives the lead alert API
type gatewayClient struct {
	baseURL string
	http    *retryablehttp.Client
}

func newGatewayClient(baseURL string) *gatewayClient {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 10 * time.Second
	c.Logger = nil
	return &gatewayClient{baseURL: baseURL, http: c}
}

// TriggerAlert creates an alert and returns its ID
func (g *gatewayClient) TriggerAlert(ctx context.Context, leadID string, lead models.LeadData) (string, error) {
	var resp map[string]string
	if err := g.do(ctx, http.MethodPost, "/api/alerts", models.TriggerAlertRequest{LeadID: leadID, Lead: lead}, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp["alertId"], nil
}

// GetAlert fetches the current alert record
func (g *gatewayClient) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	var alert models.Alert
	if err := g.do(ctx, http.MethodGet, "/api/alerts/"+alertID, nil, http.StatusOK, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// Acknowledge acknowledges an alert as userID
func (g *gatewayClient) Acknowledge(ctx context.Context, alertID, userID string) error {
	return g.do(ctx, http.MethodPost, "/api/alerts/"+alertID+"/acknowledge", models.AcknowledgeAlertRequest{UserID: userID}, http.StatusOK, nil)
}

// Respond marks an alert responded as userID
func (g *gatewayClient) Respond(ctx context.Context, alertID, userID string, payload map[string]string) error {
	return g.do(ctx, http.MethodPost, "/api/alerts/"+alertID+"/respond", models.RespondAlertRequest{UserID: userID, Payload: payload}, http.StatusOK, nil)
}

// AddResponder puts a responder on the roster
func (g *gatewayClient) AddResponder(ctx context.Context, r models.Responder) error {
	return g.do(ctx, http.MethodPost, "/api/responders", r, http.StatusCreated, nil)
}

func (g *gatewayClient) do(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
