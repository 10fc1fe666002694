package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
	"github.com/timeplus-io/lead-alert-gateway/pkg/roster"
	"github.com/timeplus-io/lead-alert-gateway/pkg/services"
)

// defaultMetricsDays is the team metrics window when none is given
const defaultMetricsDays = 7

// APIHandler handles HTTP API requests
type APIHandler struct {
	alertService *services.AlertService
	roster       roster.Provider
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(alertService *services.AlertService, provider roster.Provider) *APIHandler {
	return &APIHandler{
		alertService: alertService,
		roster:       provider,
	}
}

// TriggerAlert creates a lead alert and assigns it to a responder
func (h *APIHandler) TriggerAlert(c echo.Context) error {
	var req models.TriggerAlertRequest
	if err := c.Bind(&req); err != nil {
		logrus.Errorf("Error binding trigger alert request: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	alertID, err := h.alertService.TriggerLeadAlert(c.Request().Context(), req.LeadID, req.Lead)
	if errors.Is(err, models.ErrNoAvailableResponder) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "No responder available for this lead"})
	}
	if err != nil {
		logrus.Errorf("Error triggering alert for lead %s: %v", req.LeadID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to trigger alert: %v", err)})
	}

	return c.JSON(http.StatusCreated, map[string]string{"alertId": alertID})
}

// GetAlert returns an alert by ID
func (h *APIHandler) GetAlert(c echo.Context) error {
	id := c.Param("id")
	alert, err := h.alertService.GetAlert(c.Request().Context(), id)
	if errors.Is(err, models.ErrAlertNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Alert with ID %s not found", id)})
	}
	if err != nil {
		logrus.Errorf("Error getting alert %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get alert"})
	}
	return c.JSON(http.StatusOK, alert)
}

// GetAlertHistory returns the recorded transitions of an alert
func (h *APIHandler) GetAlertHistory(c echo.Context) error {
	id := c.Param("id")
	history, err := h.alertService.GetAlertHistory(c.Request().Context(), id)
	if err != nil {
		logrus.Errorf("Error getting history of alert %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get alert history"})
	}
	return c.JSON(http.StatusOK, history)
}

// AcknowledgeAlert acknowledges a pending alert
func (h *APIHandler) AcknowledgeAlert(c echo.Context) error {
	id := c.Param("id")
	var req models.AcknowledgeAlertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ok, err := h.alertService.AcknowledgeAlert(c.Request().Context(), id, req.UserID)
	if err != nil {
		logrus.Errorf("Error acknowledging alert %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to acknowledge alert: %v", err)})
	}
	if !ok {
		return h.rejected(c, id, "acknowledged")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Alert acknowledged successfully"})
}

// RespondAlert marks an alert responded
func (h *APIHandler) RespondAlert(c echo.Context) error {
	id := c.Param("id")
	var req models.RespondAlertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ok, err := h.alertService.MarkResponded(c.Request().Context(), id, req.UserID, req.Payload)
	if err != nil {
		logrus.Errorf("Error marking alert %s responded: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to mark alert responded: %v", err)})
	}
	if !ok {
		return h.rejected(c, id, "responded")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Alert marked responded"})
}

// rejected explains a transition that did not apply: 404 for unknown or expired
// alerts, 409 with the current status otherwise
func (h *APIHandler) rejected(c echo.Context, id, action string) error {
	alert, err := h.alertService.GetAlert(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Alert with ID %s not found", id)})
	}
	return c.JSON(http.StatusConflict, map[string]string{
		"error":  fmt.Sprintf("Alert cannot be %s", action),
		"status": string(alert.Status),
	})
}

// GetTeamMetrics returns the aggregate response report over the last `days` days
func (h *APIHandler) GetTeamMetrics(c echo.Context) error {
	days := defaultMetricsDays
	if s := c.QueryParam("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "days must be a positive integer"})
		}
		days = n
	}

	m, err := h.alertService.GetTeamResponseMetrics(c.Request().Context(), days)
	if err != nil {
		logrus.Errorf("Error getting team metrics: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get team metrics"})
	}
	return c.JSON(http.StatusOK, m)
}

// GetResponders returns the available responders
func (h *APIHandler) GetResponders(c echo.Context) error {
	responders, err := h.roster.Available(c.Request().Context())
	if err != nil {
		logrus.Errorf("Error getting responders: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get responders"})
	}
	return c.JSON(http.StatusOK, responders)
}

// GetResponderStats returns the rolling stats of one responder
func (h *APIHandler) GetResponderStats(c echo.Context) error {
	id := c.Param("id")
	stats, err := h.alertService.GetResponderStats(c.Request().Context(), id)
	if err != nil {
		logrus.Errorf("Error getting stats of responder %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get responder stats"})
	}
	return c.JSON(http.StatusOK, stats)
}

// AddResponder adds a responder to an editable roster
func (h *APIHandler) AddResponder(c echo.Context) error {
	editor, ok := h.roster.(roster.Editor)
	if !ok {
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{"error": "Roster is read-only"})
	}

	var req models.Responder
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := editor.Add(c.Request().Context(), req); err != nil {
		logrus.Errorf("Error adding responder %s: %v", req.ID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to add responder: %v", err)})
	}
	return c.JSON(http.StatusCreated, req)
}

// RemoveResponder takes a responder off an editable roster
func (h *APIHandler) RemoveResponder(c echo.Context) error {
	editor, ok := h.roster.(roster.Editor)
	if !ok {
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{"error": "Roster is read-only"})
	}

	id := c.Param("id")
	if err := editor.Remove(c.Request().Context(), id); err != nil {
		logrus.Errorf("Error removing responder %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to remove responder: %v", err)})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Responder removed"})
}

// SetupRoutes sets up the API routes and the request validator
func (h *APIHandler) SetupRoutes(e *echo.Echo) {
	if e.Validator == nil {
		e.Validator = NewRequestValidator()
	}

	// Alert endpoints
	e.POST("/api/alerts", h.TriggerAlert)
	e.GET("/api/alerts/:id", h.GetAlert)
	e.GET("/api/alerts/:id/history", h.GetAlertHistory)
	e.POST("/api/alerts/:id/acknowledge", h.AcknowledgeAlert)
	e.POST("/api/alerts/:id/respond", h.RespondAlert)

	// Metrics endpoints
	e.GET("/api/metrics/team", h.GetTeamMetrics)

	// Responder endpoints
	e.GET("/api/responders", h.GetResponders)
	e.POST("/api/responders", h.AddResponder)
	e.DELETE("/api/responders/:id", h.RemoveResponder)
	e.GET("/api/responders/:id/stats", h.GetResponderStats)
}
