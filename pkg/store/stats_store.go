package store

import (
	"context"
	"strconv"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// StatsStore keeps one ResponderStats record per responder. Every write is a single
// atomic merge at the store; there is no read-modify-write from the caller.
type StatsStore interface {
	// Get returns the stats for a responder; unknown responders get zero stats
	Get(ctx context.Context, responderID string) (models.ResponderStats, error)
	// GetMany returns stats keyed by responder ID for every requested ID
	GetMany(ctx context.Context, responderIDs []string) (map[string]models.ResponderStats, error)
	// IncrementActive adjusts the live active-lead gauge, never below zero
	IncrementActive(ctx context.Context, responderID string, delta int64) (int64, error)
	// ReserveActive takes one more active lead for the responder only if the gauge
	// still reads expected, reporting whether it did
	ReserveActive(ctx context.Context, responderID string, expected int64) (bool, error)
	// RecordResponse folds one completed response into the rolling stats, releasing
	// one active lead when releaseActive is set
	RecordResponse(ctx context.Context, responderID string, responseSeconds float64, withinTarget, releaseActive bool) (models.ResponderStats, error)
}

// Hash field names shared by the Redis script and the decoder
const (
	statTotalResponses = "total_responses"
	statTotalTime      = "total_response_time_seconds"
	statAvgTime        = "avg_response_time_seconds"
	statWithinTarget   = "within_target_count"
	statTargetRate     = "target_rate_percent"
	statActive         = "active_lead_count"
)

// foldResponse applies the incremental mean update to s
func foldResponse(s models.ResponderStats, responseSeconds float64, withinTarget, releaseActive bool) models.ResponderStats {
	oldCount := float64(s.TotalResponses)
	s.AvgResponseTimeSeconds = (s.AvgResponseTimeSeconds*oldCount + responseSeconds) / (oldCount + 1)
	s.TotalResponses++
	s.TotalResponseTimeSeconds += responseSeconds
	if withinTarget {
		s.WithinTargetCount++
	}
	s.TargetRatePercent = float64(s.WithinTargetCount) / float64(s.TotalResponses) * 100
	if releaseActive {
		s.ActiveLeadCount--
	}
	if s.ActiveLeadCount < 0 {
		s.ActiveLeadCount = 0
	}
	return s
}

func parseStats(responderID string, fields map[string]string) models.ResponderStats {
	return models.ResponderStats{
		ResponderID:              responderID,
		TotalResponses:           parseInt(fields[statTotalResponses]),
		TotalResponseTimeSeconds: parseFloat(fields[statTotalTime]),
		AvgResponseTimeSeconds:   parseFloat(fields[statAvgTime]),
		WithinTargetCount:        parseInt(fields[statWithinTarget]),
		TargetRatePercent:        parseFloat(fields[statTargetRate]),
		ActiveLeadCount:          parseInt(fields[statActive]),
	}
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	// Lua may render whole numbers as floats
	return int64(parseFloat(s))
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
