package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/facebookgo/clock"
	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
	"github.com/timeplus-io/lead-alert-gateway/pkg/store"
)

// Recorder persists completed responses and maintains the per-responder rolling stats
type Recorder struct {
	events EventStore
	stats  store.StatsStore
	clock  clock.Clock
}

// NewRecorder creates a recorder. A nil clock uses wall time.
func NewRecorder(events EventStore, stats store.StatsStore, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{events: events, stats: stats, clock: clk}
}

// Record appends the event to the durable store, then folds it into the responder's
// stats. The stats update is a single atomic merge at the stats store.
func (r *Recorder) Record(ctx context.Context, event models.ResponseEvent) (models.ResponderStats, error) {
	if event.ResponseSeconds < 0 {
		return models.ResponderStats{}, fmt.Errorf("negative response time %.3fs for alert %s", event.ResponseSeconds, event.AlertID)
	}

	// A failed append still updates the stats. An escalated alert released its
	// active lead when it escalated.
	appendErr := r.events.Append(ctx, event)
	if appendErr != nil {
		logrus.Errorf("Failed to persist response event for alert %s: %v", event.AlertID, appendErr)
	}

	stats, err := r.stats.RecordResponse(ctx, event.ResponderID, event.ResponseSeconds, event.WithinTarget, !event.Escalated)
	if err != nil {
		return models.ResponderStats{}, fmt.Errorf("failed to update stats for %s: %w", event.ResponderID, err)
	}
	if appendErr != nil {
		return stats, fmt.Errorf("failed to persist response event: %w", appendErr)
	}

	logrus.WithFields(logrus.Fields{
		"alert_id":     event.AlertID,
		"responder_id": event.ResponderID,
		"seconds":      event.ResponseSeconds,
		"within":       event.WithinTarget,
	}).Debug("Recorded lead response")

	return stats, nil
}

// ResponderStats returns the rolling stats of one responder
func (r *Recorder) ResponderStats(ctx context.Context, responderID string) (models.ResponderStats, error) {
	return r.stats.Get(ctx, responderID)
}

// TeamMetrics aggregates all response events in the last periodDays days
func (r *Recorder) TeamMetrics(ctx context.Context, periodDays int) (*models.TeamMetrics, error) {
	if periodDays <= 0 {
		return nil, fmt.Errorf("period must be at least one day, got %d", periodDays)
	}

	to := r.clock.Now().UTC()
	from := to.Add(-time.Duration(periodDays) * 24 * time.Hour)

	events, err := r.events.Since(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to load response events: %w", err)
	}

	m := Aggregate(events)
	m.PeriodDays = periodDays
	m.From = from
	m.To = to
	return m, nil
}

// Aggregate computes team metrics over events. The leaderboard is sorted by target
// rate descending, then average response time ascending, then responder ID.
func Aggregate(events []models.ResponseEvent) *models.TeamMetrics {
	m := &models.TeamMetrics{Leaderboard: []models.LeaderboardEntry{}}
	if len(events) == 0 {
		return m
	}

	var (
		totalSeconds float64
		within       int64
		fastest      = math.Inf(1)
		slowest      = math.Inf(-1)
		perResponder = make(map[string]*models.LeaderboardEntry)
		sums         = make(map[string]float64)
	)

	for _, e := range events {
		m.TotalResponses++
		totalSeconds += e.ResponseSeconds
		if e.WithinTarget {
			within++
		}
		if e.Escalated {
			m.EscalatedResponses++
		}
		fastest = math.Min(fastest, e.ResponseSeconds)
		slowest = math.Max(slowest, e.ResponseSeconds)

		entry, ok := perResponder[e.ResponderID]
		if !ok {
			entry = &models.LeaderboardEntry{ResponderID: e.ResponderID}
			perResponder[e.ResponderID] = entry
		}
		if e.ResponderName != "" {
			entry.ResponderName = e.ResponderName
		}
		entry.TotalResponses++
		sums[e.ResponderID] += e.ResponseSeconds
		if e.WithinTarget {
			entry.WithinTargetCount++
		}
	}

	n := float64(m.TotalResponses)
	m.AvgResponseTimeSeconds = totalSeconds / n
	m.WithinTargetPercent = float64(within) / n * 100
	m.FastestResponseSeconds = fastest
	m.SlowestResponseSeconds = slowest

	for id, entry := range perResponder {
		count := float64(entry.TotalResponses)
		entry.AvgResponseTimeSeconds = sums[id] / count
		entry.TargetRatePercent = float64(entry.WithinTargetCount) / count * 100
		m.Leaderboard = append(m.Leaderboard, *entry)
	}

	sort.Slice(m.Leaderboard, func(i, j int) bool {
		a, b := m.Leaderboard[i], m.Leaderboard[j]
		if a.TargetRatePercent != b.TargetRatePercent {
			return a.TargetRatePercent > b.TargetRatePercent
		}
		if a.AvgResponseTimeSeconds != b.AvgResponseTimeSeconds {
			return a.AvgResponseTimeSeconds < b.AvgResponseTimeSeconds
		}
		return a.ResponderID < b.ResponderID
	})

	return m
}
