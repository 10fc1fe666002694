package services

import (
	"sort"
	"strings"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// neutralTargetRate is assumed for responders without any completed alert, so a new
// hire is neither favoured nor buried against the team
const neutralTargetRate = 50.0

// ScoringWeights tunes the composite suitability score
type ScoringWeights struct {
	Workload       float64
	TargetRate     float64
	Speed          float64
	SpecialtyBonus float64
	TargetSeconds  float64
}

// DefaultScoringWeights returns the weights used when none are configured
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Workload:       0.4,
		TargetRate:     0.35,
		Speed:          0.25,
		SpecialtyBonus: 0.2,
		TargetSeconds:  120,
	}
}

// Candidate is a responder with the stats used to rank it
type Candidate struct {
	Responder models.Responder
	Stats     models.ResponderStats
	Score     float64
}

// ScoreCandidate computes the composite suitability of one responder for a lead
func ScoreCandidate(w ScoringWeights, responder models.Responder, stats models.ResponderStats, projectType string) float64 {
	active := stats.ActiveLeadCount
	if active < 0 {
		active = 0
	}
	workload := 1.0 / float64(1+active)

	rate := neutralTargetRate
	speed := 1.0
	if stats.HasHistory() {
		rate = stats.TargetRatePercent
		target := w.TargetSeconds
		if target <= 0 {
			target = 120
		}
		speed = target / (target + stats.AvgResponseTimeSeconds)
	}

	score := w.Workload*workload + w.TargetRate*rate/100 + w.Speed*speed
	if hasSpecialty(responder.Specialties, projectType) {
		score += w.SpecialtyBonus
	}
	return score
}

func hasSpecialty(specialties []string, projectType string) bool {
	if projectType == "" {
		return false
	}
	for _, s := range specialties {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(projectType)) {
			return true
		}
	}
	return false
}

// RankResponders scores every candidate and returns them best first.
// Ties are broken by lowest active lead count, then by responder ID.
func RankResponders(w ScoringWeights, responders []models.Responder, stats map[string]models.ResponderStats, projectType string) []Candidate {
	ranked := make([]Candidate, 0, len(responders))
	for _, r := range responders {
		st := stats[r.ID]
		st.ResponderID = r.ID
		ranked = append(ranked, Candidate{
			Responder: r,
			Stats:     st,
			Score:     ScoreCandidate(w, r, st, projectType),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Stats.ActiveLeadCount != b.Stats.ActiveLeadCount {
			return a.Stats.ActiveLeadCount < b.Stats.ActiveLeadCount
		}
		return a.Responder.ID < b.Responder.ID
	})
	return ranked
}

// SelectResponder picks the single best available responder for a lead.
// An empty pool yields models.ErrNoAvailableResponder.
func SelectResponder(w ScoringWeights, responders []models.Responder, stats map[string]models.ResponderStats, projectType string) (Candidate, error) {
	ranked := RankResponders(w, responders, stats, projectType)
	if len(ranked) == 0 {
		return Candidate{}, models.ErrNoAvailableResponder
	}
	return ranked[0], nil
}
