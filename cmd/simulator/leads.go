package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

var (
	firstNames   = []string{"Jane", "Omar", "Priya", "Luis", "Grace", "Tom", "Mei", "Sam"}
	lastNames    = []string{"Roof", "Hassan", "Patel", "Garcia", "Kim", "Novak", "Chen", "Okafor"}
	sources      = []string{"web", "referral", "phone", "google_ads", "facebook"}
	projectTypes = []string{"metal", "shingle", "tile", "flat", "gutters"}
	outcomes     = []string{"booked inspection", "left voicemail", "sent quote", "not interested"}
)

// responsePlan is how the simulated responder handles one alert
type responsePlan struct {
	AckAfter     time.Duration
	RespondAfter time.Duration
	Outcome      string
}

// generateLead creates a random lead with a score skewed towards the middle tiers
func generateLead(rng *rand.Rand) models.LeadData {
	first := firstNames[rng.Intn(len(firstNames))]
	last := lastNames[rng.Intn(len(lastNames))]
	score := float64(20 + rng.Intn(41) + rng.Intn(41)) // 20-100

	return models.LeadData{
		Name:        first + " " + last,
		Phone:       fmt.Sprintf("555-%04d", rng.Intn(10000)),
		Source:      sources[rng.Intn(len(sources))],
		ProjectType: projectTypes[rng.Intn(len(projectTypes))],
		Score:       score,
	}
}

// planResponse picks when to acknowledge and respond. missRatePct percent of the
// plans respond after the target so the escalation path gets exercised.
func planResponse(rng *rand.Rand, target time.Duration, missRatePct int) responsePlan {
	ack := time.Duration(rng.Int63n(int64(target / 3)))

	var respond time.Duration
	if rng.Intn(100) < missRatePct {
		respond = target + time.Duration(rng.Int63n(int64(target)))
	} else {
		respond = ack + time.Duration(rng.Int63n(int64(target-ack)))
	}

	return responsePlan{
		AckAfter:     ack,
		RespondAfter: respond,
		Outcome:      outcomes[rng.Intn(len(outcomes))],
	}
}

// sampleResponders returns n sales staff reporting to one manager
func sampleResponders(n int) []models.Responder {
	responders := make([]models.Responder, 0, n)
	for i := 1; i <= n; i++ {
		responders = append(responders, models.Responder{
			ID:          fmt.Sprintf("rep-%d", i),
			Name:        fmt.Sprintf("%s %s", firstNames[i%len(firstNames)], lastNames[(i+3)%len(lastNames)]),
			Role:        "sales",
			Specialties: []string{projectTypes[i%len(projectTypes)]},
			ManagerID:   "sales-manager-1",
		})
	}
	return responders
}
