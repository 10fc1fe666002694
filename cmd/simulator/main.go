package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultIntervalMs     = 5000
	defaultMissRatePct    = 20
	defaultTargetSeconds  = 120
	defaultResponderCount = 3
)

// simulatorConfig holds the knobs read from the environment
type simulatorConfig struct {
	GatewayURL     string
	Interval       time.Duration
	MissRatePct    int
	Target         time.Duration
	ResponderCount int
	SeedResponders bool
}

func main() {
	cfg := loadSimulatorConfig()
	client := newGatewayClient(cfg.GatewayURL)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.SeedResponders {
		for _, r := range sampleResponders(cfg.ResponderCount) {
			if err := client.AddResponder(ctx, r); err != nil {
				logrus.Warnf("Failed to add responder %s: %v", r.ID, err)
				continue
			}
			logrus.Infof("Added responder %s (%s)", r.ID, r.Name)
		}
	}

	logrus.Infof("Sending a lead every %v to %s, %d%% of responses will miss the %v target",
		cfg.Interval, cfg.GatewayURL, cfg.MissRatePct, cfg.Target)

	var wg sync.WaitGroup
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	leadNum := 0
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Waiting for in-flight responders...")
			wg.Wait()
			return
		case <-ticker.C:
			leadNum++
			leadID := fmt.Sprintf("lead-%d", leadNum)
			lead := generateLead(rng)

			alertID, err := client.TriggerAlert(ctx, leadID, lead)
			if err != nil {
				logrus.Errorf("Failed to trigger alert for %s: %v", leadID, err)
				continue
			}
			logrus.Infof("Triggered alert %s for %s (score %.0f, project %s)", alertID, leadID, lead.Score, lead.ProjectType)

			plan := planResponse(rng, cfg.Target, cfg.MissRatePct)
			wg.Add(1)
			go func() {
				defer wg.Done()
				actOnAlert(ctx, client, alertID, plan)
			}()
		}
	}
}

// actOnAlert plays the assigned responder: acknowledge, then respond on the plan
func actOnAlert(ctx context.Context, client *gatewayClient, alertID string, plan responsePlan) {
	alert, err := client.GetAlert(ctx, alertID)
	if err != nil {
		logrus.Errorf("Failed to read alert %s: %v", alertID, err)
		return
	}

	if !sleepCtx(ctx, plan.AckAfter) {
		return
	}
	if err := client.Acknowledge(ctx, alertID, alert.AssignedTo); err != nil {
		logrus.Warnf("Acknowledge of %s rejected: %v", alertID, err)
	}

	if !sleepCtx(ctx, plan.RespondAfter-plan.AckAfter) {
		return
	}
	if err := client.Respond(ctx, alertID, alert.AssignedTo, map[string]string{"outcome": plan.Outcome}); err != nil {
		logrus.Warnf("Response to %s rejected: %v", alertID, err)
		return
	}

	final, err := client.GetAlert(ctx, alertID)
	if err != nil {
		logrus.Errorf("Failed to read alert %s: %v", alertID, err)
		return
	}
	if final.EscalatedAt != nil {
		logrus.Warnf("Alert %s was escalated before %s responded", alertID, alert.AssignedToName)
		return
	}
	logrus.Infof("Alert %s responded by %s in %.0fs", alertID, alert.AssignedToName, derefSeconds(final.ResponseSeconds))
}

func loadSimulatorConfig() simulatorConfig {
	intervalMs, _ := strconv.Atoi(getEnv("INTERVAL_MS", strconv.Itoa(defaultIntervalMs)))
	missRate, _ := strconv.Atoi(getEnv("MISS_RATE_PCT", strconv.Itoa(defaultMissRatePct)))
	target, _ := strconv.Atoi(getEnv("TARGET_SECONDS", strconv.Itoa(defaultTargetSeconds)))
	responders, _ := strconv.Atoi(getEnv("RESPONDER_COUNT", strconv.Itoa(defaultResponderCount)))
	seed, _ := strconv.ParseBool(getEnv("SEED_RESPONDERS", "true"))

	if intervalMs <= 0 {
		intervalMs = defaultIntervalMs
	}
	if target <= 0 {
		target = defaultTargetSeconds
	}

	return simulatorConfig{
		GatewayURL:     getEnv("LEAD_ALERT_GATEWAY_URL", "http://localhost:8080"),
		Interval:       time.Duration(intervalMs) * time.Millisecond,
		MissRatePct:    missRate,
		Target:         time.Duration(target) * time.Second,
		ResponderCount: responders,
		SeedResponders: seed,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func derefSeconds(s *float64) float64 {
	if s == nil {
		return 0
	}
	return *s
}
