package services

import (
	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// Notification channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
	ChannelVoice = "voice"
)

// ClassifyPriority maps a lead quality score (0-100) to an alert priority tier
func ClassifyPriority(score float64) models.Priority {
	switch {
	case score >= 80:
		return models.PriorityCritical
	case score >= 60:
		return models.PriorityHigh
	case score >= 40:
		return models.PriorityNormal
	default:
		return models.PriorityLow
	}
}

// ChannelsFor returns the channel set used for the initial assignment notification
func ChannelsFor(priority models.Priority) []string {
	switch priority {
	case models.PriorityCritical:
		return []string{ChannelEmail, ChannelSMS, ChannelPush}
	case models.PriorityHigh, models.PriorityNormal:
		return []string{ChannelEmail, ChannelPush}
	default:
		return []string{ChannelEmail}
	}
}

// EscalationChannels widens the priority channel set with sms, push and a voice call
func EscalationChannels(priority models.Priority) []string {
	channels := ChannelsFor(priority)
	seen := make(map[string]bool, len(channels)+3)
	out := make([]string, 0, len(channels)+3)
	for _, ch := range append(channels, ChannelSMS, ChannelPush, ChannelVoice) {
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}
