package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"

	"github.com/timeplus-io/lead-alert-gateway/pkg/config"
	"github.com/timeplus-io/lead-alert-gateway/pkg/metrics"
	"github.com/timeplus-io/lead-alert-gateway/pkg/notify"
	"github.com/timeplus-io/lead-alert-gateway/pkg/roster"
	"github.com/timeplus-io/lead-alert-gateway/pkg/scheduler"
	"github.com/timeplus-io/lead-alert-gateway/pkg/services"
	"github.com/timeplus-io/lead-alert-gateway/pkg/store"
	"github.com/timeplus-io/lead-alert-gateway/pkg/telemetry"
	"github.com/timeplus-io/lead-alert-gateway/pkg/timeplus"
)

// app holds the wired service and everything that must be closed on shutdown
type app struct {
	service   *services.AlertService
	roster    roster.Provider
	registry  *prometheus.Registry
	scheduler scheduler.Scheduler
	notifier  *notify.AsyncNotifier
	redis     *redis.Client
	timeplus  *timeplus.Client
	temporal  client.Client
}

// newApp connects to Redis, Timeplus and Temporal as configured and wires the
// alert service
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tel := telemetry.New(a.registry)

	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Address, err)
	}
	logrus.Infof("Connected to Redis at %s", cfg.Redis.Address)

	prefix := cfg.Redis.KeyPrefix
	alerts := store.NewRedisAlertStore(a.redis, prefix)
	stats := store.NewRedisStatsStore(a.redis, prefix)

	var (
		events metrics.EventStore = metrics.NewMemoryEventStore()
		audit  store.AuditLog     = store.NewMemoryAuditLog()
	)
	if cfg.Timeplus.Enabled {
		tp, err := timeplus.NewClient(&cfg.Timeplus)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create Timeplus client: %w", err)
		}
		a.timeplus = tp
		if err := timeplus.SetupStreams(ctx, tp); err != nil {
			logrus.Warnf("Failed to set up streams: %v", err)
		}
		events = timeplus.NewResponseEventStore(tp)
		audit = timeplus.NewAlertEventStore(tp)
	} else {
		logrus.Warn("Timeplus disabled: response events and alert history are kept in memory only")
	}

	switch cfg.Roster.Source {
	case "redis":
		a.roster = roster.NewRedisProvider(a.redis, prefix)
	default:
		a.roster = roster.NewStaticProvider(cfg.Roster.Responders)
		logrus.Infof("Loaded static roster with %d responders", len(cfg.Roster.Responders))
	}

	a.notifier = notify.NewAsyncNotifier(
		newDispatcher(cfg.Notifier, tel),
		notify.NewRedisPublisher(a.redis),
		cfg.Notifier.Workers,
		cfg.Notifier.QueueSize,
		time.Duration(cfg.Notifier.TimeoutSeconds)*time.Second,
		tel.NotificationFailed,
	)

	// The local scheduler calls back into the service it is injected into
	var svc *services.AlertService
	escalate := func(ctx context.Context, alertID, leadID string) (bool, error) {
		return svc.EscalateIfNoResponse(ctx, alertID, leadID)
	}

	sched, err := a.newScheduler(cfg.Scheduler, escalate)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.scheduler = sched

	svc = services.NewAlertService(services.AlertDeps{
		Alerts:    alerts,
		Stats:     stats,
		Roster:    a.roster,
		Recorder:  metrics.NewRecorder(events, stats, nil),
		Scheduler: sched,
		Notifier:  a.notifier,
		Audit:     audit,
		Telemetry: tel,
	}, services.AlertOptionsFromConfig(cfg.Alerting))
	a.service = svc

	return a, nil
}

func newDispatcher(cfg config.NotifierConfig, tel *telemetry.Metrics) notify.Dispatcher {
	if cfg.WebhookURL == "" {
		logrus.Warn("No notification webhook configured, notifications are only logged")
		return notify.LogDispatcher{}
	}

	webhook := notify.NewWebhookDispatcher(cfg.WebhookURL, notify.WebhookOptions{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
	return notify.NewBreakerDispatcher(webhook, notify.BreakerSettings{
		Name:            "notification-webhook",
		MaxRequests:     cfg.BreakerMaxRequests,
		Interval:        time.Duration(cfg.BreakerIntervalSecs) * time.Second,
		Timeout:         time.Duration(cfg.BreakerTimeoutSecs) * time.Second,
		FailureRequests: cfg.BreakerFailureRequest,
		OnStateChange:   tel.BreakerState,
	})
}

func (a *app) newScheduler(cfg config.SchedulerConfig, escalate scheduler.EscalateFunc) (scheduler.Scheduler, error) {
	switch cfg.Backend {
	case "temporal":
		c, err := a.dialTemporal(cfg)
		if err != nil {
			return nil, err
		}
		logrus.Infof("Escalations run as Temporal workflows on task queue %s", cfg.TaskQueue)
		return scheduler.NewTemporalScheduler(c, cfg.TaskQueue), nil
	case "local", "":
		logrus.Info("Escalations run on in-process timers")
		return scheduler.NewLocalScheduler(nil, escalate, scheduler.DefaultFireTimeout), nil
	default:
		return nil, fmt.Errorf("unknown scheduler backend %q", cfg.Backend)
	}
}

func (a *app) dialTemporal(cfg config.SchedulerConfig) (client.Client, error) {
	if a.temporal != nil {
		return a.temporal, nil
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	a.temporal = c
	return c, nil
}

// Close stops pending work and releases every connection
func (a *app) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.timeplus != nil {
		if err := a.timeplus.Close(); err != nil {
			logrus.Warnf("Error closing Timeplus client: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logrus.Warnf("Error closing Redis client: %v", err)
		}
	}
}
