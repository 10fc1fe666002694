package config

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/timeplus-io/lead-alert-gateway/pkg/models"
)

// Config holds the application configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Timeplus  TimeplusConfig  `mapstructure:"timeplus"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Roster    RosterConfig    `mapstructure:"roster"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port            string `mapstructure:"port"`
	AllowedOrigins  string `mapstructure:"allowedOrigins"`
	ShutdownTimeout int    `mapstructure:"shutdownTimeout"`
}

// RedisConfig holds the Redis connection used for alert state, responder stats,
// the roster and live updates
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"keyPrefix"`
}

// TimeplusConfig holds the Timeplus connection configuration
type TimeplusConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	Username  string `mapstructure:"username"`
	Workspace string `mapstructure:"workspace"`
}

// AlertingConfig holds the SLA and assignment tuning
type AlertingConfig struct {
	TargetSeconds          int     `mapstructure:"targetSeconds"`
	EscalationDelaySeconds int     `mapstructure:"escalationDelaySeconds"`
	AlertTTLMinutes        int     `mapstructure:"alertTTLMinutes"`
	EscalationGroup        string  `mapstructure:"escalationGroup"`
	LiveUpdateTopic        string  `mapstructure:"liveUpdateTopic"`
	WorkloadWeight         float64 `mapstructure:"workloadWeight"`
	TargetRateWeight       float64 `mapstructure:"targetRateWeight"`
	SpeedWeight            float64 `mapstructure:"speedWeight"`
	SpecialtyBonus         float64 `mapstructure:"specialtyBonus"`
}

// Target returns the response SLA window
func (a AlertingConfig) Target() time.Duration {
	return time.Duration(a.TargetSeconds) * time.Second
}

// EscalationDelay returns the delay after trigger at which escalation fires
func (a AlertingConfig) EscalationDelay() time.Duration {
	return time.Duration(a.EscalationDelaySeconds) * time.Second
}

// AlertTTL returns how long an alert record is kept after creation
func (a AlertingConfig) AlertTTL() time.Duration {
	return time.Duration(a.AlertTTLMinutes) * time.Minute
}

// SchedulerConfig selects the escalation scheduler backend
type SchedulerConfig struct {
	Backend           string `mapstructure:"backend"` // "local" or "temporal"
	TemporalHostPort  string `mapstructure:"temporalHostPort"`
	TemporalNamespace string `mapstructure:"temporalNamespace"`
	TaskQueue         string `mapstructure:"taskQueue"`
}

// NotifierConfig holds notification dispatch settings
type NotifierConfig struct {
	WebhookURL            string `mapstructure:"webhookURL"`
	Workers               int    `mapstructure:"workers"`
	QueueSize             int    `mapstructure:"queueSize"`
	TimeoutSeconds        int    `mapstructure:"timeoutSeconds"`
	BreakerMaxRequests    uint32 `mapstructure:"breakerMaxRequests"`
	BreakerIntervalSecs   int    `mapstructure:"breakerIntervalSeconds"`
	BreakerTimeoutSecs    int    `mapstructure:"breakerTimeoutSeconds"`
	BreakerFailureRequest uint32 `mapstructure:"breakerFailureRequests"`
}

// RosterConfig holds the responder roster source
type RosterConfig struct {
	Source     string             `mapstructure:"source"` // "static" or "redis"
	Responders []models.Responder `mapstructure:"responders"`
}

// SetDefaults registers every default value on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowedOrigins", "*")
	v.SetDefault("server.shutdownTimeout", 10)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.keyPrefix", "lead_alert")

	v.SetDefault("timeplus.enabled", false)
	v.SetDefault("timeplus.address", "localhost:8464")
	v.SetDefault("timeplus.username", "default")
	v.SetDefault("timeplus.workspace", "default")

	v.SetDefault("alerting.targetSeconds", 120)
	v.SetDefault("alerting.escalationDelaySeconds", 120)
	v.SetDefault("alerting.alertTTLMinutes", 60)
	v.SetDefault("alerting.escalationGroup", "sales-managers")
	v.SetDefault("alerting.liveUpdateTopic", "lead_alerts")
	v.SetDefault("alerting.workloadWeight", 0.4)
	v.SetDefault("alerting.targetRateWeight", 0.35)
	v.SetDefault("alerting.speedWeight", 0.25)
	v.SetDefault("alerting.specialtyBonus", 0.2)

	v.SetDefault("scheduler.backend", "local")
	v.SetDefault("scheduler.temporalHostPort", "localhost:7233")
	v.SetDefault("scheduler.temporalNamespace", "default")
	v.SetDefault("scheduler.taskQueue", "lead-alert-escalations")

	v.SetDefault("notifier.workers", 16)
	v.SetDefault("notifier.queueSize", 1024)
	v.SetDefault("notifier.timeoutSeconds", 10)
	v.SetDefault("notifier.breakerMaxRequests", 5)
	v.SetDefault("notifier.breakerIntervalSeconds", 60)
	v.SetDefault("notifier.breakerTimeoutSeconds", 30)
	v.SetDefault("notifier.breakerFailureRequests", 5)

	v.SetDefault("roster.source", "static")
}

// LoadConfig loads the application configuration from file or environment variables
func LoadConfig(configPath string) (*Config, error) {
	return Load(viper.GetViper(), configPath)
}

// Load reads configuration into a Config using the given viper instance
func Load(v *viper.Viper, configPath string) (*Config, error) {
	var config Config

	SetDefaults(v)

	// Allow environment variables to override config file
	v.SetEnvPrefix("LEAD_ALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// If config file is provided, read it
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			logrus.Warnf("Error reading config file: %v", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ConfigureLogging applies the log level and format. LOG_LEVEL wins over the config file.
func ConfigureLogging(cfg LogConfig, envLevel string) {
	levelStr := cfg.Level
	if envLevel != "" {
		levelStr = envLevel
	}

	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		level = logrus.InfoLevel // Default to Info
	}
	logrus.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.Infof("Log level set to: %s", logrus.GetLevel().String())
}
