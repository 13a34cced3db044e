package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type config struct {
	listenAddr string

	rateEnabled    bool
	rateInterval   time.Duration
	rateMax        int
	rateSweepEvery time.Duration
	rateUserHeader string
	rateAnonHeader string
	trustXFF       bool
	addHeaders     bool

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool

	storeDriver string
	sqlitePath  string

	smtpHost       string
	smtpPort       int
	smtpUsername   string
	smtpPassword   string
	smtpFrom       string
	smtpRatePerSec float64
	smtpBurst      int
	smtpTimeout    time.Duration

	retentionMaxAge   time.Duration
	retentionSchedule string

	logLevel  string
	logFormat string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")

	v.SetDefault("RATE_ENABLED", true)
	v.SetDefault("RATE_INTERVAL", 5*time.Minute)
	v.SetDefault("RATE_MAX", 10)
	v.SetDefault("RATE_SWEEP_EVERY", time.Minute)
	v.SetDefault("RATE_USER_HEADER", "X-User-Id")
	v.SetDefault("RATE_ANON_HEADER", "X-Anonymous-Id")
	v.SetDefault("TRUST_XFF", false)
	v.SetDefault("ADD_RATELIMIT_HEADERS", false)

	v.SetDefault("RATE_STATS_ENABLED", false)
	v.SetDefault("RATE_STATS_REDIS_ADDR", "")
	v.SetDefault("RATE_STATS_REDIS_PASSWORD", "")
	v.SetDefault("RATE_STATS_REDIS_DB", 0)
	v.SetDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	v.SetDefault("RATE_STATS_TTL", 24*time.Hour)
	v.SetDefault("RATE_STATS_BUCKET", "minute")
	v.SetDefault("RATE_STATS_TRACK_KEYS", false)

	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("SQLITE_PATH", "data/notifications.db")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_RATE_PER_SEC", 2.0)
	v.SetDefault("SMTP_BURST", 4)
	v.SetDefault("SMTP_TIMEOUT", 10*time.Second)

	v.SetDefault("RETENTION_READ_MAX_AGE", time.Duration(0))
	v.SetDefault("RETENTION_SCHEDULE", "@daily")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	return v
}

func readConfig() (config, error) {
	return configFrom(newViper())
}

func configFrom(v *viper.Viper) (config, error) {
	cfg := config{
		listenAddr: v.GetString("LISTEN_ADDR"),

		rateEnabled:    v.GetBool("RATE_ENABLED"),
		rateInterval:   v.GetDuration("RATE_INTERVAL"),
		rateMax:        v.GetInt("RATE_MAX"),
		rateSweepEvery: v.GetDuration("RATE_SWEEP_EVERY"),
		rateUserHeader: v.GetString("RATE_USER_HEADER"),
		rateAnonHeader: v.GetString("RATE_ANON_HEADER"),
		trustXFF:       v.GetBool("TRUST_XFF"),
		addHeaders:     v.GetBool("ADD_RATELIMIT_HEADERS"),

		rateStatsEnabled:       v.GetBool("RATE_STATS_ENABLED"),
		rateStatsRedisAddr:     v.GetString("RATE_STATS_REDIS_ADDR"),
		rateStatsRedisPassword: v.GetString("RATE_STATS_REDIS_PASSWORD"),
		rateStatsRedisDB:       v.GetInt("RATE_STATS_REDIS_DB"),
		rateStatsPrefix:        v.GetString("RATE_STATS_PREFIX"),
		rateStatsTTL:           v.GetDuration("RATE_STATS_TTL"),
		rateStatsBucket:        v.GetString("RATE_STATS_BUCKET"),
		rateStatsTrackKeys:     v.GetBool("RATE_STATS_TRACK_KEYS"),

		storeDriver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		sqlitePath:  v.GetString("SQLITE_PATH"),

		smtpHost:       strings.TrimSpace(v.GetString("SMTP_HOST")),
		smtpPort:       v.GetInt("SMTP_PORT"),
		smtpUsername:   v.GetString("SMTP_USERNAME"),
		smtpPassword:   v.GetString("SMTP_PASSWORD"),
		smtpFrom:       v.GetString("SMTP_FROM"),
		smtpRatePerSec: v.GetFloat64("SMTP_RATE_PER_SEC"),
		smtpBurst:      v.GetInt("SMTP_BURST"),
		smtpTimeout:    v.GetDuration("SMTP_TIMEOUT"),

		retentionMaxAge:   v.GetDuration("RETENTION_READ_MAX_AGE"),
		retentionSchedule: strings.TrimSpace(v.GetString("RETENTION_SCHEDULE")),

		logLevel:  v.GetString("LOG_LEVEL"),
		logFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if cfg.rateEnabled {
		if cfg.rateInterval <= 0 {
			return config{}, errors.New("RATE_INTERVAL must be > 0")
		}
		if cfg.rateMax <= 0 {
			return config{}, errors.New("RATE_MAX must be > 0")
		}
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}

	switch cfg.storeDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.sqlitePath) == "" {
			return config{}, errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	case "memory":
	default:
		return config{}, errors.Errorf("STORE_DRIVER must be sqlite or memory, got %q", cfg.storeDriver)
	}

	if cfg.smtpHost != "" && strings.TrimSpace(cfg.smtpFrom) == "" {
		return config{}, errors.New("SMTP_FROM is required when SMTP_HOST is set")
	}
	if cfg.smtpRatePerSec <= 0 {
		return config{}, errors.New("SMTP_RATE_PER_SEC must be > 0")
	}
	if cfg.smtpBurst <= 0 {
		return config{}, errors.New("SMTP_BURST must be > 0")
	}

	if cfg.retentionMaxAge > 0 {
		if _, err := cron.ParseStandard(cfg.retentionSchedule); err != nil {
			return config{}, errors.WithMessagef(err, "invalid RETENTION_SCHEDULE %q", cfg.retentionSchedule)
		}
	}

	switch cfg.logFormat {
	case "json", "console":
	default:
		return config{}, errors.Errorf("LOG_FORMAT must be json or console, got %q", cfg.logFormat)
	}
	return cfg, nil
}
