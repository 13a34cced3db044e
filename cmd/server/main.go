package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pothole-core/api"
	"pothole-core/middleware/ratelimit"
	rldomain "pothole-core/middleware/ratelimit/domain"
	rlinfra "pothole-core/middleware/ratelimit/infra"
	"pothole-core/notification/application"
	"pothole-core/notification/domain"
	"pothole-core/notification/infra"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type notificationStore interface {
	domain.Store
	domain.RecipientDirectory
	domain.Pruner
}

func main() {
	cfg, err := readConfig()
	if err != nil {
		// logger ainda não existe: formato padrão
		l := newLogger(os.Stderr, "info", "json")
		l.Fatal().Err(err).Msg("config error")
	}
	log := newLogger(os.Stdout, cfg.logLevel, cfg.logFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.storeDriver).Msg("store error")
	}
	defer closeStore()

	var mailer domain.Mailer
	if cfg.smtpHost != "" {
		mailer = infra.NewSMTPMailer(infra.SMTPConfig{
			Host:       cfg.smtpHost,
			Port:       cfg.smtpPort,
			Username:   cfg.smtpUsername,
			Password:   cfg.smtpPassword,
			From:       cfg.smtpFrom,
			RatePerSec: cfg.smtpRatePerSec,
			Burst:      cfg.smtpBurst,
			Timeout:    cfg.smtpTimeout,
		}, infra.WithSMTPLogger(component(log, "mailer")))
	} else {
		mailer = infra.LogMailer{Log: component(log, "mailer")}
	}

	svc := application.NewService(store,
		application.WithEmail(mailer, store),
		application.WithLogger(component(log, "notifications")),
	)

	rateOpts := ratelimit.Options{
		UserHeader:          cfg.rateUserHeader,
		AnonHeader:          cfg.rateAnonHeader,
		TrustXForwardedFor:  cfg.trustXFF,
		RejectStatus:        http.StatusTooManyRequests,
		AddRateLimitHeaders: cfg.addHeaders,
	}
	var statsReader rldomain.StatsReader
	memStats := rlinfra.NewMemoryStatsStore(rlinfra.WithTrackKeys(cfg.rateStatsTrackKeys))
	rateOpts.Stats, statsReader = memStats, memStats
	if cfg.rateEnabled {
		windows, err := rlinfra.NewWindowStore(cfg.rateInterval, cfg.rateMax,
			rlinfra.WithSweepEvery(cfg.rateSweepEvery))
		if err != nil {
			log.Fatal().Err(err).Msg("rate limit config error")
		}
		windows.Start(ctx)
		defer windows.Stop()
		rateOpts.Counter = windows
	}

	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.rateStatsRedisAddr).Msg("redis stats ping error")
		}

		redisStats := rlinfra.NewRedisStatsStore(
			rdb,
			rlinfra.WithStatsPrefix(cfg.rateStatsPrefix),
			rlinfra.WithStatsTTL(cfg.rateStatsTTL),
			rlinfra.WithStatsBucket(cfg.rateStatsBucket),
			rlinfra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
		rateOpts.Stats, statsReader = redisStats, redisStats
	}

	if cfg.retentionMaxAge > 0 {
		sched := cron.New()
		retention := application.Retention{
			Pruner: store,
			MaxAge: cfg.retentionMaxAge,
			Log:    component(log, "retention"),
		}
		if _, err := sched.AddFunc(cfg.retentionSchedule, func() {
			if _, err := retention.Run(ctx); err != nil {
				retention.Log.Warn().Err(err).Msg("retention run failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Msg("retention schedule error")
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
	}

	router := api.NewRouter(api.Config{
		Notifications: svc,
		RateLimit:     rateOpts,
		Stats:         statsReader,
		UserHeader:    cfg.rateUserHeader,
		Log:           component(log, "api"),
	})

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.listenAddr).Str("store", cfg.storeDriver).Bool("smtp", cfg.smtpHost != "").Msg("server listening")
	log.Info().
		Bool("enabled", cfg.rateEnabled).
		Dur("interval", cfg.rateInterval).
		Int("max", cfg.rateMax).
		Dur("sweep_every", cfg.rateSweepEvery).
		Str("user_header", cfg.rateUserHeader).
		Bool("trust_xff", cfg.trustXFF).
		Msg("rate limit")
	log.Info().
		Bool("enabled", cfg.rateStatsEnabled).
		Str("redis_addr", cfg.rateStatsRedisAddr).
		Str("bucket", cfg.rateStatsBucket).
		Dur("ttl", cfg.rateStatsTTL).
		Bool("track_keys", cfg.rateStatsTrackKeys).
		Msg("rate stats")

	ln, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		log.Error().Err(err).Msg("listen error")
		return
	}
	// fora do systemd (sem NOTIFY_SOCKET) é no-op
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("sd_notify failed")
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("server stopped")
}

func openStore(cfg config) (notificationStore, func(), error) {
	if cfg.storeDriver == "memory" {
		return infra.NewMemoryStore(), func() {}, nil
	}
	s, err := infra.NewSQLiteStore(cfg.sqlitePath)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
