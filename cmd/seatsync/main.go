package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adnancrnovrsanin/seatsync/internal/config"
	"github.com/adnancrnovrsanin/seatsync/internal/infrastructure/kafka"
	"github.com/adnancrnovrsanin/seatsync/internal/infrastructure/postgres"
	redisCache "github.com/adnancrnovrsanin/seatsync/internal/infrastructure/redis"
	"github.com/adnancrnovrsanin/seatsync/internal/pkg/logger"
	"github.com/adnancrnovrsanin/seatsync/internal/security"
	"github.com/adnancrnovrsanin/seatsync/internal/service"
	"github.com/adnancrnovrsanin/seatsync/internal/transport/rest"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}
	logger.Init()
	log := logger.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres pool")
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := pool.Ping(pingCtx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("postgres ping")
	}
	cancel()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	repo := postgres.New(pool)
	if cfg.SeedEnabled {
		if err := repo.SeedIfEmpty(ctx); err != nil {
			log.Fatal().Err(err).Msg("seed")
		}
	}

	var cache *redisCache.Cache
	if cfg.RedisAddr != "" {
		cache = redisCache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := cache.Client.Ping(pingCtx).Err(); err != nil {
			// Redis is advisory only; run without it.
			log.Warn().Err(err).Msg("redis unreachable, continuing without cache")
			cache = nil
		}
		cancel()
	}

	var svc *service.TicketService
	if cache != nil {
		svc = service.NewTicketService(repo, repo, cache)
	} else {
		svc = service.NewTicketService(repo, repo, nil)
	}

	if cfg.KafkaEnabled {
		consumer := kafka.NewConsumer(kafka.Config{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     cfg.KafkaGroupID,
			Topic:       cfg.KafkaTopicPurchase,
			DLQTopic:    cfg.KafkaTopicDLQ,
			PollBackoff: cfg.KafkaPollBackoff,
		}, repo)
		go consumer.Start(ctx)
		log.Info().
			Strs("brokers", cfg.KafkaBrokers).
			Str("topic", cfg.KafkaTopicPurchase).
			Str("group", cfg.KafkaGroupID).
			Msg("purchase consumer started")
	}

	go runSweep(ctx, svc, cfg.SweepInterval)

	routerCfg := rest.RouterConfig{
		Verifier:       security.NewHS256Verifier(cfg.JWTSecret),
		ExpectedIssuer: cfg.JWTIssuer,
	}
	if cfg.RLEnabled && cache != nil {
		routerCfg.Cache = cache
		routerCfg.RateLimit = cfg.RLLimit
		routerCfg.RateWindow = cfg.RLWindow
	}

	handler := rest.NewHandler(svc)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           rest.NewRouter(handler, routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("env", cfg.AppEnv).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("stopped")
}

// runSweep periodically expires active tickets whose events have started.
func runSweep(ctx context.Context, svc *service.TicketService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := svc.ExpireTickets(ctx)
			if err != nil {
				logger.Logger.Warn().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				logger.Logger.Info().Int("expired", n).Msg("expiry sweep")
			}
		}
	}
}
