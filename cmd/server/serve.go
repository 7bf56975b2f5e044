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

	"cashregister/internal/config"
	"cashregister/internal/infra"
	"cashregister/internal/repository"
	"cashregister/internal/router"
	"cashregister/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply migrations before serving")
	return cmd
}

func serve(migrate bool) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if migrate {
		if err := infra.RunMigrations(db); err != nil {
			return err
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
	}

	publisher, err := newPublisher(cfg, rdb)
	if err != nil {
		return err
	}
	defer publisher.Close()

	guard := infra.NewDBGuard(infra.RetryPolicy{
		Attempts: cfg.DBRetryAttempts,
		Backoff:  time.Duration(cfg.DBRetryBackoffM) * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := worker.NewRelay(worker.RelayConfig{
		Outbox:      repository.NewOutboxRepository(db, guard),
		Publisher:   publisher,
		CB:          infra.NewCircuitBreaker(infra.DefaultCBConfig("broker")),
		RDB:         rdb,
		Queue:       cfg.EventsQueue,
		Interval:    time.Duration(cfg.OutboxPollSeconds) * time.Second,
		BatchSize:   cfg.OutboxBatchSize,
		MaxAttempts: cfg.OutboxMaxAttempts,
	})
	relayDone := relay.Start(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.New(cfg, db, rdb, guard),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Msgf("register API listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		cancel()
		<-relayDone
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	cancel()
	<-relayDone
	log.Info().Msg("server exited")
	return nil
}

func newPublisher(cfg *config.Config, rdb *redis.Client) (infra.EventPublisher, error) {
	switch cfg.EventsBackend {
	case "redis":
		if rdb == nil {
			return nil, errors.New("EVENTS_BACKEND=redis requires REDIS_URL")
		}
		return infra.NewRedisPublisher(rdb, cfg.EventsQueue), nil
	case "amqp":
		return infra.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsQueue)
	case "none", "":
		return infra.LogPublisher{}, nil
	}
	return nil, fmt.Errorf("unknown EVENTS_BACKEND %q", cfg.EventsBackend)
}
