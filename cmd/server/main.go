package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mercadoartesano/orders/internal/bootstrap"
	"github.com/mercadoartesano/orders/internal/controller"
	infraRedis "github.com/mercadoartesano/orders/internal/infrastructure/redis"
	"github.com/mercadoartesano/orders/internal/repository/postgres"
	"github.com/mercadoartesano/orders/internal/saga"
)

// The saga context store is in-memory, so order intake (which starts
// sagas) and the event consumers (which advance them) run in the same
// process.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "orders-server", "orders")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories and bus ---
	orderRepo := postgres.NewOrderRepository(app.Pool)
	publisher := infraRedis.NewPublisher(app.Redis, app.Metrics, app.Config.Saga.PublishRetries)

	// --- Saga orchestrator ---
	orchestrator := saga.NewOrchestrator(
		orderRepo,
		publisher,
		app.Metrics,
		app.Logger,
		app.Config.Saga.Timeout,
	)

	// --- HTTP server ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:         app.Pool,
		RedisClient:  app.Redis,
		OrderRepo:    orderRepo,
		Orchestrator: orchestrator,
		Metrics:      app.Metrics,
		CORSConfig:   app.Config.Server.CORS,
	})
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	// --- Event consumers, one per inbound topic ---
	workerCfg := app.Config.Worker
	consumers := make(map[string]*infraRedis.StreamConsumer)
	for topic := range orchestrator.Routes() {
		consumers[topic] = infraRedis.NewStreamConsumer(
			app.Redis,
			topic,
			workerCfg.ConsumerGroup,
			app.Config.InstanceID,
			workerCfg.BatchSize,
			workerCfg.BlockDuration,
		)
	}
	for topic, consumer := range consumers {
		if err := consumer.CreateGroup(ctx); err != nil {
			app.Logger.Error().Err(err).Str("stream", topic).Msg("Failed to create consumer group")
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	routes := orchestrator.Routes()
	for topic, consumer := range consumers {
		handler := routes[topic]
		consumer := consumer
		g.Go(func() error {
			return runEventConsumer(gCtx, app, consumer, handler)
		})
	}

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down...")
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
			defer cancelShutdown()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				app.Logger.Error().Err(err).Msg("Server forced to shutdown")
			}
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Server error")
	}
	app.Logger.Info().Msg("Server exited")
}

// runEventConsumer reads one topic stream and feeds payloads to the saga
// dispatch handler. Handler failures are logged and acked: a poison
// message must not wedge the stream for other orders.
func runEventConsumer(
	ctx context.Context,
	app *bootstrap.App,
	consumer *infraRedis.StreamConsumer,
	handler saga.HandlerFunc,
) error {
	logger := app.Logger.With().Str("stream", consumer.Stream()).Logger()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				processMessage(ctx, logger, app, consumer, handler, msg.ID, msg.Values)
			}
		}
	}
}

func processMessage(
	ctx context.Context,
	logger zerolog.Logger,
	app *bootstrap.App,
	consumer *infraRedis.StreamConsumer,
	handler saga.HandlerFunc,
	messageID string,
	values map[string]any,
) {
	start := time.Now()
	status := "success"

	payload, _ := values["payload"].(string)
	if payload == "" {
		logger.Error().Str("message_id", messageID).Msg("Message has no payload")
		status = "malformed"
	} else if err := handler(ctx, []byte(payload)); err != nil {
		logger.Error().Err(err).Str("message_id", messageID).Msg("Failed to process message")
		status = "error"
	}

	app.Metrics.WorkerMessagesProcessed.WithLabelValues(consumer.Stream(), status).Inc()
	app.Metrics.WorkerProcessingDuration.WithLabelValues(consumer.Stream()).Observe(time.Since(start).Seconds())
	consumer.Ack(ctx, messageID)
}
