package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"github.com/maheshrc27/postforge/internal/api"
	"github.com/maheshrc27/postforge/internal/api/handlers"
	job "github.com/maheshrc27/postforge/internal/jobs"
	"github.com/maheshrc27/postforge/internal/queue"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily publish trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := buildApplication(ctx)
	if err != nil {
		return err
	}
	log := a.logger

	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	c := cron.NewWithLocation(loc)
	if err := job.NewPublishJob(a.publish, log).Register(c, a.cfg.PublishHour); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()
	log.WithField("hour", a.cfg.PublishHour).WithField("timezone", a.cfg.PublishTimezone).Info("publish_trigger_scheduled")

	var scheduler queue.Scheduler
	var worker *asynq.Server
	if a.cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: a.cfg.RedisURI}
		client := asynq.NewClient(redisConn)
		defer client.Close()
		scheduler = queue.NewScheduler(client)

		worker = asynq.NewServer(redisConn, asynq.Config{
			// publishes must not overlap
			Concurrency: 1,
			Logger:      log.WithField("component", "asynq"),
		})
		mux := queue.NewQueue(a.publish, log).Mux()
		if err := worker.Start(mux); err != nil {
			return err
		}
		log.Info("asynq_worker_started")
	}

	app := api.NewApp(api.Handlers{
		Runs:  handlers.NewRunHandler(a.autopost, a.topic),
		Posts: handlers.NewPostHandler(a.publish, scheduler),
		Plans: handlers.NewPlanHandler(a.planner),
	}, a.metrics, log)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(a.cfg.ListenAddr)
	}()
	log.WithField("addr", a.cfg.ListenAddr).Info("server_started")

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil {
			log.WithError(err).Error("server_failed")
		}
	}

	log.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if worker != nil {
		worker.Shutdown()
	}
	if err := a.autopost.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	log.Info("server_shutdown_complete")
	return errors.Join(errs...)
}
