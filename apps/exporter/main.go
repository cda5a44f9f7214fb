package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/globalbibletools/exporter/apps/exporter/internal/config"
	"github.com/globalbibletools/exporter/apps/exporter/internal/export"
	"github.com/globalbibletools/exporter/apps/exporter/internal/export/adapters"
	"github.com/globalbibletools/exporter/apps/exporter/internal/export/handler"
	"github.com/globalbibletools/exporter/apps/exporter/internal/export/store"
	githubplatform "github.com/globalbibletools/exporter/apps/exporter/internal/platform/github"
	"github.com/globalbibletools/exporter/apps/exporter/internal/platform/postgres"
	redisplatform "github.com/globalbibletools/exporter/apps/exporter/internal/platform/redis"
	"github.com/globalbibletools/exporter/apps/exporter/internal/platform/telemetry"
	"github.com/globalbibletools/exporter/apps/exporter/internal/platform/validation"
	"github.com/globalbibletools/exporter/apps/exporter/schemas"
	"github.com/globalbibletools/exporter/pkg/logging"
)

func main() {
	log := logging.New("gloss-exporter")

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("exporter stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// --- Observability ---

	tel, err := telemetry.New(ctx, telemetry.Options{
		Enabled:     cfg.OTelEnabled,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "error", err)
		}
	}()

	// --- Platform: Postgres (single shared connection) ---

	pool, err := postgres.New(ctx, cfg.DatabaseURL, postgres.Options{MaxConns: postgres.DefaultMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	// --- Platform: Redis work queue ---

	rdb, err := redisplatform.New(ctx, cfg.Queue.URL)
	if err != nil {
		return err
	}
	defer rdb.Close() //nolint:errcheck // shutdown path

	hostname, _ := os.Hostname()
	queue := adapters.NewRedisQueue(rdb, adapters.RedisQueueOptions{
		Stream:   cfg.Queue.Stream,
		Group:    cfg.Queue.ConsumerGroup,
		Consumer: hostname,
	})

	// --- Platform: GitHub (created on first export) ---

	gh := githubplatform.Lazy(githubplatform.Auth{
		Token:          cfg.GitHub.Token,
		AppID:          cfg.GitHub.AppID,
		InstallationID: cfg.GitHub.InstallationID,
		PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
		BaseURL:        cfg.GitHub.APIURL,
	})
	repo := adapters.NewGitHubRepo(gh, cfg.Export.Owner, cfg.Export.Repo)

	// --- Service ---

	languages := store.NewPGLanguageStore(pool, cfg.BatchSize)
	svc := export.NewService(languages, repo, queue, export.Target{
		Branch:     cfg.Export.Branch,
		SystemName: cfg.Export.SystemName,
	}, log)

	if cfg.Queue.Consume {
		if err := queue.EnsureGroup(ctx); err != nil {
			return err
		}
		consumer := export.NewConsumer(queue, svc, log, 5*time.Second)
		consumerCtx, stopConsumer := context.WithCancel(ctx)
		consumerDone := make(chan struct{})
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(consumerCtx); err != nil {
				log.Error("queue consumer stopped", "error", err)
			}
		}()
		// Registered after the pool and redis closes, so it runs before them.
		defer func() {
			stopConsumer()
			<-consumerDone
		}()
		log.Info("queue consumer started", "stream", cfg.Queue.Stream, "group", cfg.Queue.ConsumerGroup)
	}

	// --- HTTP trigger endpoint ---

	validator, err := validation.New(schemas.OpenAPISpec)
	if err != nil {
		return err
	}

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware("gloss-exporter"), validator)
	handler.RegisterRoutes(router, svc, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting exporter",
			"port", cfg.Port,
			"repo", cfg.Export.Owner+"/"+cfg.Export.Repo,
			"branch", cfg.Export.Branch,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
