// Package server builds the connector's dependency graph and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/cortex-connector/internal/aggregate"
	"github.com/JakeFAU/cortex-connector/internal/api"
	"github.com/JakeFAU/cortex-connector/internal/archive"
	"github.com/JakeFAU/cortex-connector/internal/clock/system"
	"github.com/JakeFAU/cortex-connector/internal/config"
	"github.com/JakeFAU/cortex-connector/internal/connector"
	"github.com/JakeFAU/cortex-connector/internal/instance"
	"github.com/JakeFAU/cortex-connector/internal/pool"
	memorypublisher "github.com/JakeFAU/cortex-connector/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/cortex-connector/internal/publisher/pubsub"
	"github.com/JakeFAU/cortex-connector/internal/router"
	gcsstorage "github.com/JakeFAU/cortex-connector/internal/storage/gcs"
	localstorage "github.com/JakeFAU/cortex-connector/internal/storage/local"
	memorystorage "github.com/JakeFAU/cortex-connector/internal/storage/memory"
	pgstore "github.com/JakeFAU/cortex-connector/internal/storage/postgres"
	"github.com/JakeFAU/cortex-connector/internal/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	serviceName     = "cortex-connector"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	Pool   *pool.Pool
	Status *aggregate.StatusAggregator
	Health *aggregate.HealthAggregator
	Router *router.Router

	apiServer    *api.Server
	pubsubClient *pubsub.Client
	gcpPublisher *gcppublisher.Publisher
	storage      *storage.Client
	jobIndex     *pgstore.JobIndex
	tracer       *sdktrace.TracerProvider
}

// Build creates the application's dependencies. logger is owned by the caller.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies", zap.Int("instances", len(cfg.Instances)))

	tp, err := telemetry.InitTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracer = tp

	p, err := setupPool(app)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Pool = p
	app.Status = aggregate.NewStatusAggregator(p, logger.Named("status"))
	app.Health = aggregate.NewHealthAggregator(p, logger.Named("health"))

	selector, err := router.NewSelector(cfg.Router.Selection)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("selector init failed: %w", err)
	}
	index, err := setupJobIndex(ctx, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	reportArchive, err := setupArchive(ctx, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Router = router.New(
		p,
		selector,
		index,
		publisher,
		reportArchive,
		system.New(),
		router.Config{Topic: cfg.PubSub.TopicName},
		logger.Named("router"),
	)
	app.apiServer = api.NewServer(app.Status, app.Health, app.Router, cfg, logger.Named("api"))
	return app, nil
}

// Handler returns the HTTP handler of the API server.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled, then drains and closes dependencies.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()
	a.logger.Info("shutdown complete")

	if err, ok := <-serveErr; ok && err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close releases external clients. It is safe to call more than once.
func (a *App) Close() {
	if a.gcpPublisher != nil {
		a.gcpPublisher.Close()
		a.gcpPublisher = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.jobIndex != nil {
		a.jobIndex.Close()
		a.jobIndex = nil
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		a.tracer = nil
	}
}

func setupPool(app *App) (*pool.Pool, error) {
	clients := make([]connector.InstanceClient, 0, len(app.cfg.Instances))
	for _, ic := range app.cfg.Instances {
		c, err := instance.New(instance.Config{
			ID:             ic.ID,
			URL:            ic.URL,
			APIKey:         ic.APIKey,
			Timeout:        ic.Timeout(),
			RateLimitRPS:   ic.RateLimitRPS,
			RateLimitBurst: ic.RateLimitBurst,
		}, nil, app.logger.Named("instance"))
		if err != nil {
			return nil, fmt.Errorf("instance client init failed: %w", err)
		}
		clients = append(clients, c)
		app.logger.Debug("instance configured", zap.String("instance_id", ic.ID), zap.String("url", ic.URL))
	}
	p, err := pool.New(clients...)
	if err != nil {
		return nil, fmt.Errorf("instance pool init failed: %w", err)
	}
	if p.Len() == 0 {
		app.logger.Warn("no instances configured, composite status will report ERROR")
	}
	return p, nil
}

func setupJobIndex(ctx context.Context, app *App) (connector.JobIndex, error) {
	if app.cfg.Database.DSN == "" {
		app.logger.Info("no database DSN configured, using in-memory job index")
		return memorystorage.NewJobIndex(), nil
	}
	idx, err := pgstore.NewJobIndex(ctx, pgstore.Config{
		DSN:      app.cfg.Database.DSN,
		Table:    app.cfg.Database.Table,
		MaxConns: app.cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("job index init failed: %w", err)
	}
	app.jobIndex = idx
	if err := idx.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("job index schema failed: %w", err)
	}
	app.logger.Info("postgres job index initialized", zap.String("table", app.cfg.Database.Table))
	return idx, nil
}

func setupPublisher(ctx context.Context, app *App) (connector.Publisher, error) {
	if app.cfg.PubSub.ProjectID == "" {
		app.logger.Info("no Pub/Sub project configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.gcpPublisher = gcppublisher.New(client)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.gcpPublisher, nil
}

func setupArchive(ctx context.Context, app *App) (connector.ReportArchiver, error) {
	var store connector.BlobStore
	prefix := app.cfg.Archive.Prefix
	switch app.cfg.Archive.Backend {
	case config.ArchiveGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		gcs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: app.cfg.Archive.Bucket, Prefix: prefix})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		store = gcs
		prefix = ""
		app.logger.Info("using GCS report archive", zap.String("bucket", app.cfg.Archive.Bucket))
	case config.ArchiveLocal:
		local, err := localstorage.New(app.cfg.Archive.Dir)
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		store = local
		app.logger.Info("using local report archive", zap.String("dir", app.cfg.Archive.Dir))
	case config.ArchiveMemory:
		store = memorystorage.NewBlobStore()
		app.logger.Info("using in-memory report archive")
	default:
		app.logger.Info("report archive disabled")
		return nil, nil
	}
	return archive.New(store, prefix, app.logger.Named("archive")), nil
}
