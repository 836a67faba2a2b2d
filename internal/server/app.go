// Package server initializes and runs the pubflow process.
// It connects storage and the downstream services, builds the publication
// engine, and serves health and metrics until it receives a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/assets"
	"github.com/dmitrijs2005/pubflow/internal/server/config"
	"github.com/dmitrijs2005/pubflow/internal/server/delivery"
	"github.com/dmitrijs2005/pubflow/internal/server/linkback"
	"github.com/dmitrijs2005/pubflow/internal/server/metrics"
	"github.com/dmitrijs2005/pubflow/internal/server/notify"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pubflow/internal/server/search"
	"github.com/dmitrijs2005/pubflow/internal/server/services"
	"github.com/dmitrijs2005/pubflow/internal/server/slug"
	"github.com/dmitrijs2005/pubflow/internal/server/workers"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/pubflow/internal/server/grpc"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	repos        repomanager.RepositoryManager
	redis        *redis.Client
	queue        *delivery.RedisQueue
	pool         *workers.Pool
	metrics      *metrics.Metrics
	entryService *services.EntryService
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := metrics.New()

	resolver, err := slug.NewResolver(rm.Entries(db), slug.Options{
		Pattern:     c.URLTitlePattern,
		MaxLength:   c.URLTitleMaxLength,
		MaxAttempts: c.SlugMaxAttempts,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("slug resolver init error: %w", err)
	}

	es, err := search.NewElasticClient(c.ElasticAddresses, c.ElasticUsername, c.ElasticPassword, c.ElasticMaxRetries)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("elasticsearch init error: %w", err)
	}

	s3c, err := assets.NewS3Client(ctx, assets.S3Config{
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
		Prefix:       c.S3Prefix,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("s3 init error: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	queue := delivery.NewRedisQueue(rdb, c.NotificationStream, c.StreamMaxLen, logger)

	subscribers := notify.NewSubscriberNotifier(queue, rm.Subscriptions(db), notify.Config{
		EntryAddedEnabled:   c.EntryAddedEnabled,
		EntryUpdatedEnabled: c.EntryUpdatedEnabled,
		Added:               notify.Template{Subject: c.EntryAddedSubject, Body: c.EntryAddedBody},
		Updated:             notify.Template{Subject: c.EntryUpdatedSubject, Body: c.EntryUpdatedBody},
		FromName:            c.EmailFromName,
		FromAddress:         c.EmailFromAddress,
		ExcerptLength:       c.ExcerptLength,
	}, m, logger)

	transport := linkback.NewHTTPTransport(&http.Client{}, c.LinkbackTimeout, c.LinkbackRetries, c.LinkbackBackoff, logger)
	links := linkback.NewNotifier(transport, rm.Entries(db), linkback.Config{
		PingbackEnabled:   c.PingbackEnabled,
		TrackbackEnabled:  c.TrackbackEnabled,
		SearchPingEnabled: c.PingSearchEngineEnabled,
		SearchPingURL:     c.SearchPingURL,
		ExcerptLength:     c.ExcerptLength,
	}, m, logger)

	pool := workers.NewPool(c.Workers, c.WorkerQueueSize, m, logger)

	svc := services.NewEntryService(services.Deps{
		DB:          db,
		Repos:       rm,
		Slugs:       resolver,
		Index:       search.NewElasticIndex(es, c.ElasticIndex, logger),
		Assets:      assets.NewS3Visibility(s3c, c.S3Bucket, c.S3Prefix, logger),
		Subscribers: subscribers,
		Links:       links,
		Dispatcher:  pool,
		Metrics:     m,
		Logger:      logger,
	}, c)

	return &App{
		config:       c,
		logger:       logger,
		db:           db,
		repos:        rm,
		redis:        rdb,
		queue:        queue,
		pool:         pool,
		metrics:      m,
		entryService: svc,
	}, nil
}

// EntryService returns the publication engine built by NewApp.
func (app *App) EntryService() *services.EntryService {
	return app.entryService
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) probes() map[string]gs.Probe {
	return map[string]gs.Probe{
		"postgres": app.db.PingContext,
		"redis":    app.queue.Ping,
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.probes(), 10*time.Second, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())

	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run migrates the schema, starts the worker pool and the servers, and
// blocks until ctx is cancelled or a shutdown signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return errors.Join(fmt.Errorf("migrations: %w", err), app.shutdown())
	}

	app.initSignalHandler(cancelFunc)

	app.pool.Start()

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()

	wg.Wait()

	return app.shutdown()
}

// shutdown drains pending side-effect tasks, then releases connections.
func (app *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()

	app.logger.Info(ctx, "Stopping app...")

	var errs []error
	if err := app.pool.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	if err := app.redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}
	if err := app.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("db: %w", err))
	}
	return errors.Join(errs...)
}
