// Package bootstrap wires utapi's adapters, application services, and
// HTTP server together and runs the process to completion.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/scality/utapi/adapters/clock"
	apihttp "github.com/scality/utapi/adapters/http"
	"github.com/scality/utapi/adapters/idgen"
	"github.com/scality/utapi/adapters/memstore"
	"github.com/scality/utapi/adapters/metrics"
	"github.com/scality/utapi/adapters/random"
	"github.com/scality/utapi/adapters/sqlitestore"
	"github.com/scality/utapi/app"
	"github.com/scality/utapi/config"
	"github.com/scality/utapi/domain/metric"
	"github.com/scality/utapi/pkg/sigv4"
	"github.com/scality/utapi/ports"
)

// App is the fully wired, running utapi process.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	Metrics    *metrics.Collector
	HTTPServer *http.Server

	store      ports.Datastore
	client     *app.Client
	dispatcher *app.Dispatcher
	closer     interface{ Close() error }
}

// PushClient returns the write-path client, exported so an embedding
// process (a storage-service connector, in production deployments)
// can push events directly; utapi's own HTTP surface is read-only.
func (a *App) PushClient() *app.Client {
	return a.client
}

// New loads configuration from path, wires every adapter and service,
// and returns an App ready to Run.
func New(configPath string) (*App, error) {
	holder, err := config.NewHolder(configPath, setupLogger("info"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := holder.Get()
	logger := setupLogger(cfg.Log.Level)
	holder.OnChange(func(*config.Config) {})

	a := &App{Logger: logger, Config: holder}

	store, closer, err := newDatastore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init datastore: %w", err)
	}
	a.store = store
	a.closer = closer

	a.Metrics = metrics.New()
	holder.SetMetrics(a.Metrics)

	a.client = app.NewClient(
		app.ClientDeps{Store: store, Clock: clock.Real{}, Random: random.Real{}, IDGen: idgen.UUID{}, Metrics: a.Metrics},
		app.ClientConfig{Component: cfg.Component, Levels: enabledLevels(cfg.Metrics)},
		logger,
	)

	buckets := app.NewLister(app.ListerDeps{Store: store, Metrics: a.Metrics}, app.ListerConfig{Level: metric.LevelBucket, Concurrency: int64(cfg.Workers)}, logger)
	accounts := app.NewLister(app.ListerDeps{Store: store, Metrics: a.Metrics}, app.ListerConfig{Level: metric.LevelAccount, Concurrency: int64(cfg.Workers)}, logger)
	service := app.NewLister(app.ListerDeps{Store: store, Metrics: a.Metrics}, app.ListerConfig{Level: metric.LevelService, Concurrency: int64(cfg.Workers)}, logger)
	a.dispatcher = app.NewDispatcher(buckets, accounts, service, app.DispatcherConfig{Component: cfg.Component})

	metricsHandler := apihttp.NewMetricsHandler(a.dispatcher, logger, a.Metrics)
	healthHandler := apihttp.NewHealthHandler()

	var verifier apihttp.Authenticator
	if src := credentialSourceFromEnv(); src != nil {
		verifier = sigv4.New(cfg.Auth.Service, cfg.Auth.Region, src)
	}

	router := apihttp.NewRouter(logger, apihttp.RouterConfig{
		MetricsHandler: metricsHandler,
		HealthHandler:  healthHandler,
		Verifier:       verifier,
		Metrics:        a.Metrics,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until an interrupt or fatal
// server error, then shuts down gracefully.
func (a *App) Run() error {
	a.Config.WatchSignals()
	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the HTTP server and closes the datastore.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.Config.Stop()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("datastore close error")
		}
	}

	return nil
}

func newDatastore(cfg *config.Config) (ports.Datastore, interface{ Close() error }, error) {
	switch cfg.Datastore.Driver {
	case "sqlite":
		store, err := sqlitestore.Open(cfg.Datastore.SQLite.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		store := memstore.New()
		return store, nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func enabledLevels(names []string) []metric.Level {
	if len(names) == 0 {
		return []metric.Level{metric.LevelBucket, metric.LevelAccount, metric.LevelService}
	}
	levels := make([]metric.Level, 0, len(names))
	for _, name := range names {
		switch name {
		case "bucket":
			levels = append(levels, metric.LevelBucket)
		case "account":
			levels = append(levels, metric.LevelAccount)
		case "service":
			levels = append(levels, metric.LevelService)
		}
	}
	return levels
}

func credentialSourceFromEnv() sigv4.CredentialSource {
	accessKey := os.Getenv("UTAPI_ACCESS_KEY_ID")
	secretKey := os.Getenv("UTAPI_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return nil
	}
	return sigv4.StaticCredentialSource{accessKey: secretKey}
}

func setupLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
