package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/websync-digital/sunlit-blue-spark/internal/browser"
	"github.com/websync-digital/sunlit-blue-spark/internal/catalog"
	"github.com/websync-digital/sunlit-blue-spark/internal/config"
	"github.com/websync-digital/sunlit-blue-spark/internal/event"
	handler "github.com/websync-digital/sunlit-blue-spark/internal/handler/http"
	"github.com/websync-digital/sunlit-blue-spark/internal/handoff"
	"github.com/websync-digital/sunlit-blue-spark/internal/manager"
	"github.com/websync-digital/sunlit-blue-spark/internal/prefs"
	prefsmem "github.com/websync-digital/sunlit-blue-spark/internal/prefs/memory"
	prefsredis "github.com/websync-digital/sunlit-blue-spark/internal/prefs/redis"
	"github.com/websync-digital/sunlit-blue-spark/internal/repository"
	memtable "github.com/websync-digital/sunlit-blue-spark/internal/repository/memory"
	"github.com/websync-digital/sunlit-blue-spark/internal/repository/postgres"
	resttable "github.com/websync-digital/sunlit-blue-spark/internal/repository/rest"
	"github.com/websync-digital/sunlit-blue-spark/internal/session"
	"github.com/websync-digital/sunlit-blue-spark/internal/storage"
	"github.com/websync-digital/sunlit-blue-spark/internal/storage/cloudinary"
	"github.com/websync-digital/sunlit-blue-spark/internal/storage/local"
	memstore "github.com/websync-digital/sunlit-blue-spark/internal/storage/memory"
	reststore "github.com/websync-digital/sunlit-blue-spark/internal/storage/rest"
	"github.com/websync-digital/sunlit-blue-spark/internal/storage/s3"
	"github.com/websync-digital/sunlit-blue-spark/migrations"
	"github.com/websync-digital/sunlit-blue-spark/pkg/database"
	"github.com/websync-digital/sunlit-blue-spark/pkg/health"
	"github.com/websync-digital/sunlit-blue-spark/pkg/httpclient"
	pkgkafka "github.com/websync-digital/sunlit-blue-spark/pkg/kafka"
	"github.com/websync-digital/sunlit-blue-spark/pkg/middleware"
	"github.com/websync-digital/sunlit-blue-spark/pkg/tracing"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "storefront"

const (
	sweepInterval     = time.Minute
	mediaCacheControl = "public, max-age=86400"
)

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	managers       *manager.Registry
	browsers       *browser.Registry
	loginLimiter   *middleware.RateLimiter
	shutdownTracer func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources(context.Background())
		}
	}()

	// Tracing.
	a.shutdownTracer, err = tracing.InitTracer(ctx, tracing.Config{
		Enabled:      cfg.OTELEnabled,
		ServiceName:  ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	// Remote catalog client, shared by the REST table and REST storage.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.CatalogTimeout
	clientCfg.Headers = http.Header{
		"Apikey":        {cfg.CatalogAPIKey},
		"Authorization": {"Bearer " + cfg.CatalogAPIKey},
	}
	catalogClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(clientCfg),
		httpclient.DefaultCircuitBreakerConfig("catalog"),
		logger,
	)

	table, err := a.newProductTable(ctx, catalogClient)
	if err != nil {
		return nil, err
	}
	healthHandler.Register("catalog", table.Ping)

	images, media, err := a.newStorage(ctx, catalogClient)
	if err != nil {
		return nil, err
	}
	logger.Info("image storage initialized", slog.String("driver", cfg.StorageDriver))

	store, err := a.newPrefsStore(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Catalog events.
	var events manager.Events = event.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Admin gate.
	secret := cfg.SessionSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}
	if cfg.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH not set, admin login is disabled")
	}
	gate := session.NewGate(cfg.AdminEmail, cfg.AdminPasswordHash, session.NewTokenManager(secret, cfg.SessionTTL))

	// Build the dependency graph.
	adapter := catalog.NewAdapter(table, images, logger)
	layout, err := manager.ParseLayout(cfg.AdminLayout)
	if err != nil {
		return nil, err
	}
	a.managers = manager.NewRegistry(func() *manager.Manager {
		return manager.New(adapter, manager.Options{
			Layout:              layout,
			PlaceholderImageURL: cfg.PlaceholderImageURL,
			Events:              events,
			Logger:              logger,
		})
	}, cfg.SessionTTL)
	gate.OnLogout(a.managers.Drop)

	linker := handoff.NewLinker(cfg.MessagingBaseURL, cfg.BrandName, cfg.CompanyPhone)
	a.browsers = browser.NewRegistry(func(profileID string) *browser.Browser {
		return browser.New(adapter, prefs.ForProfile(store, profileID), linker, logger)
	}, cfg.VisitorIdleTimeout)

	a.loginLimiter = middleware.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst, 10*time.Minute)

	// HTTP router.
	router, err := handler.NewRouter(handler.Deps{
		ServiceName:   ServiceName,
		Gate:          gate,
		Managers:      a.managers,
		Browsers:      a.browsers,
		Linker:        linker,
		Brand:         cfg.BrandName,
		Phone:         cfg.CompanyPhone,
		SecureCookies: cfg.Environment == "production",
		LoginLimiter:  a.loginLimiter,
		Metrics:       middleware.NewHTTPMetrics(prometheus.DefaultRegisterer, ServiceName),
		Health:        healthHandler,
		Media:         media,
		MediaPrefix:   cfg.MediaURLPrefix,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		PprofCIDRs:    cfg.PprofAllowedCIDRs,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return a, nil
}

func (a *App) newProductTable(ctx context.Context, client httpclient.Doer) (repository.ProductTable, error) {
	cfg := a.cfg
	switch cfg.CatalogBackend {
	case config.BackendPostgres:
		pgCfg := database.DefaultPostgresConfig(cfg.DatabaseURL)
		pgCfg.MaxConns = cfg.DBMaxConns
		pgCfg.MinConns = cfg.DBMinConns
		pgCfg.MaxConnLifetime = cfg.DBMaxConnLifetime()
		pgCfg.MaxConnIdleTime = cfg.DBMaxConnIdleTime()

		pool, err := database.NewPostgresPool(ctx, pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL")

		if cfg.DBMigrate {
			if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			a.logger.Info("database migrations completed")
		}
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, ServiceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
		return postgres.NewProductTable(pool), nil

	case config.BackendMemory:
		a.logger.Warn("using in-memory catalog, products are lost on restart")
		return memtable.NewProductTable(), nil

	default:
		a.logger.Info("using remote catalog", slog.String("url", cfg.CatalogURL))
		return resttable.NewProductTable(client, cfg.CatalogURL), nil
	}
}

// newStorage returns the image store and, for drivers that keep images in
// this process, the handler serving them.
func (a *App) newStorage(ctx context.Context, client httpclient.Doer) (storage.Storage, http.Handler, error) {
	cfg := a.cfg
	switch cfg.StorageDriver {
	case config.StorageS3:
		s, err := s3.New(ctx, s3.Config{
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			PublicBaseURL: cfg.S3PublicBaseURL,
			Endpoint:      cfg.S3Endpoint,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return s, nil, nil

	case config.StorageCloudinary:
		s, err := cloudinary.New(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return nil, nil, fmt.Errorf("init cloudinary storage: %w", err)
		}
		return s, nil, nil

	case config.StorageLocal:
		s := local.New(cfg.StorageLocalDir, cfg.MediaURLPrefix, mediaCacheControl)
		return s, s, nil

	case config.StorageMemory:
		s := memstore.New(cfg.MediaURLPrefix)
		return s, s, nil

	default:
		return reststore.New(client, cfg.CatalogURL, cfg.StorageBucket), nil, nil
	}
}

// newPrefsStore connects to Redis when configured. Preferences are
// best-effort, so Redis only reports on readiness without gating it.
func (a *App) newPrefsStore(ctx context.Context, h *health.Handler) (prefs.Store, error) {
	if a.cfg.RedisURL == "" {
		a.logger.Info("visitor preferences kept in memory")
		return prefsmem.New(), nil
	}

	client, err := database.NewRedisClient(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	store := prefsredis.New(client, a.cfg.PrefsTTL)
	h.RegisterOptional("redis", store.Ping)
	a.logger.Info("connected to Redis")
	return store, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.managers.Run(ctx, sweepInterval)
	go a.browsers.Run(ctx, sweepInterval)
	go a.loginLimiter.Run(ctx)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.closeResources(shutdownCtx)

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
