package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/ynon123/geosamples/internal/config"
	"github.com/ynon123/geosamples/internal/handler"
	"github.com/ynon123/geosamples/internal/ingest"
	"github.com/ynon123/geosamples/internal/middleware"
	"github.com/ynon123/geosamples/internal/service"
	"github.com/ynon123/geosamples/internal/storage"
)

// DBError represents a database-related error.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("db error during %q: %v", e.Op, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

// App holds the application-level dependencies.
type App struct {
	DB     *pgxpool.Pool
	Router *gin.Engine

	// Handler is Router wrapped with CORS when origins are configured.
	Handler http.Handler

	cfg    *config.Config
	logger zerolog.Logger
	ingest *ingest.Subscriber
}

// New initializes the application: connects to PostGIS, runs migrations,
// wires the samples service, configures the HTTP engine and, when a broker
// is configured, starts the MQTT ingestion bridge. ctx bounds the bridge's
// lifetime.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	pool, err := connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	logger.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("database connection pool established")

	if err := storage.RunMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: run migrations: %w", err)
	}

	logger.Info().Msg("database schema up to date")

	samplesService := service.NewSamplesService(storage.NewSamplesRepository(pool))
	router := NewRouter(cfg, logger, handler.New(samplesService, pool))

	a := &App{
		DB:      pool,
		Router:  router,
		Handler: withCORS(cfg.Server.CORSOrigins, router),
		cfg:     cfg,
		logger:  logger,
	}

	if cfg.MQTT.Enabled() {
		sub := ingest.NewSubscriber(cfg.MQTT, samplesService, logger, cfg.Server.RequestTimeout)
		if err := sub.Start(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("app: start mqtt ingest: %w", err)
		}
		a.ingest = sub
	}

	return a, nil
}

func connect(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, &DBError{Op: "parse_dsn", Err: err}
	}

	poolCfg.MaxConns = dbCfg.MaxConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &DBError{Op: "connect", Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &DBError{Op: "ping", Err: err}
	}

	return pool, nil
}

// NewRouter builds the gin engine with middleware and all routes.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRouter(cfg *config.Config, logger zerolog.Logger, h *handler.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(logger))
	router.Use(middleware.AccessLog())
	router.Use(middleware.Metrics())
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	samples := router.Group("/samples")
	{
		samples.GET("", h.ListSamples)
		samples.POST("", h.IngestSamples)
		samples.POST("/filter", h.FilterSamples)
	}

	return router
}

// withCORS wraps next with a CORS policy for origins. No origins, no CORS.
func withCORS(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		return next
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(next)
}

// Shutdown stops the MQTT bridge and closes the database pool.
func (a *App) Shutdown() {
	if a.ingest != nil {
		a.ingest.Stop()
	}
	if a.DB != nil {
		a.DB.Close()
		a.logger.Info().Msg("database connection pool closed")
	}
}
