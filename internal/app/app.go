package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"contact-service/internal/config"
	"contact-service/internal/contact"
	"contact-service/internal/db"
	"contact-service/internal/health"
	"contact-service/internal/kafka"
	"contact-service/internal/logger"
	"contact-service/internal/messaging"
	"contact-service/internal/metrics"
	"contact-service/internal/middleware"
	"contact-service/internal/ratelimit"
	"contact-service/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
)

type App struct {
	config    *config.Config
	router    *gin.Engine
	server    *http.Server
	logger    *slog.Logger
	db        *bun.DB
	producer  contact.Producer
	redis     *redis.Client
	telemetry *telemetry.Telemetry
	stop      context.CancelFunc
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slogLogger := logger.NewWithServiceContext(ServiceName, Version, cfg.Env)
	slog.SetDefault(slogLogger)
	slogLogger.Info("initializing application", "env", cfg.Env, "commit", GitCommit, "build_time", BuildTime)

	return NewWithConfig(cfg, slogLogger)
}

// NewWithConfig wires every component from cfg.
func NewWithConfig(cfg *config.Config, slogLogger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config: cfg,
		logger: slogLogger,
		stop:   cancel,
	}

	tel, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, ServiceName, Version, slogLogger)
	if err != nil {
		cancel()
		return nil, err
	}
	app.telemetry = tel
	meter := otel.Meter(ServiceName)
	if err := tel.Metrics.Health.RegisterServiceInfo(meter, ServiceName, Version, cfg.Env); err != nil {
		slogLogger.Warn("failed to register service info metric", "error", err)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	app.db = database

	if err := tel.Metrics.Database.RegisterDB(database.DB, meter); err != nil {
		slogLogger.Warn("failed to register database metrics", "error", err)
	}

	if err := db.RunMigrations(ctx, database, (*contact.Contact)(nil)); err != nil {
		app.close(ctx)
		return nil, err
	}

	phones, err := contact.NewPhonePolicy(cfg.Contact.PhonePolicy, cfg.Contact.PhoneHashKey)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	app.producer = newProducer(cfg.Events, tel.Metrics.Messaging, slogLogger)

	validator := contact.NewValidator(
		contact.WithStrictPhone(cfg.Contact.StrictPhone),
		contact.WithSanitizer(cfg.Contact.SanitizeHTML),
	)
	repo := contact.NewRepository(database, tel.Metrics)
	serviceOpts := []contact.ServiceOption{contact.WithMetrics(tel.Metrics)}
	if app.producer != nil {
		serviceOpts = append(serviceOpts, contact.WithProducer(app.producer))
	}
	contactService := contact.NewService(repo, validator, phones, slogLogger, serviceOpts...)
	contactHandler := contact.NewHandler(contactService, slogLogger)

	gin.SetMode(gin.ReleaseMode)
	app.router = gin.New()
	app.router.Use(gin.Recovery(), middleware.RequestLogger(slogLogger), middleware.CORS(cfg.Server.CORSOrigins))

	health.NewHandler(database, tel.Metrics.Health, slogLogger).RegisterRoutes(app.router)

	api := app.router.Group("/api")
	contactHandler.RegisterRoutes(api, app.routeMiddleware(ctx, tel.Metrics))

	slogLogger.Info("application initialized successfully")
	return app, nil
}

func newProducer(cfg config.EventsConfig, m *metrics.MessagingMetrics, logger *slog.Logger) contact.Producer {
	switch cfg.Driver {
	case "nats":
		p, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, m, logger)
		if err != nil {
			logger.Warn("failed to initialize NATS producer, events disabled", "error", err)
			return nil
		}
		return p
	case "kafka":
		p, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, m, logger)
		if err != nil {
			logger.Warn("failed to initialize kafka producer, events disabled", "error", err)
			return nil
		}
		return p
	default:
		logger.Info("event publishing disabled")
		return nil
	}
}

func (a *App) routeMiddleware(ctx context.Context, m *metrics.Metrics) contact.RouteMiddleware {
	rl := a.config.RateLimit
	if !rl.Enabled {
		a.logger.Info("rate limiting disabled")
		return contact.RouteMiddleware{}
	}

	idleTTL := time.Duration(rl.IdleTTLSeconds) * time.Second
	store := ratelimit.NewStore(ratelimit.WithIdleTTL(idleTTL))
	store.StartJanitor(ctx, time.Minute)

	opts := []ratelimit.Option{
		ratelimit.WithKeyFunc(ratelimit.ClientAddrKey(rl.TrustXFF)),
		ratelimit.WithMetrics(m),
	}
	if rl.Stats.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     rl.Stats.RedisAddr,
			Password: rl.Stats.RedisPassword,
			DB:       rl.Stats.RedisDB,
		})
		opts = append(opts, ratelimit.WithStats(ratelimit.NewRedisStatsStore(a.redis, rl.Stats.Prefix, 48*time.Hour)))
		a.logger.Info("rate limit stats recorded to redis", "addr", rl.Stats.RedisAddr)
	}
	limiter := ratelimit.New(store, a.logger, opts...)

	hourly := ratelimit.PerHour("global_hour", rl.GlobalPerHour)
	daily := ratelimit.PerDay("global_day", rl.GlobalPerDay)

	return contact.RouteMiddleware{
		Create: []gin.HandlerFunc{limiter.Handler("/api/save_user_info", ratelimit.PerMinute("create", rl.CreatePerMin), hourly, daily)},
		Read:   []gin.HandlerFunc{limiter.Handler("/api/get_user/:id", ratelimit.PerMinute("read", rl.ReadPerMin), hourly, daily)},
	}
}

// Handler exposes the router for in-process tests.
func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) Run() error {
	s := a.config.Server
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(s.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", s.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	a.close(ctx)
	return err
}

func (a *App) close(ctx context.Context) {
	a.stop()

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("failed to close event producer", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	db.Close(a.db)
	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		a.logger.Warn("failed to shutdown telemetry", "error", err)
	}
}
