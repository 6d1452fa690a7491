package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/siyana/storefront/internal/auth"
	"github.com/siyana/storefront/internal/config"
	"github.com/siyana/storefront/internal/dispatch"
	"github.com/siyana/storefront/internal/event"
	handler "github.com/siyana/storefront/internal/handler/http"
	mongorepo "github.com/siyana/storefront/internal/repository/mongo"
	"github.com/siyana/storefront/internal/repository/postgres"
	redisrepo "github.com/siyana/storefront/internal/repository/redis"
	"github.com/siyana/storefront/internal/service"
	"github.com/siyana/storefront/migrations"
	"github.com/siyana/storefront/pkg/database"
	"github.com/siyana/storefront/pkg/health"
	"github.com/siyana/storefront/pkg/httpclient"
	pkgkafka "github.com/siyana/storefront/pkg/kafka"
	"github.com/siyana/storefront/pkg/middleware"
	"github.com/siyana/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	mongo          *mongo.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	dlq            *pkgkafka.DLQProducer
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.closeStores()
			if a.tracerShutdown != nil {
				_ = a.tracerShutdown(context.Background())
			}
		}
	}()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		Insecure:       cfg.OTELInsecure,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	a.pool, err = database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:             cfg.PostgresURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Redis.
	redisCfg := database.DefaultRedisConfig()
	redisCfg.Addr = cfg.RedisAddr
	redisCfg.Password = cfg.RedisPass
	redisCfg.DB = cfg.RedisDB
	a.redis, err = database.NewRedisClient(ctx, redisCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// Initialize MongoDB.
	mongoCfg := database.DefaultMongoConfig()
	mongoCfg.URI = cfg.MongoURI
	mongoCfg.Database = cfg.MongoDatabase
	a.mongo, err = database.NewMongoClient(ctx, mongoCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	mongoDB := a.mongo.Database(cfg.MongoDatabase)

	wishlistRepo := mongorepo.NewWishlistRepository(mongoDB)
	if err := wishlistRepo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure wishlist indexes: %w", err)
	}

	// Kafka is optional: without brokers events are logged and dropped.
	var publisher pkgkafka.Publisher = pkgkafka.NoopPublisher{Logger: logger}
	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

		if cfg.NotifierEnabled {
			a.consumer, a.dlq = newMerchantConsumer(cfg, a.redis, logger)
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set, domain events will be dropped")
	}

	// Build the dependency graph.
	cartRepo := redisrepo.NewCartRepository(a.redis, cfg.CartTTL, logger)
	orderRepo := postgres.NewOrderRepository(a.pool)
	catalogRepo := mongorepo.NewCatalogRepository(mongoDB)
	eventProducer := event.NewProducer(publisher, logger)

	cartService := service.NewCartService(cartRepo, wishlistRepo, catalogRepo, eventProducer, logger, cfg.StoreTimeout)
	checkoutService := service.NewCheckoutService(cartRepo, orderRepo, eventProducer, logger, cfg.MerchantWhatsApp, cfg.StoreTimeout)
	catalogService := service.NewCatalogService(catalogRepo, logger, cfg.StoreTimeout)

	var validator middleware.TokenValidator
	if cfg.JWTSecret != "" {
		validator = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, 0).Validator()
	} else {
		logger.Warn("JWT_SECRET not set, trusting X-User-ID from the gateway")
	}

	a.limiter = middleware.NewRateLimiter(cfg.CheckoutRatePerMin, cfg.CheckoutRateBurst, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("mongo", func(ctx context.Context) error {
		return a.mongo.Ping(ctx, readpref.Primary())
	})
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
	}

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Cart:            cartService,
		Checkout:        checkoutService,
		Catalog:         catalogService,
		Health:          healthHandler,
		Logger:          logger,
		TokenValidator:  validator,
		CheckoutLimiter: a.limiter,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowCredentials: true,
			MaxAge:           300,
		},
		CatalogMaxAge:  cfg.CatalogMaxAge,
		RequestTimeout: cfg.RequestTimeout,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// newMerchantConsumer builds the order.submitted consumer that messages the
// merchant. Deliveries are deduplicated in Redis and poison messages go to
// the DLQ.
func newMerchantConsumer(cfg *config.Config, rdb *goredis.Client, logger *slog.Logger) (*pkgkafka.Consumer, *pkgkafka.DLQProducer) {
	var notifier event.Notifier = dispatch.LogNotifier{Logger: logger}

	cloudCfg := dispatch.CloudAPIConfig{
		BaseURL:        cfg.WhatsAppAPIBaseURL,
		PhoneNumberID:  cfg.WhatsAppPhoneNumberID,
		AccessToken:    cfg.WhatsAppAccessToken,
		MerchantNumber: cfg.MerchantWhatsApp,
	}
	if cloudCfg.Enabled() {
		cbCfg := httpclient.CircuitBreakerConfig{
			Name:         "whatsapp-cloud-api",
			MaxRequests:  cfg.CBMaxRequests,
			Interval:     time.Duration(cfg.CBInterval) * time.Second,
			Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
			FailureRatio: cfg.CBFailureRatio,
			MinRequests:  cfg.CBMinRequests,
		}
		client := httpclient.NewCircuitBreakerClient(httpclient.New(httpclient.DefaultConfig()), cbCfg, logger)
		notifier = dispatch.NewCloudAPINotifier(client, cloudCfg, logger)
		logger.Info("circuit breaker initialized",
			slog.String("name", cbCfg.Name),
			slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
			slog.Int("timeout_seconds", cfg.CBTimeout),
		)
	} else {
		logger.Warn("WhatsApp Cloud API not configured, merchant notifications are logged only")
	}

	store := redisrepo.NewIdempotencyStore(rdb, time.Duration(cfg.EventDedupeHours)*time.Hour)
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	consumer := event.NewOrderSubmittedConsumer(cfg.KafkaBrokers, event.NewConsumerHandler(notifier, logger), store, logger).
		WithDLQ(dlq)
	return consumer, dlq
}

// Run starts the HTTP server and the event consumer and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	var wg sync.WaitGroup
	if a.consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.consumer.Start(consumerCtx); err != nil {
				a.logger.Error("consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopConsumer()
	wg.Wait()

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush spans from drained requests)
// 3. Kafka producers
// 4. Stores
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.limiter.Stop()

	// 2. Flush pending spans.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producers.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close stores.
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var errs []error
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.logger.Error("mongo disconnect error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
