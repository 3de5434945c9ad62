package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"herald/internal/broker"
	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/dispatch"
	"herald/internal/logger"
	"herald/internal/notification"
	"herald/internal/pipeline"
	"herald/internal/rules"
	"herald/pkg/circuitbreaker"
	"herald/pkg/health"
	"herald/pkg/logging"
	"herald/pkg/metrics"
	"herald/pkg/ratelimit"
)

const serviceName = "notification-service"

type App struct {
	Config *config.Config
	Logger logger.Logger

	redis       *redis.Client
	esClient    *elasticsearch.Client
	mongoClient *mongo.Client

	producer broker.Producer
	consumer broker.Consumer

	rulesService *rules.Service
	pipeline     *pipeline.Pipeline
	notifService *notification.Service

	server *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Config: cfg,
		Logger: log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	ctx = logging.WithServiceName(ctx, serviceName)

	if err := config.ValidateStatic(a.Config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := a.initDatabases(ctx); err != nil {
		return err
	}

	if err := a.initBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initRules(ctx); err != nil {
		return fmt.Errorf("failed to initialize rules: %w", err)
	}

	if err := a.initPipeline(ctx); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	a.initNotifications()

	metrics.RegisterPipelineMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterRuleMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.Dispatch.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", a.Config.Database.Redis.Host, a.Config.Database.Redis.Port),
		Password: a.Config.Database.Redis.Password,
		DB:       a.Config.Database.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redis = rdb

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: a.Config.Database.Elasticsearch.Addresses,
		Username:  a.Config.Database.Elasticsearch.Username,
		Password:  a.Config.Database.Elasticsearch.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	a.esClient = esClient

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(a.Config.Database.MongoDB.URI))
	if err != nil {
		a.Logger.WarnwCtx(ctx, "MongoDB initialization failed, rule audit trail will be disabled",
			"error", err,
		)
		return nil
	}
	a.mongoClient = mongoClient
	return nil
}

func (a *App) initBroker() error {
	producer, err := broker.NewProducer(a.Config.Broker, a.Logger)
	if err != nil {
		return err
	}
	a.producer = producer

	consumer, err := broker.NewConsumer(a.Config.Broker, a.Logger)
	if err != nil {
		return err
	}
	consumer.SetServiceName(serviceName)
	a.consumer = consumer
	return nil
}

func (a *App) initRules(ctx context.Context) error {
	repo := rules.NewRepository(a.redis)

	evaluator, err := rules.NewEvaluator()
	if err != nil {
		return err
	}

	var audit rules.AuditLog
	if a.mongoClient != nil {
		audit = rules.NewAuditLog(a.mongoClient.Database(a.Config.Database.MongoDB.Database))
	}

	a.rulesService = rules.NewService(repo, evaluator, audit, a.Logger)

	if a.Config.Rules.SeedDefaults {
		if err := a.rulesService.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("failed to seed default rules: %w", err)
		}
	}
	return nil
}

func (a *App) initPipeline(ctx context.Context) error {
	emailSender, err := dispatch.NewEmailSender(ctx, a.Config.Dispatch.AWSRegion, a.Config.Dispatch.Email.FromAddress, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create email sender: %w", err)
	}
	smsSender, err := dispatch.NewSMSSender(ctx, a.Config.Dispatch.AWSRegion, a.Config.Dispatch.SMS.SenderID, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create sms sender: %w", err)
	}

	var dispatcher dispatch.Dispatcher = dispatch.NewChannelDispatcher(emailSender, smsSender)
	if a.Config.Dispatch.CircuitBreaker.Enabled {
		dispatcher = dispatch.NewBreakerDispatcher(dispatcher, breakerConfig(a.Config.Dispatch.CircuitBreaker))
	}

	enrichedTopic := a.Config.Broker.Kafka.EnrichedTopic
	if enrichedTopic == "" {
		enrichedTopic = constants.TopicEnriched
	}

	a.pipeline = pipeline.New(
		rules.NewRepository(a.redis),
		a.rulesService.Evaluator(),
		a.producer,
		dispatcher,
		enrichedTopic,
		a.Logger,
	)
	return nil
}

func breakerConfig(cfg config.CircuitBreakerConfig) circuitbreaker.Config {
	breaker := circuitbreaker.DefaultConfig("dispatch")
	if cfg.MaxRequests > 0 {
		breaker.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		breaker.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		breaker.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		ratio := cfg.FailureRatio
		minRequests := cfg.MinRequests
		breaker.ReadyToTrip = func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		}
	}
	return breaker
}

func (a *App) initNotifications() {
	repo := notification.NewESRepository(a.esClient, a.Logger)
	executor := notification.NewSearchExecutor(repo, a.Logger)

	inboundTopic := a.Config.Broker.Kafka.InboundTopic
	if inboundTopic == "" {
		inboundTopic = constants.TopicInbound
	}

	a.notifService = notification.NewService(repo, executor, a.producer, inboundTopic, a.Logger)
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.redis))
	healthRegistry.Register(health.NewElasticsearchChecker(a.esClient))
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	if a.Config.Rules.RateLimit.Enabled {
		api.Use(ratelimit.Middleware(rateLimitConfig(a.Config.Rules.RateLimit)))
	}

	rules.NewHandler(a.rulesService, a.Logger).RegisterRoutes(api)
	notification.NewHandler(a.notifService, a.Logger).RegisterRoutes(api)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
}

func rateLimitConfig(cfg config.RateLimitConfig) ratelimit.Config {
	limit := ratelimit.DefaultConfig()
	if cfg.RPS > 0 {
		limit.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		limit.Burst = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		limit.CleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	if cfg.MaxAge > 0 {
		limit.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	return limit
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	inboundTopic := a.Config.Broker.Kafka.InboundTopic
	if inboundTopic == "" {
		inboundTopic = constants.TopicInbound
	}

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Starting pipeline consumer", "topic", inboundTopic)
		return a.consumer.Consume(gCtx, inboundTopic, a.pipeline.Handler())
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *App) shutdown() error {
	ctx := logging.WithServiceName(context.Background(), serviceName)
	a.Logger.InfowCtx(ctx, "Shutting down notification service")

	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorwCtx(ctx, "HTTP server shutdown error", "error", err)
	}
	if err := a.consumer.Close(); err != nil {
		a.Logger.ErrorwCtx(ctx, "Consumer close error", "error", err)
	}
	if err := a.producer.Close(); err != nil {
		a.Logger.ErrorwCtx(ctx, "Producer close error", "error", err)
	}
	if err := a.redis.Close(); err != nil {
		a.Logger.ErrorwCtx(ctx, "Redis close error", "error", err)
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(shutdownCtx); err != nil {
			a.Logger.ErrorwCtx(ctx, "MongoDB disconnect error", "error", err)
		}
	}
	return nil
}
