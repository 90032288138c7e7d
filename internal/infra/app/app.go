package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tailhaven/adoption-service/internal/core/port"
	"github.com/tailhaven/adoption-service/internal/infra/config"
	"github.com/tailhaven/adoption-service/internal/infra/database"
	kafkainfra "github.com/tailhaven/adoption-service/internal/infra/kafka"
	"github.com/tailhaven/adoption-service/internal/infra/logger"
	redisinfra "github.com/tailhaven/adoption-service/internal/infra/redis"
	"github.com/tailhaven/adoption-service/internal/infra/security"
	"github.com/tailhaven/adoption-service/internal/ratelimit"
	postgresrepo "github.com/tailhaven/adoption-service/internal/repository/postgres"
	redisrepo "github.com/tailhaven/adoption-service/internal/repository/redis"
	"github.com/tailhaven/adoption-service/internal/transport/http/middleware"
	"github.com/tailhaven/adoption-service/internal/transport/http/routes"
	"github.com/tailhaven/adoption-service/internal/usecase"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

// New wires the full application from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider)

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	var kafkaProducer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			kafkaProducer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	attemptStore := redisrepo.NewAttemptStore(redisClient.Client(), cfg.Redis.KeyPrefix+":attempts")

	loginLimiter := ratelimit.New(attemptStore, ratelimit.Config{
		Name:        "login",
		Window:      cfg.RateLimit.Login.Window,
		MaxAttempts: cfg.RateLimit.Login.MaxAttempts,
		Lockout:     cfg.RateLimit.Login.Lockout,
	}, log)

	authLimiter := ratelimit.New(attemptStore, ratelimit.Config{
		Name:        "bearer_auth",
		Window:      cfg.RateLimit.BearerAuth.Window,
		MaxAttempts: cfg.RateLimit.BearerAuth.MaxAttempts,
		Lockout:     cfg.RateLimit.BearerAuth.Lockout,
	}, log)

	registrationLimiter := ratelimit.New(attemptStore, ratelimit.Config{
		Name:        "registration",
		Window:      cfg.RateLimit.Registration.Window,
		MaxAttempts: cfg.RateLimit.Registration.MaxAttempts,
		Lockout:     cfg.RateLimit.Registration.Lockout,
	}, log)

	adoptionCreateLimiter := ratelimit.New(attemptStore, ratelimit.Config{
		Name:        "adoption_create",
		Window:      cfg.RateLimit.AdoptionCreate.Window,
		MaxAttempts: cfg.RateLimit.AdoptionCreate.MaxAttempts,
		Lockout:     cfg.RateLimit.AdoptionCreate.Lockout,
	}, log)

	adoptionUpdateLimiter := ratelimit.New(attemptStore, ratelimit.Config{
		Name:        "adoption_update",
		Window:      cfg.RateLimit.AdoptionUpdate.Window,
		MaxAttempts: cfg.RateLimit.AdoptionUpdate.MaxAttempts,
		Lockout:     cfg.RateLimit.AdoptionUpdate.Lockout,
	}, log)

	httpWindow := cfg.RateLimit.HTTPWindow
	if httpWindow <= 0 {
		httpWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.KeyPrefix + ":rate-limit",
		TTL:       httpWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	passwordValidator := security.DefaultPasswordValidator()
	authorizer := usecase.NewAuthorizer()

	kid := cfg.JWT.ActiveKeyID

	authService := usecase.NewAuthService(cfg, repos.Identities, jwtManager, kid, loginLimiter, authLimiter, eventPublisher, log)
	registrationService := usecase.NewRegistrationService(cfg, repos.Identities, passwordValidator, jwtManager, kid, registrationLimiter, eventPublisher, log)
	adoptionService := usecase.NewAdoptionService(repos.Requests, repos.Pets, eventPublisher, adoptionCreateLimiter, adoptionUpdateLimiter, log)
	identityService := usecase.NewIdentityService(repos.Identities, passwordValidator, authorizer, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Adoptions:    adoptionService,
			Identities:   identityService,
			Authorizer:   authorizer,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  kafkaProducer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting adoption API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
