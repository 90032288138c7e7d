package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tailhaven/adoption-service/internal/infra/config"
	"github.com/tailhaven/adoption-service/internal/transport/http/handlers"
	"github.com/tailhaven/adoption-service/internal/transport/http/middleware"
	"github.com/tailhaven/adoption-service/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	Adoptions    *usecase.AdoptionService
	Identities   *usecase.IdentityService
	Authorizer   *usecase.Authorizer
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Auth)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		isDev := deps.Config.App.Env == "development"

		authGroup := api.Group("/auth")

		authHandler := handlers.NewAuthHandler(deps.Services.Auth, int(deps.Config.JWT.AccessTokenTTL.Seconds()))
		authHandler.RegisterRoutes(authGroup, buildThrottle(deps, "auth_login_ip")...)

		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration, isDev)
		registrationGroup := authGroup.Group("")
		if throttle := buildThrottle(deps, "registration_ip"); len(throttle) > 0 {
			registrationGroup.Use(throttle...)
		}
		registrationHandler.RegisterRoutes(registrationGroup)

		adoptionHandler := handlers.NewAdoptionHandler(deps.Services.Adoptions, deps.Services.Authorizer)
		adoptionGroup := api.Group("/adoptions")
		if throttle := buildThrottle(deps, "adoptions_ip"); len(throttle) > 0 {
			adoptionGroup.Use(throttle...)
		}
		adoptionGroup.Use(authMiddleware)
		adoptionHandler.RegisterRoutes(adoptionGroup)

		identityHandler := handlers.NewIdentityHandler(deps.Services.Identities)
		identityGroup := api.Group("/identities")
		identityGroup.Use(authMiddleware)
		identityHandler.RegisterRoutes(identityGroup)
	}

	return r
}

// buildThrottle assembles the per-IP HTTP throttle for a route group. It is a
// coarse pre-filter; account lockout escalation lives in the attempt limiters
// inside the services.
func buildThrottle(deps Dependencies, name string) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.HTTPMax
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.HTTPWindow
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
