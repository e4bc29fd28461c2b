package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/avinash-394/website/internal/auth"
	"github.com/avinash-394/website/internal/cache"
	"github.com/avinash-394/website/internal/config"
	"github.com/avinash-394/website/internal/http/handlers"
	"github.com/avinash-394/website/internal/http/middlewares"
	"github.com/avinash-394/website/internal/notifications"
	"github.com/avinash-394/website/internal/observability"
	"github.com/avinash-394/website/internal/repo/postgres"
	"github.com/avinash-394/website/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter wires the full HTTP surface. rdb may be nil; the credential
// rate limiter then falls back to the in-process window.
func NewRouter(log *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, cfg config.Config) (*gin.Engine, error) {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// metrics registry is per-router so tests can build routers freely
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(otelgin.Middleware("website-api"))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.MaxBodyBytes(cfg.MaxAvatarBytes + 64<<10))
	r.Use(middlewares.RequireJSON("/auth/avatar"))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wire up repositories and services
	usersRepo := postgres.NewUsersRepo(pool)
	ticketsRepo := postgres.NewResetTicketsRepo(pool)
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())
	notifier := notifications.NewLogNotifier(log)
	snapshot := cache.NewUserCache(5 * time.Second)

	avatars, err := storage.NewAvatarStore(cfg.UploadDir, cfg.MaxAvatarBytes)

	if err != nil {
		return nil, err
	}

	// stored avatar references resolve under this route
	r.Static("/uploads", avatars.Dir())

	authHandler := handlers.NewAuthHandler(usersRepo, ticketsRepo, jwtManager, avatars, notifier, snapshot, prom, cfg, log)
	authMw := middlewares.NewAuthMiddleware(jwtManager)

	// brute-force / enumeration damper on the credential endpoints
	var limiter middlewares.Limiter

	if rdb != nil {
		limiter = middlewares.NewRedisLimiter(rdb, 10, time.Minute, "auth")
	} else {
		limiter = middlewares.NewMemoryLimiter(10, time.Minute)
	}

	credLimit := middlewares.RateLimit(limiter, middlewares.KeyByIP)

	// looser per-user window on the authenticated mutation routes
	var mutLimiter middlewares.Limiter

	if rdb != nil {
		mutLimiter = middlewares.NewRedisLimiter(rdb, 30, time.Minute, "mut")
	} else {
		mutLimiter = middlewares.NewMemoryLimiter(30, time.Minute)
	}

	mutLimit := middlewares.RateLimit(mutLimiter, middlewares.KeyByUserOrIP)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", credLimit, authHandler.Register)
		authGroup.POST("/login", credLimit, authHandler.Login)
		authGroup.POST("/forgot-password", credLimit, authHandler.ForgotPassword)
		authGroup.POST("/reset-password/:token", credLimit, authHandler.ResetPassword)

		protected := authGroup.Group("")
		protected.Use(authMw.RequireAuth())
		protected.GET("/me", authHandler.Me)
		protected.PUT("/profile", mutLimit, authHandler.UpdateProfile)
		protected.POST("/avatar", mutLimit, authHandler.UploadAvatar)
	}

	return r, nil
}
