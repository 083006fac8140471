package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"storegate/internal/auth"
	"storegate/internal/config"
	"storegate/internal/database"
	"storegate/internal/handler"
	"storegate/internal/logger"
	"storegate/internal/middleware"
	"storegate/internal/queue"
	"storegate/internal/repository"
	"storegate/internal/router"
	"storegate/internal/service"
	"storegate/internal/sso"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment

	log := logger.New()
	defer func() { _ = log.Sync() }()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warnw("redis unavailable, rate limiting and catalog cache disabled")
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewTokenRepo(db)
	products := repository.NewProductRepo(db)

	issuer := auth.NewIssuer(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  time.Duration(cfg.AccessTTLMin) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
	}, nil)

	var verifier service.IdentityVerifier
	if cfg.GoogleClientID != "" {
		verifier = sso.NewGoogleVerifier(cfg.GoogleClientID)
	}

	events := queue.NewPublisher(log)

	svc := service.NewAuthService(service.AuthConfig{
		LockoutThreshold:      cfg.LockoutThreshold,
		LockoutWindow:         time.Duration(cfg.LockoutMinutes) * time.Minute,
		RequireConfirmedEmail: cfg.RequireConfirmedEmail,
	}, users, roles, tokens, issuer, verifier, events, log, nil)

	go func() {
		if err := queue.StartAuthEventConsumer(); err != nil {
			log.Errorw("auth event consumer stopped", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(svc), handler.NewUserHandler(svc, users), cfg.JWTSecret, limiter)
	router.RegisterCatalog(e, handler.NewCatalogHandler(products), config.LoadCacheConfig(), rdb)

	log.Infow("server starting", "port", cfg.Port, "env", cfg.Env)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalw("server stopped", "error", err)
	}
}
