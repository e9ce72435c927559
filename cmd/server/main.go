package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "irisapi/docs" // swagger docs

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"irisapi/internal/auth"
	"irisapi/internal/cache"
	"irisapi/internal/config"
	"irisapi/internal/dataset"
	"irisapi/internal/db"
	"irisapi/internal/handler"
	"irisapi/internal/logging"
	"irisapi/internal/model"
	"irisapi/internal/ratelimit"
	"irisapi/internal/repository"
	"irisapi/internal/router"
	"irisapi/internal/service"
)

// @title Iris Data API
// @version 1.0
// @description Access-controlled Iris dataset API with JWT authentication, per-species statistics and normalization.
// @host localhost:8000
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	users, err := newUserRepository(ctx, cfg, hasher)
	if err != nil {
		logging.Fatal().Err(err).Msg("user store init")
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	responses, counter := redisBackends(ctx, cacheClient)

	source, err := dataset.NewSource(ctx, cfg.DataPath, dataset.S3Config{
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		logging.Fatal().Err(err).Str("data_path", cfg.DataPath).Msg("dataset source init")
	}
	data := dataset.New(source, dataset.Options{
		Categories:    cfg.Categories,
		LabelPrefix:   cfg.LabelPrefix,
		NoLabelPrefix: cfg.LabelPrefix == "",
	})
	if cfg.PreloadData {
		if _, err := data.GetAll(ctx); err != nil {
			logging.Error().Err(err).Msg("dataset preload failed, will retry on first request")
		}
	}

	jwtService, err := auth.NewJWTService(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Algorithm:  cfg.JWTAlgorithm,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("jwt service init")
	}

	limiter := ratelimit.New(cfg.RateLimitBackend, cfg.RateLimitRequests, cfg.RateLimitWindow, counter)

	// Initialize services
	authService := service.NewAuthService(users, hasher, jwtService, cfg.Categories)
	dataService := service.NewDataService(data, responses)

	// Initialize handlers
	var redisPinger handler.Pinger
	if cacheClient.Enabled() {
		redisPinger = cacheClient
	}
	authHandler := handler.NewAuthHandler(authService)
	dataHandler := handler.NewDataHandler(dataService)
	adminHandler := handler.NewAdminHandler(dataService, cfg)
	healthHandler := handler.NewHealthHandler(dataService, cfg, redisPinger)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, jwtService, limiter, authHandler, dataHandler, adminHandler, healthHandler)

	addr := ":" + cfg.ServerPort
	go func() {
		logging.Info().
			Str("addr", addr).
			Str("data_source", source.String()).
			Str("swagger", "http://localhost"+addr+"/swagger/index.html").
			Msg("server starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server start")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown")
	}
}

// redisBackends returns the Redis response cache and rate-limit counter, or
// nils when Redis is not configured or not reachable at startup.
func redisBackends(ctx context.Context, client *cache.Client) (service.ResponseCache, ratelimit.Counter) {
	if !client.Enabled() {
		return nil, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		logging.Warn().Err(err).Msg("redis unreachable, continuing without response cache and with in-process rate limiting")
		return nil, nil
	}
	return client, client
}

// newUserRepository connects to MySQL when a DSN is configured. Otherwise it
// returns an in-memory store seeded with the demo users.
func newUserRepository(ctx context.Context, cfg *config.Config, hasher *auth.PasswordHasher) (repository.UserRepository, error) {
	if cfg.MySQLDSN == "" {
		users := repository.NewMemoryUserRepository()
		created, _, err := service.SeedUsers(ctx, users, hasher, service.DemoUsers)
		if err != nil {
			return nil, err
		}
		logging.Warn().Int("demo_users", created).Msg("no mysql_dsn configured, using in-memory user store")
		return users, nil
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	if os.Getenv("RESET_DB") == "true" {
		logging.Warn().Msg("RESET_DB=true detected, dropping users table")
		if err := gormDB.Migrator().DropTable(&model.User{}); err != nil {
			logging.Warn().Err(err).Msg("drop users table")
		}
	}
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		return nil, err
	}
	return repository.NewUserRepository(gormDB), nil
}
