// File: app/app.go
package app

import (
	"context"
	"loan-desk-api/config"
	"loan-desk-api/db"
	"loan-desk-api/dispatch"
	"loan-desk-api/handler"
	"loan-desk-api/logger"
	"loan-desk-api/obs"
	"loan-desk-api/repository"
	"loan-desk-api/router"
	"loan-desk-api/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func Run() {
	config.LoadConfig(".")
	logger.Init()
	logger.Log.Info("Logger initialized")
	logger.Log.Info("Configuration loaded successfully")

	obs.Init()

	database, err := db.Connect()
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Log.Fatalf("Error running migrations: %v", err)
	}

	// The cache is optional: without Redis every read goes to the database.
	var cacheClient service.ICacheClient
	if config.AppConfig.Redis.Host != "" {
		redisClient, err := db.ConnectRedis()
		if err != nil {
			logger.Log.WithError(err).Warn("Redis unavailable, continuing without cache")
		} else {
			defer redisClient.Close()
			cacheClient = redisClient
		}
	}

	// --- Wiring All Layers Together ---

	tokenStorePath := config.AppConfig.TokenStore.FilePath
	if tokenStorePath == "" {
		tokenStorePath = "refresh_tokens.json"
	}
	tokenStore := repository.NewFileTokenStore(tokenStorePath)
	tokenService := service.NewTokenService(tokenStore, config.AppConfig.JWT.SecretKey)

	sweeperStop := make(chan struct{})
	defer close(sweeperStop)
	tokenService.StartSweeper(time.Hour, sweeperStop)

	userRepo := repository.NewUserRepository(database)
	authService := service.NewAuthService(userRepo, tokenService)
	authHandler := handler.NewAuthHandler(authService)

	loanRepo := repository.NewLoanRepository(database)
	loanService := service.NewLoanService(loanRepo, cacheClient)

	registry := dispatch.NewRegistry()
	service.RegisterLoanFunctions(registry, loanService)
	dispatchHandler := handler.NewDispatchHandler(registry)

	authMiddleware := handler.NewAuthMiddleware(tokenService, config.AppConfig.Server.InternalAPIKey)

	r := router.NewRouter(authHandler, dispatchHandler, authMiddleware)

	// --- Start the Server with Graceful Shutdown ---
	port := config.AppConfig.Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}
