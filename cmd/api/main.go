package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gocorr/internal"
	"gocorr/internal/api"
	"gocorr/internal/config"
	"gocorr/internal/container"
)

func main() {
	logger := internal.NewDefaultLogger()

	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger = logger.Level(appConfig.Log.Level)
	gin.SetMode(appConfig.Server.GinMode)

	c, err := container.New(appConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create container")
	}

	if appConfig.Database.URL != "" {
		db, err := connectDatabase(appConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		ctx, cancel := context.WithTimeout(context.Background(), appConfig.Database.RequestTimeout)
		err = c.InitWithDatabase(ctx, db)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize database")
		}
	}
	c.Build()

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api.NewRouter(c.Handler, c.Metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("port", appConfig.Server.Port).Msg("Starting correlation API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	if err := c.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Container shutdown failed")
	}
}

// connectDatabase opens the PostgreSQL pool with the configured limits
func connectDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(appConfig.Database.MaxOpenConns)
	db.SetConnMaxIdleTime(appConfig.Database.ConnMaxIdle)
	return db, nil
}
