package main // Entry point package

import (
	"context"   // root context cancelled on shutdown
	"errors"    // errors.Is for the server-closed sentinel
	"io"        // io.Closer for the event publisher
	"net/http"  // http.ErrServerClosed
	"os"        // signal values
	"os/signal" // signal.NotifyContext
	"syscall"   // SIGTERM
	"time"      // shutdown grace period

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/movie-catalog/internal/config"     // Internal config loader
	"github.com/iliyamo/movie-catalog/internal/database"   // MySQL pool and migrations
	"github.com/iliyamo/movie-catalog/internal/handler"    // HTTP handlers
	"github.com/iliyamo/movie-catalog/internal/logging"    // zerolog setup
	"github.com/iliyamo/movie-catalog/internal/queue"      // catalog event consumer
	"github.com/iliyamo/movie-catalog/internal/repository" // SQL repositories
	"github.com/iliyamo/movie-catalog/internal/router"     // Internal router setup
	"github.com/iliyamo/movie-catalog/internal/service"    // catalog event publisher
)

func main() {
	cfg := config.Load() // Load environment config (and .env when present)
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("apply migrations")
	}

	rdb := config.NewRedisClient(ctx) // nil disables cache and rate limiting
	if rdb != nil {
		defer rdb.Close()
	}

	eventsCfg := config.LoadEventsConfig()
	events := service.NewPublisher(eventsCfg)
	if c, ok := events.(io.Closer); ok {
		defer c.Close()
	}
	if eventsCfg.Enabled {
		go func() {
			if err := queue.StartCatalogConsumer(ctx, eventsCfg); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("catalog consumer stopped")
			}
		}()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	movies := repository.NewMovieRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	movieH := handler.NewMovieHandler(movies, events, config.LoadImportConfig())

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	router.Use(e)
	cache, rl := router.Middlewares(config.LoadCacheConfig(), config.LoadRateLimitConfig(), rdb)
	router.RegisterRoutes(e, movies)
	router.RegisterAuth(e, authH, cfg.JWTSecret, users, rl)
	router.RegisterMovies(e, movieH, cfg.JWTSecret, users, cache, rl)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logging.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("http server")
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
