package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/config"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/db"
	"github.com/PaulBabatuyi/pairchat/internal/files"
	"github.com/PaulBabatuyi/pairchat/internal/logger"
	"github.com/PaulBabatuyi/pairchat/internal/middleware"
	"github.com/PaulBabatuyi/pairchat/internal/presence"
	"github.com/PaulBabatuyi/pairchat/internal/timeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pairchat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_NAME"))
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx := context.Background()

	pg, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := data.CreateSchema(ctx, pg); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	usersStore := data.NewUsersStore(pg)
	roomsStore := data.NewRoomsStore(pg)
	msgsStore := data.NewMessagesStore(pg)

	health := map[string]Pinger{"postgres": usersStore}
	var opts []chat.Option
	deps := Deps{Log: log, CORSOrigins: cfg.CORSOrigins, MaxUpload: cfg.MaxUploadBytes}

	// Attachments need Mongo. Without it the file routes are not mounted.
	if cfg.MongoURI != "" {
		mongoClient, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer func() { _ = mongoClient.Close(context.Background()) }()

		store := files.NewStore(mongoClient.FilesBucket(), cfg.MaxUploadBytes)
		deps.Files = store
		opts = append(opts, chat.WithObjectStore(store, 0))
		health["mongodb"] = mongoClient
	} else {
		log.Warn().Msg("MONGODB_URI not set, file uploads disabled")
	}

	if cfg.RedisURL != "" {
		tracker, err := presence.NewRedis(ctx, cfg.RedisURL, cfg.PresenceTTL)
		if err != nil {
			return err
		}
		defer func() { _ = tracker.Close() }()

		deps.Presence = tracker
		opts = append(opts, chat.WithPresence(tracker))
		health["redis"] = tracker
	}

	jwtMgr, err := newJWTManager(cfg)
	if err != nil {
		return err
	}

	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, cfg.RateLimitBurst, time.Minute)
	defer limiterStore.Stop()

	svc := chat.NewService(usersStore, roomsStore, msgsStore, timeline.NewFormatter(loc), log, opts...)

	deps.Users = usersStore
	deps.Chat = svc
	deps.Auth = jwtMgr
	deps.Limiter = limiterStore
	deps.Health = health
	srv := newServer(deps)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("env", cfg.Env).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down HTTP server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	svc.Wait()
	return nil
}

// newJWTManager prefers the rotating key set and falls back to the
// single secret.
func newJWTManager(cfg *config.Config) (*auth.JWTManager, error) {
	keys, err := cfg.SigningKeys()
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		return auth.NewJWTManagerFromKeys(keys, cfg.JWTActiveKid, cfg.TokenTTL), nil
	}
	return auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL), nil
}
