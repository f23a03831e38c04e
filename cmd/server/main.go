package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/example/ride-marketplace/internal/auth"
	"github.com/example/ride-marketplace/internal/config"
	"github.com/example/ride-marketplace/internal/events"
	"github.com/example/ride-marketplace/internal/fleet"
	"github.com/example/ride-marketplace/internal/geo"
	"github.com/example/ride-marketplace/internal/httpapi"
	"github.com/example/ride-marketplace/internal/logging"
	"github.com/example/ride-marketplace/internal/matching"
	"github.com/example/ride-marketplace/internal/notify"
	"github.com/example/ride-marketplace/internal/registry"
	"github.com/example/ride-marketplace/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var producer events.Producer = events.NopProducer{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		producer = kp
		logger.Info("kafka producer enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var presence *registry.Presence
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rc.Close()
		presence = registry.NewPresence(rc, logger)
		logger.Info("redis presence mirror enabled", "addr", cfg.RedisAddr)
	}

	var routes geo.Estimator
	if cfg.RoutingEndpoint != "" {
		routes = geo.NewCache(geo.NewRoutingClient(cfg.RoutingEndpoint), 5*time.Minute)
		logger.Info("routing client enabled", "endpoint", cfg.RoutingEndpoint)
	}

	reg := registry.New()
	relay := notify.NewRelay(store, logger)
	authSvc := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	matchEngine := matching.NewEngine(store, store, reg, producer, routes, logger)
	fleetEngine := fleet.NewEngine(store, store, logger)

	srv := httpapi.NewServer(httpapi.Deps{
		Auth:     authSvc,
		Matching: matchEngine,
		Fleet:    fleetEngine,
		Relay:    relay,
		Registry: reg,
		Presence: presence,
		Store:    store,
		Routes:   routes,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (storage.Store, func(), error) {
	switch {
	case cfg.PGDSN != "":
		store, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.RunMigrations {
			if err := runMigrations(store.DB(), logger); err != nil {
				store.Close()
				return nil, nil, err
			}
		}
		logger.Info("using postgres store")
		return store, func() { store.Close() }, nil
	case cfg.MongoURI != "":
		store, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.Warn("index creation failed", "error", err)
		}
		logger.Info("using mongo store", "db", cfg.MongoDB)
		return store, func() { store.Close(context.Background()) }, nil
	default:
		logger.Info("using in-memory store")
		return storage.NewMemoryStore(), func() {}, nil
	}
}

func runMigrations(db *sql.DB, logger *slog.Logger) error {
	b, err := os.ReadFile(filepath.Join("migrations", "001_init.sql"))
	if err != nil {
		return err
	}
	if _, err := db.Exec(string(b)); err != nil {
		return err
	}
	logger.Info("migration applied", "file", "001_init.sql")
	return nil
}
