package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"task-lifecycle-api/actuator"
	"task-lifecycle-api/auth"
	"task-lifecycle-api/config"
	"task-lifecycle-api/database"
	"task-lifecycle-api/events"
	"task-lifecycle-api/handlers"
	"task-lifecycle-api/logging"
	"task-lifecycle-api/service"
	"task-lifecycle-api/store"
)

const (
	serviceName    = "task-lifecycle-api"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logFile, err := logging.Init(logging.Config{Service: serviceName, Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logging: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(cfg.GinMode)
	ctx := context.Background()

	taskStore, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open task store")
	}

	var (
		redisCache *store.RedisCache
		natsConn   *nats.Conn
	)
	if cfg.CacheEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		redisCache = store.NewRedisCache(client, "tasks:", cfg.CacheTTL)
		if err := redisCache.Ping(ctx); err != nil {
			log.WithError(err).Warn("Redis unreachable at startup, reads fall back to the store until it recovers")
		}
		taskStore = store.NewCachedStore(taskStore, redisCache)
		log.WithField("addr", cfg.RedisAddr).Info("Task cache enabled")
	}

	bus := events.NewBus(cfg.EventBuffer)
	metrics := actuator.NewMetrics()
	bus.Subscribe("log", events.LogListener{})
	bus.Subscribe("metrics", metrics)
	if cfg.WebhookURL != "" {
		bus.Subscribe("webhook", events.NewWebhookNotifier(cfg.WebhookURL, 5*time.Second))
		log.WithField("url", cfg.WebhookURL).Info("Webhook notifications enabled")
	}
	if cfg.NATSURL != "" {
		natsConn, err = events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to NATS")
		}
		bus.Subscribe("nats", events.NewNATSForwarder(natsConn, cfg.NATSSubjectPrefix))
		log.WithField("url", cfg.NATSURL).Info("NATS event forwarding enabled")
	}

	taskService := service.NewTaskService(taskStore, bus, service.WithPolicy(cfg.TransitionPolicy))

	deps := handlers.Dependencies{
		Tasks:   taskService,
		Metrics: metrics,
		Bus:     bus,
		Cache:   redisCache,
		Info: handlers.Info{
			Name:        serviceName,
			Version:     serviceVersion,
			StoreDriver: cfg.StoreDriver,
			Policy:      string(cfg.TransitionPolicy),
			Auth:        cfg.AuthEnabled(),
			Cache:       cfg.CacheEnabled(),
		},
	}
	if cfg.AuthEnabled() {
		users, err := auth.NewSeededDirectory(bcrypt.DefaultCost)
		if err != nil {
			log.WithError(err).Fatal("Failed to seed users")
		}
		deps.JWT = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
		deps.Users = users
	} else {
		log.Warn("JWT_SECRET is not set, task endpoints are open to anonymous callers")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handlers.WithCORS(handlers.NewRouter(deps), cfg.CORSOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":   cfg.Port,
			"store":  cfg.StoreDriver,
			"policy": cfg.TransitionPolicy,
		}).Info("Task API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			serviceName: func(ctx context.Context) error {
				log.Info("Graceful shutdown initiated...")
				return shutdown(ctx, srv, bus, natsConn, taskStore, redisCache)
			},
		},
	)

	exitCode := <-wait
	log.Infof("Application exited with code: %d", exitCode)
	logFile.Close()
	os.Exit(exitCode)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Info("Using in-memory task store")
		return store.NewMemoryStore(), nil
	}

	dbCfg := cfg.DatabaseConfig()
	db, err := database.Open(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	log.WithField("driver", dbCfg.Driver).Info("Connected to task database")
	return store.NewSQLStore(db, dbCfg.Driver), nil
}

// shutdown stops the listener, drains the event bus, then releases the backends.
func shutdown(ctx context.Context, srv *http.Server, bus *events.Bus, nc *nats.Conn, st store.Store, cache *store.RedisCache) error {
	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := bus.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	if err := st.Close(); err != nil {
		errs = append(errs, fmt.Errorf("task store: %w", err))
	}
	if cache != nil {
		if err := cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
