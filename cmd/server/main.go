package main // Entry point package

import (
	"log" // Logging library
	"log/slog"
	"os"

	"github.com/joho/godotenv" // Optional .env loading for local development
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/order-collab/internal/auth"
	"github.com/iliyamo/order-collab/internal/config"
	"github.com/iliyamo/order-collab/internal/database"
	"github.com/iliyamo/order-collab/internal/handler"
	"github.com/iliyamo/order-collab/internal/lock"
	"github.com/iliyamo/order-collab/internal/queue"
	"github.com/iliyamo/order-collab/internal/repository"
	"github.com/iliyamo/order-collab/internal/router"
	"github.com/iliyamo/order-collab/internal/throttle"
	"github.com/iliyamo/order-collab/internal/ws"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load() // Load environment config
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// The shared Redis instance is the single authority for order locks.
	// Without it the at-most-one-editor invariant cannot be upheld, so this
	// is fatal rather than a degraded mode.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis unreachable: lock store unavailable")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	hub := ws.NewHub(logger)
	dispatcher := ws.NewDispatcher(hub, logger)
	gateway := ws.NewGateway(hub, dispatcher, verifier, ws.ConnOptions{
		QueueSize:    cfg.SendQueueSize,
		WriteTimeout: cfg.WriteTimeout,
		EventBurst:   cfg.EventRateBurst,
		EventRefill:  cfg.EventRateRefill,
	}, logger)

	locks := lock.NewManager(lock.NewRedisStore(rdb), hub, cfg.LockTTL)
	throttler := throttle.New(cfg.FlushInterval, hub)

	// Metrics flow in from the CRUD service over the broker and out to the
	// dashboards through the throttler.
	go queue.StartMetricsConsumer(cfg.AMQPURL, throttler)

	e := echo.New()
	router.RegisterRoutes(e, gateway, handler.NewLockHandler(locks, repository.NewUserRepo(db)), verifier)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
