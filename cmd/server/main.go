package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/book-store/internal/audit"
	"github.com/iliyamo/book-store/internal/cart"
	"github.com/iliyamo/book-store/internal/config"
	"github.com/iliyamo/book-store/internal/database"
	"github.com/iliyamo/book-store/internal/handler"
	"github.com/iliyamo/book-store/internal/jobs"
	"github.com/iliyamo/book-store/internal/logging"
	"github.com/iliyamo/book-store/internal/metrics"
	"github.com/iliyamo/book-store/internal/middleware"
	"github.com/iliyamo/book-store/internal/queue"
	"github.com/iliyamo/book-store/internal/repository"
	"github.com/iliyamo/book-store/internal/router"
	"github.com/iliyamo/book-store/internal/service"
	"github.com/iliyamo/book-store/internal/storage"
	"github.com/iliyamo/book-store/internal/validation"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.IsProd(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	if cfg.MigrateOnStart {
		dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, "multiStatements=true")
		v, err := database.Migrate(dsn)
		if err != nil {
			log.WithError(err).Fatal("migrations failed")
		}
		log.WithField("version", v).Info("schema up to date")
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	profiles := repository.NewProfileRepo(db)
	authors := repository.NewAuthorRepo(db)
	books := repository.NewBookRepo(db)
	orders := repository.NewOrderRepo(db)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
		if err != nil {
			log.WithError(err).Fatal("admin bootstrap failed")
		}
		if created {
			log.WithField("email", cfg.AdminEmail).Info("admin account created")
		}
	}

	// ---- Redis backed concerns ----
	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}
	var carts cart.Store
	if rdb != nil {
		carts = cart.NewRedisStore(rdb, "bookstore:cart", cfg.CartTTL)
	} else {
		carts = cart.NewMemoryStore(cfg.CartTTL)
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	// ---- Events and audit ----
	publisher := service.NewPublisher(cfg.AMQPURL, log.WithField("component", "publisher"))
	auditLog := auditSink(ctx, cfg, log)

	covers, err := storage.NewCoverStore(cfg.CoverDir, cfg.CoverBaseURL, cfg.CoverMaxBytes)
	if err != nil {
		log.WithError(err).Fatal("cover storage unavailable")
	}
	m := metrics.New(true)

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	e.Use(m.Middleware())
	e.Use(middleware.NewTokenBucket(rlCfg, rdb, log))

	router.RegisterRoutes(e, &handler.ReadyHandler{DB: db, Redis: rdb}, m.Handler())
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg, users, tokens, log),
		&handler.ProfileHandler{Profiles: profiles, Log: log},
		cfg.JWTSecret,
		middleware.NewTokenBucket(rlCfg.WithCapacity(rlCfg.AuthCapacity, "auth"), rdb, log),
	)
	router.RegisterPublic(e,
		&handler.CatalogHandler{Books: books, Authors: authors, Log: log},
		&handler.CartHandler{Store: carts, Books: books, Log: log},
		middleware.NewRedisCache(cacheCfg, rdb, log),
	)
	router.RegisterCustomer(e, &handler.OrderHandler{
		Orders: orders, Profiles: profiles, Carts: carts,
		Publisher: publisher, Audit: auditLog, Metrics: m, Log: log,
	}, cfg.JWTSecret)
	router.RegisterAdmin(e,
		&handler.AdminCatalogHandler{
			Authors: authors, Books: books, Covers: covers, Audit: auditLog,
			Purge: purger(rdb, cacheCfg), Log: log,
		},
		&handler.AdminOrderHandler{
			Orders: orders, Books: books, Authors: authors, Users: users,
			Publisher: publisher, Audit: auditLog, Metrics: m,
			LowStockLevel: cfg.LowStockLevel, Log: log,
		},
		cfg.JWTSecret,
	)
	if strings.HasPrefix(cfg.CoverBaseURL, "/") {
		e.Static(cfg.CoverBaseURL, cfg.CoverDir)
	}

	// ---- Background work ----
	sched, err := jobs.Start(ctx, &jobs.Runner{
		Tokens: tokens, Books: books, Metrics: m,
		LowStockLevel: cfg.LowStockLevel, Log: log.WithField("component", "jobs"),
	}, cfg.CronTokenPurge, cfg.CronLowStock)
	if err != nil {
		log.WithError(err).Fatal("scheduler")
	}
	if cfg.OrderConsumer && cfg.AMQPURL == "" {
		log.Warn("order consumer enabled but no broker configured")
	}
	if cfg.OrderConsumer && cfg.AMQPURL != "" {
		go func() {
			sink := &queue.OrderLog{Path: cfg.OrderLogPath}
			if err := queue.StartOrderConsumer(ctx, cfg.AMQPURL, sink, log.WithField("component", "order-consumer")); err != nil {
				log.WithError(err).Error("order consumer stopped")
			}
		}()
	}

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	<-sched.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// auditSink connects to MongoDB when MONGO_URI is set and otherwise
// writes audit entries to the application log.
func auditSink(ctx context.Context, cfg config.Config, log *logrus.Logger) audit.Logger {
	if cfg.MongoURI == "" {
		return &audit.LogSink{Logger: log.WithField("component", "audit")}
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	sink, client, err := audit.Connect(cctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.WithError(err).Warn("mongo unavailable; audit entries go to the log")
		return &audit.LogSink{Logger: log.WithField("component", "audit")}
	}
	go func() {
		<-ctx.Done()
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()
	return sink
}

func purger(rdb *redis.Client, cfg config.CacheConfig) func(context.Context) error {
	if !cfg.Enabled || !cfg.PurgeOnWrite {
		return nil
	}
	return func(ctx context.Context) error {
		return middleware.PurgeCache(ctx, rdb, cfg.Prefix)
	}
}
