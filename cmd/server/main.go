package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/internal/config"
	handler "checkout-service/internal/controllers/http"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/gateway"
	mmysql "checkout-service/internal/infra/mysql"
	"checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/infra/redisstore"
	"checkout-service/internal/logger"
	"checkout-service/internal/pricing"
	mysqlrepo "checkout-service/internal/repository/mysql"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	db, err := mmysql.Open(mmysql.DSN(cfg.MySQL))
	if err != nil {
		lg.Fatal("db: connect", zap.Error(err))
	}
	if err := mmysql.Tune(db, cfg.MySQL.MaxOpen, cfg.MySQL.MaxIdle); err != nil {
		lg.Fatal("db: tune pool", zap.Error(err))
	}

	repo := mysqlrepo.NewOrderRepository(db, lg.Named("repository"))

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DB:           0,
		PoolSize:     200,
		MinIdleConns: 20,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	defer redisClient.Close()

	catalogClient := infra.NewCatalogClient(cfg.CatalogServiceURL, cfg.CatalogTimeout)
	catalog := redisstore.NewCachedCatalog(catalogClient, redisClient, cfg.CatalogCacheTTL, lg.Named("catalog"))
	sessions := redisstore.NewSessionStore(redisClient, cfg.SessionTTL)

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.OrderExchange, lg.Named("publisher"))
	if err != nil {
		lg.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	gw := gateway.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.PaymentCurrency)

	orders := services.NewOrderService(repo, publisher, lg.Named("orders"), cfg.DepositAmount)
	payments := services.NewReconciliationService(repo, gw, publisher, lg.Named("reconciliation"), services.ReconciliationOptions{
		CancellationWindow: cfg.CancellationWindow,
		PollAttempts:       cfg.PollAttempts,
		PollInterval:       cfg.PollInterval,
		PollMaxInterval:    cfg.PollMaxInterval,
		IntentRetries:      cfg.IntentRetries,
	})
	checkout := services.NewCheckoutService(sessions, catalog, pricing.NewEngine(pricing.DefaultPolicy),
		orders, payments, payments, lg.Named("checkout"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(lg))

	handler.NewHandler(checkout, orders, payments, gw, cfg.AdminToken, lg.Named("http")).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("starting checkout service", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if len(cfg.CatalogWarmupRefs) == 0 {
			return nil
		}
		if err := catalog.Warmup(gctx, cfg.CatalogWarmupRefs); err != nil {
			lg.Warn("failed to warm up catalog cache", zap.Error(err))
			return nil
		}
		lg.Info("catalog cache warmed up", zap.Int("products", len(cfg.CatalogWarmupRefs)))
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		lg.Error("server stopped", zap.Error(err))
	}
}
