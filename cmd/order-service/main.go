package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	cartapp "github.com/dmehra2102/qr-order-flow/internal/cart/application"
	carthttp "github.com/dmehra2102/qr-order-flow/internal/cart/infrastructure/http"
	cartredis "github.com/dmehra2102/qr-order-flow/internal/cart/infrastructure/redis"
	catalogapp "github.com/dmehra2102/qr-order-flow/internal/catalog/application"
	cataloghttp "github.com/dmehra2102/qr-order-flow/internal/catalog/infrastructure/http"
	catalogpg "github.com/dmehra2102/qr-order-flow/internal/catalog/infrastructure/postgres"
	"github.com/dmehra2102/qr-order-flow/internal/checkout"
	identityapp "github.com/dmehra2102/qr-order-flow/internal/identity/application"
	authhttp "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/http"
	identityredis "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/redis"
	notifier "github.com/dmehra2102/qr-order-flow/internal/notifier/application"
	notifierhttp "github.com/dmehra2102/qr-order-flow/internal/notifier/infrastructure/http"
	notifierkafka "github.com/dmehra2102/qr-order-flow/internal/notifier/infrastructure/kafka"
	orderapp "github.com/dmehra2102/qr-order-flow/internal/order/application"
	orderhttp "github.com/dmehra2102/qr-order-flow/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/qr-order-flow/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/qr-order-flow/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/qr-order-flow/internal/payment/application"
	paymenthttp "github.com/dmehra2102/qr-order-flow/internal/payment/infrastructure/http"
	paymentpg "github.com/dmehra2102/qr-order-flow/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/qr-order-flow/internal/payment/infrastructure/razorpay"
	"github.com/dmehra2102/qr-order-flow/pkg/config"
	"github.com/dmehra2102/qr-order-flow/pkg/health"
	"github.com/dmehra2102/qr-order-flow/pkg/idempotency"
	"github.com/dmehra2102/qr-order-flow/pkg/logging"
	"github.com/dmehra2102/qr-order-flow/pkg/outbox"
	"github.com/dmehra2102/qr-order-flow/pkg/postgres"
	"github.com/dmehra2102/qr-order-flow/pkg/shutdown"
	"github.com/dmehra2102/qr-order-flow/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.New(logging.Options{Service: "order-service", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "order-service", cfg.Tracing.Endpoint, cfg.Tracing.Insecure, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// Postgres
	if err := postgres.Migrate(log, cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	pool, err := postgres.Connect(ctx, log, cfg.Postgres.URL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Kafka producer and outbox relay
	writer := orderkafka.NewWriter(cfg.Kafka.Brokers)
	defer writer.Close()
	dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.StatusTopic)
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, "order-service-"+uuid.NewString()[:8])

	// Identity
	identitySvc := identityapp.NewService(identityredis.NewSessionStore(rdb), cfg.Session.SlipTTL)

	// Catalog, cart, orders
	catalog := catalogpg.NewRepository(log, pool)
	cartSvc := cartapp.NewService(cartredis.NewStore(rdb, cfg.Session.SlipTTL), catalog)
	orderRepo := orderpg.NewRepository(log, pool)
	orderSvc := orderapp.NewService(orderRepo, catalog, cfg.Gateway.Currency)
	checkoutSvc := checkout.NewService(log, cartSvc, orderSvc, idempotency.NewGuard(rdb, "checkout", cfg.Session.CheckoutLock))

	// Payment
	gateway := razorpay.NewClient(log, razorpay.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		Timeout:   cfg.Gateway.Timeout,

		BreakerFailures: uint32(max(cfg.Gateway.BreakerFailures, 1)),
		BreakerCooldown: cfg.Gateway.BreakerCooldown,
	})
	paymentSvc := paymentapp.NewService(log, paymentpg.NewRepository(log, pool), gateway, orderSvc,
		idempotency.NewGuard(rdb, "payment", cfg.Session.PaymentLock))

	// Status fan-out
	hub := notifier.NewHub(log, cfg.Status.QueueSize)
	defer hub.Close()
	consumer := notifierkafka.NewConsumer(log,
		notifierkafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.StatusTopic, cfg.Kafka.GroupID),
		cfg.Kafka.GroupID, hub, idempotency.NewStore(rdb, cfg.Session.DedupeTTL))

	// Health
	checker := health.NewChecker(log, 2*time.Second)
	checker.Add("postgres", pool.Ping)
	checker.Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	grpcHealth := health.NewGRPCServer(log, checker, grpc.StatsHandler(otelgrpc.NewServerHandler()))

	// HTTP
	slipHandler := authhttp.NewHandler(log, identitySvc)
	cartHandler := carthttp.NewHandler(log, cartSvc)
	catalogHandler := cataloghttp.NewHandler(log, catalogapp.NewService(log, catalog))
	orderHandler := orderhttp.NewHandler(log, orderSvc, checkoutSvc)
	dashboardHandler := orderhttp.NewDashboardHandler(log, orderapp.NewDashboard(orderRepo))
	paymentHandler := paymenthttp.NewHandler(log, paymentSvc, cfg.Gateway.KeyID)
	streamHandler := notifierhttp.NewHandler(log, hub, orderSvc, notifierhttp.Options{
		FallbackPoll: cfg.Status.FallbackPoll,
		Heartbeat:    cfg.Status.Heartbeat,
		QueueRefresh: cfg.Status.QueueRefresh,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", checker.ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(authhttp.Authenticate(identitySvc))

		// event streams stay open, so only the plain routes get a deadline
		timeout := middleware.Timeout(cfg.HTTP.RequestTimeout)
		r.With(timeout).Mount("/slips", slipHandler.Routes())
		r.With(timeout).Mount("/cart", cartHandler.Routes())
		r.With(timeout).Route("/payments", paymentHandler.MountPayments)
		r.Route("/orders", func(r chi.Router) {
			streamHandler.MountOrders(r)
			r.With(timeout).Group(func(r chi.Router) {
				orderHandler.Mount(r)
				paymentHandler.MountOrders(r)
			})
		})
		r.Route("/shops/{shopID}", func(r chi.Router) {
			streamHandler.MountShop(r)
			r.With(timeout).Group(func(r chi.Router) {
				catalogHandler.Mount(r)
				orderHandler.MountShop(r)
				dashboardHandler.MountShop(r)
			})
		})
	})

	// request contexts end with the server so open event streams return on shutdown
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      otelhttp.NewHandler(r, "order-service"),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return grpcHealth.Serve(gctx, cfg.GRPC.Addr, 5*time.Second) })
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		checker.Shutdown()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("order-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("order-service shutdown complete")
}
