package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-storefront/internal/analytics"
	analytics_api "ms-storefront/internal/analytics/api"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/cart"
	"ms-storefront/internal/cart/cart_api"
	cartredis "ms-storefront/internal/cart/redis"
	"ms-storefront/internal/catalog/catalog_api"
	catalog_db "ms-storefront/internal/catalog/db"
	"ms-storefront/internal/checkout"
	checkoutredis "ms-storefront/internal/checkout/redis"
	"ms-storefront/internal/config"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/metrics"
	"ms-storefront/internal/models"
	"ms-storefront/internal/order"
	order_db "ms-storefront/internal/order/db"
	"ms-storefront/internal/order/order_api"
	payment_handlers "ms-storefront/internal/payment/handler"
	payment "ms-storefront/internal/payment/services"
	"ms-storefront/internal/sse"
	ticket_db "ms-storefront/internal/tickets/db"
	"ms-storefront/internal/tickets/qr"
	tickets "ms-storefront/internal/tickets/service"
	"ms-storefront/internal/tickets/ticket_api"
	"ms-storefront/internal/utils"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))

	return bunDB, redisClient
}

func runMigrations(cfg *config.Config, logger *logger.Logger) {
	runner := migrations.NewRunner(cfg.Database.DSN, migrations.MigrateOptions{
		MigrationsDir: cfg.Database.MigrationsDir,
	}, logger)
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn("DATABASE", fmt.Sprintf("Closing migrator: %v", err))
		}
	}()

	if err := runner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
}

func newTokenVerifier(ctx context.Context, cfg *config.Config, logger *logger.Logger) auth.TokenVerifier {
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewHS256Verifier(cfg.Auth.JWTSecret)
		if err != nil {
			logger.Fatal("AUTH", fmt.Sprintf("HS256 verifier: %v", err))
		}
		logger.Info("AUTH", "Verifying bearer tokens with the shared HS256 secret")
		return v
	}
	if cfg.Auth.OIDCIssuer == "" {
		logger.Fatal("CONFIG", "either AUTH_JWT_SECRET or OIDC_ISSUER must be set")
	}
	v, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
	if err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("OIDC discovery for %s failed: %v", cfg.Auth.OIDCIssuer, err))
	}
	logger.Info("AUTH", fmt.Sprintf("Verifying bearer tokens against OIDC issuer %s", cfg.Auth.OIDCIssuer))
	return v
}

func newProfileCache(cfg *config.Config, redisClient *redis.Client, log *logger.Logger) auth.ProfileCache {
	if cfg.Auth.ProfileCache == "redis" {
		return auth.NewRedisProfileCache(redisClient, cfg.Auth.ProfileCacheTTL, log)
	}
	return auth.NewMemoryProfileCache(cfg.Auth.ProfileCacheTTL)
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using environment variables")
	}

	log := logger.NewLogger("storefront")
	defer log.Close()

	log.Info("APP", "Starting storefront service initialization")
	cfg := config.Load()

	if cfg.Tickets.QRSecretKey == "" {
		log.Fatal("CONFIG", "QR_SECRET_KEY not set")
	}
	if cfg.Stripe.SecretKey == "" {
		log.Fatal("CONFIG", "STRIPE_SECRET_KEY not set")
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Warn("CONFIG", "STRIPE_WEBHOOK_SECRET not set, webhooks will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runMigrations(cfg, log)
	}

	instanceID := uuid.NewString()

	// --- Kafka ---
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.OrderPaid, cfg.Kafka.Topics.TicketRedeemed}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderPaid, cfg.Kafka.Topics.TicketRedeemed, instanceID, log)
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Kafka.Brokers))
	} else {
		producer = kafka.NewDisabledProducer(log)
		log.Warn("KAFKA", "Kafka disabled, domain events are dropped")
	}
	defer producer.Close()

	feed := sse.NewScanFeed()
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketRedeemed, "storefront-scan-feed-"+instanceID, instanceID, log)
		defer consumer.Close()
		go func() {
			if err := consumer.ConsumeTicketRedeemed(ctx, feed.Relay); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Scan relay stopped: %v", err))
			}
		}()
	}

	// --- Domain services ---
	codec, err := qr.NewCodec(cfg.Tickets.QRSecretKey)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("QR codec: %v", err))
	}

	catalogDB := &catalog_db.DB{Bun: bunDB}
	ticketService := tickets.NewTicketService(&ticket_db.DB{Bun: bunDB}, codec, producer, feed, log, cfg.Tickets.QRSize)
	orderService := order.NewOrderService(&order_db.DB{Bun: bunDB}, catalogDB, ticketService, producer, log)

	stripeService, err := payment.NewStripeService(cfg.Stripe.SecretKey, catalogDB, orderService, cfg.Stripe.Currency, cfg.Checkout.ServiceFeePercent, log)
	if err != nil {
		log.Fatal("STRIPE", err.Error())
	}
	webhooks := payment.NewWebhookProcessor(cfg.Stripe.WebhookSecret, orderService, log)

	checkoutService := checkout.NewService(
		stripeService,
		stripeService,
		checkoutredis.NewLock(redisClient, cfg.Checkout.LockTTL),
		log,
		cfg.SuccessURL(),
		cfg.CancelURL(),
		cfg.Checkout.ServiceFeePercent,
	)

	carts := cart.NewManager(cartredis.NewStore(redisClient, cfg.Cart.TTL), log)
	go carts.RunEviction(ctx, time.Minute, cfg.Cart.IdleEvict)
	go metrics.Collect(ctx, 15*time.Second, carts.Len)

	users := auth.NewUserContext(&auth.ProfileDB{Bun: bunDB}, newProfileCache(cfg, redisClient, log), log)
	verifier := newTokenVerifier(ctx, cfg, log)

	// --- Handlers ---
	cartHandler := cart_api.NewHandler(carts, checkoutService, cart_api.CookieConfig{
		Name:   cfg.Cart.CookieName,
		Secure: cfg.Cart.CookieSecure,
		MaxAge: cfg.Cart.TTL,
	}, log)
	catalogHandler := catalog_api.NewHandler(catalogDB)
	ticketHandler := ticket_api.NewHandler(ticketService, feed, log)
	orderHandler := order_api.NewHandler(orderService, log)
	stripeHandler := payment_handlers.NewStripeHandler(webhooks, log)
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(bunDB), log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware)

	// --- Public Routes ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	stripeHandler.Routes(r)
	log.Info("ROUTER", "Stripe webhook registered at /api/webhooks/stripe")

	// --- Routes that know the caller when a token is sent ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))

		catalogHandler.Routes(r)
		cartHandler.Routes(r)
		log.Info("ROUTER", "Catalog, cart and checkout routes registered")

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Get("/api/me", users.Me)
			r.Post("/api/auth/signout", users.SignOut)
			ticketHandler.Routes(r)
			orderHandler.Routes(r)
			log.Info("ROUTER", "Ticket and order routes registered")
		})

		r.Group(func(r chi.Router) {
			r.Use(users.RequireRole(models.RoleAdmin, models.RoleScanner))
			ticketHandler.AdminRoutes(r)
			log.Info("ROUTER", "Admin scan routes registered under /api/admin")
		})

		r.Group(func(r chi.Router) {
			r.Use(users.RequireRole(models.RoleAdmin))
			analyticsHandler.RegisterRoutes(r)
			log.Info("ROUTER", "Sales analytics registered under /api/admin/analytics")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Storefront service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Storefront service shutdown complete")
	}
}
