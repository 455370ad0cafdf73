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
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"cdpi-pass/internal/auth"
	"cdpi-pass/internal/config"
	"cdpi-pass/internal/courtesy"
	courtesy_api "cdpi-pass/internal/courtesy/api"
	"cdpi-pass/internal/database/migrations"
	"cdpi-pass/internal/email"
	"cdpi-pass/internal/fulfillment"
	"cdpi-pass/internal/fulfillment/qr"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/order"
	order_api "cdpi-pass/internal/order/api"
	order_db "cdpi-pass/internal/order/db"
	"cdpi-pass/internal/payment"
	"cdpi-pass/internal/storage"
	"cdpi-pass/internal/tickets"
	ticket_api "cdpi-pass/internal/tickets/api"
	ticket_db "cdpi-pass/internal/tickets/db"
	"cdpi-pass/internal/users"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting CDPI Pass API initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	migrationRunner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := migrationRunner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	log.Info("DATABASE", "Migrations applied")

	emailProducer := email.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketEmails, log)
	defer emailProducer.Close()
	log.Info("KAFKA", "Email producer initialized successfully")

	uploader, err := storage.NewS3Uploader(cfg.S3)
	if err != nil {
		log.Fatal("S3", fmt.Sprintf("Failed to initialize S3 uploader: %v", err))
	}

	orderDB := &order_db.DB{Bun: bunDB}
	ticketDB := &ticket_db.DB{Bun: bunDB}
	userStore := &users.Store{Bun: bunDB}

	asaasClient := payment.NewAsaasClient(cfg.Asaas, log)

	fulfillmentService := fulfillment.NewService(
		orderDB,
		ticketDB,
		userStore,
		qr.NewGenerator(),
		uploader,
		emailProducer,
		fulfillment.NewRedisLock(redisClient),
		log,
	)

	orderService := order.NewOrderService(orderDB, asaasClient, cfg.Payment.ConvenienceFeeCents, log)
	reconciler := payment.NewReconciler(orderDB, asaasClient, asaasClient, fulfillmentService, log)
	courtesyService := courtesy.NewCourtesyService(orderDB, fulfillmentService, emailProducer, cfg.Email.BaseURL, log)
	ticketService := tickets.NewTicketService(ticketDB, orderDB, log)

	orderHandler := order_api.NewHandler(orderService, reconciler, log)
	courtesyHandler := courtesy_api.NewHandler(courtesyService, log)
	ticketHandler := ticket_api.NewHandler(ticketService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// --- Public Routes ---
	r.Post("/api/webhooks/asaas", orderHandler.Webhook)
	r.Get("/api/courtesy/{code}", courtesyHandler.GetLink)
	r.Post("/api/courtesy/redeem", courtesyHandler.Redeem)
	log.Info("ROUTER", "Public webhook and courtesy routes registered")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))
		log.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{orderId}", orderHandler.GetOrder)
			r.Delete("/{orderId}", orderHandler.CancelOrder)
			r.Post("/{orderId}/check-status", orderHandler.CheckStatus)
			r.Get("/{orderId}/tickets", ticketHandler.ListByOrder)
		})
		log.Info("ROUTER", "Order routes registered under /api/orders")

		// Staff-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireStaff)
			r.Post("/api/courtesy", courtesyHandler.CreateLink)
			r.Post("/api/tickets/verify", ticketHandler.Verify)
			r.Post("/api/orders/{orderId}/tickets/reset", ticketHandler.Reset)
		})
		log.Info("ROUTER", "Staff routes registered")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 CDPI Pass API running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ CDPI Pass API shutdown complete")
	}
}
