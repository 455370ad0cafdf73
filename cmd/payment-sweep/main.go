package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"cdpi-pass/internal/config"
	"cdpi-pass/internal/email"
	"cdpi-pass/internal/fulfillment"
	"cdpi-pass/internal/fulfillment/qr"
	"cdpi-pass/internal/logger"
	order_db "cdpi-pass/internal/order/db"
	"cdpi-pass/internal/payment"
	"cdpi-pass/internal/storage"
	ticket_db "cdpi-pass/internal/tickets/db"
	"cdpi-pass/internal/users"
)

// Safety net for lost webhooks: polls every pending order that has a
// provider payment id and applies whatever status the provider reports.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting payment sweep worker")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()

	emailProducer := email.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketEmails, log)
	defer emailProducer.Close()

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

	reconciler := payment.NewReconciler(orderDB, asaasClient, asaasClient, fulfillmentService, log)

	ticker := time.NewTicker(cfg.Payment.SweepInterval)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	log.Info("APP", fmt.Sprintf("Sweeping pending payments every %s", cfg.Payment.SweepInterval))
	for {
		select {
		case <-ticker.C:
			checked, failed := reconciler.Sweep(ctx)
			log.Info("SWEEP", fmt.Sprintf("Sweep finished: %d reconciled, %d failed", checked, failed))
		case <-stop:
			log.Info("APP", "Shutdown signal received, stopping sweep worker")
			return
		}
	}
}
