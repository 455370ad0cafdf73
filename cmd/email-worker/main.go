package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cdpi-pass/internal/config"
	"cdpi-pass/internal/email"
	"cdpi-pass/internal/logger"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting email worker")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()

	sender := email.NewSMTPSender(cfg.Email)
	consumer := email.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketEmails, cfg.Kafka.GroupID, sender, log)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info("APP", "Shutdown signal received, stopping email worker")
		cancel()
	}()

	consumer.Start(ctx)
	log.Info("APP", "✅ Email worker shutdown complete")
}
