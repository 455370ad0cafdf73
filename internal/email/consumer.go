package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"cdpi-pass/internal/logger"
)

// Consumer reads email jobs and hands them to the sender. A failed
// send is not committed so Kafka redelivers it to the group.
type Consumer struct {
	reader *kafka.Reader
	sender *SMTPSender
	logger *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, sender *SMTPSender, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, sender: sender, logger: log}
}

// Start consumes until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("EMAIL", "Email worker consuming ticket email jobs")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("EMAIL", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var job Job
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			c.logger.Warn("EMAIL", fmt.Sprintf("Skipping malformed email job: %v", err))
			// Malformed jobs will never succeed, commit and move on.
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("EMAIL", fmt.Sprintf("Commit failed: %v", err))
			}
			continue
		}

		if err := c.sender.Send(job); err != nil {
			c.logger.Error("EMAIL", fmt.Sprintf("Failed to send %s email to %s, leaving for redelivery: %v", job.Type, job.To, err))
			continue
		}

		c.logger.Info("EMAIL", fmt.Sprintf("Sent %s email to %s (order %s)", job.Type, job.To, job.OrderID))
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("EMAIL", fmt.Sprintf("Commit failed: %v", err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
