package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"cdpi-pass/internal/logger"
)

// Producer publishes email jobs to Kafka. Delivery itself happens in
// the email worker so order creation and fulfillment never block on
// SMTP.
type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, Logger: log}
}

func (p *Producer) publish(ctx context.Context, key string, job Job) error {
	msgBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	p.Logger.Debug("EMAIL", fmt.Sprintf("Publishing %s email job to %s", job.Type, job.To))
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: msgBytes,
	})
}

// PublishTicketEmail enqueues one ticket-delivery email.
func (p *Producer) PublishTicketEmail(ctx context.Context, job Job) error {
	job.Type = JobTypeTicket
	return p.publish(ctx, job.OrderID, job)
}

// PublishCourtesyInvite enqueues the invite carrying a courtesy link's
// redemption URL.
func (p *Producer) PublishCourtesyInvite(ctx context.Context, job Job) error {
	job.Type = JobTypeCourtesyInvite
	return p.publish(ctx, job.Code, job)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
