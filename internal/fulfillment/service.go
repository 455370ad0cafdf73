package fulfillment

import (
	"context"
	"fmt"

	"cdpi-pass/internal/email"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/models"
)

type OrderStore interface {
	BeginFulfillment(ctx context.Context, orderID string) (bool, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	IncrementEventAttendees(ctx context.Context, eventID string, by int) error
	GetCourtesyAttendeeByOrder(ctx context.Context, orderID string) (*models.CourtesyAttendee, error)
}

type TicketStore interface {
	GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	SetTicketQRURL(ctx context.Context, ticketID, url string) error
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type QRGenerator interface {
	GeneratePNG(payload string) ([]byte, error)
}

type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type EmailPublisher interface {
	PublishTicketEmail(ctx context.Context, job email.Job) error
}

type Locker interface {
	Acquire(ctx context.Context, orderID string) (bool, error)
	Release(ctx context.Context, orderID string) error
}

// Outcome summarizes one fulfillment run. It goes to logs, never to
// the buyer: fulfillment runs out-of-band from the purchase response.
type Outcome struct {
	OrderID       string
	AlreadyDone   bool
	QRFailures    int
	EmailFailures int
	TicketCount   int
}

// Service turns a confirmed payment into delivered tickets: QR images,
// object-storage uploads, the cached attendee counter and one email job
// per ticket. Individual ticket failures never abort the run.
type Service struct {
	Orders  OrderStore
	Tickets TicketStore
	Users   UserStore
	QR      QRGenerator
	Storage Uploader
	Email   EmailPublisher
	Lock    Locker

	logger *logger.Logger
}

func NewService(orders OrderStore, tickets TicketStore, users UserStore, qr QRGenerator, storage Uploader, emails EmailPublisher, lock Locker, log *logger.Logger) *Service {
	return &Service{
		Orders:  orders,
		Tickets: tickets,
		Users:   users,
		QR:      qr,
		Storage: storage,
		Email:   emails,
		Lock:    lock,
		logger:  log,
	}
}

// Fulfill runs the pipeline for an order that just entered the paid
// state. Safe to invoke any number of times: the run-lock keeps
// concurrent invocations out and the guarded database transition makes
// repeats no-ops, so attendee counters and emails fire at most once.
func (s *Service) Fulfill(ctx context.Context, orderID string) (*Outcome, error) {
	outcome := &Outcome{OrderID: orderID}

	locked, err := s.Lock.Acquire(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("acquire fulfillment lock: %w", err)
	}
	if !locked {
		s.logger.Info("FULFILL", fmt.Sprintf("Order %s is already being fulfilled elsewhere", orderID))
		outcome.AlreadyDone = true
		return outcome, nil
	}
	defer func() {
		if err := s.Lock.Release(ctx, orderID); err != nil {
			s.logger.Warn("FULFILL", fmt.Sprintf("Failed to release lock for order %s: %v", orderID, err))
		}
	}()

	// Load everything the run needs before claiming the order: a
	// transient read failure here leaves the order unclaimed, so the
	// webhook replay or the sweep can retry delivery.
	order, err := s.Orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	event, err := s.Orders.GetEvent(ctx, order.EventID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.Tickets.GetTicketsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	claimed, err := s.Orders.BeginFulfillment(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("begin fulfillment: %w", err)
	}
	if !claimed {
		outcome.AlreadyDone = true
		return outcome, nil
	}
	outcome.TicketCount = len(tickets)

	for i := range tickets {
		ticket := &tickets[i]

		url := ticket.QRCodeS3URL
		if url == "" {
			url = s.processTicketQR(ctx, ticket, event)
			if url == "" {
				outcome.QRFailures++
			}
		}

		recipient, holderName := s.resolveRecipient(ctx, order, ticket)
		if recipient == "" {
			s.logger.Error("FULFILL", fmt.Sprintf("No delivery address for ticket %s, skipping email", ticket.ID))
			outcome.EmailFailures++
			continue
		}
		job := email.Job{
			To:            recipient,
			UserName:      holderName,
			EventTitle:    event.Title,
			EventDate:     event.Date,
			EventLocation: event.Location,
			OrderID:       order.ID,
			TicketID:      ticket.ID,
			QRCodeURL:     url,
			QRUnavailable: url == "",
		}
		if err := s.Email.PublishTicketEmail(ctx, job); err != nil {
			s.logger.Error("FULFILL", fmt.Sprintf("Failed to enqueue ticket email for ticket %s: %v", ticket.ID, err))
			outcome.EmailFailures++
		}
	}

	// One increment per order regardless of how many tickets it holds.
	if err := s.Orders.IncrementEventAttendees(ctx, event.ID, order.Quantity); err != nil {
		s.logger.Error("FULFILL", fmt.Sprintf("Failed to update attendee count for event %s: %v", event.ID, err))
	}

	if outcome.QRFailures > 0 || outcome.EmailFailures > 0 {
		s.logger.Warn("FULFILL", fmt.Sprintf("Order %s fulfilled with %d QR and %d email failures",
			orderID, outcome.QRFailures, outcome.EmailFailures))
	} else {
		s.logger.Info("FULFILL", fmt.Sprintf("Order %s fulfilled successfully (%d tickets)", orderID, len(tickets)))
	}
	return outcome, nil
}

// processTicketQR renders and uploads one ticket's QR image, persisting
// the URL. Returns "" on failure; the caller counts it and moves on.
func (s *Service) processTicketQR(ctx context.Context, ticket *models.Ticket, event *models.Event) string {
	png, err := s.QR.GeneratePNG(ticket.QRCodeData)
	if err != nil {
		s.logger.Error("FULFILL", fmt.Sprintf("QR generation failed for ticket %s: %v", ticket.ID, err))
		return ""
	}

	key := fmt.Sprintf("qr-codes/%s-%s.png", ticket.ID, event.ID)
	url, err := s.Storage.Upload(ctx, key, png, "image/png")
	if err != nil {
		s.logger.Error("FULFILL", fmt.Sprintf("QR upload failed for ticket %s: %v", ticket.ID, err))
		return ""
	}

	if err := s.Tickets.SetTicketQRURL(ctx, ticket.ID, url); err != nil {
		s.logger.Error("FULFILL", fmt.Sprintf("Failed to persist QR URL for ticket %s: %v", ticket.ID, err))
		return ""
	}
	ticket.QRCodeS3URL = url
	return url
}

// resolveRecipient picks the delivery address: the courtesy attendee
// for courtesy tickets, otherwise the order owner.
func (s *Service) resolveRecipient(ctx context.Context, order *models.Order, ticket *models.Ticket) (string, string) {
	if ticket.TicketType == models.TicketTypeCourtesy {
		attendee, err := s.Orders.GetCourtesyAttendeeByOrder(ctx, order.ID)
		if err == nil {
			return attendee.Email, attendee.Name
		}
		s.logger.Warn("FULFILL", fmt.Sprintf("No courtesy attendee for order %s, falling back to owner: %v", order.ID, err))
	}
	user, err := s.Users.GetUser(ctx, order.UserID)
	if err != nil {
		s.logger.Error("FULFILL", fmt.Sprintf("Failed to resolve owner %s of order %s: %v", order.UserID, order.ID, err))
		return "", ticket.HolderName
	}
	return user.Email, user.Name
}
