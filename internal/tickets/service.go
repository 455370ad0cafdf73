package tickets

import (
	"context"
	"fmt"
	"strings"

	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/models"
)

type TicketStore interface {
	GetTicketByQRPayload(ctx context.Context, payload string) (*models.Ticket, error)
	GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	MarkTicketUsed(ctx context.Context, ticketID string) (bool, error)
	ResetTicketsByOrder(ctx context.Context, orderID string) error
}

type OrderStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// VerifyResult is what the door scanner displays after a scan.
type VerifyResult struct {
	TicketID   string `json:"ticket_id"`
	HolderName string `json:"holder_name"`
	TicketType string `json:"ticket_type"`
	EventTitle string `json:"event_title"`
}

type TicketService struct {
	Tickets TicketStore
	Orders  OrderStore

	logger *logger.Logger
}

func NewTicketService(tickets TicketStore, orders OrderStore, log *logger.Logger) *TicketService {
	return &TicketService{Tickets: tickets, Orders: orders, logger: log}
}

// VerifyAtDoor validates a scanned QR payload and marks the ticket
// used. Only tickets on paid orders admit; the single-use flip happens
// in the database so two scanners racing on the same payload cannot
// both succeed.
func (s *TicketService) VerifyAtDoor(ctx context.Context, payload string) (*VerifyResult, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errs.New(errs.KindInvalid, "qr payload is required")
	}

	ticket, err := s.Tickets.GetTicketByQRPayload(ctx, payload)
	if err != nil {
		return nil, err
	}

	order, err := s.Orders.GetOrderByID(ctx, ticket.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPaid {
		return nil, errs.ErrPaymentNotConfirmed
	}

	flipped, err := s.Tickets.MarkTicketUsed(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, errs.ErrTicketAlreadyUsed
	}

	event, err := s.Orders.GetEvent(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("VERIFY", fmt.Sprintf("Ticket %s admitted for event %s", ticket.ID, event.ID))
	return &VerifyResult{
		TicketID:   ticket.ID,
		HolderName: ticket.HolderName,
		TicketType: ticket.TicketType,
		EventTitle: event.Title,
	}, nil
}

// ListByOrder returns an order's tickets to its owner. Staff can read
// any order.
func (s *TicketService) ListByOrder(ctx context.Context, user *models.User, orderID string) ([]models.Ticket, error) {
	order, err := s.Orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID && !user.IsStaff {
		return nil, errs.ErrOrderNotFound
	}
	return s.Tickets.GetTicketsByOrder(ctx, orderID)
}

// ResetOrderTickets clears the used flag on an order's tickets so they
// can be scanned again. Staff-only.
func (s *TicketService) ResetOrderTickets(ctx context.Context, orderID string) error {
	if _, err := s.Orders.GetOrderByID(ctx, orderID); err != nil {
		return err
	}
	if err := s.Tickets.ResetTicketsByOrder(ctx, orderID); err != nil {
		return err
	}
	s.logger.Warn("VERIFY", fmt.Sprintf("Tickets reset for order %s", orderID))
	return nil
}
