package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/models"
	"cdpi-pass/internal/payment"
	"cdpi-pass/internal/utils"
)

type DBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetCourtesyLinkByCode(ctx context.Context, code string) (*models.CourtesyLink, error)
	CreateOrderWithTickets(ctx context.Context, order *models.Order, tickets []*models.Ticket) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	SetOrderPaymentID(ctx context.Context, orderID, paymentID string) error
	CancelOrderAndRelease(ctx context.Context, orderID string) error
}

type Gateway interface {
	CreatePayment(ctx context.Context, order *models.Order, event *models.Event, user models.User) (*payment.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) error
}

type OrderService struct {
	DB      DBLayer
	Gateway Gateway

	convenienceFeeCents int64
	logger              *logger.Logger
}

func NewOrderService(db DBLayer, gateway Gateway, convenienceFeeCents int64, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:                  db,
		Gateway:             gateway,
		convenienceFeeCents: convenienceFeeCents,
		logger:              log,
	}
}

// CreateOrderResult is what the purchase endpoint returns: the pending
// order, its tickets and the provider payload the buyer pays with.
type CreateOrderResult struct {
	Order   *models.Order    `json:"order"`
	Tickets []*models.Ticket `json:"tickets"`
	Payment *payment.Payment `json:"payment,omitempty"`
}

func validateCreateOrder(req *models.CreateOrderRequest) error {
	if req.EventID == "" {
		return errs.New(errs.KindInvalid, "event_id is required")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return errs.New(errs.KindInvalid, "quantity must be positive")
	}
	switch req.PaymentMethod {
	case models.PaymentMethodPix, models.PaymentMethodBoleto, models.PaymentMethodCreditCard:
		return nil
	default:
		return errs.New(errs.KindInvalid, "unsupported payment method")
	}
}

// CreateOrder runs the full purchase sequence: pricing/promo resolution,
// transactional order+ticket creation behind the capacity guard, then
// the provider charge. A gateway failure after commit leaves the order
// pending without a provider id; the reconciliation sweep or a manual
// cancellation picks it up, it is never silently dropped.
func (s *OrderService) CreateOrder(ctx context.Context, user models.User, req models.CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateCreateOrder(&req); err != nil {
		return nil, err
	}

	event, err := s.DB.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsActive {
		return nil, errs.ErrEventNotFound
	}

	// Codes are stored uppercase; accept whatever casing the buyer typed.
	var link *models.CourtesyLink
	if code := strings.ToUpper(strings.TrimSpace(req.PromoCode)); code != "" {
		link, err = s.DB.GetCourtesyLinkByCode(ctx, code)
		if err != nil {
			return nil, err
		}
	}

	pricing, err := ResolvePricing(event, link, req.Quantity, s.convenienceFeeCents)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		EventID:       event.ID,
		Status:        models.OrderStatusPending,
		Quantity:      req.Quantity,
		PaymentMethod: req.PaymentMethod,
		AmountCents:   pricing.TotalCents,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if pricing.Link != nil {
		linkID := pricing.Link.ID
		order.CourtesyLinkID = &linkID
	}

	tickets := make([]*models.Ticket, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		tickets = append(tickets, &models.Ticket{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			EventID:        event.ID,
			HolderName:     user.Name,
			HolderCPF:      user.CPF,
			TicketType:     pricing.TicketType,
			QRCodeData:     utils.GenerateQRPayload(),
			CourtesyLinkID: order.CourtesyLinkID,
			CreatedAt:      now,
		})
	}

	if err := s.DB.CreateOrderWithTickets(ctx, order, tickets); err != nil {
		return nil, err
	}
	s.logger.Info("ORDER", fmt.Sprintf("Created order %s for event %s (qty=%d, total=%s)",
		order.ID, event.ID, order.Quantity, utils.FormatCents(order.AmountCents)))

	pmnt, err := s.Gateway.CreatePayment(ctx, order, event, user)
	if err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Payment creation failed for order %s, left pending for reconciliation: %v", order.ID, err))
		return nil, err
	}

	if err := s.DB.SetOrderPaymentID(ctx, order.ID, pmnt.ID); err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Failed to store payment id %s on order %s: %v", pmnt.ID, order.ID, err))
		return nil, err
	}
	order.AsaasPaymentID = pmnt.ID

	return &CreateOrderResult{Order: order, Tickets: tickets, Payment: pmnt}, nil
}

// GetOrder returns an order to its owner. Other users' orders are
// reported as absent rather than forbidden.
func (s *OrderService) GetOrder(ctx context.Context, user models.User, orderID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID && !user.IsStaff {
		return nil, errs.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, user models.User) ([]models.Order, error) {
	return s.DB.GetOrdersByUser(ctx, user.ID)
}

// CancelOrder is the explicit, user-initiated cancellation: pending
// orders only. The upstream charge is cancelled first; local rows only
// change once the provider accepted the cancellation.
func (s *OrderService) CancelOrder(ctx context.Context, user models.User, orderID string) error {
	order, err := s.GetOrder(ctx, user, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		return errs.ErrAlreadyProcessed
	}

	if order.AsaasPaymentID != "" {
		if err := s.Gateway.CancelPayment(ctx, order.AsaasPaymentID); err != nil {
			s.logger.Error("ORDER", fmt.Sprintf("Upstream cancellation failed for order %s: %v", orderID, err))
			return err
		}
	}

	if err := s.DB.CancelOrderAndRelease(ctx, orderID); err != nil {
		return err
	}
	s.logger.Info("ORDER", fmt.Sprintf("Order %s cancelled by user %s", orderID, user.ID))
	return nil
}
