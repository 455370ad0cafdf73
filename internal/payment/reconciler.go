package payment

import (
	"context"
	"fmt"

	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/fulfillment"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/models"
)

type OrderStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	ListPendingOrdersWithPayment(ctx context.Context) ([]models.Order, error)
	CancelOrderAndRelease(ctx context.Context, orderID string) error
}

type PaymentChecker interface {
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

type TokenValidator interface {
	ValidateWebhookToken(token string) bool
}

type Fulfiller interface {
	Fulfill(ctx context.Context, orderID string) (*fulfillment.Outcome, error)
}

// WebhookPayload is the inbound Asaas notification shape.
type WebhookPayload struct {
	Event   string `json:"event"`
	Payment struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		ExternalReference string `json:"externalReference"`
	} `json:"payment"`
}

type WebhookResult struct {
	Message          string `json:"message"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
}

// Reconciler drives the order state machine from provider statuses.
// The webhook and the polling sweep are two entry points into the same
// transition logic, so replays and double polls behave identically.
type Reconciler struct {
	Orders    OrderStore
	Checker   PaymentChecker
	Validator TokenValidator
	Fulfiller Fulfiller

	logger *logger.Logger
}

func NewReconciler(orders OrderStore, checker PaymentChecker, validator TokenValidator, fulfiller Fulfiller, log *logger.Logger) *Reconciler {
	return &Reconciler{
		Orders:    orders,
		Checker:   checker,
		Validator: validator,
		Fulfiller: fulfiller,
		logger:    log,
	}
}

// Apply maps one provider status onto an order. Confirmed payments run
// fulfillment; terminal provider failures cancel pending orders and
// release their reservations. Unknown statuses keep the order pending
// and never regress a paid order.
func (r *Reconciler) Apply(ctx context.Context, order *models.Order, providerStatus string) error {
	switch providerStatus {
	case StatusConfirmed, StatusReceived:
		if order.Status == models.OrderStatusPaid {
			return nil
		}
		outcome, err := r.Fulfiller.Fulfill(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("fulfill order %s: %w", order.ID, err)
		}
		if outcome.AlreadyDone {
			r.logger.Debug("RECONCILE", fmt.Sprintf("Order %s already fulfilled", order.ID))
		}
		return nil

	case StatusOverdue, StatusCancelled, StatusRefunded, StatusRefused, StatusDeleted:
		if order.Status != models.OrderStatusPending {
			return nil
		}
		err := r.Orders.CancelOrderAndRelease(ctx, order.ID)
		if err == errs.ErrAlreadyProcessed {
			// Lost the race against another driver, nothing to do.
			return nil
		}
		if err != nil {
			return err
		}
		r.logger.Info("RECONCILE", fmt.Sprintf("Order %s cancelled (provider status %s)", order.ID, providerStatus))
		return nil

	default:
		r.logger.Debug("RECONCILE", fmt.Sprintf("Order %s stays pending on provider status %q", order.ID, providerStatus))
		return nil
	}
}

// HandleWebhook validates and applies one provider notification.
// Replays for already-paid orders short-circuit with a success result
// so the provider stops retrying.
func (r *Reconciler) HandleWebhook(ctx context.Context, token string, payload WebhookPayload) (*WebhookResult, error) {
	if !r.Validator.ValidateWebhookToken(token) {
		r.logger.Warn("WEBHOOK", "Rejected webhook with invalid token")
		return nil, errs.ErrAuthInvalid
	}

	if payload.Payment.ExternalReference == "" {
		return nil, errs.ErrExternalRefMissing
	}

	order, err := r.Orders.GetOrderByID(ctx, payload.Payment.ExternalReference)
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusPaid {
		r.logger.Info("WEBHOOK", fmt.Sprintf("Replay for already-paid order %s, no-op", order.ID))
		return &WebhookResult{Message: "order already processed", AlreadyProcessed: true}, nil
	}

	if err := r.Apply(ctx, order, payload.Payment.Status); err != nil {
		return nil, err
	}
	return &WebhookResult{Message: "webhook processed"}, nil
}

// CheckOrder polls the provider for one order and applies the result.
// Backs the manual check-status endpoint.
func (r *Reconciler) CheckOrder(ctx context.Context, order *models.Order) (string, error) {
	if order.AsaasPaymentID == "" {
		return "", errs.New(errs.KindInvalid, "order has no payment to check")
	}
	pmnt, err := r.Checker.GetPayment(ctx, order.AsaasPaymentID)
	if err != nil {
		return "", err
	}
	if err := r.Apply(ctx, order, pmnt.Status); err != nil {
		return "", err
	}
	return pmnt.Status, nil
}

// Sweep polls every pending order that has a provider payment id. Per-
// order failures are logged and skipped so one broken charge cannot
// stall the rest of the queue.
func (r *Reconciler) Sweep(ctx context.Context) (checked, failed int) {
	orders, err := r.Orders.ListPendingOrdersWithPayment(ctx)
	if err != nil {
		r.logger.Error("SWEEP", fmt.Sprintf("Failed to list pending orders: %v", err))
		return 0, 0
	}

	r.logger.Info("SWEEP", fmt.Sprintf("Checking %d pending payments", len(orders)))
	for i := range orders {
		order := &orders[i]
		if _, err := r.CheckOrder(ctx, order); err != nil {
			r.logger.Error("SWEEP", fmt.Sprintf("Failed to reconcile order %s: %v", order.ID, err))
			failed++
			continue
		}
		checked++
	}
	return checked, failed
}
