package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentMethodPix        = "pix"
	PaymentMethodBoleto     = "boleto"
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodCourtesy   = "courtesy"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID             string     `bun:"id,pk" json:"id"`
	UserID         string     `bun:"user_id,notnull" json:"user_id"`
	EventID        string     `bun:"event_id,notnull" json:"event_id"`
	Status         string     `bun:"status,notnull,default:'pending'" json:"status"`
	Quantity       int        `bun:"quantity,notnull,default:1" json:"quantity"`
	PaymentMethod  string     `bun:"payment_method,notnull" json:"payment_method"`
	AmountCents    int64      `bun:"amount_cents,notnull" json:"amount_cents"`
	AsaasPaymentID string     `bun:"asaas_payment_id" json:"asaas_payment_id,omitempty"`
	CourtesyLinkID *string    `bun:"courtesy_link_id" json:"courtesy_link_id,omitempty"`
	FulfilledAt    *time.Time `bun:"fulfilled_at" json:"fulfilled_at,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// CreateOrderRequest is the payload accepted by POST /orders.
type CreateOrderRequest struct {
	EventID       string `json:"event_id"`
	PaymentMethod string `json:"payment_method"`
	Quantity      int    `json:"quantity"`
	PromoCode     string `json:"promo_code,omitempty"`
}
