package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket type tags. Full-price tickets carry the event batch label.
const (
	TicketTypeSale     = "sale"
	TicketTypeCourtesy = "courtesy"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID             string     `bun:"id,pk" json:"id"`
	OrderID        string     `bun:"order_id,notnull" json:"order_id"`
	EventID        string     `bun:"event_id,notnull" json:"event_id"`
	HolderName     string     `bun:"holder_name" json:"holder_name"`
	HolderCPF      string     `bun:"holder_cpf" json:"holder_cpf"`
	TicketType     string     `bun:"ticket_type,notnull" json:"ticket_type"`
	QRCodeData     string     `bun:"qr_code_data,notnull" json:"qr_code_data"`
	QRCodeS3URL    string     `bun:"qr_code_s3_url" json:"qr_code_s3_url,omitempty"`
	IsUsed         bool       `bun:"is_used,default:false" json:"is_used"`
	UsedAt         *time.Time `bun:"used_at" json:"used_at,omitempty"`
	CourtesyLinkID *string    `bun:"courtesy_link_id" json:"courtesy_link_id,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
}
