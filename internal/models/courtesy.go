package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CourtesyLink is a single-use-tracked promotional code. When
// OverridePriceCents is set the link is a discount code applied at
// checkout; when unset it grants free tickets through the standalone
// redemption flow.
type CourtesyLink struct {
	bun.BaseModel `bun:"table:courtesy_links"`

	ID                 string    `bun:"id,pk" json:"id"`
	Code               string    `bun:"code,unique,notnull" json:"code"`
	EventID            string    `bun:"event_id,notnull" json:"event_id"`
	TicketCount        int       `bun:"ticket_count,notnull,default:1" json:"ticket_count"`
	UsedCount          int       `bun:"used_count,notnull,default:0" json:"used_count"`
	OverridePriceCents *int64    `bun:"override_price_cents" json:"override_price_cents,omitempty"`
	RecipientName      string    `bun:"recipient_name" json:"recipient_name,omitempty"`
	RecipientEmail     string    `bun:"recipient_email" json:"recipient_email,omitempty"`
	CreatedBy          string    `bun:"created_by,notnull" json:"created_by"`
	IsActive           bool      `bun:"is_active,default:true" json:"is_active"`
	CreatedAt          time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt          time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// IsDiscount reports whether the link is a checkout discount code
// rather than a free courtesy.
func (l *CourtesyLink) IsDiscount() bool {
	return l.OverridePriceCents != nil
}

// Remaining returns the number of unredeemed uses.
func (l *CourtesyLink) Remaining() int {
	return l.TicketCount - l.UsedCount
}

// CourtesyAttendee captures the attendee details submitted at courtesy
// redemption time. Write-once compliance record.
type CourtesyAttendee struct {
	bun.BaseModel `bun:"table:courtesy_attendees"`

	ID             string    `bun:"id,pk" json:"id"`
	CourtesyLinkID string    `bun:"courtesy_link_id,notnull" json:"courtesy_link_id"`
	OrderID        string    `bun:"order_id,notnull" json:"order_id"`
	Name           string    `bun:"name,notnull" json:"name"`
	Email          string    `bun:"email,notnull" json:"email"`
	CPF            string    `bun:"cpf,notnull" json:"cpf"`
	Phone          string    `bun:"phone" json:"phone,omitempty"`
	BirthDate      time.Time `bun:"birth_date" json:"birth_date"`
	Address        string    `bun:"address" json:"address,omitempty"`
	PartnerCompany string    `bun:"partner_company" json:"partner_company,omitempty"`
	EventTitle     string    `bun:"event_title" json:"event_title"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
