package email

import "time"

const (
	JobTypeTicket         = "ticket"
	JobTypeCourtesyInvite = "courtesy_invite"
)

// Job is the message the email worker consumes. One job is published
// per ticket, not per order, so partial deliveries stay independent.
type Job struct {
	Type          string    `json:"type"`
	To            string    `json:"to"`
	UserName      string    `json:"user_name"`
	EventTitle    string    `json:"event_title"`
	EventDate     time.Time `json:"event_date"`
	EventLocation string    `json:"event_location"`
	OrderID       string    `json:"order_id,omitempty"`
	TicketID      string    `json:"ticket_id,omitempty"`
	QRCodeURL     string    `json:"qr_code_url,omitempty"`
	QRUnavailable bool      `json:"qr_unavailable,omitempty"`
	Code          string    `json:"code,omitempty"`
	RedeemURL     string    `json:"redeem_url,omitempty"`
}
