package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Batch labels double as the ticket type tag for full-price sales.
const (
	BatchFirst  = "first batch"
	BatchSecond = "second batch"
	BatchThird  = "third batch"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID               string    `bun:"id,pk" json:"id"`
	Title            string    `bun:"title,notnull" json:"title"`
	Description      string    `bun:"description" json:"description"`
	Date             time.Time `bun:"date,notnull" json:"date"`
	Location         string    `bun:"location" json:"location"`
	Batch            string    `bun:"batch" json:"batch"`
	PriceCents       int64     `bun:"price_cents,notnull" json:"price_cents"`
	ImageURL         string    `bun:"image_url" json:"image_url,omitempty"`
	MaxAttendees     *int      `bun:"max_attendees" json:"max_attendees,omitempty"`
	CurrentAttendees int       `bun:"current_attendees,default:0" json:"current_attendees"`
	IsActive         bool      `bun:"is_active,default:true" json:"is_active"`
	CreatedAt        time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Unlimited reports whether the event has no capacity ceiling.
func (e *Event) Unlimited() bool {
	return e.MaxAttendees == nil
}
