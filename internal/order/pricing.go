package order

import (
	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/models"
)

// Pricing is the resolved outcome of the promo/price step: what each
// ticket costs, which type tag it carries and which link (if any) the
// transaction must reserve usage on.
type Pricing struct {
	UnitPriceCents int64
	TotalCents     int64
	TicketType     string
	Link           *models.CourtesyLink
}

// ResolvePricing computes the unit price and ticket type for a purchase.
// All arithmetic is integer centavos.
//
// Without a code the event's own price and batch apply. With a code the
// link must be an active discount code (override price set) with enough
// remaining uses; free courtesy codes belong to the standalone
// redemption flow and are rejected here.
func ResolvePricing(event *models.Event, link *models.CourtesyLink, quantity int, convenienceFeeCents int64) (*Pricing, error) {
	if link == nil {
		ticketType := event.Batch
		if ticketType == "" {
			ticketType = models.BatchFirst
		}
		return &Pricing{
			UnitPriceCents: event.PriceCents,
			TotalCents:     event.PriceCents*int64(quantity) + convenienceFeeCents,
			TicketType:     ticketType,
		}, nil
	}

	if !link.IsActive || link.EventID != event.ID {
		return nil, errs.ErrCodeNotFound
	}
	if !link.IsDiscount() {
		return nil, errs.ErrWrongCodeFlow
	}
	if link.Remaining() < quantity {
		return nil, errs.ErrCodeExhausted
	}

	unit := *link.OverridePriceCents
	return &Pricing{
		UnitPriceCents: unit,
		TotalCents:     unit*int64(quantity) + convenienceFeeCents,
		TicketType:     models.TicketTypeSale,
		Link:           link,
	}, nil
}
