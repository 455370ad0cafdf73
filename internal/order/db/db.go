package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- EVENTS ----------------

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// IncrementEventAttendees bumps the cached attendee counter. Callers
// guarantee at-most-once per order via BeginFulfillment.
func (d *DB) IncrementEventAttendees(ctx context.Context, eventID string, by int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("current_attendees = current_attendees + ?", by).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", eventID).
		Exec(ctx)
	return err
}

// ---------------- COURTESY LINKS ----------------

func (d *DB) GetCourtesyLinkByCode(ctx context.Context, code string) (*models.CourtesyLink, error) {
	var link models.CourtesyLink
	err := d.Bun.NewSelect().
		Model(&link).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (d *DB) CreateCourtesyLink(ctx context.Context, link *models.CourtesyLink) error {
	_, err := d.Bun.NewInsert().Model(link).Exec(ctx)
	return err
}

// reserveLinkUsage atomically claims quantity uses of a courtesy link.
// The compare is part of the UPDATE itself so two concurrent
// reservations near exhaustion can never jointly overshoot ticket_count.
func reserveLinkUsage(ctx context.Context, tx bun.Tx, linkID string, quantity int) error {
	res, err := tx.NewUpdate().
		Model((*models.CourtesyLink)(nil)).
		Set("used_count = used_count + ?", quantity).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", linkID).
		Where("is_active = ?", true).
		Where("used_count + ? <= ticket_count", quantity).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errs.ErrCodeExhausted
	}

	// Deactivate exactly when the last use is claimed.
	_, err = tx.NewUpdate().
		Model((*models.CourtesyLink)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", linkID).
		Where("used_count >= ticket_count").
		Exec(ctx)
	return err
}

// releaseLinkUsage returns reserved uses when an order is cancelled and
// reactivates the link.
func releaseLinkUsage(ctx context.Context, tx bun.Tx, linkID string, quantity int) error {
	_, err := tx.NewUpdate().
		Model((*models.CourtesyLink)(nil)).
		Set("used_count = used_count - ?", quantity).
		Set("is_active = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", linkID).
		Where("used_count >= ?", quantity).
		Exec(ctx)
	return err
}

// ---------------- ORDERS ----------------

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("asaas_payment_id = ?", paymentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	return orders, err
}

// ListPendingOrdersWithPayment returns the orders the reconciliation
// sweep has to poll: still pending and already registered upstream.
func (d *DB) ListPendingOrdersWithPayment(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("status = ?", models.OrderStatusPending).
		Where("asaas_payment_id <> ''").
		Order("created_at ASC").
		Scan(ctx)
	return orders, err
}

func (d *DB) SetOrderPaymentID(ctx context.Context, orderID, paymentID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("asaas_payment_id = ?", paymentID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", orderID).
		Exec(ctx)
	return err
}

// lockEvent takes a row lock on the event so the capacity count and
// ticket insert below are serialized across concurrent purchases.
// SQLite (tests) serializes writers on its own and rejects FOR UPDATE.
func lockEvent(ctx context.Context, tx bun.Tx, eventID string) (*models.Event, error) {
	var event models.Event
	q := tx.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1)
	if tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// checkCapacity counts every existing ticket row for the event and
// fails when the requested quantity would overshoot max_attendees.
// Cancelled orders free capacity by having their tickets deleted.
func checkCapacity(ctx context.Context, tx bun.Tx, event *models.Event, quantity int) error {
	if event.Unlimited() {
		return nil
	}
	existing, err := tx.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", event.ID).
		Count(ctx)
	if err != nil {
		return err
	}
	if existing+quantity > *event.MaxAttendees {
		return errs.ErrEventFull
	}
	return nil
}

// CreateOrderWithTickets creates an order and its ticket rows in one
// transaction: event row lock, live capacity count, atomic promo
// reservation, inserts. Any failure rolls the whole unit back.
func (d *DB) CreateOrderWithTickets(ctx context.Context, order *models.Order, tickets []*models.Ticket) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		event, err := lockEvent(ctx, tx, order.EventID)
		if err != nil {
			return err
		}
		if err := checkCapacity(ctx, tx, event, order.Quantity); err != nil {
			return err
		}
		if order.CourtesyLinkID != nil {
			if err := reserveLinkUsage(ctx, tx, *order.CourtesyLinkID, order.Quantity); err != nil {
				return err
			}
		}
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
			return fmt.Errorf("insert tickets: %w", err)
		}
		return nil
	})
}

// HasTicketWithCPF reports whether a ticket for the event already
// carries the given CPF. Pre-flight check for the redemption form; the
// authoritative check runs again inside the redemption transaction.
func (d *DB) HasTicketWithCPF(ctx context.Context, eventID, cpf string) (bool, error) {
	return hasTicketWithCPF(ctx, d.Bun, eventID, cpf)
}

func hasTicketWithCPF(ctx context.Context, db bun.IDB, eventID, cpf string) (bool, error) {
	count, err := db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("holder_cpf = ?", cpf).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateCourtesyRedemption persists a courtesy redemption atomically:
// attendee record, zero-amount paid order, single courtesy ticket and
// the link usage reservation, all behind the capacity guard.
func (d *DB) CreateCourtesyRedemption(ctx context.Context, attendee *models.CourtesyAttendee, order *models.Order, ticket *models.Ticket) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		event, err := lockEvent(ctx, tx, order.EventID)
		if err != nil {
			return err
		}
		if err := checkCapacity(ctx, tx, event, 1); err != nil {
			return err
		}
		// Re-check under the event row lock: two concurrent redemptions
		// with the same CPF both pass the pre-flight check, only the
		// first one passes here.
		taken, err := hasTicketWithCPF(ctx, tx, event.ID, ticket.HolderCPF)
		if err != nil {
			return err
		}
		if taken {
			return errs.ErrDuplicateAttendee
		}
		if err := reserveLinkUsage(ctx, tx, *order.CourtesyLinkID, 1); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(attendee).Exec(ctx); err != nil {
			return fmt.Errorf("insert courtesy attendee: %w", err)
		}
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if _, err := tx.NewInsert().Model(ticket).Exec(ctx); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		return nil
	})
}

// BeginFulfillment performs the guarded transition into the fulfilled
// state. Returns false when another invocation already claimed the
// order, which makes webhook replays and double polls no-ops.
func (d *DB) BeginFulfillment(ctx context.Context, orderID string) (bool, error) {
	now := time.Now()
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderStatusPaid).
		Set("fulfilled_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", orderID).
		Where("fulfilled_at IS NULL").
		Where("status IN (?)", bun.In([]string{models.OrderStatusPending, models.OrderStatusPaid})).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CancelOrderAndRelease cancels a pending order and returns everything
// it reserved: ticket rows are deleted (freeing capacity) and any promo
// usage is handed back.
func (d *DB) CancelOrderAndRelease(ctx context.Context, orderID string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var order models.Order
		q := tx.NewSelect().Model(&order).Where("id = ?", orderID).Limit(1)
		if tx.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		err := q.Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusPending {
			return errs.ErrAlreadyProcessed
		}

		if _, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("order_id = ?", orderID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete tickets: %w", err)
		}

		if order.CourtesyLinkID != nil {
			if err := releaseLinkUsage(ctx, tx, *order.CourtesyLinkID, order.Quantity); err != nil {
				return err
			}
		}

		_, err = tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", models.OrderStatusCancelled).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", orderID).
			Exec(ctx)
		return err
	})
}

// ---------------- COURTESY ATTENDEES ----------------

func (d *DB) GetCourtesyAttendeeByOrder(ctx context.Context, orderID string) (*models.CourtesyAttendee, error) {
	var attendee models.CourtesyAttendee
	err := d.Bun.NewSelect().
		Model(&attendee).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.KindNotFound, "courtesy attendee not found")
	}
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}
