package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(ctx)
	return tickets, err
}

func (d *DB) GetTicketByQRPayload(ctx context.Context, payload string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("qr_code_data = ?", payload).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) SetTicketQRURL(ctx context.Context, ticketID, url string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("qr_code_s3_url = ?", url).
		Where("id = ?", ticketID).
		Exec(ctx)
	return err
}

// MarkTicketUsed flips is_used exactly once. The is_used guard in the
// WHERE clause makes a second scan of the same payload lose the race
// instead of silently re-verifying.
func (d *DB) MarkTicketUsed(ctx context.Context, ticketID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_used = ?", true).
		Set("used_at = ?", time.Now()).
		Where("id = ?", ticketID).
		Where("is_used = ?", false).
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

// ResetTicketsByOrder clears the used flag on an order's tickets.
// Staff-only re-admission tool.
func (d *DB) ResetTicketsByOrder(ctx context.Context, orderID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_used = ?", false).
		Set("used_at = NULL").
		Where("order_id = ?", orderID).
		Exec(ctx)
	return err
}
