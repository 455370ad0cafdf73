package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/models"
	"cdpi-pass/internal/tickets/db"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := bunDB.ResetModel(context.Background(), (*models.Ticket)(nil)); err != nil {
		t.Fatalf("Failed to create tickets table: %v", err)
	}
	return &db.DB{Bun: bunDB}
}

func insertTicket(t *testing.T, d *db.DB, ticket *models.Ticket) {
	t.Helper()
	ticket.CreatedAt = time.Now()
	if _, err := d.Bun.NewInsert().Model(ticket).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert ticket: %v", err)
	}
}

func TestGetTicketByQRPayload(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	insertTicket(t, d, &models.Ticket{
		ID:         "ticket-1",
		OrderID:    "order-1",
		EventID:    "event-1",
		HolderName: "Alice Silva",
		TicketType: models.BatchFirst,
		QRCodeData: "QR-abc",
	})

	ticket, err := d.GetTicketByQRPayload(ctx, "QR-abc")
	if err != nil {
		t.Fatalf("Failed to look up ticket: %v", err)
	}
	if ticket.ID != "ticket-1" {
		t.Errorf("Expected ticket-1, got %s", ticket.ID)
	}

	if _, err := d.GetTicketByQRPayload(ctx, "QR-forged"); !errors.Is(err, errs.ErrTicketNotFound) {
		t.Fatalf("Expected ErrTicketNotFound, got %v", err)
	}
}

func TestMarkTicketUsedFlipsOnce(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	insertTicket(t, d, &models.Ticket{
		ID:         "ticket-1",
		OrderID:    "order-1",
		EventID:    "event-1",
		TicketType: models.BatchFirst,
		QRCodeData: "QR-abc",
	})

	flipped, err := d.MarkTicketUsed(ctx, "ticket-1")
	if err != nil {
		t.Fatalf("MarkTicketUsed failed: %v", err)
	}
	if !flipped {
		t.Fatal("Expected first flip to succeed")
	}

	ticket, err := d.GetTicketByQRPayload(ctx, "QR-abc")
	if err != nil {
		t.Fatalf("Failed to reload ticket: %v", err)
	}
	if !ticket.IsUsed || ticket.UsedAt == nil {
		t.Error("Expected ticket marked used with timestamp")
	}

	// The racing second scanner loses.
	flipped, err = d.MarkTicketUsed(ctx, "ticket-1")
	if err != nil {
		t.Fatalf("Second MarkTicketUsed failed: %v", err)
	}
	if flipped {
		t.Fatal("Expected second flip to lose")
	}
}

func TestResetTicketsByOrder(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	insertTicket(t, d, &models.Ticket{
		ID:         "ticket-1",
		OrderID:    "order-1",
		EventID:    "event-1",
		TicketType: models.BatchFirst,
		QRCodeData: "QR-1",
	})
	insertTicket(t, d, &models.Ticket{
		ID:         "ticket-2",
		OrderID:    "order-1",
		EventID:    "event-1",
		TicketType: models.BatchFirst,
		QRCodeData: "QR-2",
	})

	for _, id := range []string{"ticket-1", "ticket-2"} {
		if _, err := d.MarkTicketUsed(ctx, id); err != nil {
			t.Fatalf("MarkTicketUsed(%s) failed: %v", id, err)
		}
	}

	if err := d.ResetTicketsByOrder(ctx, "order-1"); err != nil {
		t.Fatalf("ResetTicketsByOrder failed: %v", err)
	}

	tickets, err := d.GetTicketsByOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("Failed to list tickets: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("Expected 2 tickets, got %d", len(tickets))
	}
	for _, ticket := range tickets {
		if ticket.IsUsed || ticket.UsedAt != nil {
			t.Errorf("Expected ticket %s reset, got used=%v", ticket.ID, ticket.IsUsed)
		}
	}
}

func TestSetTicketQRURL(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	insertTicket(t, d, &models.Ticket{
		ID:         "ticket-1",
		OrderID:    "order-1",
		EventID:    "event-1",
		TicketType: models.BatchFirst,
		QRCodeData: "QR-abc",
	})

	url := "https://bucket.s3.sa-east-1.amazonaws.com/qr-codes/ticket-1-event-1.png"
	if err := d.SetTicketQRURL(ctx, "ticket-1", url); err != nil {
		t.Fatalf("SetTicketQRURL failed: %v", err)
	}

	ticket, err := d.GetTicketByQRPayload(ctx, "QR-abc")
	if err != nil {
		t.Fatalf("Failed to reload ticket: %v", err)
	}
	if ticket.QRCodeS3URL != url {
		t.Errorf("Expected persisted URL, got %s", ticket.QRCodeS3URL)
	}
}
