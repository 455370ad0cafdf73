package fulfillment_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cdpi-pass/internal/email"
	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/fulfillment"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/models"
)

// Mock implementations for testing

type MockOrderStore struct {
	orders         map[string]*models.Order
	events         map[string]*models.Event
	attendees      map[string]*models.CourtesyAttendee
	attendeeCounts map[string]int
	shouldFailOn   string
	errorMsg       string
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{
		orders:         make(map[string]*models.Order),
		events:         make(map[string]*models.Event),
		attendees:      make(map[string]*models.CourtesyAttendee),
		attendeeCounts: make(map[string]int),
	}
}

func (m *MockOrderStore) BeginFulfillment(ctx context.Context, orderID string) (bool, error) {
	if m.shouldFailOn == "BeginFulfillment" {
		return false, errors.New(m.errorMsg)
	}
	o, exists := m.orders[orderID]
	if !exists {
		return false, errs.ErrOrderNotFound
	}
	if o.FulfilledAt != nil || o.Status == models.OrderStatusCancelled {
		return false, nil
	}
	now := time.Now()
	o.Status = models.OrderStatusPaid
	o.FulfilledAt = &now
	return true, nil
}

func (m *MockOrderStore) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	o, exists := m.orders[id]
	if !exists {
		return nil, errs.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrderStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	e, exists := m.events[id]
	if !exists {
		return nil, errs.ErrEventNotFound
	}
	return e, nil
}

func (m *MockOrderStore) IncrementEventAttendees(ctx context.Context, eventID string, by int) error {
	if m.shouldFailOn == "IncrementEventAttendees" {
		return errors.New(m.errorMsg)
	}
	m.attendeeCounts[eventID] += by
	return nil
}

func (m *MockOrderStore) GetCourtesyAttendeeByOrder(ctx context.Context, orderID string) (*models.CourtesyAttendee, error) {
	a, exists := m.attendees[orderID]
	if !exists {
		return nil, errs.New(errs.KindNotFound, "courtesy attendee not found")
	}
	return a, nil
}

type MockTicketStore struct {
	tickets      map[string][]models.Ticket
	savedURLs    map[string]string
	shouldFailOn string
	errorMsg     string
}

func NewMockTicketStore() *MockTicketStore {
	return &MockTicketStore{
		tickets:   make(map[string][]models.Ticket),
		savedURLs: make(map[string]string),
	}
}

func (m *MockTicketStore) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	return m.tickets[orderID], nil
}

func (m *MockTicketStore) SetTicketQRURL(ctx context.Context, ticketID, url string) error {
	if m.shouldFailOn == "SetTicketQRURL" {
		return errors.New(m.errorMsg)
	}
	m.savedURLs[ticketID] = url
	return nil
}

type MockUserStore struct {
	users map[string]*models.User
}

func (m *MockUserStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, exists := m.users[id]
	if !exists {
		return nil, errs.New(errs.KindNotFound, "user not found")
	}
	return u, nil
}

type MockQR struct {
	failOn map[string]bool
}

func (m *MockQR) GeneratePNG(payload string) ([]byte, error) {
	if m.failOn[payload] {
		return nil, errors.New("qr render failed")
	}
	return []byte("png:" + payload), nil
}

type MockUploader struct {
	uploads      map[string][]byte
	shouldFailOn string
}

func NewMockUploader() *MockUploader {
	return &MockUploader{uploads: make(map[string][]byte)}
}

func (m *MockUploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if m.shouldFailOn == "Upload" {
		return "", errs.New(errs.KindUpstream, "s3 unavailable")
	}
	m.uploads[key] = body
	return "https://bucket.s3.sa-east-1.amazonaws.com/" + key, nil
}

type MockPublisher struct {
	jobs     []email.Job
	failSend bool
}

func (m *MockPublisher) PublishTicketEmail(ctx context.Context, job email.Job) error {
	if m.failSend {
		return errors.New("kafka unavailable")
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type MockLocker struct {
	held map[string]bool
	busy bool
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

func (m *MockLocker) Acquire(ctx context.Context, orderID string) (bool, error) {
	if m.busy || m.held[orderID] {
		return false, nil
	}
	m.held[orderID] = true
	return true, nil
}

func (m *MockLocker) Release(ctx context.Context, orderID string) error {
	delete(m.held, orderID)
	return nil
}

type fixture struct {
	orders  *MockOrderStore
	tickets *MockTicketStore
	users   *MockUserStore
	qr      *MockQR
	storage *MockUploader
	emails  *MockPublisher
	lock    *MockLocker
	svc     *fulfillment.Service
}

func newFixture() *fixture {
	f := &fixture{
		orders:  NewMockOrderStore(),
		tickets: NewMockTicketStore(),
		users:   &MockUserStore{users: make(map[string]*models.User)},
		qr:      &MockQR{failOn: make(map[string]bool)},
		storage: NewMockUploader(),
		emails:  &MockPublisher{},
		lock:    NewMockLocker(),
	}
	f.svc = fulfillment.NewService(f.orders, f.tickets, f.users, f.qr, f.storage, f.emails, f.lock, logger.NewLogger())
	return f
}

func (f *fixture) seedPaidOrder(qty int) {
	f.orders.events["event-1"] = &models.Event{
		ID:       "event-1",
		Title:    "Imersao CDPI 2026",
		Date:     time.Now().AddDate(0, 1, 0),
		Location: "Sao Paulo",
	}
	f.orders.orders["order-1"] = &models.Order{
		ID:       "order-1",
		UserID:   "user-1",
		EventID:  "event-1",
		Status:   models.OrderStatusPending,
		Quantity: qty,
	}
	f.users.users["user-1"] = &models.User{ID: "user-1", Name: "Alice Silva", Email: "alice@example.com"}

	var tickets []models.Ticket
	for i := 0; i < qty; i++ {
		tickets = append(tickets, models.Ticket{
			ID:         fmt.Sprintf("ticket-%d", i),
			OrderID:    "order-1",
			EventID:    "event-1",
			HolderName: "Alice Silva",
			TicketType: models.BatchFirst,
			QRCodeData: fmt.Sprintf("QR-%d", i),
		})
	}
	f.tickets.tickets["order-1"] = tickets
}

func TestFulfill(t *testing.T) {
	f := newFixture()
	f.seedPaidOrder(2)

	outcome, err := f.svc.Fulfill(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Fulfill failed: %v", err)
	}
	if outcome.AlreadyDone {
		t.Fatal("First fulfillment must not be a no-op")
	}
	if outcome.TicketCount != 2 || outcome.QRFailures != 0 || outcome.EmailFailures != 0 {
		t.Fatalf("Unexpected outcome: %+v", outcome)
	}

	// One QR upload per ticket under the expected key layout.
	if len(f.storage.uploads) != 2 {
		t.Fatalf("Expected 2 uploads, got %d", len(f.storage.uploads))
	}
	if _, ok := f.storage.uploads["qr-codes/ticket-0-event-1.png"]; !ok {
		t.Error("Expected upload key qr-codes/ticket-0-event-1.png")
	}
	if f.tickets.savedURLs["ticket-0"] == "" {
		t.Error("Expected QR URL persisted on ticket-0")
	}

	// One email job per ticket, addressed to the buyer.
	if len(f.emails.jobs) != 2 {
		t.Fatalf("Expected 2 email jobs, got %d", len(f.emails.jobs))
	}
	for _, job := range f.emails.jobs {
		if job.To != "alice@example.com" {
			t.Errorf("Expected recipient alice@example.com, got %s", job.To)
		}
		if job.QRUnavailable {
			t.Error("QR must be attached on the happy path")
		}
	}

	// Attendee counter bumps once per order, by the quantity.
	if f.orders.attendeeCounts["event-1"] != 2 {
		t.Errorf("Expected attendee count 2, got %d", f.orders.attendeeCounts["event-1"])
	}

	// The run-lock is released for future manual retries.
	if f.lock.held["order-1"] {
		t.Error("Expected the run-lock to be released")
	}
}

func TestFulfillTwiceIsNoOp(t *testing.T) {
	f := newFixture()
	f.seedPaidOrder(1)

	if _, err := f.svc.Fulfill(context.Background(), "order-1"); err != nil {
		t.Fatalf("First fulfillment failed: %v", err)
	}

	outcome, err := f.svc.Fulfill(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Second fulfillment failed: %v", err)
	}
	if !outcome.AlreadyDone {
		t.Fatal("Second fulfillment must be a no-op")
	}
	if len(f.emails.jobs) != 1 {
		t.Errorf("Expected 1 email job total, got %d", len(f.emails.jobs))
	}
	if f.orders.attendeeCounts["event-1"] != 1 {
		t.Errorf("Expected attendee count 1, got %d", f.orders.attendeeCounts["event-1"])
	}
}

func TestFulfillRetriesAfterTransientReadFailure(t *testing.T) {
	f := newFixture()
	f.seedPaidOrder(2)

	// First attempt hits a transient event read failure.
	event := f.orders.events["event-1"]
	delete(f.orders.events, "event-1")
	if _, err := f.svc.Fulfill(context.Background(), "order-1"); err == nil {
		t.Fatal("Expected fulfillment to fail while the event is unreadable")
	}
	if f.orders.orders["order-1"].FulfilledAt != nil {
		t.Fatal("A failed run must not claim the order")
	}

	// Once the read recovers, the retry delivers everything.
	f.orders.events["event-1"] = event
	outcome, err := f.svc.Fulfill(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if outcome.AlreadyDone {
		t.Fatal("Retry after a failed run must not be a no-op")
	}
	if len(f.emails.jobs) != 2 {
		t.Errorf("Expected 2 email jobs on retry, got %d", len(f.emails.jobs))
	}
	if f.orders.attendeeCounts["event-1"] != 2 {
		t.Errorf("Expected attendee count 2 after retry, got %d", f.orders.attendeeCounts["event-1"])
	}
}

func TestFulfillLockBusy(t *testing.T) {
	f := newFixture()
	f.seedPaidOrder(1)
	f.lock.busy = true

	outcome, err := f.svc.Fulfill(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Fulfill failed: %v", err)
	}
	if !outcome.AlreadyDone {
		t.Fatal("A busy lock must report the order as handled elsewhere")
	}
	if f.orders.orders["order-1"].FulfilledAt != nil {
		t.Error("Order must not be claimed while the lock is busy")
	}
}

func TestFulfillToleratesQRFailures(t *testing.T) {
	f := newFixture()
	f.seedPaidOrder(2)
	f.qr.failOn["QR-0"] = true

	outcome, err := f.svc.Fulfill(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Fulfill failed: %v", err)
	}
	if outcome.QRFailures != 1 {
		t.Fatalf("Expected 1 QR failure, got %d", outcome.QRFailures)
	}

	// Both emails still go out, the broken one flagged so the template
	// falls back to the comprovante notice.
	if len(f.emails.jobs) != 2 {
		t.Fatalf("Expected 2 email jobs, got %d", len(f.emails.jobs))
	}
	flagged := 0
	for _, job := range f.emails.jobs {
		if job.QRUnavailable {
			flagged++
		}
	}
	if flagged != 1 {
		t.Errorf("Expected exactly 1 job flagged QR-unavailable, got %d", flagged)
	}
}

func TestFulfillCourtesyGoesToAttendee(t *testing.T) {
	f := newFixture()
	f.orders.events["event-1"] = &models.Event{ID: "event-1", Title: "Event", Date: time.Now()}
	linkID := "link-1"
	f.orders.orders["order-1"] = &models.Order{
		ID:             "order-1",
		UserID:         "staff-1",
		EventID:        "event-1",
		Status:         models.OrderStatusPaid,
		Quantity:       1,
		PaymentMethod:  models.PaymentMethodCourtesy,
		CourtesyLinkID: &linkID,
	}
	f.orders.attendees["order-1"] = &models.CourtesyAttendee{
		OrderID: "order-1",
		Name:    "Bruno Costa",
		Email:   "bruno@example.com",
	}
	f.users.users["staff-1"] = &models.User{ID: "staff-1", Email: "staff@cdpipass.com.br"}
	f.tickets.tickets["order-1"] = []models.Ticket{{
		ID:         "ticket-0",
		OrderID:    "order-1",
		EventID:    "event-1",
		TicketType: models.TicketTypeCourtesy,
		QRCodeData: "QR-0",
	}}

	if _, err := f.svc.Fulfill(context.Background(), "order-1"); err != nil {
		t.Fatalf("Fulfill failed: %v", err)
	}
	if len(f.emails.jobs) != 1 {
		t.Fatalf("Expected 1 email job, got %d", len(f.emails.jobs))
	}
	if f.emails.jobs[0].To != "bruno@example.com" {
		t.Errorf("Courtesy ticket must go to the attendee, got %s", f.emails.jobs[0].To)
	}
}

func TestFulfillSkipsAlreadyUploadedQR(t *testing.T) {
	f := newFixture()
	f.seedPaidOrder(1)
	tickets := f.tickets.tickets["order-1"]
	tickets[0].QRCodeS3URL = "https://bucket.s3.sa-east-1.amazonaws.com/qr-codes/existing.png"
	f.tickets.tickets["order-1"] = tickets

	outcome, err := f.svc.Fulfill(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Fulfill failed: %v", err)
	}
	if outcome.QRFailures != 0 {
		t.Errorf("Expected no QR failures, got %d", outcome.QRFailures)
	}
	if len(f.storage.uploads) != 0 {
		t.Errorf("Existing QR must not be re-uploaded, got %d uploads", len(f.storage.uploads))
	}
	if f.emails.jobs[0].QRCodeURL == "" {
		t.Error("Email must carry the existing QR URL")
	}
}
