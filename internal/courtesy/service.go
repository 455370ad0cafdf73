package courtesy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cdpi-pass/internal/email"
	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/fulfillment"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/models"
	"cdpi-pass/internal/utils"
)

type DBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetCourtesyLinkByCode(ctx context.Context, code string) (*models.CourtesyLink, error)
	CreateCourtesyLink(ctx context.Context, link *models.CourtesyLink) error
	HasTicketWithCPF(ctx context.Context, eventID, cpf string) (bool, error)
	CreateCourtesyRedemption(ctx context.Context, attendee *models.CourtesyAttendee, order *models.Order, ticket *models.Ticket) error
}

type Fulfiller interface {
	Fulfill(ctx context.Context, orderID string) (*fulfillment.Outcome, error)
}

type InvitePublisher interface {
	PublishCourtesyInvite(ctx context.Context, job email.Job) error
}

// RedeemRequest is the public form posted from the redemption page.
type RedeemRequest struct {
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	CPF            string    `json:"cpf"`
	Phone          string    `json:"phone"`
	BirthDate      time.Time `json:"birth_date"`
	Address        string    `json:"address"`
	PartnerCompany string    `json:"partner_company"`
}

// CreateLinkRequest is the staff payload for issuing a new link.
type CreateLinkRequest struct {
	EventID            string `json:"event_id"`
	TicketCount        int    `json:"ticket_count"`
	OverridePriceCents *int64 `json:"override_price_cents,omitempty"`
	RecipientName      string `json:"recipient_name"`
	RecipientEmail     string `json:"recipient_email"`
}

type RedeemResult struct {
	Order  *models.Order  `json:"order"`
	Ticket *models.Ticket `json:"ticket"`
}

type CourtesyService struct {
	DB        DBLayer
	Fulfiller Fulfiller
	Invites   InvitePublisher

	publicBaseURL string
	logger        *logger.Logger
}

func NewCourtesyService(db DBLayer, fulfiller Fulfiller, invites InvitePublisher, publicBaseURL string, log *logger.Logger) *CourtesyService {
	return &CourtesyService{
		DB:            db,
		Fulfiller:     fulfiller,
		Invites:       invites,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        log,
	}
}

// CreateLink issues a courtesy or discount link for an event. When a
// recipient email is set the invite with the redemption URL is queued
// for delivery.
func (s *CourtesyService) CreateLink(ctx context.Context, staffID string, req CreateLinkRequest) (*models.CourtesyLink, error) {
	if req.EventID == "" {
		return nil, errs.New(errs.KindInvalid, "event_id is required")
	}
	if req.TicketCount < 1 {
		req.TicketCount = 1
	}
	if req.OverridePriceCents != nil && *req.OverridePriceCents < 0 {
		return nil, errs.New(errs.KindInvalid, "override price cannot be negative")
	}

	event, err := s.DB.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	link := &models.CourtesyLink{
		ID:                 uuid.New().String(),
		Code:               utils.GenerateCourtesyCode(),
		EventID:            event.ID,
		TicketCount:        req.TicketCount,
		OverridePriceCents: req.OverridePriceCents,
		RecipientName:      req.RecipientName,
		RecipientEmail:     req.RecipientEmail,
		CreatedBy:          staffID,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.DB.CreateCourtesyLink(ctx, link); err != nil {
		return nil, err
	}
	s.logger.Info("COURTESY", fmt.Sprintf("Created link %s for event %s (%d uses)", link.Code, event.ID, link.TicketCount))

	if link.RecipientEmail != "" && !link.IsDiscount() {
		job := email.Job{
			To:            link.RecipientEmail,
			UserName:      link.RecipientName,
			EventTitle:    event.Title,
			EventDate:     event.Date,
			EventLocation: event.Location,
			Code:          link.Code,
			RedeemURL:     s.RedeemURL(link.Code),
		}
		if err := s.Invites.PublishCourtesyInvite(ctx, job); err != nil {
			// The link exists either way; staff can resend manually.
			s.logger.Error("COURTESY", fmt.Sprintf("Failed to queue invite for %s: %v", link.Code, err))
		}
	}
	return link, nil
}

// RedeemURL builds the public redemption page URL for a code.
func (s *CourtesyService) RedeemURL(code string) string {
	return fmt.Sprintf("%s/cortesia?code=%s", s.publicBaseURL, code)
}

// GetLink returns an active link by code, for the redemption page to
// render event details before the attendee submits the form.
func (s *CourtesyService) GetLink(ctx context.Context, code string) (*models.CourtesyLink, *models.Event, error) {
	link, err := s.DB.GetCourtesyLinkByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, nil, err
	}
	if link.IsDiscount() {
		return nil, nil, errs.ErrWrongCodeFlow
	}
	if !link.IsActive {
		return nil, nil, errs.ErrLinkInactive
	}
	event, err := s.DB.GetEvent(ctx, link.EventID)
	if err != nil {
		return nil, nil, err
	}
	return link, event, nil
}

// Redeem converts one courtesy link use into a zero-amount paid order
// with a single ticket, then runs fulfillment so the QR code and email
// go out immediately. Discount codes belong to checkout and are
// rejected here.
func (s *CourtesyService) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	if err := validateRedeem(&req); err != nil {
		return nil, err
	}

	link, err := s.DB.GetCourtesyLinkByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if link.IsDiscount() {
		return nil, errs.ErrWrongCodeFlow
	}
	if !link.IsActive {
		return nil, errs.ErrLinkInactive
	}
	if link.Remaining() < 1 {
		return nil, errs.ErrLinkExhausted
	}

	event, err := s.DB.GetEvent(ctx, link.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsActive {
		return nil, errs.ErrEventNotFound
	}

	taken, err := s.DB.HasTicketWithCPF(ctx, event.ID, req.CPF)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errs.ErrDuplicateAttendee
	}

	now := time.Now()
	order := &models.Order{
		ID:             uuid.New().String(),
		UserID:         link.CreatedBy,
		EventID:        event.ID,
		Status:         models.OrderStatusPaid,
		Quantity:       1,
		PaymentMethod:  models.PaymentMethodCourtesy,
		AmountCents:    0,
		CourtesyLinkID: &link.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	ticket := &models.Ticket{
		ID:             uuid.New().String(),
		OrderID:        order.ID,
		EventID:        event.ID,
		HolderName:     req.Name,
		HolderCPF:      req.CPF,
		TicketType:     models.TicketTypeCourtesy,
		QRCodeData:     utils.GenerateQRPayload(),
		CourtesyLinkID: &link.ID,
		CreatedAt:      now,
	}
	attendee := &models.CourtesyAttendee{
		ID:             uuid.New().String(),
		CourtesyLinkID: link.ID,
		OrderID:        order.ID,
		Name:           req.Name,
		Email:          req.Email,
		CPF:            req.CPF,
		Phone:          req.Phone,
		BirthDate:      req.BirthDate,
		Address:        req.Address,
		PartnerCompany: req.PartnerCompany,
		EventTitle:     event.Title,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.DB.CreateCourtesyRedemption(ctx, attendee, order, ticket); err != nil {
		return nil, err
	}
	s.logger.Info("COURTESY", fmt.Sprintf("Code %s redeemed by %s for event %s", link.Code, req.CPF, event.ID))

	// The redemption is committed; fulfillment failures here are
	// recoverable through the reconciler-independent retry paths, so
	// the attendee still gets a success response.
	if _, err := s.Fulfiller.Fulfill(ctx, order.ID); err != nil {
		s.logger.Error("COURTESY", fmt.Sprintf("Fulfillment failed for courtesy order %s: %v", order.ID, err))
	}

	return &RedeemResult{Order: order, Ticket: ticket}, nil
}

func validateRedeem(req *RedeemRequest) error {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.CPF = strings.TrimSpace(req.CPF)
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if req.Code == "" {
		return errs.New(errs.KindInvalid, "code is required")
	}
	if req.Name == "" || req.Email == "" || req.CPF == "" {
		return errs.New(errs.KindInvalid, "name, email and cpf are required")
	}
	return nil
}
