package payment

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cdpi-pass/internal/config"
	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/models"
	"cdpi-pass/internal/utils"
)

// Asaas payment status vocabulary. Anything not listed maps to pending.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusReceived  = "RECEIVED"
	StatusOverdue   = "OVERDUE"
	StatusCancelled = "CANCELLED"
	StatusRefunded  = "REFUNDED"
	StatusRefused   = "REFUSED"
	StatusDeleted   = "DELETED"
)

type Customer struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	CpfCnpj string `json:"cpfCnpj"`
	Phone   string `json:"phone,omitempty"`
}

type PixQRCode struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

// Payment is the provider-side charge. PixQRCode and PaymentLink are
// populated by the extra lookups CreatePayment performs for the
// respective billing types.
type Payment struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	Value       json.Number `json:"value"`
	DueDate     string      `json:"dueDate,omitempty"`
	InvoiceURL  string      `json:"invoiceUrl,omitempty"`
	BankSlipURL string      `json:"bankSlipUrl,omitempty"`
	PaymentLink string      `json:"paymentLink,omitempty"`
	PixQRCode   *PixQRCode  `json:"pixQrCode,omitempty"`
}

// AsaasClient talks to the Asaas v3 REST API. All calls run on a
// bounded-timeout client; failures surface as typed upstream errors and
// are never retried here — retries belong to the reconciliation sweep.
type AsaasClient struct {
	apiKey       string
	baseURL      string
	webhookToken string
	dueDays      int
	client       *http.Client
	logger       *logger.Logger
}

func NewAsaasClient(cfg config.AsaasConfig, log *logger.Logger) *AsaasClient {
	if cfg.APIKey == "" {
		log.Warn("ASAAS", "ASAAS_API_KEY is not set, payment calls will be rejected upstream")
	}
	return &AsaasClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		webhookToken: cfg.WebhookToken,
		dueDays:      cfg.DueDays,
		client:       &http.Client{Timeout: 20 * time.Second},
		logger:       log,
	}
}

func (c *AsaasClient) request(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal asaas payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("build asaas request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindUpstream, "payment provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("ASAAS", fmt.Sprintf("API error %d on %s %s: %s", resp.StatusCode, method, endpoint, string(respBody)))
		return errs.Wrap(errs.KindUpstream, "payment provider error",
			fmt.Errorf("asaas returned status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.KindUpstream, "payment provider error",
			fmt.Errorf("decode asaas response: %w", err))
	}
	return nil
}

// CreateOrGetCustomer finds the Asaas customer by CPF/CNPJ, creating it
// on first contact.
func (c *AsaasClient) CreateOrGetCustomer(ctx context.Context, user models.User) (*Customer, error) {
	if user.CPF == "" {
		return nil, errs.New(errs.KindInvalid, "user cpf is required for payment")
	}

	var listing struct {
		Data []Customer `json:"data"`
	}
	endpoint := "/customers?cpfCnpj=" + url.QueryEscape(user.CPF)
	if err := c.request(ctx, http.MethodGet, endpoint, nil, &listing); err != nil {
		return nil, err
	}
	if len(listing.Data) > 0 {
		return &listing.Data[0], nil
	}

	created := &Customer{}
	payload := Customer{Name: user.Name, Email: user.Email, CpfCnpj: user.CPF, Phone: user.Phone}
	if err := c.request(ctx, http.MethodPost, "/customers", payload, created); err != nil {
		return nil, err
	}
	return created, nil
}

func billingType(paymentMethod string) string {
	switch paymentMethod {
	case models.PaymentMethodPix:
		return "PIX"
	case models.PaymentMethodBoleto:
		return "BOLETO"
	default:
		return "CREDIT_CARD"
	}
}

// CreatePayment creates the charge for an order and enriches the
// response with the artifacts each billing type needs: the PIX QR code,
// the boleto URL (already present) or a credit-card checkout link.
// Enrichment failures are logged but do not fail the charge.
func (c *AsaasClient) CreatePayment(ctx context.Context, order *models.Order, event *models.Event, user models.User) (*Payment, error) {
	customer, err := c.CreateOrGetCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	dueDate := time.Now().AddDate(0, 0, c.dueDays).Format("2006-01-02")
	payload := map[string]interface{}{
		"customer":          customer.ID,
		"billingType":       billingType(order.PaymentMethod),
		"value":             json.Number(utils.FormatCents(order.AmountCents)),
		"dueDate":           dueDate,
		"description":       fmt.Sprintf("Ingresso para %s", event.Title),
		"externalReference": order.ID,
	}

	c.logger.Info("ASAAS", fmt.Sprintf("Creating payment for order %s (%s, %s)", order.ID, order.PaymentMethod, utils.FormatCents(order.AmountCents)))

	pmnt := &Payment{}
	if err := c.request(ctx, http.MethodPost, "/payments", payload, pmnt); err != nil {
		return nil, err
	}

	switch order.PaymentMethod {
	case models.PaymentMethodPix:
		pix := &PixQRCode{}
		if err := c.request(ctx, http.MethodGet, "/payments/"+pmnt.ID+"/pixQrCode", nil, pix); err != nil {
			c.logger.Warn("ASAAS", fmt.Sprintf("Failed to fetch PIX QR code for payment %s: %v", pmnt.ID, err))
		} else {
			pmnt.PixQRCode = pix
		}
	case models.PaymentMethodCreditCard:
		var link struct {
			URL string `json:"url"`
		}
		linkPayload := map[string]interface{}{
			"name":             fmt.Sprintf("Order %s", order.ID),
			"billingType":      "CREDIT_CARD",
			"chargeType":       "DETACHED",
			"value":            json.Number(utils.FormatCents(order.AmountCents)),
			"dueDateLimitDays": 1,
			"description":      fmt.Sprintf("Payment for order %s", order.ID),
			"endDate":          dueDate,
		}
		if err := c.request(ctx, http.MethodPost, "/paymentLinks", linkPayload, &link); err != nil {
			c.logger.Warn("ASAAS", fmt.Sprintf("Failed to create checkout link for order %s: %v", order.ID, err))
		} else {
			pmnt.PaymentLink = link.URL
		}
	}

	return pmnt, nil
}

// GetPayment retrieves the current provider-side state of a charge.
func (c *AsaasClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	pmnt := &Payment{}
	if err := c.request(ctx, http.MethodGet, "/payments/"+paymentID, nil, pmnt); err != nil {
		return nil, err
	}
	return pmnt, nil
}

// CancelPayment cancels the charge upstream.
func (c *AsaasClient) CancelPayment(ctx context.Context, paymentID string) error {
	return c.request(ctx, http.MethodDelete, "/payments/"+paymentID, nil, nil)
}

// ValidateWebhookToken compares the inbound webhook token against the
// configured secret in constant time. An unset secret skips validation:
// a relaxed mode for development, never for production.
func (c *AsaasClient) ValidateWebhookToken(token string) bool {
	if c.webhookToken == "" {
		c.logger.Warn("ASAAS", "ASAAS_WEBHOOK_TOKEN not set, skipping webhook validation")
		return true
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.webhookToken)) == 1
}
