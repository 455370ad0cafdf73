package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cdpi-pass/internal/auth"
	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/models"
	"cdpi-pass/internal/order"
	"cdpi-pass/internal/payment"
	"cdpi-pass/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Reconciler   *payment.Reconciler
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, reconciler *payment.Reconciler, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Reconciler:   reconciler,
		Logger:       log,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), utils.ErrorResponse("request failed", errs.PublicMessage(err)))
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		writeError(w, errs.New(errs.KindInvalid, "invalid request body"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: event=%s method=%s qty=%d", req.EventID, req.PaymentMethod, req.Quantity))

	result, err := h.OrderService.CreateOrder(r.Context(), *user, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("order created", result))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.GetOrder(r.Context(), *user, orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("order found", orderData))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	orders, err := h.OrderService.ListOrders(r.Context(), *user)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListOrders: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("orders found", orders))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("CancelOrder: orderId=%s", orderID))

	if err := h.OrderService.CancelOrder(r.Context(), *user, orderID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelOrder: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("order cancelled", nil))
}

// CheckStatus polls the payment provider for the order's current
// status and applies any transition before responding.
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	orderID := chi.URLParam(r, "orderId")

	orderData, err := h.OrderService.GetOrder(r.Context(), *user, orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	providerStatus, err := h.Reconciler.CheckOrder(r.Context(), orderData)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckStatus: %v", err))
		writeError(w, err)
		return
	}

	// Re-read so the response reflects the transition just applied.
	orderData, err = h.OrderService.GetOrder(r.Context(), *user, orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("status checked", map[string]interface{}{
		"order":           orderData,
		"provider_status": providerStatus,
	}))
}

// Webhook receives Asaas payment notifications. Unauthenticated route;
// the provider token header is the credential.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload payment.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to decode payload: %v", err))
		writeError(w, errs.New(errs.KindInvalid, "invalid webhook payload"))
		return
	}

	token := r.Header.Get("asaas-access-token")
	result, err := h.Reconciler.HandleWebhook(r.Context(), token, payload)
	if err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Event %s rejected: %v", payload.Event, err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse(result.Message, result))
}
