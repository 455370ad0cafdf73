package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cdpi-pass/internal/auth"
	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/tickets"
	"cdpi-pass/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, log *logger.Logger) *Handler {
	return &Handler{TicketService: ticketService, Logger: log}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), utils.ErrorResponse("request failed", errs.PublicMessage(err)))
}

// Verify handles a door scan. Staff-only route.
// Expected POST request body: {"qr_payload": "QR-..."}
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRPayload string `json:"qr_payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Verify: failed to decode request body: %v", err))
		writeError(w, errs.New(errs.KindInvalid, "invalid request body"))
		return
	}

	result, err := h.TicketService.VerifyAtDoor(r.Context(), req.QRPayload)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Verify: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("ticket admitted", result))
}

func (h *Handler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	orderID := chi.URLParam(r, "orderId")

	ticketList, err := h.TicketService.ListByOrder(r.Context(), user, orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListByOrder: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("tickets found", ticketList))
}

// Reset clears the used flag on an order's tickets. Staff-only route.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("Reset: orderId=%s", orderID))

	if err := h.TicketService.ResetOrderTickets(r.Context(), orderID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reset: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("tickets reset", nil))
}
