package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cdpi-pass/internal/auth"
	"cdpi-pass/internal/courtesy"
	"cdpi-pass/internal/errs"
	"cdpi-pass/internal/logger"
	"cdpi-pass/internal/utils"
)

type Handler struct {
	Service *courtesy.CourtesyService
	Logger  *logger.Logger
}

func NewHandler(service *courtesy.CourtesyService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errs.HTTPStatus(err), utils.ErrorResponse("request failed", errs.PublicMessage(err)))
}

// CreateLink issues a courtesy or discount code. Staff-only route.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req courtesy.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateLink: failed to decode request body: %v", err))
		writeError(w, errs.New(errs.KindInvalid, "invalid request body"))
		return
	}

	link, err := h.Service.CreateLink(r.Context(), user.ID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateLink: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("courtesy link created", map[string]interface{}{
		"link":       link,
		"redeem_url": h.Service.RedeemURL(link.Code),
	}))
}

// GetLink lets the public redemption page look up a code before the
// attendee fills the form.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	link, event, err := h.Service.GetLink(r.Context(), code)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("GetLink: code %s: %v", code, err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("link found", map[string]interface{}{
		"code":      link.Code,
		"remaining": link.Remaining(),
		"event":     event,
	}))
}

// Redeem converts a courtesy code into a free ticket. Public route.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req courtesy.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Redeem: failed to decode request body: %v", err))
		writeError(w, errs.New(errs.KindInvalid, "invalid request body"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Redeem: code=%s", req.Code))

	result, err := h.Service.Redeem(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Redeem: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("courtesy redeemed", result))
}
