package payment

import (
	"net/http"

	"github.com/frahmantamala/photobooth-payment/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// CreateCharge handles POST /api/payment
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var dto CreateChargeDTO
	if appErr := h.DecodeJSON(w, r, &dto); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	req, appErr := dto.ToChargeRequest()
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	result, err := h.Service.CreateCharge(r.Context(), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}
