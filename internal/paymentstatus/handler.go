package paymentstatus

import (
	"fmt"
	"net/http"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/transport"
)

const (
	ActionClear       = "clear"
	ActionList        = "list"
	ActionTestSuccess = "test-success"
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

// GetStatus handles GET /api/payment-status?chargeId=
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	chargeID := r.URL.Query().Get("chargeId")
	if chargeID == "" {
		h.HandleError(w, apperrors.NewValidationFieldError("chargeId", "chargeId is required", apperrors.ErrCodeValidationFailed))
		return
	}

	view, err := h.Service.Get(r.Context(), chargeID)
	if err != nil {
		h.Logger.Error("GetStatus: service error", "error", err, "charge_id", chargeID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

// UpdateStatus handles POST /api/payment-status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body UpdateStatusRequest
	if appErr := h.DecodeJSON(w, r, &body); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	req, appErr := body.ToUpdate(SourceAPI)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	rec, err := h.Service.Update(r.Context(), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NewUpdateStatusResponse(rec))
}

// Admin handles PUT /api/payment-status?action=clear|list|test-success
func (h *Handler) Admin(w http.ResponseWriter, r *http.Request) {
	if !h.Service.AdminEnabled() {
		h.HandleError(w, apperrors.ErrAdminDisabled)
		return
	}

	switch action := r.URL.Query().Get("action"); action {
	case ActionClear:
		n, err := h.Service.Clear(r.Context())
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, ClearResponse{
			Success: true,
			Message: fmt.Sprintf("Cleared %d payment statuses", n),
		})

	case ActionList:
		records, err := h.Service.List(r.Context())
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		views := ToRecordViews(records)
		h.WriteJSON(w, http.StatusOK, ListResponse{
			Success:  true,
			Count:    len(views),
			Statuses: views,
		})

	case ActionTestSuccess:
		rec, err := h.Service.CreateTestSuccess(r.Context())
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, TestSuccessResponse{
			Success:  true,
			Message:  "Test payment status created",
			ChargeID: rec.ChargeID,
			Status:   rec.Status,
		})

	default:
		h.HandleError(w, apperrors.NewValidationError("Supported actions: clear, list, test-success", apperrors.ErrCodeInvalidAction))
	}
}
