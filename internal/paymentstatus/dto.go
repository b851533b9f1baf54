package paymentstatus

import (
	"encoding/json"
	"math"
	"strings"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
)

// StatusView is the GET /api/payment-status body. Timestamps are unix
// milliseconds. An expired view carries only the id, status, creation time
// and message.
type StatusView struct {
	ChargeID      string         `json:"chargeId"`
	Status        payment.Status `json:"status"`
	Timestamp     *int64         `json:"timestamp"`
	Amount        *int64         `json:"amount"`
	PaymentMethod *string        `json:"paymentMethod"`
	ReferenceID   *string        `json:"referenceId"`
	LastUpdated   *int64         `json:"lastUpdated"`
	Message       string         `json:"message,omitempty"`
}

func (v StatusView) MarshalJSON() ([]byte, error) {
	if v.Status == payment.StatusExpired && v.Message != "" {
		return json.Marshal(struct {
			ChargeID  string         `json:"chargeId"`
			Status    payment.Status `json:"status"`
			Timestamp *int64         `json:"timestamp"`
			Message   string         `json:"message"`
		}{v.ChargeID, v.Status, v.Timestamp, v.Message})
	}
	type plain StatusView
	return json.Marshal(plain(v))
}

func recordView(rec payment.Record) *StatusView {
	created := rec.CreatedAt.UnixMilli()
	updated := rec.LastUpdated.UnixMilli()
	return &StatusView{
		ChargeID:      rec.ChargeID,
		Status:        rec.Status,
		Timestamp:     &created,
		Amount:        rec.Amount,
		PaymentMethod: rec.PaymentMethod,
		ReferenceID:   rec.ReferenceID,
		LastUpdated:   &updated,
	}
}

func pendingView(chargeID string) *StatusView {
	return &StatusView{ChargeID: chargeID, Status: payment.StatusPending}
}

func expiredView(chargeID string, rec payment.Record) *StatusView {
	view := &StatusView{ChargeID: chargeID, Status: payment.StatusExpired, Message: ExpiredMessage}
	if !rec.CreatedAt.IsZero() {
		created := rec.CreatedAt.UnixMilli()
		view.Timestamp = &created
	}
	return view
}

// RecordView is one entry of the admin list.
type RecordView struct {
	ChargeID      string         `json:"chargeId"`
	Status        payment.Status `json:"status"`
	Timestamp     int64          `json:"timestamp"`
	Amount        *int64         `json:"amount,omitempty"`
	PaymentMethod *string        `json:"paymentMethod,omitempty"`
	ReferenceID   *string        `json:"referenceId,omitempty"`
	LastUpdated   int64          `json:"lastUpdated"`
}

func ToRecordViews(records []payment.Record) []RecordView {
	out := make([]RecordView, 0, len(records))
	for _, rec := range records {
		out = append(out, RecordView{
			ChargeID:      rec.ChargeID,
			Status:        rec.Status,
			Timestamp:     rec.CreatedAt.UnixMilli(),
			Amount:        rec.Amount,
			PaymentMethod: rec.PaymentMethod,
			ReferenceID:   rec.ReferenceID,
			LastUpdated:   rec.LastUpdated.UnixMilli(),
		})
	}
	return out
}

// UpdateStatusRequest is the POST body. Pointers tell an omitted field from
// an empty one.
type UpdateStatusRequest struct {
	ChargeID      *string  `json:"chargeId"`
	Status        *string  `json:"status"`
	Amount        *float64 `json:"amount"`
	PaymentMethod *string  `json:"paymentMethod"`
	ReferenceID   *string  `json:"referenceId"`
}

// ToUpdate checks presence and shape in the order clients have always seen
// the errors: chargeId, status, then the optional fields.
func (r UpdateStatusRequest) ToUpdate(source string) (UpdateRequest, *apperrors.AppError) {
	if r.ChargeID == nil || *r.ChargeID == "" {
		return UpdateRequest{}, apperrors.NewValidationFieldError("chargeId", "chargeId is required", apperrors.ErrCodeValidationFailed)
	}
	if r.Status == nil || *r.Status == "" {
		return UpdateRequest{}, apperrors.NewValidationFieldError("status", "status is required", apperrors.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(*r.ChargeID) == "" {
		return UpdateRequest{}, apperrors.NewValidationFieldError("chargeId", "chargeId must be a non-empty string", apperrors.ErrCodeInvalidChargeID)
	}

	req := UpdateRequest{
		ChargeID:      *r.ChargeID,
		Status:        payment.Status(*r.Status),
		PaymentMethod: r.PaymentMethod,
		ReferenceID:   r.ReferenceID,
		Source:        source,
	}

	if r.Amount != nil {
		a := *r.Amount
		if a < 0 || a != math.Trunc(a) || a > math.MaxInt64/2 {
			return UpdateRequest{}, apperrors.NewValidationFieldError("amount", "amount must be a non-negative whole number", apperrors.ErrCodeInvalidAmount)
		}
		v := int64(a)
		req.Amount = &v
	}

	return req, nil
}

type UpdateStatusResponse struct {
	Success     bool           `json:"success"`
	ChargeID    string         `json:"chargeId"`
	Status      payment.Status `json:"status"`
	Timestamp   int64          `json:"timestamp"`
	LastUpdated int64          `json:"lastUpdated"`
}

func NewUpdateStatusResponse(rec payment.Record) UpdateStatusResponse {
	return UpdateStatusResponse{
		Success:     true,
		ChargeID:    rec.ChargeID,
		Status:      rec.Status,
		Timestamp:   rec.CreatedAt.UnixMilli(),
		LastUpdated: rec.LastUpdated.UnixMilli(),
	}
}

type ClearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ListResponse struct {
	Success  bool         `json:"success"`
	Count    int          `json:"count"`
	Statuses []RecordView `json:"statuses"`
}

type TestSuccessResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	ChargeID string         `json:"chargeId"`
	Status   payment.Status `json:"status"`
}
