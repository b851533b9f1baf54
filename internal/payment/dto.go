package payment

import (
	"math"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	gatewaytypes "github.com/frahmantamala/photobooth-payment/internal/core/datamodel/paymentgateway"
)

// CreateChargeDTO is the POST /api/payment body.
type CreateChargeDTO struct {
	PaymentMethod string   `json:"paymentMethod"`
	Amount        *float64 `json:"amount"`
	ReferenceID   string   `json:"referenceId"`
}

func (d CreateChargeDTO) ToChargeRequest() (ChargeRequest, *apperrors.AppError) {
	req := ChargeRequest{
		PaymentMethod: d.PaymentMethod,
		ReferenceID:   d.ReferenceID,
	}
	if d.Amount != nil {
		a := *d.Amount
		if a != math.Trunc(a) || math.Abs(a) > math.MaxInt64/2 {
			return ChargeRequest{}, apperrors.NewValidationFieldError("amount", "amount must be a whole number of satang", apperrors.ErrCodeInvalidAmount)
		}
		v := int64(a)
		req.Amount = &v
	}
	return req, nil
}

// ChargeResult is what the kiosk needs to render the QR and start polling.
type ChargeResult struct {
	Success        bool    `json:"success"`
	ChargeID       string  `json:"chargeId"`
	PaymentMethod  string  `json:"paymentMethod"`
	Amount         int64   `json:"amount"`
	QRCode         *string `json:"qrCode"`
	QRExpiry       *string `json:"qrExpiry"`
	RedirectURL    *string `json:"redirectUrl"`
	ActionRequired string  `json:"actionRequired"`
	ReferenceID    string  `json:"referenceId"`
}

func newChargeResult(resp *gatewaytypes.ChargeResponse, method string, amount int64, referenceID string) *ChargeResult {
	result := &ChargeResult{
		Success:        true,
		ChargeID:       resp.ChargeID,
		PaymentMethod:  method,
		Amount:         amount,
		ActionRequired: resp.ActionRequired,
		ReferenceID:    referenceID,
	}
	if img := resp.EncodedImage; img != nil {
		result.QRCode = nonEmpty(img.ImageBase64Encoded)
		result.QRExpiry = nonEmpty(img.Expiry)
	}
	if resp.Redirect != nil {
		result.RedirectURL = nonEmpty(resp.Redirect.RedirectURL)
	}
	return result
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
