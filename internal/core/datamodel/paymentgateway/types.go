package paymentgateway

import "strings"

const (
	MethodTypePromptPay = "QR_PROMPT_PAY"
	MethodTypeWeChatPay = "WECHAT_PAY"
)

// ChargeStatus is the gateway-side lifecycle value returned by charge lookups.
type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "SUCCEEDED"
	ChargeStatusFailed    ChargeStatus = "FAILED"
	ChargeStatusExpired   ChargeStatus = "EXPIRED"
)

type QRPromptPay struct {
	ExpiresAt string `json:"expiresAt"`
}

type WeChatPay struct{}

type PaymentMethod struct {
	PaymentMethodType string       `json:"paymentMethodType"`
	QRPromptPay       *QRPromptPay `json:"qrPromptPay,omitempty"`
	WeChatPay         *WeChatPay   `json:"weChatPay,omitempty"`
}

type ChargeRequest struct {
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	ReferenceID   string        `json:"referenceId"`
	ReturnURL     string        `json:"returnUrl"`
}

type EncodedImage struct {
	ImageBase64Encoded string `json:"imageBase64Encoded"`
	Expiry             string `json:"expiry"`
}

type Redirect struct {
	RedirectURL string `json:"redirectUrl"`
}

type ChargeResponse struct {
	ChargeID       string        `json:"chargeId"`
	ActionRequired string        `json:"actionRequired"`
	EncodedImage   *EncodedImage `json:"encodedImage,omitempty"`
	Redirect       *Redirect     `json:"redirect,omitempty"`
	Error          interface{}   `json:"error,omitempty"`
}

type ChargePaymentMethod struct {
	PaymentMethodType string `json:"paymentMethodType"`
	Type              string `json:"type"`
}

// Name returns whichever method label the gateway sent.
func (m *ChargePaymentMethod) Name() string {
	if m == nil {
		return ""
	}
	if m.Type != "" {
		return m.Type
	}
	return m.PaymentMethodType
}

// Charge is the subset of GET /api/v1/charges/{id} the relay consumes.
type Charge struct {
	ChargeID      string               `json:"chargeId"`
	Status        ChargeStatus         `json:"status"`
	Amount        *int64               `json:"amount,omitempty"`
	Currency      string               `json:"currency,omitempty"`
	ReferenceID   string               `json:"referenceId,omitempty"`
	PaymentMethod *ChargePaymentMethod `json:"paymentMethod,omitempty"`
}

// NormalizedStatus upper-cases the gateway status so lookups tolerate either
// casing.
func (c *Charge) NormalizedStatus() ChargeStatus {
	return ChargeStatus(strings.ToUpper(string(c.Status)))
}

// ErrorBody is the error envelope the gateway returns on non-2xx replies.
type ErrorBody struct {
	Error interface{} `json:"error,omitempty"`
}
