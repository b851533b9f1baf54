package webhook

import (
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/transport"
)

const previewLength = 100

// SamplePayload is the event GET /api/webhook/test?action=generate signs.
const SamplePayload = `{"type":"charge.succeeded","data":{"chargeId":"test_charge_123","amount":100,"paymentMethod":{"type":"promptpay"},"referenceId":"test_ref_123"}}`

// DebugHandler serves /api/webhook/test. It verifies against the primary
// secret and never touches the status store.
type DebugHandler struct {
	*transport.BaseHandler
	secret   string
	verifier *Verifier
}

func NewDebugHandler(baseHandler *transport.BaseHandler, secret string, verifier *Verifier) *DebugHandler {
	if verifier == nil {
		verifier = defaultVerifier
	}
	return &DebugHandler{
		BaseHandler: baseHandler,
		secret:      secret,
		verifier:    verifier,
	}
}

type TimestampCheck struct {
	Now       int64 `json:"now"`
	Webhook   int64 `json:"webhookTimestamp"`
	Diff      int64 `json:"timeDiff"`
	Tolerance int64 `json:"tolerance"`
	Valid     bool  `json:"isValid"`
}

type SignatureCheck struct {
	Received string `json:"received"`
	Expected string `json:"expected"`
	Valid    bool   `json:"isValid"`
}

type PayloadInfo struct {
	Length  int    `json:"length"`
	Preview string `json:"preview"`
}

type Diagnostics struct {
	Reason    Reason         `json:"reason,omitempty"`
	Timestamp TimestampCheck `json:"timestamp"`
	Signature SignatureCheck `json:"signature"`
	Payload   PayloadInfo    `json:"payload"`
}

type VerificationResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	Verification Diagnostics `json:"verification"`
}

type MissingHeadersResponse struct {
	Error    string            `json:"error"`
	Details  map[string]string `json:"details"`
	Required map[string]string `json:"required"`
}

type SampleResponse struct {
	Payload   string            `json:"payload"`
	Timestamp string            `json:"timestamp"`
	Signature string            `json:"signature"`
	Headers   map[string]string `json:"headers"`
}

type IndexResponse struct {
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

// Verify handles POST /api/webhook/test
func (h *DebugHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		h.HandleError(w, apperrors.NewMisconfigurationError("Webhook secret is not configured"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	timestamp := r.Header.Get(TimestampHeader)
	if signature == "" || timestamp == "" {
		h.WriteJSON(w, http.StatusBadRequest, MissingHeadersResponse{
			Error: "Missing headers",
			Details: map[string]string{
				"signature": presence(signature),
				"timestamp": presence(timestamp),
			},
			Required: map[string]string{
				"signature": SignatureHeader,
				"timestamp": TimestampHeader,
			},
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		h.HandleError(w, apperrors.NewValidationError("Invalid payload", apperrors.ErrCodeInvalidJSON))
		return
	}

	result := h.verifier.Verify(body, signature, timestamp, h.secret)
	diag := h.diagnose(body, signature, timestamp)
	diag.Reason = result.Reason

	h.Logger.Info("WebhookTest: signature checked", "valid", result.Valid, "reason", result.Reason)

	if !result.Valid {
		h.WriteJSON(w, http.StatusUnauthorized, VerificationResponse{
			Message:      "Webhook signature verification failed",
			Verification: diag,
		})
		return
	}
	h.WriteJSON(w, http.StatusOK, VerificationResponse{
		Success:      true,
		Message:      "Webhook signature verified successfully",
		Verification: diag,
	})
}

// Generate handles GET /api/webhook/test. With action=generate it returns a
// freshly signed sample event.
func (h *DebugHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("action") != "generate" {
		h.WriteJSON(w, http.StatusOK, IndexResponse{
			Message: "Webhook Test Endpoint",
			Endpoints: map[string]string{
				"POST /api/webhook/test":                "Test webhook signature verification",
				"GET /api/webhook/test?action=generate": "Generate test webhook data",
			},
		})
		return
	}

	if h.secret == "" {
		h.HandleError(w, apperrors.NewMisconfigurationError("Webhook secret is not configured"))
		return
	}

	signature, timestamp := h.verifier.SignNow([]byte(SamplePayload), h.secret)
	h.WriteJSON(w, http.StatusOK, SampleResponse{
		Payload:   SamplePayload,
		Timestamp: timestamp,
		Signature: signature,
		Headers: map[string]string{
			SignatureHeader: signature,
			TimestampHeader: timestamp,
		},
	})
}

func (h *DebugHandler) diagnose(body []byte, signature, timestamp string) Diagnostics {
	now := h.verifier.Now().Unix()
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	tolerance := int64(h.verifier.Tolerance().Seconds())

	check := TimestampCheck{Now: now, Webhook: ts, Tolerance: tolerance}
	if err == nil {
		check.Diff = now - ts
		if check.Diff < 0 {
			check.Diff = -check.Diff
		}
		check.Valid = check.Diff <= tolerance
	}

	received := strings.ToLower(ExtractSignature(signature))
	expected := Sign(body, timestamp, h.secret)
	sigValid := received == expected
	if !sigValid {
		if decoded, ok := decodeBase64Secret(h.secret); ok {
			if alt := hex.EncodeToString(digest(decoded, timestamp, body)); alt == received {
				expected, sigValid = alt, true
			}
		}
	}

	preview := string(body)
	if len(preview) > previewLength {
		preview = preview[:previewLength] + "..."
	}

	return Diagnostics{
		Timestamp: check,
		Signature: SignatureCheck{Received: received, Expected: expected, Valid: sigValid},
		Payload:   PayloadInfo{Length: len(body), Preview: preview},
	}
}

func presence(v string) string {
	if v == "" {
		return "missing"
	}
	return "present"
}
