package webhook

import (
	"context"
	"io"
	"net/http"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
	"github.com/frahmantamala/photobooth-payment/internal/metrics"
	"github.com/frahmantamala/photobooth-payment/internal/paymentstatus"
	"github.com/frahmantamala/photobooth-payment/internal/transport"
)

const (
	EndpointPrimary = "primary"
	EndpointBackup  = "backup"
	EndpointStaging = "staging"

	maxBodySize = 1 << 20

	unsupportedMessage = "Event type not supported"
)

// StatusUpdater is the write side of the payment status service.
type StatusUpdater interface {
	Update(ctx context.Context, req paymentstatus.UpdateRequest) (payment.Record, error)
}

// Receiver accepts gateway events for one endpoint. All webhook routes share
// this type and differ only by name and secret.
type Receiver struct {
	*transport.BaseHandler
	name     string
	secret   string
	verifier *Verifier
	statuses StatusUpdater
}

type ReceiverOption func(*Receiver)

func WithVerifier(v *Verifier) ReceiverOption {
	return func(r *Receiver) {
		if v != nil {
			r.verifier = v
		}
	}
}

func NewReceiver(baseHandler *transport.BaseHandler, name, secret string, statuses StatusUpdater, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		BaseHandler: baseHandler,
		name:        name,
		secret:      secret,
		verifier:    defaultVerifier,
		statuses:    statuses,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Receiver) Name() string {
	return r.name
}

type AckResponse struct {
	Received      bool   `json:"received"`
	Event         string `json:"event"`
	ChargeID      string `json:"chargeId,omitempty"`
	StatusUpdated *bool  `json:"statusUpdated,omitempty"`
	Message       string `json:"message,omitempty"`
	Endpoint      string `json:"endpoint"`
}

// ServeHTTP handles POST on the receiver's route.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	lg := r.LoggerFor(req.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodySize))
	if err != nil {
		r.reject(w, apperrors.NewValidationError("Invalid payload", apperrors.ErrCodeInvalidJSON).
			WithDetails("Webhook payload could not be read"))
		return
	}

	if r.secret == "" {
		lg.Warn("Webhook: signature verification skipped, no secret configured", "endpoint", r.name)
	} else {
		result := r.verify(body, req.Header)
		if !result.Valid {
			lg.Warn("Webhook: invalid signature", "endpoint", r.name, "reason", result.Reason)
			r.reject(w, apperrors.NewUnauthorizedError("Invalid signature", apperrors.ErrCodeInvalidSignature).
				WithDetails(string(result.Reason)))
			return
		}
	}

	env, err := DecodeEnvelope(body)
	if err != nil {
		r.reject(w, apperrors.NewValidationError("Invalid payload", apperrors.ErrCodeInvalidJSON).
			WithDetails("Webhook payload is not valid JSON"))
		return
	}

	ev, err := env.Event()
	if err != nil {
		lg.Info("Webhook: unsupported event", "endpoint", r.name, "event", env.Type)
		metrics.WebhookRequest(r.name, metrics.ResultSuccess)
		r.WriteJSON(w, http.StatusOK, AckResponse{
			Received: true,
			Event:    env.Type,
			Message:  unsupportedMessage,
			Endpoint: r.name,
		})
		return
	}

	transition := Resolve(ev)
	updated := r.apply(req.Context(), transition)

	metrics.WebhookRequest(r.name, metrics.ResultSuccess)
	r.WriteJSON(w, http.StatusOK, AckResponse{
		Received:      true,
		Event:         ev.Type(),
		ChargeID:      transition.ChargeID,
		StatusUpdated: &updated,
		Endpoint:      r.name,
	})
}

// verify requires both headers once a secret is configured.
func (r *Receiver) verify(body []byte, header http.Header) Result {
	signature := header.Get(SignatureHeader)
	timestamp := header.Get(TimestampHeader)
	if signature == "" || timestamp == "" {
		return Result{Reason: ReasonMissingHeaders}
	}
	return r.verifier.Verify(body, signature, timestamp, r.secret)
}

func (r *Receiver) apply(ctx context.Context, t Transition) bool {
	req := paymentstatus.UpdateRequest{
		ChargeID: t.ChargeID,
		Status:   t.Status,
		Amount:   t.Data.AmountValue(),
		Source:   paymentstatus.SourceWebhook,
	}
	if method := t.Data.MethodType(); method != "" {
		req.PaymentMethod = &method
	}
	if ref := t.Data.ReferenceID; ref != "" {
		req.ReferenceID = &ref
	}

	if _, err := r.statuses.Update(ctx, req); err != nil {
		r.LoggerFor(ctx).Error("Webhook: failed to update payment status",
			"endpoint", r.name,
			"charge_id", t.ChargeID,
			"status", t.Status,
			"error", err)
		return false
	}

	r.LoggerFor(ctx).Info("Webhook: payment status updated",
		"endpoint", r.name,
		"charge_id", t.ChargeID,
		"status", t.Status)
	return true
}

func (r *Receiver) reject(w http.ResponseWriter, appErr *apperrors.AppError) {
	metrics.WebhookRequest(r.name, metrics.ResultError)
	r.HandleError(w, appErr)
}
