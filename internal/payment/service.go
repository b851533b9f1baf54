package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/core/common/validation"
	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/photobooth-payment/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/photobooth-payment/internal/core/events"
	"github.com/frahmantamala/photobooth-payment/internal/paymentgateway"
)

const (
	DefaultMinAmount     = 100
	DefaultMaxAmount     = 1000000
	DefaultAmount        = 100
	DefaultCurrency      = "THB"
	DefaultQRExpiry      = 30 * time.Minute
	DefaultPublicBaseURL = "http://localhost:3000"

	returnPath = "/payment-success"
)

// Gateway creates charges upstream. *paymentgateway.Client satisfies it.
type Gateway interface {
	CreateCharge(ctx context.Context, req *gatewaytypes.ChargeRequest) (*gatewaytypes.ChargeResponse, error)
}

type ServiceAPI interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// ChargeRequest is a kiosk's request for a new QR charge. A nil amount takes
// the configured default.
type ChargeRequest struct {
	PaymentMethod string
	Amount        *int64
	ReferenceID   string
}

type Config struct {
	MinAmount     int64
	MaxAmount     int64
	DefaultAmount int64
	Currency      string
	QRExpiry      time.Duration
	PublicBaseURL string
}

func (c Config) withDefaults() Config {
	if c.MinAmount <= 0 {
		c.MinAmount = DefaultMinAmount
	}
	if c.MaxAmount <= 0 {
		c.MaxAmount = DefaultMaxAmount
	}
	if c.DefaultAmount <= 0 {
		c.DefaultAmount = DefaultAmount
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.QRExpiry <= 0 {
		c.QRExpiry = DefaultQRExpiry
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = DefaultPublicBaseURL
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	return c
}

type Service struct {
	gateway   Gateway
	publisher events.Publisher
	config    Config
	now       func() time.Time
	logger    *slog.Logger
}

type ServiceOption func(*Service)

func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(gateway Gateway, config Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		gateway: gateway,
		config:  config.withDefaults(),
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCharge validates the request, creates the charge upstream and
// announces it so a pending status can be seeded.
func (s *Service) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	amount := s.config.DefaultAmount
	if req.Amount != nil {
		amount = *req.Amount
	}

	if appErr := s.validate(req.PaymentMethod, amount); appErr != nil {
		s.logger.Warn("CreateCharge: validation failed", "error", appErr.Error(), "payment_method", req.PaymentMethod)
		return nil, appErr
	}

	referenceID := req.ReferenceID
	if referenceID == "" {
		referenceID = s.newReferenceID()
	}

	chargeReq := &gatewaytypes.ChargeRequest{
		Amount:        amount,
		Currency:      s.config.Currency,
		PaymentMethod: s.methodPayload(req.PaymentMethod),
		ReferenceID:   referenceID,
		ReturnURL:     s.config.PublicBaseURL + returnPath,
	}

	resp, err := s.gateway.CreateCharge(ctx, chargeReq)
	if err != nil {
		return nil, mapGatewayError(err)
	}

	s.logger.Info("CreateCharge: charge created",
		"charge_id", resp.ChargeID,
		"payment_method", req.PaymentMethod,
		"amount", amount,
		"reference_id", referenceID)

	if s.publisher != nil {
		event := events.NewChargeCreatedEvent(resp.ChargeID, amount, req.PaymentMethod, referenceID)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("CreateCharge: failed to publish charge created event", "charge_id", resp.ChargeID, "error", err)
		}
	}

	return newChargeResult(resp, req.PaymentMethod, amount, referenceID), nil
}

func (s *Service) validate(method string, amount int64) *apperrors.AppError {
	validator := validation.NewValidator()
	validator.Field("paymentMethod", method).
		Required().
		OneOf(payment.MethodValues(), apperrors.ErrCodeInvalidPaymentMethod)
	validator.Field("amount", amount).
		MinInt(s.config.MinAmount, apperrors.ErrCodeAmountTooLow).
		MaxInt(s.config.MaxAmount, apperrors.ErrCodeAmountTooHigh)
	return validator.Validate()
}

func (s *Service) methodPayload(method string) gatewaytypes.PaymentMethod {
	if method == payment.MethodWeChat {
		return gatewaytypes.PaymentMethod{
			PaymentMethodType: gatewaytypes.MethodTypeWeChatPay,
			WeChatPay:         &gatewaytypes.WeChatPay{},
		}
	}
	return gatewaytypes.PaymentMethod{
		PaymentMethodType: gatewaytypes.MethodTypePromptPay,
		QRPromptPay: &gatewaytypes.QRPromptPay{
			ExpiresAt: s.now().Add(s.config.QRExpiry).UTC().Format(time.RFC3339),
		},
	}
}

// newReferenceID returns photobooth_<unix ms>_<9 random chars>.
func (s *Service) newReferenceID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("photobooth_%d_%s", s.now().UnixMilli(), suffix)
}

func mapGatewayError(err error) error {
	var apiErr *paymentgateway.APIError
	switch {
	case errors.Is(err, paymentgateway.ErrNotConfigured):
		return apperrors.NewMisconfigurationError("Payment service not configured").WithDetails("Missing API credentials")
	case errors.As(err, &apiErr):
		return mapAPIError(apiErr)
	case errors.Is(err, paymentgateway.ErrTimeout):
		return apperrors.NewUpstreamTimeoutError("Payment service timeout", err).WithDetails("Payment service took too long to respond")
	case errors.Is(err, paymentgateway.ErrUnavailable):
		return apperrors.NewUpstreamUnavailableError("Payment service unavailable", err).WithDetails("Unable to connect to payment service")
	case errors.Is(err, paymentgateway.ErrMissingChargeID):
		return apperrors.NewProtocolViolationError("Invalid response from payment service", err).WithDetails("Missing charge ID")
	case errors.Is(err, paymentgateway.ErrInvalidResponse):
		return apperrors.NewProtocolViolationError("Invalid response from payment service", err).WithDetails("Payment service returned invalid JSON")
	}
	return apperrors.NewInternalError("Internal server error", err)
}

func mapAPIError(apiErr *paymentgateway.APIError) *apperrors.AppError {
	detail := apiErr.Detail
	if detail == nil || detail == "" {
		detail = apiErr.Message
	}

	switch apiErr.Kind {
	case paymentgateway.KindUnauthenticated:
		return apperrors.NewUnauthorizedError("Authentication failed", apperrors.ErrCodeGatewayAuth).WithDetails(apiErr.Message)
	case paymentgateway.KindInvalidRequest:
		return apperrors.NewUpstreamRejectedError(http.StatusBadRequest, "Invalid payment request", apperrors.ErrCodeGatewayRejected).WithDetails(detail)
	}
	return apperrors.NewUpstreamRejectedError(apiErr.StatusCode, "Payment creation failed", apperrors.ErrCodeGatewayRejected).WithDetails(detail)
}
