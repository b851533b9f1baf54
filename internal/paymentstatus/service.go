package paymentstatus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/core/common/validation"
	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/photobooth-payment/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/photobooth-payment/internal/core/events"
)

const (
	SourceAPI      = "api"
	SourceWebhook  = "webhook"
	SourceFallback = "gateway_lookup"
	SourceSeed     = "charge_created"
	SourceAdmin    = "admin"

	ExpiredMessage = "Payment has expired"
)

type StoreAPI interface {
	Get(chargeID string) (payment.Record, error)
	Set(chargeID string, patch payment.Patch) payment.Record
	SetIfAbsent(chargeID string, patch payment.Patch) (payment.Record, bool)
	Clear() int
	List() []payment.Record
	Now() time.Time
}

// ChargeLookup is the gateway lookup used when the store has nothing final.
type ChargeLookup interface {
	GetCharge(ctx context.Context, chargeID string) (*gatewaytypes.Charge, error)
}

type ServiceAPI interface {
	Get(ctx context.Context, chargeID string) (*StatusView, error)
	Update(ctx context.Context, req UpdateRequest) (payment.Record, error)
	Seed(ctx context.Context, req UpdateRequest) (payment.Record, bool, error)
	Clear(ctx context.Context) (int, error)
	List(ctx context.Context) ([]payment.Record, error)
	CreateTestSuccess(ctx context.Context) (payment.Record, error)
	AdminEnabled() bool
}

// UpdateRequest is one status write, from the API, a webhook or a seed.
type UpdateRequest struct {
	ChargeID      string
	Status        payment.Status
	Amount        *int64
	PaymentMethod *string
	ReferenceID   *string
	Source        string
}

type Service struct {
	store        StoreAPI
	lookup       ChargeLookup
	publisher    events.Publisher
	logger       *slog.Logger
	adminEnabled bool
}

type ServiceOption func(*Service)

// WithChargeLookup enables the gateway fallback for absent or pending records.
func WithChargeLookup(lookup ChargeLookup) ServiceOption {
	return func(s *Service) { s.lookup = lookup }
}

func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithAdmin toggles the clear, list and test-success actions.
func WithAdmin(enabled bool) ServiceOption {
	return func(s *Service) { s.adminEnabled = enabled }
}

func NewService(store StoreAPI, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:        store,
		logger:       logger,
		adminEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Get(ctx context.Context, chargeID string) (*StatusView, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, apperrors.NewValidationFieldError("chargeId", "chargeId must be a non-empty string", apperrors.ErrCodeInvalidChargeID)
	}

	rec, err := s.store.Get(chargeID)
	found := err == nil
	expired := errors.Is(err, ErrRecordExpired)
	if err != nil && !expired && !errors.Is(err, ErrRecordNotFound) {
		return nil, apperrors.NewInternalError("Failed to retrieve payment status", err)
	}

	if (!found && !expired) || rec.Status == payment.StatusPending {
		if settled, ok := s.settleFromGateway(ctx, chargeID); ok {
			rec, found, expired = settled, true, false
		}
	}

	switch {
	case expired:
		s.logger.Info("Get: payment status expired", "charge_id", chargeID)
		return expiredView(chargeID, rec), nil
	case !found:
		return pendingView(chargeID), nil
	}
	return recordView(rec), nil
}

// settleFromGateway asks the gateway for a final status and persists it.
// Lookup failures and non-final statuses leave the store untouched.
func (s *Service) settleFromGateway(ctx context.Context, chargeID string) (payment.Record, bool) {
	if s.lookup == nil {
		return payment.Record{}, false
	}

	charge, err := s.lookup.GetCharge(ctx, chargeID)
	if err != nil {
		s.logger.Debug("Get: gateway lookup skipped", "charge_id", chargeID, "error", err)
		return payment.Record{}, false
	}

	status := MapGatewayStatus(charge.NormalizedStatus())
	if status == payment.StatusPending {
		return payment.Record{}, false
	}

	req := UpdateRequest{
		ChargeID: chargeID,
		Status:   status,
		Amount:   charge.Amount,
		Source:   SourceFallback,
	}
	if name := charge.PaymentMethod.Name(); name != "" {
		req.PaymentMethod = &name
	}
	if charge.ReferenceID != "" {
		ref := charge.ReferenceID
		req.ReferenceID = &ref
	}

	rec := s.write(ctx, req)
	s.logger.Info("Get: status settled from gateway", "charge_id", chargeID, "status", status)
	return rec, true
}

// MapGatewayStatus folds gateway lifecycle values onto local statuses.
// Anything not final reads as pending.
func MapGatewayStatus(status gatewaytypes.ChargeStatus) payment.Status {
	switch gatewaytypes.ChargeStatus(strings.ToUpper(string(status))) {
	case gatewaytypes.ChargeStatusSucceeded:
		return payment.StatusSucceeded
	case gatewaytypes.ChargeStatusFailed:
		return payment.StatusFailed
	case gatewaytypes.ChargeStatusExpired:
		return payment.StatusExpired
	default:
		return payment.StatusPending
	}
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (payment.Record, error) {
	if appErr := validateUpdate(req); appErr != nil {
		s.logger.Warn("Update: validation failed", "charge_id", req.ChargeID, "source", req.Source, "error", appErr.Error())
		return payment.Record{}, appErr
	}
	return s.write(ctx, req), nil
}

func (s *Service) write(ctx context.Context, req UpdateRequest) payment.Record {
	var previous string
	if prev, err := s.store.Get(req.ChargeID); err == nil {
		previous = string(prev.Status)
	}

	rec := s.store.Set(req.ChargeID, patchOf(req))

	s.logger.Info("Update: payment status updated",
		"charge_id", req.ChargeID,
		"status", rec.Status,
		"previous_status", previous,
		"source", req.Source)

	s.publish(ctx, events.NewPaymentStatusChangedEvent(req.ChargeID, previous, string(rec.Status), req.Source))
	return rec
}

// Seed writes a pending record unless one already exists, so a late seed never
// overwrites a status a webhook already delivered.
func (s *Service) Seed(ctx context.Context, req UpdateRequest) (payment.Record, bool, error) {
	if req.Status == "" {
		req.Status = payment.StatusPending
	}
	if req.Source == "" {
		req.Source = SourceSeed
	}
	if appErr := validateUpdate(req); appErr != nil {
		return payment.Record{}, false, appErr
	}

	rec, created := s.store.SetIfAbsent(req.ChargeID, patchOf(req))
	if created {
		s.logger.Info("Seed: pending status recorded", "charge_id", req.ChargeID)
		s.publish(ctx, events.NewPaymentStatusChangedEvent(req.ChargeID, "", string(rec.Status), req.Source))
	} else {
		s.logger.Debug("Seed: status already present", "charge_id", req.ChargeID, "status", rec.Status)
	}
	return rec, created, nil
}

func (s *Service) AdminEnabled() bool {
	return s.adminEnabled
}

func (s *Service) Clear(ctx context.Context) (int, error) {
	if !s.adminEnabled {
		return 0, apperrors.ErrAdminDisabled
	}
	n := s.store.Clear()
	s.logger.Info("Clear: payment statuses cleared", "count", n)
	return n, nil
}

func (s *Service) List(ctx context.Context) ([]payment.Record, error) {
	if !s.adminEnabled {
		return nil, apperrors.ErrAdminDisabled
	}
	return s.store.List(), nil
}

// CreateTestSuccess stores a succeeded record under a fresh test_<ms> id.
func (s *Service) CreateTestSuccess(ctx context.Context) (payment.Record, error) {
	if !s.adminEnabled {
		return payment.Record{}, apperrors.ErrAdminDisabled
	}

	amount := int64(100)
	method := payment.MethodPromptPay
	ref := "test_payment"
	req := UpdateRequest{
		ChargeID:      fmt.Sprintf("test_%d", s.store.Now().UnixMilli()),
		Status:        payment.StatusSucceeded,
		Amount:        &amount,
		PaymentMethod: &method,
		ReferenceID:   &ref,
		Source:        SourceAdmin,
	}
	return s.write(ctx, req), nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish status event", "event_id", event.EventID(), "error", err)
	}
}

func validateUpdate(req UpdateRequest) *apperrors.AppError {
	validator := validation.NewValidator()
	validator.Field("chargeId", req.ChargeID).
		Required().
		MaxLength(256)
	validator.Field("status", string(req.Status)).
		Required().
		OneOf(payment.StatusValues(), apperrors.ErrCodeInvalidStatus)
	validator.Field("amount", req.Amount).
		MinInt(0, apperrors.ErrCodeInvalidAmount)
	return validator.Validate()
}

func patchOf(req UpdateRequest) payment.Patch {
	return payment.Patch{
		Status:        req.Status,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		ReferenceID:   req.ReferenceID,
	}
}
