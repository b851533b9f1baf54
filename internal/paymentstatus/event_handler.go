package paymentstatus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/photobooth-payment/internal/core/events"
	"github.com/frahmantamala/photobooth-payment/internal/metrics"
)

type EventHandler struct {
	service ServiceAPI
	logger  *slog.Logger
}

func NewEventHandler(service ServiceAPI, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChargeCreated seeds a pending record for a freshly created charge.
func (h *EventHandler) HandleChargeCreated(ctx context.Context, event events.Event) error {
	created, ok := event.(*events.ChargeCreatedEvent)
	if !ok {
		h.logger.Error("invalid event type for charge created handler", "event_type", event.EventType())
		return fmt.Errorf("expected ChargeCreatedEvent, got %T", event)
	}

	amount := created.Amount
	method := created.PaymentMethod
	ref := created.ReferenceID
	req := UpdateRequest{
		ChargeID:      created.ChargeID,
		Amount:        &amount,
		PaymentMethod: &method,
		ReferenceID:   &ref,
		Source:        SourceSeed,
	}

	if _, _, err := h.service.Seed(ctx, req); err != nil {
		return fmt.Errorf("seed pending status for charge %s: %w", created.ChargeID, err)
	}
	return nil
}

// HandleStatusChanged keeps the audit trail of status writes and counts
// transitions.
func (h *EventHandler) HandleStatusChanged(ctx context.Context, event events.Event) error {
	changed, ok := event.(*events.PaymentStatusChangedEvent)
	if !ok {
		h.logger.Error("invalid event type for status changed handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentStatusChangedEvent, got %T", event)
	}

	metrics.StatusTransition(changed.PreviousStatus, changed.Status, changed.Source)
	h.logger.Info("payment status changed",
		"event_id", changed.EventID(),
		"charge_id", changed.ChargeID,
		"previous_status", changed.PreviousStatus,
		"status", changed.Status,
		"source", changed.Source)
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeChargeCreated, h.HandleChargeCreated)
	eventBus.Subscribe(events.EventTypePaymentStatusChanged, h.HandleStatusChanged)

	h.logger.Debug("payment status event handlers registered",
		"handlers", []string{events.EventTypeChargeCreated, events.EventTypePaymentStatusChanged})
}
