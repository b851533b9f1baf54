package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeChargeCreated        = "charge.created"
	EventTypePaymentStatusChanged = "payment.status_changed"
)

type ChargeCreatedEvent struct {
	BaseEvent
	ChargeID      string `json:"charge_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	ReferenceID   string `json:"reference_id"`
}

func NewChargeCreatedEvent(chargeID string, amount int64, paymentMethod, referenceID string) *ChargeCreatedEvent {
	return &ChargeCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeChargeCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"charge_id":      chargeID,
				"amount":         amount,
				"payment_method": paymentMethod,
				"reference_id":   referenceID,
			},
		},
		ChargeID:      chargeID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		ReferenceID:   referenceID,
	}
}

// PaymentStatusChangedEvent is published after every accepted status write,
// whichever path produced it.
type PaymentStatusChangedEvent struct {
	BaseEvent
	ChargeID       string `json:"charge_id"`
	PreviousStatus string `json:"previous_status,omitempty"`
	Status         string `json:"status"`
	Source         string `json:"source"`
}

func NewPaymentStatusChangedEvent(chargeID, previousStatus, status, source string) *PaymentStatusChangedEvent {
	return &PaymentStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentStatusChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"charge_id":       chargeID,
				"previous_status": previousStatus,
				"status":          status,
				"source":          source,
			},
		},
		ChargeID:       chargeID,
		PreviousStatus: previousStatus,
		Status:         status,
		Source:         source,
	}
}
