package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
)

const (
	TypeChargeSucceeded    = "charge.succeeded"
	TypeChargeFailed       = "charge.failed"
	TypeChargeExpired      = "charge.expired"
	TypePaymentLinkPaid    = "payment_link.paid"
	TypePaymentLinkExpired = "payment_link.expired"
)

var (
	ErrMalformedPayload = errors.New("webhook payload is not valid JSON")
	ErrUnsupportedEvent = errors.New("event type not supported")
)

// SupportedTypes lists the gateway events that move a charge.
func SupportedTypes() []string {
	return []string{
		TypeChargeSucceeded,
		TypeChargeFailed,
		TypeChargeExpired,
		TypePaymentLinkPaid,
		TypePaymentLinkExpired,
	}
}

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type MethodRef struct {
	Type string `json:"type"`
}

// ChargeData is the data block shared by charge and payment link events.
type ChargeData struct {
	ChargeID      string      `json:"chargeId"`
	ID            string      `json:"id"`
	Amount        json.Number `json:"amount"`
	PaymentMethod *MethodRef  `json:"paymentMethod"`
	ReferenceID   string      `json:"referenceId"`
}

// UnmarshalJSON keeps the well-formed fields of a data block and drops the
// rest. A data block that is not an object decodes as empty.
func (d *ChargeData) UnmarshalJSON(b []byte) error {
	*d = ChargeData{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil
	}

	d.ChargeID = stringField(fields["chargeId"])
	d.ID = stringField(fields["id"])
	d.ReferenceID = stringField(fields["referenceId"])

	var amount json.Number
	if raw, ok := fields["amount"]; ok && json.Unmarshal(raw, &amount) == nil {
		if _, err := amount.Float64(); err == nil {
			d.Amount = amount
		}
	}

	var method MethodRef
	if raw, ok := fields["paymentMethod"]; ok && json.Unmarshal(raw, &method) == nil && method.Type != "" {
		d.PaymentMethod = &method
	}
	return nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// AmountValue returns the amount when it is an integral number.
func (d ChargeData) AmountValue() *int64 {
	if d.Amount == "" {
		return nil
	}
	v, err := d.Amount.Int64()
	if err != nil {
		return nil
	}
	return &v
}

func (d ChargeData) MethodType() string {
	if d.PaymentMethod == nil {
		return ""
	}
	return d.PaymentMethod.Type
}

// Event is implemented only by the variants in this file.
type Event interface {
	Type() string
	isEvent()
}

type ChargeSucceeded struct{ Charge ChargeData }
type ChargeFailed struct{ Charge ChargeData }
type ChargeExpired struct{ Charge ChargeData }
type PaymentLinkPaid struct{ Link ChargeData }
type PaymentLinkExpired struct{ Link ChargeData }

func (ChargeSucceeded) Type() string    { return TypeChargeSucceeded }
func (ChargeFailed) Type() string       { return TypeChargeFailed }
func (ChargeExpired) Type() string      { return TypeChargeExpired }
func (PaymentLinkPaid) Type() string    { return TypePaymentLinkPaid }
func (PaymentLinkExpired) Type() string { return TypePaymentLinkExpired }

func (ChargeSucceeded) isEvent()    {}
func (ChargeFailed) isEvent()       {}
func (ChargeExpired) isEvent()      {}
func (PaymentLinkPaid) isEvent()    {}
func (PaymentLinkExpired) isEvent() {}

func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Envelope{}, fmt.Errorf("%w: trailing data after object", ErrMalformedPayload)
	}
	return env, nil
}

// Event maps the envelope onto its variant. Types outside SupportedTypes
// return ErrUnsupportedEvent without looking at the data block.
func (e Envelope) Event() (Event, error) {
	switch e.Type {
	case TypeChargeSucceeded, TypeChargeFailed, TypeChargeExpired,
		TypePaymentLinkPaid, TypePaymentLinkExpired:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, e.Type)
	}

	var data ChargeData
	if len(e.Data) > 0 {
		_ = data.UnmarshalJSON(e.Data)
	}

	switch e.Type {
	case TypeChargeSucceeded:
		return ChargeSucceeded{Charge: data}, nil
	case TypeChargeFailed:
		return ChargeFailed{Charge: data}, nil
	case TypeChargeExpired:
		return ChargeExpired{Charge: data}, nil
	case TypePaymentLinkPaid:
		return PaymentLinkPaid{Link: data}, nil
	default:
		return PaymentLinkExpired{Link: data}, nil
	}
}

// Transition is the store write an event asks for.
type Transition struct {
	ChargeID string
	Status   payment.Status
	Data     ChargeData
}

// Resolve turns an event into the status it settles. Payment link events
// fall back to the link id when no charge id is attached.
func Resolve(ev Event) Transition {
	switch e := ev.(type) {
	case ChargeSucceeded:
		return Transition{ChargeID: e.Charge.ChargeID, Status: payment.StatusSucceeded, Data: e.Charge}
	case ChargeFailed:
		return Transition{ChargeID: e.Charge.ChargeID, Status: payment.StatusFailed, Data: e.Charge}
	case ChargeExpired:
		return Transition{ChargeID: e.Charge.ChargeID, Status: payment.StatusExpired, Data: e.Charge}
	case PaymentLinkPaid:
		return Transition{ChargeID: linkChargeID(e.Link), Status: payment.StatusSucceeded, Data: e.Link}
	case PaymentLinkExpired:
		return Transition{ChargeID: linkChargeID(e.Link), Status: payment.StatusExpired, Data: e.Link}
	default:
		panic(fmt.Sprintf("webhook: unhandled event %T", ev))
	}
}

func linkChargeID(d ChargeData) string {
	if d.ChargeID != "" {
		return d.ChargeID
	}
	return d.ID
}
