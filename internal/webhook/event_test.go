package webhook_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
	"github.com/frahmantamala/photobooth-payment/internal/webhook"
)

var _ = Describe("Envelope", func() {
	decode := func(body string) (webhook.Event, error) {
		env, err := webhook.DecodeEnvelope([]byte(body))
		if err != nil {
			return nil, err
		}
		return env.Event()
	}

	DescribeTable("resolves each supported event",
		func(body, chargeID string, status payment.Status) {
			ev, err := decode(body)
			Expect(err).NotTo(HaveOccurred())

			t := webhook.Resolve(ev)
			Expect(t.ChargeID).To(Equal(chargeID))
			Expect(t.Status).To(Equal(status))
		},
		Entry("charge succeeded", `{"type":"charge.succeeded","data":{"chargeId":"c1"}}`, "c1", payment.StatusSucceeded),
		Entry("charge failed", `{"type":"charge.failed","data":{"chargeId":"c2"}}`, "c2", payment.StatusFailed),
		Entry("charge expired", `{"type":"charge.expired","data":{"chargeId":"c3"}}`, "c3", payment.StatusExpired),
		Entry("link paid with charge id", `{"type":"payment_link.paid","data":{"chargeId":"c4","id":"l4"}}`, "c4", payment.StatusSucceeded),
		Entry("link expired by id", `{"type":"payment_link.expired","data":{"id":"l5"}}`, "l5", payment.StatusExpired),
		Entry("null data", `{"type":"charge.failed","data":null}`, "", payment.StatusFailed),
	)

	It("keeps optional attributes", func() {
		ev, err := decode(`{"type":"charge.succeeded","data":{"chargeId":"c1","amount":1500,"paymentMethod":{"type":"wechat"},"referenceId":"r1"}}`)
		Expect(err).NotTo(HaveOccurred())

		data := webhook.Resolve(ev).Data
		Expect(*data.AmountValue()).To(Equal(int64(1500)))
		Expect(data.MethodType()).To(Equal("wechat"))
		Expect(data.ReferenceID).To(Equal("r1"))
	})

	It("drops a fractional amount", func() {
		ev, err := decode(`{"type":"charge.succeeded","data":{"chargeId":"c1","amount":1.5}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(webhook.Resolve(ev).Data.AmountValue()).To(BeNil())
	})

	It("flags unsupported types", func() {
		_, err := decode(`{"type":"charge.refunded","data":{}}`)
		Expect(errors.Is(err, webhook.ErrUnsupportedEvent)).To(BeTrue())
	})

	It("ignores the data block of unsupported types", func() {
		_, err := decode(`{"type":"charge.disputed","data":{"paymentMethod":"card","amount":"n/a"}}`)
		Expect(errors.Is(err, webhook.ErrUnsupportedEvent)).To(BeTrue())
	})

	It("rejects trailing data after the object", func() {
		_, err := webhook.DecodeEnvelope([]byte(`{"type":"charge.succeeded","data":{"chargeId":"c1"}}garbage`))
		Expect(errors.Is(err, webhook.ErrMalformedPayload)).To(BeTrue())
	})

	It("flags malformed JSON", func() {
		_, err := decode(`{"type":`)
		Expect(errors.Is(err, webhook.ErrMalformedPayload)).To(BeTrue())
	})

	It("treats a data block that is not an object as empty", func() {
		ev, err := decode(`{"type":"charge.succeeded","data":"oops"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(webhook.Resolve(ev).ChargeID).To(BeEmpty())
	})

	DescribeTable("drops optional attributes of an unexpected shape",
		func(data string) {
			ev, err := decode(`{"type":"charge.succeeded","data":` + data + `}`)
			Expect(err).NotTo(HaveOccurred())

			t := webhook.Resolve(ev)
			Expect(t.ChargeID).To(Equal("c1"))
			Expect(t.Data.AmountValue()).To(BeNil())
			Expect(t.Data.MethodType()).To(BeEmpty())
			Expect(t.Data.ReferenceID).To(BeEmpty())
		},
		Entry("payment method as a string", `{"chargeId":"c1","paymentMethod":"promptpay"}`),
		Entry("amount as a word", `{"chargeId":"c1","amount":"n/a"}`),
		Entry("amount as an object", `{"chargeId":"c1","amount":{"value":100}}`),
		Entry("reference id as a number", `{"chargeId":"c1","referenceId":42}`),
		Entry("payment method type as a number", `{"chargeId":"c1","paymentMethod":{"type":7}}`),
	)
})
