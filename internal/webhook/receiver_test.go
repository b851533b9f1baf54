package webhook_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
	"github.com/frahmantamala/photobooth-payment/internal/paymentstatus"
	"github.com/frahmantamala/photobooth-payment/internal/transport"
	"github.com/frahmantamala/photobooth-payment/internal/webhook"
)

var _ = Describe("Receiver", func() {
	var (
		store   *paymentstatus.Store
		service *paymentstatus.Service
	)

	BeforeEach(func() {
		store = paymentstatus.NewStore()
		service = paymentstatus.NewService(store, testLogger())
	})

	AfterEach(func() {
		store.Stop()
	})

	newReceiver := func(name, secret string) *webhook.Receiver {
		return webhook.NewReceiver(transport.NewBaseHandler(testLogger()), name, secret, service,
			webhook.WithVerifier(fixedVerifier()))
	}

	deliver := func(r *webhook.Receiver, body string, headers map[string]string) (int, map[string]interface{}) {
		req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		var out map[string]interface{}
		ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
		return rec.Code, out
	}

	signed := func(body, secret string) map[string]string {
		return map[string]string{
			webhook.SignatureHeader: webhook.Sign([]byte(body), "1700000000", secret),
			webhook.TimestampHeader: "1700000000",
		}
	}

	Context("with a secret", func() {
		const secret = "kiosk-secret"
		var receiver *webhook.Receiver

		BeforeEach(func() {
			receiver = newReceiver(webhook.EndpointPrimary, secret)
		})

		It("applies a signed charge.succeeded event", func() {
			body := `{"type":"charge.succeeded","data":{"chargeId":"chrg_1","amount":100,"paymentMethod":{"type":"promptpay"},"referenceId":"ref_1"}}`

			code, out := deliver(receiver, body, signed(body, secret))

			Expect(code).To(Equal(http.StatusOK))
			Expect(out["received"]).To(BeTrue())
			Expect(out["event"]).To(Equal("charge.succeeded"))
			Expect(out["chargeId"]).To(Equal("chrg_1"))
			Expect(out["statusUpdated"]).To(BeTrue())
			Expect(out["endpoint"]).To(Equal("primary"))

			rec, err := store.Get("chrg_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(payment.StatusSucceeded))
			Expect(*rec.Amount).To(Equal(int64(100)))
			Expect(*rec.PaymentMethod).To(Equal("promptpay"))
			Expect(*rec.ReferenceID).To(Equal("ref_1"))
		})

		It("accepts a prefixed signature header", func() {
			body := `{"type":"charge.failed","data":{"chargeId":"chrg_2"}}`
			headers := signed(body, secret)
			headers[webhook.SignatureHeader] = "t=1700000000, v1=" + headers[webhook.SignatureHeader]

			code, _ := deliver(receiver, body, headers)

			Expect(code).To(Equal(http.StatusOK))
			rec, err := store.Get("chrg_2")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(payment.StatusFailed))
		})

		It("rejects a tampered body", func() {
			body := `{"type":"charge.succeeded","data":{"chargeId":"chrg_1"}}`
			headers := signed(body, secret)

			code, out := deliver(receiver, strings.Replace(body, "chrg_1", "chrg_9", 1), headers)

			Expect(code).To(Equal(http.StatusUnauthorized))
			errBody := out["error"].(map[string]interface{})
			Expect(errBody["message"]).To(Equal("Invalid signature"))
			Expect(errBody["details"]).To(Equal("mismatch"))
			Expect(store.Len()).To(Equal(0))
		})

		It("rejects a request without signature headers", func() {
			code, out := deliver(receiver, `{"type":"charge.succeeded","data":{"chargeId":"chrg_1"}}`, nil)

			Expect(code).To(Equal(http.StatusUnauthorized))
			Expect(out["error"].(map[string]interface{})["details"]).To(Equal("missing_headers"))
			Expect(store.Len()).To(Equal(0))
		})

		It("rejects a stale timestamp", func() {
			body := `{"type":"charge.succeeded","data":{"chargeId":"chrg_1"}}`
			headers := map[string]string{
				webhook.SignatureHeader: webhook.Sign([]byte(body), "1699999000", secret),
				webhook.TimestampHeader: "1699999000",
			}

			code, out := deliver(receiver, body, headers)

			Expect(code).To(Equal(http.StatusUnauthorized))
			Expect(out["error"].(map[string]interface{})["details"]).To(Equal("timestamp_out_of_tolerance"))
		})

		It("treats primary and backup routes alike", func() {
			backup := newReceiver(webhook.EndpointBackup, secret)
			body := `{"type":"charge.succeeded","data":{"chargeId":"chrg_6"}}`

			code, _ := deliver(backup, body, nil)
			Expect(code).To(Equal(http.StatusUnauthorized))
			Expect(store.Len()).To(Equal(0))

			code, out := deliver(backup, body, signed(body, secret))
			Expect(code).To(Equal(http.StatusOK))
			Expect(out["endpoint"]).To(Equal("backup"))
		})

		It("rejects a signed body that is not JSON", func() {
			body := `not json`

			code, out := deliver(receiver, body, signed(body, secret))

			Expect(code).To(Equal(http.StatusBadRequest))
			Expect(out["error"].(map[string]interface{})["message"]).To(Equal("Invalid payload"))
		})
	})

	Context("without a secret", func() {
		var receiver *webhook.Receiver

		BeforeEach(func() {
			receiver = newReceiver(webhook.EndpointBackup, "")
		})

		It("processes unsigned events", func() {
			code, out := deliver(receiver, `{"type":"charge.expired","data":{"chargeId":"chrg_3"}}`, nil)

			Expect(code).To(Equal(http.StatusOK))
			Expect(out["endpoint"]).To(Equal("backup"))
			rec, err := store.Get("chrg_3")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(payment.StatusExpired))
		})

		It("acknowledges unsupported events without writing", func() {
			code, out := deliver(receiver, `{"type":"charge.refunded","data":{"chargeId":"chrg_4"}}`, nil)

			Expect(code).To(Equal(http.StatusOK))
			Expect(out["received"]).To(BeTrue())
			Expect(out["event"]).To(Equal("charge.refunded"))
			Expect(out["message"]).To(Equal("Event type not supported"))
			Expect(out).NotTo(HaveKey("statusUpdated"))
			Expect(store.Len()).To(Equal(0))
		})

		It("acknowledges unsupported events whatever their data looks like", func() {
			code, out := deliver(receiver, `{"type":"charge.disputed","data":{"paymentMethod":"card","amount":"n/a"}}`, nil)

			Expect(code).To(Equal(http.StatusOK))
			Expect(out["received"]).To(BeTrue())
			Expect(out["message"]).To(Equal("Event type not supported"))
			Expect(store.Len()).To(Equal(0))
		})

		DescribeTable("applies supported events with oddly shaped attributes",
			func(data string) {
				code, out := deliver(receiver, `{"type":"charge.succeeded","data":`+data+`}`, nil)

				Expect(code).To(Equal(http.StatusOK))
				Expect(out["statusUpdated"]).To(BeTrue())
				rec, err := store.Get("ch_1")
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.Status).To(Equal(payment.StatusSucceeded))
				Expect(rec.PaymentMethod).To(BeNil())
				Expect(rec.ReferenceID).To(BeNil())
			},
			Entry("payment method as a string", `{"chargeId":"ch_1","paymentMethod":"promptpay"}`),
			Entry("amount as a word", `{"chargeId":"ch_1","amount":"n/a"}`),
			Entry("reference id as a number", `{"chargeId":"ch_1","referenceId":42}`),
		)

		It("falls back to the link id for payment links", func() {
			code, out := deliver(receiver, `{"type":"payment_link.paid","data":{"id":"link_1","amount":200}}`, nil)

			Expect(code).To(Equal(http.StatusOK))
			Expect(out["chargeId"]).To(Equal("link_1"))
			rec, err := store.Get("link_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(payment.StatusSucceeded))
		})

		It("reports a failed write without failing the delivery", func() {
			code, out := deliver(receiver, `{"type":"charge.succeeded","data":{}}`, nil)

			Expect(code).To(Equal(http.StatusOK))
			Expect(out["statusUpdated"]).To(BeFalse())
			Expect(store.Len()).To(Equal(0))
		})

		It("lets a late expiry overwrite a success", func() {
			deliver(receiver, `{"type":"charge.succeeded","data":{"chargeId":"chrg_5"}}`, nil)
			deliver(receiver, `{"type":"charge.expired","data":{"chargeId":"chrg_5"}}`, nil)

			rec, err := store.Get("chrg_5")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(payment.StatusExpired))
		})
	})
})
