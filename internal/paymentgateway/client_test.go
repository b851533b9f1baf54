package paymentgateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/h2non/gock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	types "github.com/frahmantamala/photobooth-payment/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/photobooth-payment/internal/paymentgateway"
)

const (
	gatewayURL = "https://beam.test"
	basicAuth  = "Basic bWVyY2hhbnQtMTprZXktMQ=="
)

func newTestClient(baseURL string, timeout time.Duration) *paymentgateway.Client {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:       baseURL,
		APIKey:        "key-1",
		MerchantID:    "merchant-1",
		Timeout:       timeout,
		LookupTimeout: timeout,
	}, logger)
}

func promptPayRequest() *types.ChargeRequest {
	return &types.ChargeRequest{
		Amount:   100,
		Currency: "THB",
		PaymentMethod: types.PaymentMethod{
			PaymentMethodType: types.MethodTypePromptPay,
			QRPromptPay:       &types.QRPromptPay{ExpiresAt: "2026-01-01T00:30:00Z"},
		},
		ReferenceID: "photobooth_1_abc",
		ReturnURL:   "http://kiosk.local/payment-success",
	}
}

var _ = Describe("Client", func() {
	var client *paymentgateway.Client

	BeforeEach(func() {
		client = newTestClient(gatewayURL, time.Second)
	})

	AfterEach(func() {
		gock.Off()
	})

	Describe("CreateCharge", func() {
		It("returns the charge when the gateway accepts it", func() {
			gock.New(gatewayURL).
				Post("/api/v1/charges").
				MatchHeader("Authorization", basicAuth).
				MatchHeader("User-Agent", "Photobooth-Payment-API").
				Reply(200).
				JSON(map[string]interface{}{
					"chargeId":       "chrg_001",
					"actionRequired": "ENCODED_IMAGE",
					"encodedImage": map[string]string{
						"imageBase64Encoded": "iVBORw0KGgo=",
						"expiry":             "2026-01-01T00:30:00Z",
					},
				})

			charge, err := client.CreateCharge(context.Background(), promptPayRequest())

			Expect(err).NotTo(HaveOccurred())
			Expect(charge.ChargeID).To(Equal("chrg_001"))
			Expect(charge.ActionRequired).To(Equal("ENCODED_IMAGE"))
			Expect(charge.EncodedImage).NotTo(BeNil())
			Expect(charge.EncodedImage.ImageBase64Encoded).To(Equal("iVBORw0KGgo="))
			Expect(gock.IsDone()).To(BeTrue())
		})

		It("classifies a 401 as unauthenticated", func() {
			gock.New(gatewayURL).
				Post("/api/v1/charges").
				Reply(401).
				JSON(map[string]string{"error": "bad credentials"})

			_, err := client.CreateCharge(context.Background(), promptPayRequest())

			var apiErr *paymentgateway.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(apiErr.Kind).To(Equal(paymentgateway.KindUnauthenticated))
		})

		It("keeps the gateway error detail on a 400", func() {
			gock.New(gatewayURL).
				Post("/api/v1/charges").
				Reply(400).
				JSON(map[string]interface{}{"error": map[string]string{"code": "INVALID_AMOUNT"}})

			_, err := client.CreateCharge(context.Background(), promptPayRequest())

			var apiErr *paymentgateway.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Kind).To(Equal(paymentgateway.KindInvalidRequest))
			Expect(apiErr.Detail).To(HaveKeyWithValue("code", "INVALID_AMOUNT"))
		})

		It("passes other statuses through", func() {
			gock.New(gatewayURL).
				Post("/api/v1/charges").
				Reply(503).
				BodyString("upstream maintenance")

			_, err := client.CreateCharge(context.Background(), promptPayRequest())

			var apiErr *paymentgateway.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(503))
			Expect(apiErr.Kind).To(Equal(paymentgateway.KindRejected))
		})

		It("rejects a success reply that is not JSON", func() {
			gock.New(gatewayURL).
				Post("/api/v1/charges").
				Reply(200).
				BodyString("<html>oops</html>")

			_, err := client.CreateCharge(context.Background(), promptPayRequest())

			Expect(errors.Is(err, paymentgateway.ErrInvalidResponse)).To(BeTrue())
		})

		It("rejects a success reply without a chargeId", func() {
			gock.New(gatewayURL).
				Post("/api/v1/charges").
				Reply(200).
				JSON(map[string]string{"actionRequired": "REDIRECT"})

			_, err := client.CreateCharge(context.Background(), promptPayRequest())

			Expect(errors.Is(err, paymentgateway.ErrMissingChargeID)).To(BeTrue())
		})

		It("reports connection failures as unavailable", func() {
			gock.New(gatewayURL).
				Post("/api/v1/charges").
				ReplyError(errors.New("connection refused"))

			_, err := client.CreateCharge(context.Background(), promptPayRequest())

			Expect(errors.Is(err, paymentgateway.ErrUnavailable)).To(BeTrue())
		})

		It("does not call out without credentials", func() {
			unconfigured := paymentgateway.NewClient(paymentgateway.Config{BaseURL: gatewayURL}, nil)

			_, err := unconfigured.CreateCharge(context.Background(), promptPayRequest())

			Expect(errors.Is(err, paymentgateway.ErrNotConfigured)).To(BeTrue())
			Expect(unconfigured.Configured()).To(BeFalse())
		})
	})

	Describe("against a live test server", func() {
		It("sends the charge body the gateway expects", func() {
			var received map[string]interface{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/api/v1/charges"))
				Expect(r.Header.Get("Authorization")).To(Equal(basicAuth))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"chargeId":"chrg_002","actionRequired":"NONE"}`))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, time.Second).CreateCharge(context.Background(), promptPayRequest())

			Expect(err).NotTo(HaveOccurred())
			Expect(received).To(HaveKeyWithValue("currency", "THB"))
			Expect(received).To(HaveKeyWithValue("referenceId", "photobooth_1_abc"))
			Expect(received).To(HaveKeyWithValue("returnUrl", "http://kiosk.local/payment-success"))
			method := received["paymentMethod"].(map[string]interface{})
			Expect(method).To(HaveKeyWithValue("paymentMethodType", "QR_PROMPT_PAY"))
			Expect(method).To(HaveKey("qrPromptPay"))
			Expect(method).NotTo(HaveKey("weChatPay"))
		})

		It("reports a slow gateway as a timeout", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, 50*time.Millisecond).CreateCharge(context.Background(), promptPayRequest())

			Expect(errors.Is(err, paymentgateway.ErrTimeout)).To(BeTrue())
		})
	})

	Describe("GetCharge", func() {
		It("decodes the charge status", func() {
			gock.New(gatewayURL).
				Get("/api/v1/charges/chrg_003").
				MatchHeader("Authorization", basicAuth).
				Reply(200).
				JSON(map[string]interface{}{
					"chargeId":      "chrg_003",
					"status":        "succeeded",
					"amount":        250,
					"referenceId":   "photobooth_3",
					"paymentMethod": map[string]string{"paymentMethodType": "QR_PROMPT_PAY"},
				})

			charge, err := client.GetCharge(context.Background(), "chrg_003")

			Expect(err).NotTo(HaveOccurred())
			Expect(charge.NormalizedStatus()).To(Equal(types.ChargeStatusSucceeded))
			Expect(*charge.Amount).To(Equal(int64(250)))
			Expect(charge.PaymentMethod.Name()).To(Equal("QR_PROMPT_PAY"))
		})

		It("returns an APIError for unknown charges", func() {
			gock.New(gatewayURL).
				Get("/api/v1/charges/missing").
				Reply(404).
				JSON(map[string]string{"error": "not found"})

			_, err := client.GetCharge(context.Background(), "missing")

			var apiErr *paymentgateway.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
