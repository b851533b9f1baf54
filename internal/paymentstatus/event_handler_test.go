package paymentstatus_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
	"github.com/frahmantamala/photobooth-payment/internal/core/events"
	"github.com/frahmantamala/photobooth-payment/internal/metrics"
	"github.com/frahmantamala/photobooth-payment/internal/paymentstatus"
)

var _ = Describe("EventHandler", func() {
	var (
		store   *paymentstatus.Store
		bus     *events.EventBus
		service *paymentstatus.Service
	)

	BeforeEach(func() {
		store = paymentstatus.NewStore()
		bus = events.NewEventBus(testLogger())
		service = paymentstatus.NewService(store, testLogger(), paymentstatus.WithPublisher(bus))
		paymentstatus.NewEventHandler(service, testLogger()).RegisterEventHandlers(bus)
	})

	AfterEach(func() {
		store.Stop()
	})

	It("seeds a pending record when a charge is created", func() {
		Expect(bus.Publish(context.Background(), events.NewChargeCreatedEvent("chrg_1", 100, "promptpay", "ref_1"))).To(Succeed())
		bus.Wait()

		rec, err := store.Get("chrg_1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Status).To(Equal(payment.StatusPending))
		Expect(*rec.Amount).To(Equal(int64(100)))
		Expect(*rec.PaymentMethod).To(Equal("promptpay"))
		Expect(*rec.ReferenceID).To(Equal("ref_1"))
	})

	It("leaves an earlier webhook status alone", func() {
		store.Set("chrg_1", payment.Patch{Status: payment.StatusSucceeded})

		Expect(bus.PublishSync(context.Background(), events.NewChargeCreatedEvent("chrg_1", 100, "promptpay", "ref_1"))).To(Succeed())

		rec, err := store.Get("chrg_1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Status).To(Equal(payment.StatusSucceeded))
	})

	It("counts status transitions from every write", func() {
		_, err := service.Update(context.Background(), paymentstatus.UpdateRequest{
			ChargeID: "chrg_audit",
			Status:   payment.StatusExpired,
			Source:   paymentstatus.SourceAdmin,
		})
		Expect(err).NotTo(HaveOccurred())
		bus.Wait()

		rec := httptest.NewRecorder()
		metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Body.String()).To(ContainSubstring(`payment_status_transitions_total{from="none",to="expired",source="admin"}`))
	})

	It("rejects events of the wrong type", func() {
		handler := paymentstatus.NewEventHandler(nil, testLogger())
		err := handler.HandleChargeCreated(context.Background(), events.NewPaymentStatusChangedEvent("chrg_1", "", "pending", "api"))
		Expect(err).To(HaveOccurred())

		err = handler.HandleStatusChanged(context.Background(), events.NewChargeCreatedEvent("chrg_1", 100, "promptpay", "ref_1"))
		Expect(err).To(HaveOccurred())
	})
})
