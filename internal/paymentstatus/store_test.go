package paymentstatus_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/photobooth-payment/internal/core/datamodel/payment"
	"github.com/frahmantamala/photobooth-payment/internal/paymentstatus"
)

var _ = Describe("Store", func() {
	var (
		clock *fakeClock
		store *paymentstatus.Store
	)

	BeforeEach(func() {
		clock = newFakeClock()
		store = paymentstatus.NewStore(
			paymentstatus.WithClock(clock.Now),
			paymentstatus.WithTTL(30*time.Minute),
		)
	})

	AfterEach(func() {
		store.Stop()
	})

	Context("Set", func() {
		It("creates a record stamped with the current time", func() {
			rec := store.Set("chrg_1", payment.Patch{Status: payment.StatusSucceeded, Amount: int64Ptr(100)})

			Expect(rec.ChargeID).To(Equal("chrg_1"))
			Expect(rec.Status).To(Equal(payment.StatusSucceeded))
			Expect(*rec.Amount).To(Equal(int64(100)))
			Expect(rec.CreatedAt).To(Equal(clock.Now()))
			Expect(rec.LastUpdated).To(Equal(clock.Now()))
		})

		It("defaults the status of a new record to pending", func() {
			rec := store.Set("chrg_1", payment.Patch{ReferenceID: strPtr("ref")})
			Expect(rec.Status).To(Equal(payment.StatusPending))
		})

		It("merges partial writes and keeps the creation time", func() {
			created := store.Set("chrg_1", payment.Patch{
				Status:        payment.StatusPending,
				Amount:        int64Ptr(100),
				PaymentMethod: strPtr("promptpay"),
				ReferenceID:   strPtr("photobooth_1"),
			})
			clock.Advance(time.Minute)

			updated := store.Set("chrg_1", payment.Patch{Status: payment.StatusSucceeded})

			Expect(updated.Status).To(Equal(payment.StatusSucceeded))
			Expect(*updated.Amount).To(Equal(int64(100)))
			Expect(*updated.PaymentMethod).To(Equal("promptpay"))
			Expect(*updated.ReferenceID).To(Equal("photobooth_1"))
			Expect(updated.CreatedAt).To(Equal(created.CreatedAt))
			Expect(updated.LastUpdated).To(Equal(created.LastUpdated.Add(time.Minute)))
		})

		It("lets the last write win even when it regresses a final status", func() {
			store.Set("chrg_1", payment.Patch{Status: payment.StatusSucceeded})
			store.Set("chrg_1", payment.Patch{Status: payment.StatusExpired})

			rec, err := store.Get("chrg_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(payment.StatusExpired))
		})

		It("starts over when the previous record is stale", func() {
			store.Set("chrg_1", payment.Patch{Status: payment.StatusFailed, Amount: int64Ptr(500)})
			clock.Advance(31 * time.Minute)

			rec := store.Set("chrg_1", payment.Patch{Status: payment.StatusPending})

			Expect(rec.Amount).To(BeNil())
			Expect(rec.CreatedAt).To(Equal(clock.Now()))
		})

		It("hands out copies that do not alias the stored record", func() {
			rec := store.Set("chrg_1", payment.Patch{Amount: int64Ptr(100)})
			*rec.Amount = 999

			stored, err := store.Get("chrg_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.Amount).To(Equal(int64(100)))
		})
	})

	Context("Get", func() {
		It("reports unknown charges", func() {
			_, err := store.Get("missing")
			Expect(err).To(MatchError(paymentstatus.ErrRecordNotFound))
		})

		It("still serves a record exactly at its TTL", func() {
			store.Set("chrg_1", payment.Patch{Status: payment.StatusPending})
			clock.Advance(30 * time.Minute)

			_, err := store.Get("chrg_1")
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns a stale record as expired and drops it", func() {
			store.Set("chrg_1", payment.Patch{Status: payment.StatusSucceeded})
			clock.Advance(30*time.Minute + time.Second)

			rec, err := store.Get("chrg_1")

			Expect(err).To(MatchError(paymentstatus.ErrRecordExpired))
			Expect(rec.Status).To(Equal(payment.StatusSucceeded))
			Eventually(store.Len).Should(Equal(0))
		})

		It("keeps a record rewritten right after an expired read", func() {
			store.Set("chrg_1", payment.Patch{Status: payment.StatusPending})
			clock.Advance(31 * time.Minute)

			_, err := store.Get("chrg_1")
			Expect(err).To(MatchError(paymentstatus.ErrRecordExpired))
			store.Set("chrg_1", payment.Patch{Status: payment.StatusSucceeded})
			store.Stop()

			rec, err := store.Get("chrg_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(payment.StatusSucceeded))
		})
	})

	Context("SetIfAbsent", func() {
		It("creates a missing record", func() {
			rec, created := store.SetIfAbsent("chrg_1", payment.Patch{Amount: int64Ptr(100)})

			Expect(created).To(BeTrue())
			Expect(rec.Status).To(Equal(payment.StatusPending))
		})

		It("leaves an existing record alone", func() {
			store.Set("chrg_1", payment.Patch{Status: payment.StatusSucceeded})

			rec, created := store.SetIfAbsent("chrg_1", payment.Patch{Status: payment.StatusPending})

			Expect(created).To(BeFalse())
			Expect(rec.Status).To(Equal(payment.StatusSucceeded))
		})

		It("replaces a stale record", func() {
			store.Set("chrg_1", payment.Patch{Status: payment.StatusSucceeded})
			clock.Advance(time.Hour)

			rec, created := store.SetIfAbsent("chrg_1", payment.Patch{Status: payment.StatusPending})

			Expect(created).To(BeTrue())
			Expect(rec.Status).To(Equal(payment.StatusPending))
		})
	})

	Context("maintenance", func() {
		It("sweeps only stale records", func() {
			store.Set("old", payment.Patch{})
			clock.Advance(20 * time.Minute)
			store.Set("fresh", payment.Patch{})
			clock.Advance(11 * time.Minute)

			Expect(store.Sweep()).To(Equal(1))
			Expect(store.Len()).To(Equal(1))
			_, err := store.Get("fresh")
			Expect(err).NotTo(HaveOccurred())
		})

		It("clears and lists records", func() {
			store.Set("b", payment.Patch{})
			store.Set("a", payment.Patch{})

			list := store.List()
			Expect(list).To(HaveLen(2))
			Expect(list[0].ChargeID).To(Equal("a"))
			Expect(list[1].ChargeID).To(Equal("b"))

			Expect(store.Clear()).To(Equal(2))
			Expect(store.Len()).To(Equal(0))
		})

		It("deletes single records", func() {
			store.Set("a", payment.Patch{})
			Expect(store.Delete("a")).To(BeTrue())
			Expect(store.Delete("a")).To(BeFalse())
		})

		It("runs the sweeper in the background until stopped", func() {
			ticking := paymentstatus.NewStore(
				paymentstatus.WithClock(clock.Now),
				paymentstatus.WithSweepInterval(5*time.Millisecond),
			)
			ticking.Set("chrg_1", payment.Patch{})
			ticking.Start(context.Background())
			ticking.Start(context.Background())
			defer ticking.Stop()

			clock.Advance(paymentstatus.DefaultTTL + time.Second)

			Eventually(ticking.Len).Should(Equal(0))
		})

		It("stops the sweeper when the context ends", func() {
			ctx, cancel := context.WithCancel(context.Background())
			store.Start(ctx)
			cancel()
			store.Stop()
			store.Stop()
		})
	})

	It("is safe for concurrent writers and readers", func() {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("chrg_%d", i%5)
				store.Set(id, payment.Patch{Status: payment.StatusPending, Amount: int64Ptr(int64(i))})
				_, _ = store.Get(id)
				_ = store.List()
			}(i)
		}
		wg.Wait()

		Expect(store.Len()).To(Equal(5))
	})
})
