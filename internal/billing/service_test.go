package billing_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/billing"
	"github.com/atelierhq/atelier/internal/organization"
)

var _ = Describe("BillingSync", func() {
	var (
		ctx     context.Context
		store   *memoryOrgs
		metrics *countingMetrics
		svc     *billing.Service
		now     time.Time
	)

	event := func(eventType, customer string) billing.Event {
		return billing.Event{Type: eventType, RawType: "PAYMENT_" + eventType, Payment: billing.Payment{ID: "pay_1", Customer: customer}}
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store = newMemoryOrgs(
			organization.Organization{ID: "O", Name: "Acme", ExternalBillingCustomerID: "cus_123", PaymentStatus: organization.PaymentActive},
			organization.Organization{ID: "P", Name: "Globex", ExternalBillingCustomerID: "cus_456", PaymentStatus: organization.PaymentOverdue},
		)
		metrics = &countingMetrics{}
		svc = billing.NewService(store,
			billing.WithClock(func() time.Time { return now }),
			billing.WithMetrics(metrics),
		)
	})

	Describe("HandleEvent", func() {
		Context("when the customer is known", func() {
			It("marks the organization overdue on OVERDUE", func() {
				res, err := svc.HandleEvent(ctx, event(billing.EventOverdue, "cus_123"))

				Expect(err).NotTo(HaveOccurred())
				Expect(res.Outcome).To(Equal(billing.OutcomeApplied))
				Expect(res.OrganizationID).To(Equal("O"))
				Expect(store.get("O").PaymentStatus).To(Equal(organization.PaymentOverdue))
				Expect(store.get("P").PaymentStatus).To(Equal(organization.PaymentOverdue))
			})

			It("reactivates and schedules the next billing on CONFIRMED", func() {
				res, err := svc.HandleEvent(ctx, event(billing.EventConfirmed, "cus_456"))

				Expect(err).NotTo(HaveOccurred())
				Expect(res.PaymentStatus).To(Equal(organization.PaymentActive))
				org := store.get("P")
				Expect(org.PaymentStatus).To(Equal(organization.PaymentActive))
				Expect(*org.LastPaymentDate).To(Equal(now))
				Expect(*org.NextBillingDate).To(Equal(now.Add(30 * 24 * time.Hour)))
			})

			It("uses the confirmed date as the last payment date when present", func() {
				confirmed := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
				ev := event(billing.EventReceived, "cus_456")
				ev.Payment.ConfirmedDate = &confirmed

				_, err := svc.HandleEvent(ctx, ev)

				Expect(err).NotTo(HaveOccurred())
				Expect(*store.get("P").LastPaymentDate).To(Equal(confirmed))
				Expect(*store.get("P").NextBillingDate).To(Equal(now.Add(billing.BillingCycle)))
			})

			DescribeTable("suspends on refunds and deletions",
				func(eventType string) {
					_, err := svc.HandleEvent(ctx, event(eventType, "cus_123"))
					Expect(err).NotTo(HaveOccurred())
					Expect(store.get("O").PaymentStatus).To(Equal(organization.PaymentSuspended))
				},
				Entry("REFUNDED", billing.EventRefunded),
				Entry("DELETED", billing.EventDeleted),
				Entry("prefixed type", "PAYMENT_REFUNDED"),
			)

			It("records one billing_status_synced entry by the system actor", func() {
				_, err := svc.HandleEvent(ctx, event(billing.EventOverdue, "cus_123"))
				Expect(err).NotTo(HaveOccurred())

				events := store.recorded()
				Expect(events).To(HaveLen(1))
				Expect(events[0].Type).To(Equal(audit.TypeBillingSynced))
				Expect(events[0].ActorID).To(Equal(audit.ActorSystem))
				Expect(events[0].OrganizationID).To(Equal("O"))
				Expect(events[0].Metadata).To(HaveKeyWithValue("from", "active"))
				Expect(events[0].Metadata).To(HaveKeyWithValue("to", "overdue"))
			})

			It("treats unhandled event types as a logged no-op", func() {
				res, err := svc.HandleEvent(ctx, event("SUBSCRIPTION_CREATED", "cus_123"))

				Expect(err).NotTo(HaveOccurred())
				Expect(res.Outcome).To(Equal(billing.OutcomeNoop))
				Expect(store.get("O").PaymentStatus).To(Equal(organization.PaymentActive))
				Expect(store.recorded()).To(BeEmpty())
				Expect(metrics.counts).To(HaveKeyWithValue("SUBSCRIPTION_CREATED/noop", 1))
			})
		})

		Context("when the customer is unknown", func() {
			It("acknowledges without mutating anything", func() {
				before := []organization.Organization{store.get("O"), store.get("P")}

				res, err := svc.HandleEvent(ctx, event(billing.EventConfirmed, "cus_unknown"))

				Expect(err).NotTo(HaveOccurred())
				Expect(res.Outcome).To(Equal(billing.OutcomeIgnored))
				Expect(res.Reason).To(Equal("customer not found"))
				Expect([]organization.Organization{store.get("O"), store.get("P")}).To(Equal(before))
				Expect(store.recorded()).To(BeEmpty())
				Expect(metrics.counts).To(HaveKeyWithValue("CONFIRMED/ignored", 1))
			})
		})

		Context("when the same event is delivered more than once", func() {
			It("converges to the state of a single delivery", func() {
				ev := event(billing.EventConfirmed, "cus_456")

				_, err := svc.HandleEvent(ctx, ev)
				Expect(err).NotTo(HaveOccurred())
				once := store.get("P")

				for range 3 {
					_, err = svc.HandleEvent(ctx, ev)
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(store.get("P")).To(Equal(once))
			})

			It("is safe to deliver concurrently", func() {
				ev := event(billing.EventOverdue, "cus_123")
				var wg sync.WaitGroup
				for range 8 {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						_, err := svc.HandleEvent(ctx, ev)
						Expect(err).NotTo(HaveOccurred())
					}()
				}
				wg.Wait()
				Expect(store.get("O").PaymentStatus).To(Equal(organization.PaymentOverdue))
			})
		})

		Context("when events arrive out of order", func() {
			It("keeps the last applied status", func() {
				for _, t := range []string{billing.EventConfirmed, billing.EventOverdue, billing.EventConfirmed} {
					_, err := svc.HandleEvent(ctx, event(t, "cus_123"))
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(store.get("O").PaymentStatus).To(Equal(organization.PaymentActive))
			})
		})

		Context("when the store fails", func() {
			It("reports the lookup failure as upstream unavailable", func() {
				store.findFn = func(context.Context, string) (*organization.Organization, error) {
					return nil, errors.New("connection refused")
				}

				_, err := svc.HandleEvent(ctx, event(billing.EventOverdue, "cus_123"))

				Expect(apperr.KindOf(err)).To(Equal(apperr.KindUpstreamUnavailable))
			})

			It("rolls back the status change when the activity write fails", func() {
				store.recordFn = func(context.Context, audit.Event) error {
					return errors.New("disk full")
				}

				_, err := svc.HandleEvent(ctx, event(billing.EventOverdue, "cus_123"))

				Expect(err).To(HaveOccurred())
				Expect(store.get("O").PaymentStatus).To(Equal(organization.PaymentActive))
			})
		})

		Context("when the event has no customer", func() {
			It("rejects it as invalid", func() {
				_, err := svc.HandleEvent(ctx, billing.Event{Type: billing.EventOverdue})
				Expect(apperr.KindOf(err)).To(Equal(apperr.KindValidation))
			})
		})
	})
})
