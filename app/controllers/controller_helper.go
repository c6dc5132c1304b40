package controllers

import (
	"strconv"
	"sync"
	"time"

	"github.com/causekit/causekit/app/repository"
	"github.com/causekit/causekit/internal/pkg/reconcile"
	"github.com/causekit/causekit/internal/pkg/stripeledger"
	"github.com/causekit/causekit/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2"
)

var (
	dispatcherOnce sync.Once
	dispatcher     *webhook.Dispatcher

	reconcileOnce    sync.Once
	reconcileService *reconcile.Service
)

// WebhookDispatcher returns the process-wide webhook dispatcher, built lazily
// from the global repository factory.
func WebhookDispatcher() *webhook.Dispatcher {
	dispatcherOnce.Do(func() {
		factory := repository.GetGlobalFactory()
		dispatcher = webhook.NewDispatcher(
			webhook.DefaultConfig(),
			factory.GetWebhookEndpointRepository(),
			factory.GetWebhookDeliveryRepository(),
		)
	})
	return dispatcher
}

// ReconcileService returns the process-wide reconciliation service, built
// lazily from the global repository factory and the Stripe client.
func ReconcileService() *reconcile.Service {
	reconcileOnce.Do(func() {
		factory := repository.GetGlobalFactory()
		reconcileService = reconcile.NewService(
			factory.GetReconciliationRepository(),
			factory.GetDonationRepository(),
			stripeledger.NewClient(stripeledger.NewConfigFromEnv()),
		)
		if notify := reconcile.NewMailNotifier(); notify != nil {
			reconcileService.SetNotifier(notify)
		}
	})
	return reconcileService
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// paramID parses the :id route parameter.
func paramID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
