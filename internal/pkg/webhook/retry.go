package webhook

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
)

// DefaultRetryBatchSize bounds one retry sweep.
const DefaultRetryBatchSize = 100

// ProcessDueRetries re-delivers retrying deliveries whose next_retry_at has
// passed, using each endpoint's current URL and secret. Safe to invoke from
// overlapping sweeps: each delivery is claimed with a conditional status
// transition, so a second processor finds zero rows affected and skips it.
// Returns the number of deliveries attempted.
func (d *Dispatcher) ProcessDueRetries(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultRetryBatchSize
	}

	due, err := d.deliveries.ListDueRetries(d.now(), limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		delivery := due[i]

		claimed, err := d.deliveries.ClaimRetrying(delivery.ID)
		if err != nil {
			log.Errorf("[Webhook] Failed to claim delivery %d: %v", delivery.ID, err)
			continue
		}
		if !claimed {
			// Another processor picked this one up.
			continue
		}

		endpoint, err := d.endpoints.GetByID(delivery.EndpointID)
		if err != nil || !endpoint.IsActive {
			// Endpoint vanished or was disabled between selection and claim.
			if _, ferr := d.deliveries.MarkFailed(delivery.ID, delivery.Attempts, nil, "endpoint deactivated"); ferr != nil {
				log.Errorf("[Webhook] Failed to finalize delivery %d for deactivated endpoint: %v", delivery.ID, ferr)
			}
			continue
		}

		if err := d.attempt(ctx, endpoint, &delivery); err != nil {
			log.Errorf("[Webhook] Retry of delivery %d failed: %v", delivery.ID, err)
		}
		processed++
	}
	return processed, nil
}
