package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	// retrySweepLockKey guards against overlapping sweeps across instances.
	// Claim-on-update already makes double processing harmless, the lock just
	// avoids wasted work.
	retrySweepLockKey = "webhook:retry_sweep:lock"
	retrySweepLockTTL = 55 * time.Second

	defaultRetrySweepLimit = 100
)

// processWebhookRetrySweepJob delivers all webhook deliveries whose retry
// time has come.
func (q *Queue) processWebhookRetrySweepJob(ctx context.Context, job *Job) error {
	if q.sweeper == nil {
		return fmt.Errorf("no retry sweeper configured")
	}

	payload, err := WebhookRetrySweepJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid retry sweep payload: %w", err)
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = defaultRetrySweepLimit
	}

	ok, err := q.client.SetNX(ctx, retrySweepLockKey, job.ID, retrySweepLockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		log.Debug("[JobQueue] Retry sweep already running, skipping")
		return nil
	}
	defer q.client.Del(ctx, retrySweepLockKey)

	processed, err := q.sweeper.ProcessDueRetries(ctx, limit)
	if err != nil {
		return fmt.Errorf("retry sweep: %w", err)
	}
	if processed > 0 {
		log.Infof("[JobQueue] Retry sweep processed %d deliveries", processed)
	}
	return nil
}
