package jobqueue

import (
	"context"
	"fmt"
)

// processReconciliationRunJob executes a full reconciliation run for the
// window carried in the payload.
func (q *Queue) processReconciliationRunJob(ctx context.Context, job *Job) error {
	if q.reconciler == nil {
		return fmt.Errorf("no reconciliation runner configured")
	}

	payload, err := ReconciliationRunJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid reconciliation run payload: %w", err)
	}

	if err := q.reconciler.RunFromJob(ctx, *payload); err != nil {
		return fmt.Errorf("reconciliation run: %w", err)
	}
	return nil
}
