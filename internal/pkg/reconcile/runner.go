package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/causekit/causekit/internal/pkg/jobqueue"
)

// RunFromJob executes a reconciliation run from a queued job payload.
// Implements jobqueue.ReconciliationRunner.
func (s *Service) RunFromJob(ctx context.Context, payload jobqueue.ReconciliationRunJobPayload) error {
	start, err := time.Parse(time.RFC3339, payload.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start_date %q: %w", payload.StartDate, err)
	}
	end, err := time.Parse(time.RFC3339, payload.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end_date %q: %w", payload.EndDate, err)
	}

	_, err = s.CreateReconciliation(ctx, CreateInput{
		Type:        payload.Type,
		StartDate:   start,
		EndDate:     end,
		Notes:       payload.Notes,
		InitiatedBy: payload.InitiatedBy,
	})
	return err
}
