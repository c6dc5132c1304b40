package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/causekit/causekit/app/models"
)

const (
	// amountMismatchHighThreshold is the delta above which an amount
	// mismatch is high severity instead of medium.
	amountMismatchHighThreshold = 10.0

	// amountMismatchCriticalThreshold is the delta above which an amount
	// mismatch is critical and triggers an operator notification.
	amountMismatchCriticalThreshold = 100.0
)

// ErrInvalidResolutionStatus is returned when a resolve request carries a
// status outside the discrepancy lifecycle.
var ErrInvalidResolutionStatus = errors.New("status must be investigating, resolved, closed or ignored")

// deriveDiscrepancies creates one discrepancy row per flagged item, all
// starting in the open state.
func (s *Service) deriveDiscrepancies(run *models.PaymentReconciliation, items []models.ReconciliationItem) error {
	for i := range items {
		item := &items[i]
		if !item.HasDiscrepancy {
			continue
		}

		d := &models.PaymentDiscrepancy{
			ReconciliationID:    run.ID,
			ItemID:              item.ID,
			DonationID:          item.DonationID,
			StripeTransactionID: item.StripeTransactionID,
			Type:                item.DiscrepancyType,
			Severity:            severityForItem(item),
			Description:         descriptionForItem(item),
			Amount:              item.DiscrepancyAmount,
			Status:              models.DiscrepancyStatusOpen,
		}
		if err := s.repo.CreateDiscrepancy(d); err != nil {
			return err
		}
		if d.Severity == models.DiscrepancySeverityCritical && s.notify != nil {
			s.notify(d)
		}
	}
	return nil
}

// severityForItem classifies a flagged item: orphans are always high;
// amount mismatches scale with the delta.
func severityForItem(item *models.ReconciliationItem) string {
	switch item.MatchStatus {
	case models.MatchStatusUnmatchedDonation, models.MatchStatusUnmatchedStripe:
		return models.DiscrepancySeverityHigh
	case models.MatchStatusAmountMismatch:
		if item.DiscrepancyAmount > amountMismatchCriticalThreshold {
			return models.DiscrepancySeverityCritical
		}
		if item.DiscrepancyAmount > amountMismatchHighThreshold {
			return models.DiscrepancySeverityHigh
		}
		return models.DiscrepancySeverityMedium
	}
	return models.DiscrepancySeverityLow
}

// descriptionForItem renders the human-readable summary shown to operators.
func descriptionForItem(item *models.ReconciliationItem) string {
	switch item.MatchStatus {
	case models.MatchStatusUnmatchedDonation:
		return fmt.Sprintf("Donation #%d ($%.2f) has no matching Stripe transaction", deref(item.DonationID), derefF(item.DonationAmount))
	case models.MatchStatusUnmatchedStripe:
		return fmt.Sprintf("Stripe transaction #%d ($%.2f) has no matching donation", deref(item.StripeTransactionID), derefF(item.StripeAmount))
	case models.MatchStatusAmountMismatch:
		return fmt.Sprintf("Donation #%d amount $%.2f differs from Stripe transaction #%d amount $%.2f by $%.2f",
			deref(item.DonationID), derefF(item.DonationAmount), deref(item.StripeTransactionID), derefF(item.StripeAmount), item.DiscrepancyAmount)
	}
	return "Reconciliation discrepancy"
}

// ResolveDiscrepancy moves a discrepancy through its manual lifecycle.
// Terminal discrepancies are returned unchanged: resolving twice never
// reverts a discrepancy to open, and only a fresh reconciliation run can
// produce a new discrepancy for the same record.
func (s *Service) ResolveDiscrepancy(ctx context.Context, id uint, status, notes string, resolverID uint) (*models.PaymentDiscrepancy, error) {
	_ = ctx
	d, err := s.repo.GetDiscrepancy(id)
	if err != nil {
		return nil, err
	}
	if d.IsTerminal() {
		return d, nil
	}

	switch status {
	case models.DiscrepancyStatusInvestigating:
		d.Status = status
	case models.DiscrepancyStatusResolved, models.DiscrepancyStatusClosed, models.DiscrepancyStatusIgnored:
		d.Status = status
		d.ResolutionNotes = notes
		d.ResolvedBy = &resolverID
		resolvedAt := s.now()
		d.ResolvedAt = &resolvedAt
	default:
		return nil, ErrInvalidResolutionStatus
	}

	if err := s.repo.UpdateDiscrepancy(d); err != nil {
		return nil, err
	}
	return d, nil
}

// ManualMatch attaches a Stripe reference to a donation and marks it matched,
// bypassing the automatic matcher. Used when an operator can visually confirm
// a correspondence the matcher missed.
func (s *Service) ManualMatch(ctx context.Context, donationID uint, externalReference string, resolverID uint) (*models.Donation, error) {
	_ = ctx
	_ = resolverID
	if externalReference == "" {
		return nil, errors.New("external_reference is required")
	}
	if _, err := s.donations.GetByID(donationID); err != nil {
		return nil, err
	}
	if err := s.donations.SetManualMatch(donationID, externalReference); err != nil {
		return nil, err
	}
	return s.donations.GetByID(donationID)
}

func deref(v *uint) uint {
	if v == nil {
		return 0
	}
	return *v
}

func derefF(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
