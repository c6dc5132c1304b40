package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causekit/causekit/app/models"
)

func TestSeverityForItem(t *testing.T) {
	donationID := uint(1)

	tests := []struct {
		name string
		item models.ReconciliationItem
		want string
	}{
		{
			"unmatched donation is high",
			models.ReconciliationItem{MatchStatus: models.MatchStatusUnmatchedDonation, DiscrepancyAmount: 5.00},
			models.DiscrepancySeverityHigh,
		},
		{
			"unmatched stripe is high",
			models.ReconciliationItem{MatchStatus: models.MatchStatusUnmatchedStripe, DiscrepancyAmount: 5.00},
			models.DiscrepancySeverityHigh,
		},
		{
			"small amount mismatch is medium",
			models.ReconciliationItem{MatchStatus: models.MatchStatusAmountMismatch, DiscrepancyAmount: 10.00},
			models.DiscrepancySeverityMedium,
		},
		{
			"mid amount mismatch is high",
			models.ReconciliationItem{MatchStatus: models.MatchStatusAmountMismatch, DiscrepancyAmount: 10.01},
			models.DiscrepancySeverityHigh,
		},
		{
			"boundary amount mismatch stays high",
			models.ReconciliationItem{MatchStatus: models.MatchStatusAmountMismatch, DiscrepancyAmount: 100.00},
			models.DiscrepancySeverityHigh,
		},
		{
			"large amount mismatch is critical",
			models.ReconciliationItem{MatchStatus: models.MatchStatusAmountMismatch, DiscrepancyAmount: 100.01},
			models.DiscrepancySeverityCritical,
		},
		{
			"anything else is low",
			models.ReconciliationItem{MatchStatus: models.MatchStatusMatched, DonationID: &donationID},
			models.DiscrepancySeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, severityForItem(&tt.item))
		})
	}
}

func TestDescriptionForItem(t *testing.T) {
	donationID := uint(7)
	txnID := uint(9)
	donationAmount := 120.50
	stripeAmount := 100.50

	item := models.ReconciliationItem{
		MatchStatus:         models.MatchStatusAmountMismatch,
		DonationID:          &donationID,
		StripeTransactionID: &txnID,
		DonationAmount:      &donationAmount,
		StripeAmount:        &stripeAmount,
		DiscrepancyAmount:   20.00,
	}
	desc := descriptionForItem(&item)
	assert.Contains(t, desc, "#7")
	assert.Contains(t, desc, "#9")
	assert.Contains(t, desc, "$120.50")
	assert.Contains(t, desc, "$100.50")
	assert.Contains(t, desc, "$20.00")
}

func openDiscrepancy(repo *fakeReconRepo) *models.PaymentDiscrepancy {
	d := &models.PaymentDiscrepancy{
		ReconciliationID: 1,
		ItemID:           1,
		Type:             models.DiscrepancyTypeMissingDonation,
		Severity:         models.DiscrepancySeverityHigh,
		Amount:           42.00,
		Status:           models.DiscrepancyStatusOpen,
	}
	_ = repo.CreateDiscrepancy(d)
	return d
}

func TestResolveDiscrepancy(t *testing.T) {
	ctx := context.Background()

	t.Run("investigating keeps resolution fields empty", func(t *testing.T) {
		repo := newFakeReconRepo()
		s := newTestService(repo, newFakeDonationRepo(), &fakeLedger{})
		d := openDiscrepancy(repo)

		got, err := s.ResolveDiscrepancy(ctx, d.ID, models.DiscrepancyStatusInvestigating, "", 3)
		require.NoError(t, err)
		assert.Equal(t, models.DiscrepancyStatusInvestigating, got.Status)
		assert.Nil(t, got.ResolvedBy)
		assert.Nil(t, got.ResolvedAt)
	})

	t.Run("resolved stamps notes resolver and time", func(t *testing.T) {
		repo := newFakeReconRepo()
		s := newTestService(repo, newFakeDonationRepo(), &fakeLedger{})
		d := openDiscrepancy(repo)

		got, err := s.ResolveDiscrepancy(ctx, d.ID, models.DiscrepancyStatusResolved, "refund issued", 3)
		require.NoError(t, err)
		assert.Equal(t, models.DiscrepancyStatusResolved, got.Status)
		assert.Equal(t, "refund issued", got.ResolutionNotes)
		require.NotNil(t, got.ResolvedBy)
		assert.Equal(t, uint(3), *got.ResolvedBy)
		require.NotNil(t, got.ResolvedAt)
		assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), *got.ResolvedAt)
	})

	t.Run("terminal discrepancies never change", func(t *testing.T) {
		repo := newFakeReconRepo()
		s := newTestService(repo, newFakeDonationRepo(), &fakeLedger{})
		d := openDiscrepancy(repo)

		_, err := s.ResolveDiscrepancy(ctx, d.ID, models.DiscrepancyStatusIgnored, "noise", 3)
		require.NoError(t, err)

		got, err := s.ResolveDiscrepancy(ctx, d.ID, models.DiscrepancyStatusInvestigating, "reopen attempt", 4)
		require.NoError(t, err)
		assert.Equal(t, models.DiscrepancyStatusIgnored, got.Status)
		assert.Equal(t, "noise", got.ResolutionNotes)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		repo := newFakeReconRepo()
		s := newTestService(repo, newFakeDonationRepo(), &fakeLedger{})
		d := openDiscrepancy(repo)

		_, err := s.ResolveDiscrepancy(ctx, d.ID, "reopened", "", 3)
		assert.ErrorIs(t, err, ErrInvalidResolutionStatus)
	})

	t.Run("missing discrepancy", func(t *testing.T) {
		s := newTestService(newFakeReconRepo(), newFakeDonationRepo(), &fakeLedger{})
		_, err := s.ResolveDiscrepancy(ctx, 99, models.DiscrepancyStatusResolved, "", 3)
		assert.Error(t, err)
	})
}

func TestManualMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches reference and marks matched", func(t *testing.T) {
		d := &models.Donation{Amount: 80.00, PaymentStatus: models.PaymentStatusCompleted, DonatedAt: time.Now()}
		donations := newFakeDonationRepo(d)
		s := newTestService(newFakeReconRepo(), donations, &fakeLedger{})

		got, err := s.ManualMatch(ctx, d.ID, "ch_manual", 3)
		require.NoError(t, err)
		assert.Equal(t, "ch_manual", got.PaymentReference)
		assert.Equal(t, models.ReconStatusMatched, got.ReconciliationStatus)
	})

	t.Run("empty reference is rejected", func(t *testing.T) {
		s := newTestService(newFakeReconRepo(), newFakeDonationRepo(), &fakeLedger{})
		_, err := s.ManualMatch(ctx, 1, "", 3)
		assert.Error(t, err)
	})

	t.Run("missing donation", func(t *testing.T) {
		s := newTestService(newFakeReconRepo(), newFakeDonationRepo(), &fakeLedger{})
		_, err := s.ManualMatch(ctx, 42, "ch_x", 3)
		assert.Error(t, err)
	})
}
