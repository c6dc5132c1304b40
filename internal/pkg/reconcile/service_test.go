package reconcile

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/internal/pkg/stripeledger"
)

func newTestService(repo *fakeReconRepo, donations *fakeDonationRepo, ledger *fakeLedger) *Service {
	s := NewService(repo, donations, ledger)
	s.now = func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func windowInput() CreateInput {
	return CreateInput{
		Type:        models.ReconciliationTypeManual,
		StartDate:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC),
		InitiatedBy: 1,
	}
}

func TestCreateReconciliationFullRun(t *testing.T) {
	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	d1 := &models.Donation{Amount: 100.00, PaymentStatus: models.PaymentStatusCompleted, PaymentReference: "ch_1", DonatedAt: base}
	d2 := &models.Donation{Amount: 50.00, PaymentStatus: models.PaymentStatusCompleted, DonatedAt: base.Add(time.Hour)}
	d3 := &models.Donation{Amount: 75.00, PaymentStatus: models.PaymentStatusCompleted, DonatedAt: base.Add(2 * time.Hour)}
	donations := newFakeDonationRepo(d1, d2, d3)

	ledger := &fakeLedger{entries: []stripeledger.LedgerEntry{
		{StripeID: "txn_1", ChargeID: "ch_1", Type: "charge", Amount: 100.00, Fee: 3.20, Net: 96.80, Status: "available", CreatedAt: base},
		{StripeID: "txn_2", ChargeID: "ch_2", Type: "charge", Amount: 50.00, Status: "available", CreatedAt: base.Add(90 * time.Minute)},
		{StripeID: "txn_3", ChargeID: "ch_3", Type: "charge", Amount: 999.00, Status: "available", CreatedAt: base},
		{StripeID: "txn_4", Type: "payout", Amount: 140.00, Status: "available", CreatedAt: base},
	}}

	repo := newFakeReconRepo()
	s := newTestService(repo, donations, ledger)

	run, err := s.CreateReconciliation(context.Background(), windowInput())
	require.NoError(t, err)

	assert.Equal(t, models.ReconciliationStatusCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, 2, run.MatchedCount)
	assert.Equal(t, 1, run.UnmatchedDonationsCount)
	assert.Equal(t, 1, run.UnmatchedStripeCount)
	assert.Equal(t, 2, run.DiscrepancyCount)
	assert.InDelta(t, 225.00, run.TotalDonationAmount, 0.001)
	// Payouts stay out of the Stripe total.
	assert.InDelta(t, 1149.00, run.TotalStripeAmount, 0.001)
	assert.InDelta(t, 75.00+999.00, run.TotalDiscrepancyAmount, 0.001)

	// All four ledger entries were cached, payout included.
	assert.Len(t, repo.txns, 4)

	// The matched donations carry the outcome; the orphan is flagged.
	got1, _ := donations.GetByID(d1.ID)
	assert.Equal(t, models.ReconStatusMatched, got1.ReconciliationStatus)
	assert.InDelta(t, 3.20, got1.StripeFee, 0.001)
	assert.InDelta(t, 96.80, got1.NetAmount, 0.001)
	got3, _ := donations.GetByID(d3.ID)
	assert.Equal(t, models.ReconStatusDiscrepancy, got3.ReconciliationStatus)

	// One discrepancy per orphan, both high severity and open.
	discs, _ := repo.ListDiscrepancies(run.ID)
	require.Len(t, discs, 2)
	types := make(map[string]int)
	for _, d := range discs {
		assert.Equal(t, models.DiscrepancyStatusOpen, d.Status)
		assert.Equal(t, models.DiscrepancySeverityHigh, d.Severity)
		types[d.Type]++
	}
	assert.Equal(t, 1, types[models.DiscrepancyTypeMissingStripeTransaction])
	assert.Equal(t, 1, types[models.DiscrepancyTypeMissingDonation])
}

func TestCreateReconciliationRunNumberFormat(t *testing.T) {
	repo := newFakeReconRepo()
	s := newTestService(repo, newFakeDonationRepo(), &fakeLedger{})

	run, err := s.CreateReconciliation(context.Background(), windowInput())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^RECON-20260901-[0-9A-F]{6}$`), run.RunNumber)
}

func TestCreateReconciliationAmountMismatch(t *testing.T) {
	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	d := &models.Donation{Amount: 200.00, PaymentStatus: models.PaymentStatusCompleted, PaymentReference: "ch_1", DonatedAt: base}
	donations := newFakeDonationRepo(d)
	ledger := &fakeLedger{entries: []stripeledger.LedgerEntry{
		{StripeID: "txn_1", ChargeID: "ch_1", Type: "charge", Amount: 180.00, Status: "available", CreatedAt: base},
	}}

	repo := newFakeReconRepo()
	s := newTestService(repo, donations, ledger)

	var notified []*models.PaymentDiscrepancy
	s.SetNotifier(func(d *models.PaymentDiscrepancy) { notified = append(notified, d) })

	run, err := s.CreateReconciliation(context.Background(), windowInput())
	require.NoError(t, err)

	assert.Equal(t, 0, run.MatchedCount)
	assert.Equal(t, 1, run.DiscrepancyCount)
	assert.InDelta(t, 20.00, run.TotalDiscrepancyAmount, 0.001)

	items, _ := repo.ListItems(run.ID, "")
	require.Len(t, items, 1)
	assert.Equal(t, models.MatchStatusAmountMismatch, items[0].MatchStatus)
	assert.True(t, items[0].HasDiscrepancy)

	// $20 delta: high severity, below the notification threshold.
	discs, _ := repo.ListDiscrepancies(run.ID)
	require.Len(t, discs, 1)
	assert.Equal(t, models.DiscrepancySeverityHigh, discs[0].Severity)
	assert.Empty(t, notified)

	got, _ := donations.GetByID(d.ID)
	assert.Equal(t, models.ReconStatusDiscrepancy, got.ReconciliationStatus)
}

func TestCreateReconciliationCriticalMismatchNotifies(t *testing.T) {
	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	d := &models.Donation{Amount: 500.00, PaymentStatus: models.PaymentStatusCompleted, PaymentReference: "ch_1", DonatedAt: base}
	ledger := &fakeLedger{entries: []stripeledger.LedgerEntry{
		{StripeID: "txn_1", ChargeID: "ch_1", Type: "charge", Amount: 350.00, Status: "available", CreatedAt: base},
	}}

	repo := newFakeReconRepo()
	s := newTestService(repo, newFakeDonationRepo(d), ledger)

	var notified []*models.PaymentDiscrepancy
	s.SetNotifier(func(d *models.PaymentDiscrepancy) { notified = append(notified, d) })

	run, err := s.CreateReconciliation(context.Background(), windowInput())
	require.NoError(t, err)
	assert.Equal(t, 1, run.DiscrepancyCount)

	require.Len(t, notified, 1)
	assert.Equal(t, models.DiscrepancySeverityCritical, notified[0].Severity)
}

func TestCreateReconciliationLedgerFailure(t *testing.T) {
	repo := newFakeReconRepo()
	ledger := &fakeLedger{err: errors.New("stripe: connection refused")}
	s := newTestService(repo, newFakeDonationRepo(), ledger)

	run, err := s.CreateReconciliation(context.Background(), windowInput())
	assert.Nil(t, run)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLedgerUnavailable)

	// The run exists and is marked failed, never silently completed empty.
	require.Len(t, repo.runs, 1)
	for _, stored := range repo.runs {
		assert.Equal(t, models.ReconciliationStatusFailed, stored.Status)
		assert.Contains(t, stored.Notes, "fetch stripe ledger")
	}
}

func TestCreateReconciliationInputValidation(t *testing.T) {
	s := newTestService(newFakeReconRepo(), newFakeDonationRepo(), &fakeLedger{})

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"unknown type", func(in *CreateInput) { in.Type = "nightly" }},
		{"missing start", func(in *CreateInput) { in.StartDate = time.Time{} }},
		{"missing end", func(in *CreateInput) { in.EndDate = time.Time{} }},
		{"end before start", func(in *CreateInput) { in.EndDate = in.StartDate.Add(-time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := windowInput()
			tt.mutate(&in)
			_, err := s.CreateReconciliation(context.Background(), in)
			assert.Error(t, err)
		})
	}
}

func TestCreateReconciliationRerunIsIdempotentOnLedgerCache(t *testing.T) {
	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{entries: []stripeledger.LedgerEntry{
		{StripeID: "txn_1", ChargeID: "ch_1", Type: "charge", Amount: 10.00, Status: "available", CreatedAt: base},
		{StripeID: "txn_2", ChargeID: "ch_2", Type: "charge", Amount: 20.00, Status: "available", CreatedAt: base},
	}}

	repo := newFakeReconRepo()
	s := newTestService(repo, newFakeDonationRepo(), ledger)

	first, err := s.CreateReconciliation(context.Background(), windowInput())
	require.NoError(t, err)
	second, err := s.CreateReconciliation(context.Background(), windowInput())
	require.NoError(t, err)

	// Re-running an overlapping window creates a new run and new items but
	// upserts the same cached ledger rows.
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, repo.runs, 2)
	assert.Len(t, repo.txns, 2)

	firstItems, _ := repo.ListItems(first.ID, "")
	secondItems, _ := repo.ListItems(second.ID, "")
	assert.Len(t, firstItems, 2)
	assert.Len(t, secondItems, 2)
}
