package reconcile

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/app/repository"
	"github.com/causekit/causekit/internal/pkg/stripeledger"
)

// ErrLedgerUnavailable marks runs that failed because the external ledger
// could not be read. HTTP handlers map it to a 502.
var ErrLedgerUnavailable = errors.New("stripe ledger unavailable")

// LedgerSource lists external ledger entries for a date window. Satisfied by
// *stripeledger.Client; tests substitute a fake.
type LedgerSource interface {
	FetchEntries(ctx context.Context, start, end time.Time) ([]stripeledger.LedgerEntry, error)
}

// Service orchestrates reconciliation runs and owns the discrepancy
// lifecycle. All collaborators are injected.
type Service struct {
	repo      repository.ReconciliationRepository
	donations repository.DonationRepository
	ledger    LedgerSource

	// notify is called for every critical discrepancy; best-effort, may be nil.
	notify func(*models.PaymentDiscrepancy)
	now    func() time.Time
}

// NewService creates a reconciliation service from injected repositories and
// a ledger source.
func NewService(repo repository.ReconciliationRepository, donations repository.DonationRepository, ledger LedgerSource) *Service {
	return &Service{
		repo:      repo,
		donations: donations,
		ledger:    ledger,
		now:       time.Now,
	}
}

// SetNotifier installs a best-effort callback for critical discrepancies.
func (s *Service) SetNotifier(fn func(*models.PaymentDiscrepancy)) {
	s.notify = fn
}

// CreateInput describes a reconciliation run request.
type CreateInput struct {
	Type        string
	StartDate   time.Time
	EndDate     time.Time
	Notes       string
	InitiatedBy uint
}

func (in CreateInput) validate() error {
	switch in.Type {
	case models.ReconciliationTypeManual, models.ReconciliationTypeAutomatic, models.ReconciliationTypeScheduled:
	default:
		return fmt.Errorf("invalid reconciliation type %q", in.Type)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return errors.New("start_date and end_date are required")
	}
	if in.EndDate.Before(in.StartDate) {
		return errors.New("end_date must not be before start_date")
	}
	return nil
}

// CreateReconciliation executes one full reconciliation run: fetch the Stripe
// ledger for the window, cache it, match it against donations, persist the
// per-pair items, derive discrepancies and complete the run. A failure at any
// step marks the run failed and propagates the error; a thrown error is never
// a completed reconciliation. Each invocation creates a new run and new
// items, so historical runs stay an append-only audit log.
func (s *Service) CreateReconciliation(ctx context.Context, in CreateInput) (*models.PaymentReconciliation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	run := &models.PaymentReconciliation{
		RunNumber:   generateRunNumber(s.now()),
		Type:        in.Type,
		Status:      models.ReconciliationStatusInProgress,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Notes:       in.Notes,
		InitiatedBy: in.InitiatedBy,
	}
	if err := s.repo.CreateRun(run); err != nil {
		return nil, fmt.Errorf("create reconciliation run: %w", err)
	}

	entries, err := s.ledger.FetchEntries(ctx, in.StartDate, in.EndDate)
	if err != nil {
		// The run must not silently complete with an empty ledger.
		return nil, s.fail(run, "fetch stripe ledger", fmt.Errorf("%w: %v", ErrLedgerUnavailable, err))
	}

	cachedIDs, err := s.cacheEntries(run.ID, entries)
	if err != nil {
		return nil, s.fail(run, "cache stripe transactions", err)
	}

	donations, err := s.donations.GetInWindow(in.StartDate, in.EndDate, []string{
		models.PaymentStatusCompleted,
		models.PaymentStatusPending,
	})
	if err != nil {
		return nil, s.fail(run, "fetch donations", err)
	}

	result := MatchTransactions(donations, entries)

	items, err := s.persistItems(run, result, cachedIDs)
	if err != nil {
		return nil, s.fail(run, "persist reconciliation items", err)
	}

	if err := s.deriveDiscrepancies(run, items); err != nil {
		return nil, s.fail(run, "derive discrepancies", err)
	}

	s.aggregate(run, donations, entries, items)
	run.Status = models.ReconciliationStatusCompleted
	completedAt := s.now()
	run.CompletedAt = &completedAt
	if err := s.repo.UpdateRun(run); err != nil {
		return nil, s.fail(run, "complete reconciliation run", err)
	}

	log.Infof("[Reconcile] Run %s completed: %d matched, %d unmatched donations, %d unmatched stripe, %d discrepancies",
		run.RunNumber, run.MatchedCount, run.UnmatchedDonationsCount, run.UnmatchedStripeCount, run.DiscrepancyCount)
	return run, nil
}

// fail marks the run failed (completed runs are never re-opened) and wraps
// the step error for the caller.
func (s *Service) fail(run *models.PaymentReconciliation, step string, err error) error {
	if merr := s.repo.MarkRunFailed(run.ID, fmt.Sprintf("%s: %v", step, err)); merr != nil {
		log.Errorf("[Reconcile] Failed to mark run %s failed: %v", run.RunNumber, merr)
	}
	return fmt.Errorf("%s: %w", step, err)
}

// cacheEntries upserts the fetched ledger entries keyed by their Stripe id
// and returns the cached row id per Stripe id. The upsert makes repeated
// runs over overlapping windows idempotent.
func (s *Service) cacheEntries(runID uint, entries []stripeledger.LedgerEntry) (map[string]uint, error) {
	ids := make(map[string]uint, len(entries))
	for _, entry := range entries {
		txn := &models.StripeTransaction{
			StripeID:         entry.StripeID,
			ChargeID:         entry.ChargeID,
			Type:             entry.Type,
			Amount:           entry.Amount,
			Fee:              entry.Fee,
			Net:              entry.Net,
			Currency:         entry.Currency,
			Status:           entry.Status,
			Description:      entry.Description,
			AvailableOn:      entry.AvailableOn,
			StripeCreatedAt:  entry.CreatedAt,
			ReconciliationID: &runID,
		}
		if err := s.repo.UpsertStripeTransaction(txn); err != nil {
			return nil, err
		}
		ids[entry.StripeID] = txn.ID
	}
	return ids, nil
}

// persistItems writes one immutable item per matched pair and per orphan,
// and pushes the reconciliation outcome back onto the matched donations.
func (s *Service) persistItems(run *models.PaymentReconciliation, result MatchResult, cachedIDs map[string]uint) ([]models.ReconciliationItem, error) {
	items := make([]models.ReconciliationItem, 0, len(result.Matches)+len(result.UnmatchedDonations)+len(result.UnmatchedEntries))

	for _, m := range result.Matches {
		donation := m.Donation
		entry := m.Entry
		confidence := m.Confidence
		txnID := cachedIDs[entry.StripeID]

		item := models.ReconciliationItem{
			ReconciliationID:    run.ID,
			DonationID:          &donation.ID,
			StripeTransactionID: &txnID,
			DonationAmount:      &donation.Amount,
			StripeAmount:        &entry.Amount,
			DonationDate:        timePtr(donation.DonatedAt),
			StripeDate:          timePtr(entry.CreatedAt),
			DonationStatus:      donation.PaymentStatus,
			StripeStatus:        entry.Status,
			MatchConfidence:     &confidence,
		}

		diff := donation.Amount - entry.Amount
		if math.Abs(diff) < amountEpsilon {
			item.MatchStatus = models.MatchStatusMatched
			if err := s.donations.MarkReconciled(donation.ID, models.ReconStatusMatched, entry.Fee, entry.Net); err != nil {
				return nil, err
			}
		} else {
			item.MatchStatus = models.MatchStatusAmountMismatch
			item.HasDiscrepancy = true
			item.DiscrepancyType = models.DiscrepancyTypeAmountMismatch
			item.DiscrepancyAmount = math.Abs(diff)
			if err := s.donations.MarkReconciled(donation.ID, models.ReconStatusDiscrepancy, 0, 0); err != nil {
				return nil, err
			}
		}
		if err := s.repo.CreateItem(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	for _, donation := range result.UnmatchedDonations {
		donation := donation
		item := models.ReconciliationItem{
			ReconciliationID:  run.ID,
			DonationID:        &donation.ID,
			DonationAmount:    &donation.Amount,
			DonationDate:      timePtr(donation.DonatedAt),
			DonationStatus:    donation.PaymentStatus,
			MatchStatus:       models.MatchStatusUnmatchedDonation,
			HasDiscrepancy:    true,
			DiscrepancyType:   models.DiscrepancyTypeMissingStripeTransaction,
			DiscrepancyAmount: donation.Amount,
		}
		if err := s.donations.MarkReconciled(donation.ID, models.ReconStatusDiscrepancy, 0, 0); err != nil {
			return nil, err
		}
		if err := s.repo.CreateItem(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	for _, entry := range result.UnmatchedEntries {
		entry := entry
		txnID := cachedIDs[entry.StripeID]
		item := models.ReconciliationItem{
			ReconciliationID:    run.ID,
			StripeTransactionID: &txnID,
			StripeAmount:        &entry.Amount,
			StripeDate:          timePtr(entry.CreatedAt),
			StripeStatus:        entry.Status,
			MatchStatus:         models.MatchStatusUnmatchedStripe,
			HasDiscrepancy:      true,
			DiscrepancyType:     models.DiscrepancyTypeMissingDonation,
			DiscrepancyAmount:   entry.Amount,
		}
		if err := s.repo.CreateItem(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

// aggregate fills the run's counters and totals from the persisted items.
func (s *Service) aggregate(run *models.PaymentReconciliation, donations []models.Donation, entries []stripeledger.LedgerEntry, items []models.ReconciliationItem) {
	for _, d := range donations {
		run.TotalDonationAmount += d.Amount
	}
	for _, e := range entries {
		if e.IsCharge() {
			run.TotalStripeAmount += e.Amount
		}
	}
	for _, item := range items {
		switch item.MatchStatus {
		case models.MatchStatusMatched:
			run.MatchedCount++
		case models.MatchStatusUnmatchedDonation:
			run.UnmatchedDonationsCount++
		case models.MatchStatusUnmatchedStripe:
			run.UnmatchedStripeCount++
		}
		if item.HasDiscrepancy {
			run.DiscrepancyCount++
			run.TotalDiscrepancyAmount += item.DiscrepancyAmount
		}
	}
}

// generateRunNumber builds a date-prefixed human-readable run number with a
// random suffix, e.g. RECON-20260901-3FA2C1.
func generateRunNumber(now time.Time) string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	return fmt.Sprintf("RECON-%s-%s", now.Format("20060102"), strings.ToUpper(hex.EncodeToString(b)))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
