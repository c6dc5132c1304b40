package reconcile

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/internal/pkg/stripeledger"
)

// fakeLedger is an in-memory LedgerSource.
type fakeLedger struct {
	entries []stripeledger.LedgerEntry
	err     error
	calls   int
}

func (l *fakeLedger) FetchEntries(ctx context.Context, start, end time.Time) ([]stripeledger.LedgerEntry, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.entries, nil
}

// fakeReconRepo is an in-memory ReconciliationRepository.
type fakeReconRepo struct {
	nextRunID  uint
	nextItemID uint
	nextDiscID uint
	nextTxnID  uint

	runs  map[uint]*models.PaymentReconciliation
	items []*models.ReconciliationItem
	discs map[uint]*models.PaymentDiscrepancy
	txns  map[string]*models.StripeTransaction
}

func newFakeReconRepo() *fakeReconRepo {
	return &fakeReconRepo{
		runs:  make(map[uint]*models.PaymentReconciliation),
		discs: make(map[uint]*models.PaymentDiscrepancy),
		txns:  make(map[string]*models.StripeTransaction),
	}
}

func (r *fakeReconRepo) CreateRun(run *models.PaymentReconciliation) error {
	r.nextRunID++
	run.ID = r.nextRunID
	r.runs[run.ID] = run
	return nil
}

func (r *fakeReconRepo) GetRun(id uint) (*models.PaymentReconciliation, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return run, nil
}

func (r *fakeReconRepo) ListRuns(offset, limit int) ([]models.PaymentReconciliation, error) {
	var out []models.PaymentReconciliation
	for _, run := range r.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (r *fakeReconRepo) UpdateRun(run *models.PaymentReconciliation) error {
	r.runs[run.ID] = run
	return nil
}

func (r *fakeReconRepo) MarkRunFailed(id uint, notes string) error {
	run, ok := r.runs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if run.Status != models.ReconciliationStatusCompleted {
		run.Status = models.ReconciliationStatusFailed
		run.Notes = notes
	}
	return nil
}

func (r *fakeReconRepo) CreateItem(item *models.ReconciliationItem) error {
	r.nextItemID++
	item.ID = r.nextItemID
	cp := *item
	r.items = append(r.items, &cp)
	return nil
}

func (r *fakeReconRepo) ListItems(reconciliationID uint, matchStatus string) ([]models.ReconciliationItem, error) {
	var out []models.ReconciliationItem
	for _, item := range r.items {
		if item.ReconciliationID != reconciliationID {
			continue
		}
		if matchStatus != "" && item.MatchStatus != matchStatus {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (r *fakeReconRepo) ListDiscrepancyItems(reconciliationID uint) ([]models.ReconciliationItem, error) {
	var out []models.ReconciliationItem
	for _, item := range r.items {
		if item.ReconciliationID == reconciliationID && item.HasDiscrepancy {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (r *fakeReconRepo) CreateDiscrepancy(d *models.PaymentDiscrepancy) error {
	r.nextDiscID++
	d.ID = r.nextDiscID
	cp := *d
	r.discs[d.ID] = &cp
	return nil
}

func (r *fakeReconRepo) GetDiscrepancy(id uint) (*models.PaymentDiscrepancy, error) {
	d, ok := r.discs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeReconRepo) ListDiscrepancies(reconciliationID uint) ([]models.PaymentDiscrepancy, error) {
	var out []models.PaymentDiscrepancy
	for _, d := range r.discs {
		if d.ReconciliationID == reconciliationID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeReconRepo) UpdateDiscrepancy(d *models.PaymentDiscrepancy) error {
	if _, ok := r.discs[d.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *d
	r.discs[d.ID] = &cp
	return nil
}

func (r *fakeReconRepo) UpsertStripeTransaction(txn *models.StripeTransaction) error {
	if existing, ok := r.txns[txn.StripeID]; ok {
		txn.ID = existing.ID
	} else {
		r.nextTxnID++
		txn.ID = r.nextTxnID
	}
	cp := *txn
	r.txns[txn.StripeID] = &cp
	return nil
}

func (r *fakeReconRepo) GetStripeTransactionByStripeID(stripeID string) (*models.StripeTransaction, error) {
	txn, ok := r.txns[stripeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *txn
	return &cp, nil
}

func (r *fakeReconRepo) ListStripeTransactionsInWindow(start, end time.Time) ([]models.StripeTransaction, error) {
	var out []models.StripeTransaction
	for _, txn := range r.txns {
		out = append(out, *txn)
	}
	return out, nil
}

// fakeDonationRepo is an in-memory DonationRepository.
type fakeDonationRepo struct {
	nextID    uint
	donations map[uint]*models.Donation
}

func newFakeDonationRepo(donations ...*models.Donation) *fakeDonationRepo {
	r := &fakeDonationRepo{donations: make(map[uint]*models.Donation)}
	for _, d := range donations {
		_ = r.Create(d)
	}
	return r
}

func (r *fakeDonationRepo) Create(d *models.Donation) error {
	r.nextID++
	d.ID = r.nextID
	r.donations[d.ID] = d
	return nil
}

func (r *fakeDonationRepo) GetByID(id uint) (*models.Donation, error) {
	d, ok := r.donations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDonationRepo) GetByPaymentReference(ref string) (*models.Donation, error) {
	for _, d := range r.donations {
		if d.PaymentReference == ref {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeDonationRepo) GetInWindow(start, end time.Time, paymentStatuses []string) ([]models.Donation, error) {
	allowed := make(map[string]struct{}, len(paymentStatuses))
	for _, s := range paymentStatuses {
		allowed[s] = struct{}{}
	}
	var out []models.Donation
	for _, d := range r.donations {
		if d.DonatedAt.Before(start) || d.DonatedAt.After(end) {
			continue
		}
		if _, ok := allowed[d.PaymentStatus]; !ok {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeDonationRepo) Update(d *models.Donation) error {
	r.donations[d.ID] = d
	return nil
}

func (r *fakeDonationRepo) MarkReconciled(id uint, status string, fee, net float64) error {
	d, ok := r.donations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.ReconciliationStatus = status
	if status == models.ReconStatusMatched {
		d.StripeFee = fee
		d.NetAmount = net
	}
	return nil
}

func (r *fakeDonationRepo) SetManualMatch(id uint, paymentReference string) error {
	d, ok := r.donations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.PaymentReference = paymentReference
	d.ReconciliationStatus = models.ReconStatusMatched
	return nil
}
