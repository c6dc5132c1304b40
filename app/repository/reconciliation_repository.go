package repository

import (
	"time"

	"github.com/causekit/causekit/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// reconciliationRepository implements the ReconciliationRepository interface
type reconciliationRepository struct {
	db *gorm.DB
}

// NewReconciliationRepository creates a new reconciliation repository instance
func NewReconciliationRepository(db *gorm.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

// CreateRun inserts a new reconciliation run row
func (r *reconciliationRepository) CreateRun(run *models.PaymentReconciliation) error {
	return r.db.Create(run).Error
}

// GetRun retrieves a reconciliation run by its ID
func (r *reconciliationRepository) GetRun(id uint) (*models.PaymentReconciliation, error) {
	var run models.PaymentReconciliation
	err := r.db.First(&run, id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns retrieves reconciliation runs, newest first
func (r *reconciliationRepository) ListRuns(offset, limit int) ([]models.PaymentReconciliation, error) {
	var runs []models.PaymentReconciliation
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&runs).Error
	return runs, err
}

// UpdateRun updates an existing reconciliation run
func (r *reconciliationRepository) UpdateRun(run *models.PaymentReconciliation) error {
	return r.db.Save(run).Error
}

// MarkRunFailed flags a run as failed unless it already completed. Completed
// runs are never re-opened.
func (r *reconciliationRepository) MarkRunFailed(id uint, notes string) error {
	return r.db.Model(&models.PaymentReconciliation{}).
		Where("id = ? AND status = ?", id, models.ReconciliationStatusInProgress).
		Updates(map[string]interface{}{
			"status": models.ReconciliationStatusFailed,
			"notes":  notes,
		}).Error
}

// CreateItem inserts a reconciliation item; items are never updated afterwards
func (r *reconciliationRepository) CreateItem(item *models.ReconciliationItem) error {
	return r.db.Create(item).Error
}

// ListItems retrieves items for a run, optionally filtered by match status
func (r *reconciliationRepository) ListItems(reconciliationID uint, matchStatus string) ([]models.ReconciliationItem, error) {
	var items []models.ReconciliationItem
	q := r.db.Where("reconciliation_id = ?", reconciliationID)
	if matchStatus != "" {
		q = q.Where("match_status = ?", matchStatus)
	}
	err := q.Order("id ASC").Find(&items).Error
	return items, err
}

// ListDiscrepancyItems retrieves the items of a run flagged with a discrepancy
func (r *reconciliationRepository) ListDiscrepancyItems(reconciliationID uint) ([]models.ReconciliationItem, error) {
	var items []models.ReconciliationItem
	err := r.db.
		Where("reconciliation_id = ? AND has_discrepancy = ?", reconciliationID, true).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// CreateDiscrepancy inserts a new payment discrepancy
func (r *reconciliationRepository) CreateDiscrepancy(d *models.PaymentDiscrepancy) error {
	return r.db.Create(d).Error
}

// GetDiscrepancy retrieves a discrepancy by its ID
func (r *reconciliationRepository) GetDiscrepancy(id uint) (*models.PaymentDiscrepancy, error) {
	var d models.PaymentDiscrepancy
	err := r.db.First(&d, id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDiscrepancies retrieves the discrepancies derived from a run
func (r *reconciliationRepository) ListDiscrepancies(reconciliationID uint) ([]models.PaymentDiscrepancy, error) {
	var ds []models.PaymentDiscrepancy
	err := r.db.Where("reconciliation_id = ?", reconciliationID).Order("id ASC").Find(&ds).Error
	return ds, err
}

// UpdateDiscrepancy updates an existing discrepancy
func (r *reconciliationRepository) UpdateDiscrepancy(d *models.PaymentDiscrepancy) error {
	return r.db.Save(d).Error
}

// UpsertStripeTransaction caches a Stripe balance transaction keyed by its
// Stripe id. A second fetch of the same transaction updates in place, so
// repeated runs over overlapping windows never duplicate the cache.
func (r *reconciliationRepository) UpsertStripeTransaction(txn *models.StripeTransaction) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"charge_id",
			"type",
			"amount",
			"fee",
			"net",
			"currency",
			"status",
			"description",
			"available_on",
			"stripe_created_at",
			"reconciliation_id",
			"updated_at",
		}),
	}).Create(txn).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("stripe_id = ?", txn.StripeID).First(txn).Error
}

// GetStripeTransactionByStripeID retrieves a cached transaction by Stripe id
func (r *reconciliationRepository) GetStripeTransactionByStripeID(stripeID string) (*models.StripeTransaction, error) {
	var txn models.StripeTransaction
	err := r.db.Where("stripe_id = ?", stripeID).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListStripeTransactionsInWindow retrieves cached transactions created inside
// a date window, oldest first for stable matcher iteration.
func (r *reconciliationRepository) ListStripeTransactionsInWindow(start, end time.Time) ([]models.StripeTransaction, error) {
	var txns []models.StripeTransaction
	err := r.db.
		Where("stripe_created_at >= ? AND stripe_created_at <= ?", start, end).
		Order("stripe_created_at ASC").
		Find(&txns).Error
	return txns, err
}
