package repository

import (
	"time"

	"github.com/causekit/causekit/app/models"
	"gorm.io/gorm"
)

// donationRepository implements the DonationRepository interface
type donationRepository struct {
	db *gorm.DB
}

// NewDonationRepository creates a new donation repository instance
func NewDonationRepository(db *gorm.DB) DonationRepository {
	return &donationRepository{db: db}
}

// Create creates a new donation in the database
func (r *donationRepository) Create(donation *models.Donation) error {
	return r.db.Create(donation).Error
}

// GetByID retrieves a donation by its ID
func (r *donationRepository) GetByID(id uint) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.First(&donation, id).Error
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

// GetByPaymentReference retrieves a donation by its Stripe payment reference
func (r *donationRepository) GetByPaymentReference(ref string) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.Where("payment_reference = ?", ref).First(&donation).Error
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

// GetInWindow retrieves donations inside a date window restricted to the given
// payment statuses, ordered oldest first for stable matcher iteration.
func (r *donationRepository) GetInWindow(start, end time.Time, paymentStatuses []string) ([]models.Donation, error) {
	var donations []models.Donation
	err := r.db.
		Where("donated_at >= ? AND donated_at <= ?", start, end).
		Where("payment_status IN ?", paymentStatuses).
		Order("donated_at ASC").
		Find(&donations).Error
	return donations, err
}

// Update updates an existing donation in the database
func (r *donationRepository) Update(donation *models.Donation) error {
	return r.db.Save(donation).Error
}

// MarkReconciled writes the reconciliation outcome onto a donation, storing
// the Stripe fee and net amounts when the donation matched.
func (r *donationRepository) MarkReconciled(id uint, status string, fee, net float64) error {
	updates := map[string]interface{}{
		"reconciliation_status": status,
	}
	if status == models.ReconStatusMatched {
		updates["stripe_fee"] = fee
		updates["net_amount"] = net
	}
	return r.db.Model(&models.Donation{}).Where("id = ?", id).Updates(updates).Error
}

// SetManualMatch attaches a Stripe reference to a donation and marks it
// matched, bypassing the automatic matcher.
func (r *donationRepository) SetManualMatch(id uint, paymentReference string) error {
	return r.db.Model(&models.Donation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"payment_reference":     paymentReference,
		"reconciliation_status": models.ReconStatusMatched,
	}).Error
}
