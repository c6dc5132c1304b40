package repository

import (
	"time"

	"github.com/causekit/causekit/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	TouchAPIKeyUsage(id uint, usedAt time.Time) error
}

// DonationRepository defines the interface for donation-related database operations
type DonationRepository interface {
	Create(donation *models.Donation) error
	GetByID(id uint) (*models.Donation, error)
	GetByPaymentReference(ref string) (*models.Donation, error)
	GetInWindow(start, end time.Time, paymentStatuses []string) ([]models.Donation, error)
	Update(donation *models.Donation) error
	MarkReconciled(id uint, status string, fee, net float64) error
	SetManualMatch(id uint, paymentReference string) error
}

// WebhookEndpointRepository defines the interface for webhook endpoint operations
type WebhookEndpointRepository interface {
	Create(endpoint *models.WebhookEndpoint) error
	GetByID(id uint) (*models.WebhookEndpoint, error)
	GetByIDForUser(id, userID uint) (*models.WebhookEndpoint, error)
	ListByUser(userID uint) ([]models.WebhookEndpoint, error)
	ListActiveByEvent(eventType string) ([]models.WebhookEndpoint, error)
	Update(endpoint *models.WebhookEndpoint) error
	Delete(id uint) error
	UpdateLastDelivery(id uint, at time.Time, status string) error
	AddDeliveryCounts(counts map[uint][2]int64) error
}

// WebhookDeliveryRepository defines the interface for delivery history operations.
// Status transitions are conditional single-row updates so two overlapping
// retry processors can never advance the same delivery twice.
type WebhookDeliveryRepository interface {
	Create(delivery *models.WebhookDelivery) error
	GetByID(id uint) (*models.WebhookDelivery, error)
	ListByEndpoint(endpointID uint, limit int) ([]models.WebhookDelivery, error)
	ListDueRetries(now time.Time, limit int) ([]models.WebhookDelivery, error)
	ClaimRetrying(id uint) (bool, error)
	MarkSuccess(id uint, responseStatus int, responseBody string, deliveredAt time.Time) (bool, error)
	MarkRetrying(id uint, attempts int, nextRetryAt time.Time, responseStatus *int, errMsg string) (bool, error)
	MarkFailed(id uint, attempts int, responseStatus *int, errMsg string) (bool, error)
	CountByEndpointAndStatus(endpointID uint, status string) (int64, error)
}

// ReconciliationRepository defines the interface for reconciliation runs,
// items, discrepancies and the cached Stripe transaction rows.
type ReconciliationRepository interface {
	CreateRun(run *models.PaymentReconciliation) error
	GetRun(id uint) (*models.PaymentReconciliation, error)
	ListRuns(offset, limit int) ([]models.PaymentReconciliation, error)
	UpdateRun(run *models.PaymentReconciliation) error
	MarkRunFailed(id uint, notes string) error

	CreateItem(item *models.ReconciliationItem) error
	ListItems(reconciliationID uint, matchStatus string) ([]models.ReconciliationItem, error)
	ListDiscrepancyItems(reconciliationID uint) ([]models.ReconciliationItem, error)

	CreateDiscrepancy(d *models.PaymentDiscrepancy) error
	GetDiscrepancy(id uint) (*models.PaymentDiscrepancy, error)
	ListDiscrepancies(reconciliationID uint) ([]models.PaymentDiscrepancy, error)
	UpdateDiscrepancy(d *models.PaymentDiscrepancy) error

	UpsertStripeTransaction(txn *models.StripeTransaction) error
	GetStripeTransactionByStripeID(stripeID string) (*models.StripeTransaction, error)
	ListStripeTransactionsInWindow(start, end time.Time) ([]models.StripeTransaction, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User            UserRepository
	Donation        DonationRepository
	WebhookEndpoint WebhookEndpointRepository
	WebhookDelivery WebhookDeliveryRepository
	Reconciliation  ReconciliationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		Donation:        NewDonationRepository(db),
		WebhookEndpoint: NewWebhookEndpointRepository(db),
		WebhookDelivery: NewWebhookDeliveryRepository(db),
		Reconciliation:  NewReconciliationRepository(db),
	}
}
