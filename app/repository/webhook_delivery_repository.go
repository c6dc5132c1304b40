package repository

import (
	"time"

	"github.com/causekit/causekit/app/models"
	"gorm.io/gorm"
)

// webhookDeliveryRepository implements the WebhookDeliveryRepository interface
type webhookDeliveryRepository struct {
	db *gorm.DB
}

// NewWebhookDeliveryRepository creates a new webhook delivery repository instance
func NewWebhookDeliveryRepository(db *gorm.DB) WebhookDeliveryRepository {
	return &webhookDeliveryRepository{db: db}
}

// Create creates a new delivery row in pending state
func (r *webhookDeliveryRepository) Create(delivery *models.WebhookDelivery) error {
	return r.db.Create(delivery).Error
}

// GetByID retrieves a delivery by its ID
func (r *webhookDeliveryRepository) GetByID(id uint) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	err := r.db.First(&delivery, id).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// ListByEndpoint retrieves delivery history for an endpoint, newest first
func (r *webhookDeliveryRepository) ListByEndpoint(endpointID uint, limit int) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := r.db.
		Where("endpoint_id = ?", endpointID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

// ListDueRetries retrieves retrying deliveries whose next_retry_at has passed
// and whose endpoint is still active. The join keeps deliveries for disabled
// or deleted endpoints out of the batch.
func (r *webhookDeliveryRepository) ListDueRetries(now time.Time, limit int) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := r.db.
		Joins("JOIN webhook_endpoints ON webhook_endpoints.id = webhook_deliveries.endpoint_id").
		Where("webhook_deliveries.status = ?", models.DeliveryStatusRetrying).
		Where("webhook_deliveries.next_retry_at <= ?", now).
		Where("webhook_endpoints.is_active = ?", true).
		Where("webhook_endpoints.deleted_at IS NULL").
		Order("webhook_deliveries.next_retry_at ASC").
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

// ClaimRetrying conditionally flips a delivery from retrying back to pending.
// A second concurrent processor finds zero rows affected and skips the row.
func (r *webhookDeliveryRepository) ClaimRetrying(id uint) (bool, error) {
	tx := r.db.Model(&models.WebhookDelivery{}).
		Where("id = ? AND status = ?", id, models.DeliveryStatusRetrying).
		Updates(map[string]interface{}{
			"status":        models.DeliveryStatusPending,
			"next_retry_at": nil,
		})
	return tx.RowsAffected > 0, tx.Error
}

// MarkSuccess transitions a non-terminal delivery to success
func (r *webhookDeliveryRepository) MarkSuccess(id uint, responseStatus int, responseBody string, deliveredAt time.Time) (bool, error) {
	tx := r.db.Model(&models.WebhookDelivery{}).
		Where("id = ? AND status IN ?", id, []string{models.DeliveryStatusPending, models.DeliveryStatusRetrying}).
		Updates(map[string]interface{}{
			"status":          models.DeliveryStatusSuccess,
			"response_status": responseStatus,
			"response_body":   responseBody,
			"delivered_at":    deliveredAt,
			"next_retry_at":   nil,
		})
	return tx.RowsAffected > 0, tx.Error
}

// MarkRetrying records a failed attempt and schedules the next one
func (r *webhookDeliveryRepository) MarkRetrying(id uint, attempts int, nextRetryAt time.Time, responseStatus *int, errMsg string) (bool, error) {
	tx := r.db.Model(&models.WebhookDelivery{}).
		Where("id = ? AND status IN ?", id, []string{models.DeliveryStatusPending, models.DeliveryStatusRetrying}).
		Updates(map[string]interface{}{
			"status":          models.DeliveryStatusRetrying,
			"attempts":        attempts,
			"next_retry_at":   nextRetryAt,
			"response_status": responseStatus,
			"error_message":   errMsg,
		})
	return tx.RowsAffected > 0, tx.Error
}

// MarkFailed transitions a delivery to its terminal failed state
func (r *webhookDeliveryRepository) MarkFailed(id uint, attempts int, responseStatus *int, errMsg string) (bool, error) {
	tx := r.db.Model(&models.WebhookDelivery{}).
		Where("id = ? AND status IN ?", id, []string{models.DeliveryStatusPending, models.DeliveryStatusRetrying}).
		Updates(map[string]interface{}{
			"status":          models.DeliveryStatusFailed,
			"attempts":        attempts,
			"next_retry_at":   nil,
			"response_status": responseStatus,
			"error_message":   errMsg,
		})
	return tx.RowsAffected > 0, tx.Error
}

// CountByEndpointAndStatus counts deliveries for an endpoint in a given status
func (r *webhookDeliveryRepository) CountByEndpointAndStatus(endpointID uint, status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.WebhookDelivery{}).
		Where("endpoint_id = ? AND status = ?", endpointID, status).
		Count(&count).Error
	return count, err
}
