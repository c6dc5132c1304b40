package repository

import (
	"sort"
	"strings"
	"time"

	"github.com/causekit/causekit/app/models"
	"gorm.io/gorm"
)

// webhookEndpointRepository implements the WebhookEndpointRepository interface
type webhookEndpointRepository struct {
	db *gorm.DB
}

// NewWebhookEndpointRepository creates a new webhook endpoint repository instance
func NewWebhookEndpointRepository(db *gorm.DB) WebhookEndpointRepository {
	return &webhookEndpointRepository{db: db}
}

// Create creates a new webhook endpoint in the database
func (r *webhookEndpointRepository) Create(endpoint *models.WebhookEndpoint) error {
	return r.db.Create(endpoint).Error
}

// GetByID retrieves a webhook endpoint by its ID
func (r *webhookEndpointRepository) GetByID(id uint) (*models.WebhookEndpoint, error) {
	var endpoint models.WebhookEndpoint
	err := r.db.First(&endpoint, id).Error
	if err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// GetByIDForUser retrieves a webhook endpoint by ID scoped to its owner
func (r *webhookEndpointRepository) GetByIDForUser(id, userID uint) (*models.WebhookEndpoint, error) {
	var endpoint models.WebhookEndpoint
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&endpoint).Error
	if err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// ListByUser retrieves all webhook endpoints owned by a user
func (r *webhookEndpointRepository) ListByUser(userID uint) ([]models.WebhookEndpoint, error) {
	var endpoints []models.WebhookEndpoint
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&endpoints).Error
	return endpoints, err
}

// ListActiveByEvent retrieves all active endpoints subscribed to the given
// event type. The events column is a JSON array, so a coarse LIKE narrows the
// candidates and the decoded subscription set decides.
func (r *webhookEndpointRepository) ListActiveByEvent(eventType string) ([]models.WebhookEndpoint, error) {
	var candidates []models.WebhookEndpoint
	pattern := "%\"" + strings.ReplaceAll(eventType, "%", "") + "\"%"
	err := r.db.
		Where("is_active = ?", true).
		Where("events LIKE ? OR events LIKE ?", pattern, "%\"*\"%").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	endpoints := make([]models.WebhookEndpoint, 0, len(candidates))
	for _, e := range candidates {
		if e.SubscribesTo(eventType) {
			endpoints = append(endpoints, e)
		}
	}
	return endpoints, nil
}

// Update updates an existing webhook endpoint in the database
func (r *webhookEndpointRepository) Update(endpoint *models.WebhookEndpoint) error {
	return r.db.Save(endpoint).Error
}

// Delete soft deletes a webhook endpoint; delivery history keeps referencing it
func (r *webhookEndpointRepository) Delete(id uint) error {
	return r.db.Delete(&models.WebhookEndpoint{}, id).Error
}

// UpdateLastDelivery records the outcome of the most recent delivery attempt
func (r *webhookEndpointRepository) UpdateLastDelivery(id uint, at time.Time, status string) error {
	return r.db.Model(&models.WebhookEndpoint{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_delivery_at":     at,
		"last_delivery_status": status,
	}).Error
}

// AddDeliveryCounts applies batched success/failure counter increments in a
// single UPDATE, mirroring the drain of the Redis-side delivery counters.
func (r *webhookEndpointRepository) AddDeliveryCounts(counts map[uint][2]int64) error {
	if len(counts) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var builder strings.Builder
	args := make([]interface{}, 0, len(ids)*6)
	builder.WriteString("UPDATE webhook_endpoints SET success_count = success_count + CASE id ")
	for _, id := range ids {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, id, counts[id][0])
	}
	builder.WriteString(" END, failure_count = failure_count + CASE id ")
	for _, id := range ids {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, id, counts[id][1])
	}
	builder.WriteString(" END WHERE id IN (")
	for i, id := range ids {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, id)
	}
	builder.WriteString(")")

	return r.db.Exec(builder.String(), args...).Error
}
