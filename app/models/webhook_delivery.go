package models

import "time"

const (
	DeliveryStatusPending  = "pending"
	DeliveryStatusSuccess  = "success"
	DeliveryStatusFailed   = "failed"
	DeliveryStatusRetrying = "retrying"
)

// WebhookDelivery is one attempted (and possibly retried) transmission of one
// event to one endpoint. The payload snapshot is immutable once created; the
// row is mutated in place on each attempt and becomes terminal at success or
// when attempts reach the maximum.
type WebhookDelivery struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	EndpointID     uint       `gorm:"not null;index:idx_webhook_deliveries_endpoint_created,priority:1" json:"endpoint_id"`
	EventID        string     `gorm:"type:varchar(64);not null;index" json:"event_id"`
	EventType      string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload        string     `gorm:"type:longtext;not null" json:"payload"`
	ResponseStatus *int       `gorm:"default:null" json:"response_status,omitempty"`
	ResponseBody   string     `gorm:"type:text" json:"response_body,omitempty"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_webhook_deliveries_status_retry,priority:1" json:"status"`
	Attempts       int        `gorm:"not null;default:0" json:"attempts"`
	NextRetryAt    *time.Time `gorm:"type:timestamp;default:null;index:idx_webhook_deliveries_status_retry,priority:2" json:"next_retry_at,omitempty"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	DeliveredAt    *time.Time `gorm:"type:timestamp;default:null" json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index:idx_webhook_deliveries_endpoint_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the delivery reached a final state.
func (d *WebhookDelivery) IsTerminal() bool {
	return d.Status == DeliveryStatusSuccess || d.Status == DeliveryStatusFailed
}
