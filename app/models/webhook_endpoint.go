package models

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	LastDeliveryStatusSuccess = "success"
	LastDeliveryStatusFailed  = "failed"
	LastDeliveryStatusBlocked = "blocked"
)

// WebhookEndpoint is a registered destination URL with a signing secret and a
// set of subscribed event types. Endpoints are soft-deleted so delivery
// history stays referable.
type WebhookEndpoint struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	UserID             uint           `gorm:"not null;index" json:"user_id"`
	URL                string         `gorm:"type:varchar(2048);not null" json:"url" validate:"required,url,max=2048"`
	Description        string         `gorm:"type:varchar(500)" json:"description" validate:"max=500"`
	Secret             string         `gorm:"type:varchar(128);not null" json:"-"`
	Events             string         `gorm:"type:text;not null" json:"-"`
	IsActive           bool           `gorm:"default:true;index" json:"is_active"`
	LastDeliveryAt     *time.Time     `gorm:"type:timestamp;default:null" json:"last_delivery_at,omitempty"`
	LastDeliveryStatus string         `gorm:"type:varchar(20)" json:"last_delivery_status,omitempty"`
	SuccessCount       uint64         `gorm:"default:0" json:"success_count"`
	FailureCount       uint64         `gorm:"default:0" json:"failure_count"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (e *WebhookEndpoint) Validate() error {
	v := validator.New()
	return v.Struct(e)
}

// EventList decodes the persisted event subscription set.
func (e *WebhookEndpoint) EventList() []string {
	var events []string
	if err := json.Unmarshal([]byte(e.Events), &events); err != nil {
		return nil
	}
	return events
}

// SetEventList encodes and stores the event subscription set.
func (e *WebhookEndpoint) SetEventList(events []string) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}
	e.Events = string(data)
	return nil
}

// SubscribesTo reports whether the endpoint subscribed to the given event type.
func (e *WebhookEndpoint) SubscribesTo(eventType string) bool {
	for _, ev := range e.EventList() {
		if ev == eventType || ev == "*" {
			return true
		}
	}
	return false
}

// GenerateWebhookSecret creates a new random signing secret.
func GenerateWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
