package models

import "time"

// StripeTransaction caches one Stripe balance transaction locally. Rows are
// upserted by StripeID on every fetch, so repeated reconciliation runs over
// overlapping windows never duplicate the cache. The cache is a snapshot, not
// a source of truth.
type StripeTransaction struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	StripeID         string     `gorm:"type:varchar(191);uniqueIndex;not null" json:"stripe_id"`
	ChargeID         string     `gorm:"type:varchar(191);index" json:"charge_id"`
	Type             string     `gorm:"type:varchar(40);not null;index" json:"type"`
	Amount           float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	Fee              float64    `gorm:"type:decimal(12,2);default:0" json:"fee"`
	Net              float64    `gorm:"type:decimal(12,2);default:0" json:"net"`
	Currency         string     `gorm:"type:varchar(3);default:'usd'" json:"currency"`
	Status           string     `gorm:"type:varchar(20)" json:"status"`
	Description      string     `gorm:"type:varchar(500)" json:"description,omitempty"`
	AvailableOn      *time.Time `gorm:"type:timestamp;default:null" json:"available_on,omitempty"`
	StripeCreatedAt  time.Time  `gorm:"index" json:"stripe_created_at"`
	ReconciliationID *uint      `gorm:"index" json:"reconciliation_id,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
