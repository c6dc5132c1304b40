package models

import "time"

const (
	ReconciliationTypeManual    = "manual"
	ReconciliationTypeAutomatic = "automatic"
	ReconciliationTypeScheduled = "scheduled"
)

const (
	ReconciliationStatusInProgress = "in_progress"
	ReconciliationStatusCompleted  = "completed"
	ReconciliationStatusFailed     = "failed"
)

// PaymentReconciliation is one run comparing internal donations against the
// Stripe ledger for a date window. Runs are append-only: re-reconciling an
// overlapping window creates a new run, never mutates an old one.
type PaymentReconciliation struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	RunNumber               string     `gorm:"type:varchar(40);uniqueIndex;not null" json:"run_number"`
	Type                    string     `gorm:"type:varchar(20);not null;default:'manual'" json:"type"`
	Status                  string     `gorm:"type:varchar(20);not null;default:'in_progress';index" json:"status"`
	StartDate               time.Time  `gorm:"not null" json:"start_date"`
	EndDate                 time.Time  `gorm:"not null" json:"end_date"`
	MatchedCount            int        `gorm:"default:0" json:"matched_count"`
	UnmatchedDonationsCount int        `gorm:"default:0" json:"unmatched_donations_count"`
	UnmatchedStripeCount    int        `gorm:"default:0" json:"unmatched_stripe_count"`
	DiscrepancyCount        int        `gorm:"default:0" json:"discrepancy_count"`
	TotalDonationAmount     float64    `gorm:"type:decimal(14,2);default:0" json:"total_donation_amount"`
	TotalStripeAmount       float64    `gorm:"type:decimal(14,2);default:0" json:"total_stripe_amount"`
	TotalDiscrepancyAmount  float64    `gorm:"type:decimal(14,2);default:0" json:"total_discrepancy_amount"`
	Notes                   string     `gorm:"type:text" json:"notes,omitempty"`
	InitiatedBy             uint       `gorm:"index" json:"initiated_by"`
	CompletedAt             *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt               time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
