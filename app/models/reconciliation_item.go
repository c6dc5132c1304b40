package models

import "time"

const (
	MatchStatusMatched           = "matched"
	MatchStatusUnmatchedStripe   = "unmatched_stripe"
	MatchStatusUnmatchedDonation = "unmatched_donation"
	MatchStatusAmountMismatch    = "amount_mismatch"
	MatchStatusDateMismatch      = "date_mismatch"
)

const (
	MatchConfidenceHigh   = "high"
	MatchConfidenceMedium = "medium"
	MatchConfidenceLow    = "low"
)

const (
	DiscrepancyTypeMissingStripeTransaction = "missing_stripe_transaction"
	DiscrepancyTypeMissingDonation          = "missing_donation"
	DiscrepancyTypeAmountMismatch           = "amount_mismatch"
)

// ReconciliationItem is the per-pair-or-orphan outcome of one reconciliation
// run. Items are written once and never mutated; a later run writes new items.
type ReconciliationItem struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	ReconciliationID    uint       `gorm:"not null;index" json:"reconciliation_id"`
	DonationID          *uint      `gorm:"index" json:"donation_id,omitempty"`
	StripeTransactionID *uint      `gorm:"index" json:"stripe_transaction_id,omitempty"`
	DonationAmount      *float64   `gorm:"type:decimal(12,2)" json:"donation_amount,omitempty"`
	StripeAmount        *float64   `gorm:"type:decimal(12,2)" json:"stripe_amount,omitempty"`
	DonationDate        *time.Time `gorm:"type:timestamp;default:null" json:"donation_date,omitempty"`
	StripeDate          *time.Time `gorm:"type:timestamp;default:null" json:"stripe_date,omitempty"`
	DonationStatus      string     `gorm:"type:varchar(20)" json:"donation_status,omitempty"`
	StripeStatus        string     `gorm:"type:varchar(20)" json:"stripe_status,omitempty"`
	MatchStatus         string     `gorm:"type:varchar(30);not null;index" json:"match_status"`
	MatchConfidence     *string    `gorm:"type:varchar(10)" json:"match_confidence,omitempty"`
	HasDiscrepancy      bool       `gorm:"default:false;index" json:"has_discrepancy"`
	DiscrepancyType     string     `gorm:"type:varchar(40)" json:"discrepancy_type,omitempty"`
	DiscrepancyAmount   float64    `gorm:"type:decimal(12,2);default:0" json:"discrepancy_amount"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
