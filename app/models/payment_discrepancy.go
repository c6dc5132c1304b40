package models

import "time"

const (
	DiscrepancySeverityLow      = "low"
	DiscrepancySeverityMedium   = "medium"
	DiscrepancySeverityHigh     = "high"
	DiscrepancySeverityCritical = "critical"
)

const (
	DiscrepancyStatusOpen          = "open"
	DiscrepancyStatusInvestigating = "investigating"
	DiscrepancyStatusResolved      = "resolved"
	DiscrepancyStatusClosed        = "closed"
	DiscrepancyStatusIgnored       = "ignored"
)

// PaymentDiscrepancy is a flagged issue derived from a reconciliation item,
// carrying a manual-resolution lifecycle: open -> investigating ->
// resolved | closed | ignored. Resolved discrepancies are terminal; only a
// fresh run creates a new discrepancy for the same underlying record.
type PaymentDiscrepancy struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	ReconciliationID    uint       `gorm:"not null;index" json:"reconciliation_id"`
	ItemID              uint       `gorm:"not null;index" json:"item_id"`
	DonationID          *uint      `gorm:"index" json:"donation_id,omitempty"`
	StripeTransactionID *uint      `gorm:"index" json:"stripe_transaction_id,omitempty"`
	Type                string     `gorm:"type:varchar(40);not null" json:"type"`
	Severity            string     `gorm:"type:varchar(10);not null;index" json:"severity"`
	Description         string     `gorm:"type:text" json:"description"`
	Amount              float64    `gorm:"type:decimal(12,2);default:0" json:"amount"`
	Status              string     `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	ResolutionNotes     string     `gorm:"type:text" json:"resolution_notes,omitempty"`
	ResolvedBy          *uint      `json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the discrepancy lifecycle is finished.
func (d *PaymentDiscrepancy) IsTerminal() bool {
	switch d.Status {
	case DiscrepancyStatusResolved, DiscrepancyStatusClosed, DiscrepancyStatusIgnored:
		return true
	}
	return false
}
