package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

const (
	ReconStatusUnreconciled = "unreconciled"
	ReconStatusMatched      = "matched"
	ReconStatusDiscrepancy  = "discrepancy"
)

// Donation is an internal payment record made by a constituent. The payment
// reference carries the Stripe charge or payment-intent id when the payment
// went through Stripe.
type Donation struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	UserID               uint           `gorm:"index" json:"user_id"`
	DonorName            string         `gorm:"type:varchar(200)" json:"donor_name" validate:"max=200"`
	DonorEmail           string         `gorm:"type:varchar(200);index" json:"donor_email" validate:"omitempty,email"`
	Amount               float64        `gorm:"type:decimal(12,2);not null" json:"amount" validate:"gt=0"`
	Currency             string         `gorm:"type:varchar(3);default:'usd'" json:"currency"`
	StripeFee            float64        `gorm:"type:decimal(12,2);default:0" json:"stripe_fee"`
	NetAmount            float64        `gorm:"type:decimal(12,2);default:0" json:"net_amount"`
	PaymentMethod        string         `gorm:"type:varchar(40)" json:"payment_method" validate:"max=40"`
	PaymentStatus        string         `gorm:"type:varchar(20);default:'pending';index" json:"payment_status" validate:"oneof=pending completed failed refunded"`
	PaymentReference     string         `gorm:"type:varchar(191);index" json:"payment_reference"`
	ReconciliationStatus string         `gorm:"type:varchar(20);default:'unreconciled';index" json:"reconciliation_status"`
	DonatedAt            time.Time      `gorm:"index" json:"donated_at"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *Donation) Validate() error {
	v := validator.New()
	return v.Struct(d)
}
