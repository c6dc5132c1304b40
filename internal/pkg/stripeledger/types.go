package stripeledger

import "time"

// LedgerEntry is the internal shape of one Stripe balance transaction. The
// Stripe wire format never leaves this package; the matcher and the
// reconciliation service only ever see LedgerEntry.
type LedgerEntry struct {
	StripeID    string
	ChargeID    string
	Type        string
	Amount      float64
	Fee         float64
	Net         float64
	Currency    string
	Status      string
	Description string
	AvailableOn *time.Time
	CreatedAt   time.Time
}

// IsCharge reports whether the entry represents a customer payment.
func (e LedgerEntry) IsCharge() bool {
	return e.Type == "charge" || e.Type == "payment"
}

// balanceTransaction mirrors Stripe's /v1/balance_transactions objects.
// Amounts are integer minor units (cents).
type balanceTransaction struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Fee         int64  `json:"fee"`
	Net         int64  `json:"net"`
	Currency    string `json:"currency"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Created     int64  `json:"created"`
	AvailableOn int64  `json:"available_on"`
}

func (t balanceTransaction) toLedgerEntry() LedgerEntry {
	entry := LedgerEntry{
		StripeID:    t.ID,
		ChargeID:    t.Source,
		Type:        t.Type,
		Amount:      float64(t.Amount) / 100,
		Fee:         float64(t.Fee) / 100,
		Net:         float64(t.Net) / 100,
		Currency:    t.Currency,
		Status:      t.Status,
		Description: t.Description,
		CreatedAt:   time.Unix(t.Created, 0).UTC(),
	}
	if t.AvailableOn > 0 {
		avail := time.Unix(t.AvailableOn, 0).UTC()
		entry.AvailableOn = &avail
	}
	return entry
}
