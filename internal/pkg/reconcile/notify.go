package reconcile

import (
	"fmt"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/internal/pkg/env"
	"github.com/causekit/causekit/internal/pkg/mail"
)

// NewMailNotifier returns a critical-discrepancy callback that emails the
// configured operations address. Returns nil when no address is configured.
// Send failures are logged inside the mailer and swallowed; alerting never
// affects the reconciliation run.
func NewMailNotifier() func(*models.PaymentDiscrepancy) {
	to := env.GetEnv("RECON_ALERT_EMAIL", "")
	if to == "" {
		return nil
	}
	return func(d *models.PaymentDiscrepancy) {
		subject := fmt.Sprintf("[CauseKit] Critical payment discrepancy #%d", d.ID)
		body := fmt.Sprintf(
			"<p>A critical payment discrepancy was found during reconciliation run %d.</p>"+
				"<p>%s</p><p>Amount: $%.2f</p>",
			d.ReconciliationID, d.Description, d.Amount,
		)
		_ = mail.SendMail(to, subject, body)
	}
}
