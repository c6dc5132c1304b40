package reconcile

import (
	"math"
	"sort"
	"time"

	"github.com/causekit/causekit/app/models"
	"github.com/causekit/causekit/internal/pkg/stripeledger"
)

const (
	// amountEpsilon is the currency-equality tolerance for float amounts.
	amountEpsilon = 0.01

	// dateWindow is how far apart a donation and a charge may sit for a
	// medium-confidence match.
	dateWindow = 24 * time.Hour
)

// Match pairs one donation with one ledger entry at a confidence tier.
type Match struct {
	Donation   models.Donation
	Entry      stripeledger.LedgerEntry
	Confidence string
}

// MatchResult is the three-way partition produced by MatchTransactions.
// Unmatched ledger entries are filtered to charge-type only; fees, payouts
// and adjustments have no donation counterpart by definition.
type MatchResult struct {
	Matches            []Match
	UnmatchedDonations []models.Donation
	UnmatchedEntries   []stripeledger.LedgerEntry
}

// MatchTransactions runs the two-pass matcher:
//
//  1. High confidence: a donation carrying a payment reference matches the
//     entry whose charge id (or balance-transaction id) equals it. Reference
//     matches always win over coincidental amount/date matches.
//  2. Medium confidence: remaining donations match the first remaining charge
//     entry with an equal amount (within epsilon) dated within 24 hours.
//
// The medium pass is first-fit, not globally optimal. Entries are sorted by
// creation time ascending beforehand, so ties between equally qualifying
// entries resolve to the oldest one deterministically.
func MatchTransactions(donations []models.Donation, entries []stripeledger.LedgerEntry) MatchResult {
	sorted := make([]stripeledger.LedgerEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	entryUsed := make([]bool, len(sorted))
	donationMatched := make([]bool, len(donations))
	var result MatchResult

	// Pass 1: exact reference matches.
	for di := range donations {
		ref := donations[di].PaymentReference
		if ref == "" {
			continue
		}
		for ei := range sorted {
			if entryUsed[ei] {
				continue
			}
			if sorted[ei].ChargeID == ref || sorted[ei].StripeID == ref {
				result.Matches = append(result.Matches, Match{
					Donation:   donations[di],
					Entry:      sorted[ei],
					Confidence: models.MatchConfidenceHigh,
				})
				entryUsed[ei] = true
				donationMatched[di] = true
				break
			}
		}
	}

	// Pass 2: amount + date heuristic over the remainders, charges only.
	for di := range donations {
		if donationMatched[di] {
			continue
		}
		for ei := range sorted {
			if entryUsed[ei] || !sorted[ei].IsCharge() {
				continue
			}
			if !amountsEqual(donations[di].Amount, sorted[ei].Amount) {
				continue
			}
			if !withinWindow(donations[di].DonatedAt, sorted[ei].CreatedAt) {
				continue
			}
			result.Matches = append(result.Matches, Match{
				Donation:   donations[di],
				Entry:      sorted[ei],
				Confidence: models.MatchConfidenceMedium,
			})
			entryUsed[ei] = true
			donationMatched[di] = true
			break
		}
	}

	for di := range donations {
		if !donationMatched[di] {
			result.UnmatchedDonations = append(result.UnmatchedDonations, donations[di])
		}
	}
	for ei := range sorted {
		if !entryUsed[ei] && sorted[ei].IsCharge() {
			result.UnmatchedEntries = append(result.UnmatchedEntries, sorted[ei])
		}
	}
	return result
}

func amountsEqual(a, b float64) bool {
	return math.Abs(a-b) < amountEpsilon
}

func withinWindow(a, b time.Time) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= dateWindow
}
