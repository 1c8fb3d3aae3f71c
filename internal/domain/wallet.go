package domain

import "time"

// Wallet is the buyer-side address extracted from a stored trade,
// enriched with node holdings read from the on-chain storage contract.
// TotalAmount stays at -1 until the first successful enrichment.
type Wallet struct {
	Address          string
	Nodes            []string
	NodeAmounts      []float64
	TotalAmount      float64
	CreationTime     int64
	LastClaimTime    int64
	LastCompoundTime int64
	FirstSeen        time.Time
}
