// Package domain defines the core data model of the analyzer: trade
// records pulled from the DEX trading-history feed, the wallets derived
// from them, and the store interfaces the rest of the system depends on.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Side is the buy/sell classification of a trade. Every stored trade
// carries exactly one of the two values; it never changes after insert.
type Side string

const (
	SideSell Side = "sell"
	SideBuy  Side = "buy"
)

// ParseSide validates a raw side tag from the feed.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideSell, SideBuy:
		return Side(s), nil
	default:
		return "", fmt.Errorf("unknown trade side %q: %w", s, ErrMalformedPage)
	}
}

// Sides lists both trade sides in a fixed order.
func Sides() []Side {
	return []Side{SideSell, SideBuy}
}

// Trade is one swap event on the pair. TxnHash is the sole dedup key;
// BlockTimestamp doubles as the feed pagination watermark. Scraped is
// owned by the wallet enrichment job and is false at insert time.
type Trade struct {
	BlockNumber    int64
	BlockTimestamp int64 // unix milliseconds
	TxnHash        string
	LogIndex       int64
	Side           Side
	PriceUSD       float64
	VolumeUSD      float64
	AmountVPND     float64
	AmountAVAX     float64
	Scraped        bool
}

// RawTrade is the wire shape of one entry in a trading-history page.
// The numeric fields arrive as locale-formatted strings ("1,234.56")
// and must be normalized before storage.
type RawTrade struct {
	BlockNumber    int64  `json:"blockNumber"`
	BlockTimestamp int64  `json:"blockTimestamp"`
	TxnHash        string `json:"txnHash"`
	LogIndex       int64  `json:"logIndex"`
	Type           string `json:"type"`
	PriceUSD       string `json:"priceUsd"`
	VolumeUSD      string `json:"volumeUsd"`
	Amount0        string `json:"amount0"`
	Amount1        string `json:"amount1"`
}

// Normalize converts a raw feed entry into a Trade. It validates the
// side tag and identifier and strips thousands separators from the
// decimal fields. Any failure wraps ErrMalformedPage.
func (r RawTrade) Normalize() (Trade, error) {
	if r.TxnHash == "" {
		return Trade{}, fmt.Errorf("missing txnHash: %w", ErrMalformedPage)
	}

	side, err := ParseSide(r.Type)
	if err != nil {
		return Trade{}, fmt.Errorf("trade %s: %w", r.TxnHash, err)
	}

	var t = Trade{
		BlockNumber:    r.BlockNumber,
		BlockTimestamp: r.BlockTimestamp,
		TxnHash:        r.TxnHash,
		LogIndex:       r.LogIndex,
		Side:           side,
	}

	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"priceUsd", r.PriceUSD, &t.PriceUSD},
		{"volumeUsd", r.VolumeUSD, &t.VolumeUSD},
		{"amount0", r.Amount0, &t.AmountVPND},
		{"amount1", r.Amount1, &t.AmountAVAX},
	} {
		v, err := parseAmount(f.raw)
		if err != nil {
			return Trade{}, fmt.Errorf("trade %s: field %s %q: %w", r.TxnHash, f.name, f.raw, ErrMalformedPage)
		}
		*f.dst = v
	}

	return t, nil
}

// parseAmount strips locale thousands separators and parses the
// remaining decimal. Values are stored as-is, negatives included.
func parseAmount(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
