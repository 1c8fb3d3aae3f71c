package domain

import (
	"errors"
	"testing"
)

func validRaw() RawTrade {
	return RawTrade{
		BlockNumber:    11733140,
		BlockTimestamp: 1655251832001,
		TxnHash:        "0xabc",
		LogIndex:       3,
		Type:           "sell",
		PriceUSD:       "0.0421",
		VolumeUSD:      "1,204.50",
		Amount0:        "28,610.12",
		Amount1:        "51.7",
	}
}

func TestRawTradeNormalize(t *testing.T) {
	tr, err := validRaw().Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if tr.Side != SideSell {
		t.Errorf("Side = %q, want sell", tr.Side)
	}
	if tr.VolumeUSD != 1204.50 {
		t.Errorf("VolumeUSD = %v, want 1204.50 (separators stripped)", tr.VolumeUSD)
	}
	if tr.AmountVPND != 28610.12 {
		t.Errorf("AmountVPND = %v, want 28610.12", tr.AmountVPND)
	}
	if tr.AmountAVAX != 51.7 {
		t.Errorf("AmountAVAX = %v, want 51.7", tr.AmountAVAX)
	}
	if tr.Scraped {
		t.Error("Scraped must default to false at insert time")
	}
}

func TestRawTradeNormalizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawTrade)
	}{
		{"missing hash", func(r *RawTrade) { r.TxnHash = "" }},
		{"unknown side", func(r *RawTrade) { r.Type = "mint" }},
		{"bad price", func(r *RawTrade) { r.PriceUSD = "n/a" }},
		{"empty amount", func(r *RawTrade) { r.Amount1 = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)
			_, err := raw.Normalize()
			if !errors.Is(err, ErrMalformedPage) {
				t.Errorf("Normalize error = %v, want ErrMalformedPage", err)
			}
		})
	}
}

func TestRawTradeNormalizeKeepsNegatives(t *testing.T) {
	raw := validRaw()
	raw.PriceUSD = "-0.5"

	tr, err := raw.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if tr.PriceUSD != -0.5 {
		t.Errorf("PriceUSD = %v, want -0.5 stored as-is", tr.PriceUSD)
	}
}
