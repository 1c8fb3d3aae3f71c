package domain

import "fmt"

// Field identifies one of the numeric trade fields that queries may
// address. The set is closed: every caller-supplied field name passes
// through ParseField before it is used anywhere, so no free-form
// identifier ever reaches a storage query.
type Field string

const (
	FieldPriceUSD   Field = "priceUsd"
	FieldVolumeUSD  Field = "volumeUsd"
	FieldAmountVPND Field = "amountVpnd"
	FieldAmountAVAX Field = "amountAvax"
)

// Fields lists every queryable numeric field.
func Fields() []Field {
	return []Field{FieldPriceUSD, FieldVolumeUSD, FieldAmountVPND, FieldAmountAVAX}
}

// ParseField validates a caller-supplied field name.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if !f.Valid() {
		return "", fmt.Errorf("field %q: %w", s, ErrInvalidQueryField)
	}
	return f, nil
}

// Valid reports whether f belongs to the queryable field set.
func (f Field) Valid() bool {
	switch f {
	case FieldPriceUSD, FieldVolumeUSD, FieldAmountVPND, FieldAmountAVAX:
		return true
	}
	return false
}

// Column returns the SQL column backing the field.
func (f Field) Column() string {
	switch f {
	case FieldPriceUSD:
		return "price_usd"
	case FieldVolumeUSD:
		return "volume_usd"
	case FieldAmountVPND:
		return "amount_vpnd"
	case FieldAmountAVAX:
		return "amount_avax"
	}
	return ""
}

// Value extracts the field's value from a trade.
func (f Field) Value(t Trade) float64 {
	switch f {
	case FieldPriceUSD:
		return t.PriceUSD
	case FieldVolumeUSD:
		return t.VolumeUSD
	case FieldAmountVPND:
		return t.AmountVPND
	case FieldAmountAVAX:
		return t.AmountAVAX
	}
	return 0
}
