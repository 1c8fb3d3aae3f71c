// Package query answers range, ordering, and value-frequency questions
// over a snapshot of the stored trades. Every operation is a pure
// function of the snapshot it takes, which keeps the analysis
// independently testable and lets callers vary the rounding policy per
// call instead of baking it into the schema.
package query

import (
	"fmt"
	"math"
	"sort"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

// Snapshotter provides the trades to analyze, in insertion order.
type Snapshotter interface {
	Snapshot() []domain.Trade
}

// Direction orders sort results.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection validates a caller-supplied sort direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Asc, Desc:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", s)
	}
}

// Rounding is the value projection applied before frequency counting.
// The zero value truncates toward zero to an integer.
type Rounding struct {
	round    bool
	decimals int
}

// Truncate projects values by discarding the fractional part.
func Truncate() Rounding {
	return Rounding{}
}

// RoundTo projects values by rounding to the given number of decimal
// places. Negative counts round to powers of ten: RoundTo(-3) buckets
// to the nearest thousand.
func RoundTo(decimals int) Rounding {
	return Rounding{round: true, decimals: decimals}
}

// Apply projects one value.
func (r Rounding) Apply(v float64) float64 {
	if !r.round {
		return math.Trunc(v)
	}
	step := math.Pow(10, float64(-r.decimals))
	return math.Round(v/step) * step
}

// FreqEntry is one row of a frequency table.
type FreqEntry struct {
	Value float64 `json:"price"`
	Count int     `json:"times_found"`
}

// DefaultFreqLimit caps frequency tables when the caller passes no
// limit of its own.
const DefaultFreqLimit = 500

// Engine is the read-only analytical surface over the transaction
// store.
type Engine struct {
	src Snapshotter
}

// NewEngine creates an Engine over the given snapshot source.
func NewEngine(src Snapshotter) *Engine {
	return &Engine{src: src}
}

// Range returns the trades of any side whose field value lies within
// [lo, hi] inclusive, in insertion order.
func (e *Engine) Range(field domain.Field, lo, hi float64) ([]domain.Trade, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("range query: field %q: %w", field, domain.ErrInvalidQueryField)
	}

	var out []domain.Trade
	for _, t := range e.src.Snapshot() {
		if v := field.Value(t); v >= lo && v <= hi {
			out = append(out, t)
		}
	}
	return out, nil
}

// OrderBy returns all trades sorted by the field in the given
// direction. The sort is stable, so equal values keep insertion order
// regardless of direction.
func (e *Engine) OrderBy(field domain.Field, dir Direction) ([]domain.Trade, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("order query: field %q: %w", field, domain.ErrInvalidQueryField)
	}
	if dir != Asc && dir != Desc {
		return nil, fmt.Errorf("order query: unknown direction %q", dir)
	}

	out := e.src.Snapshot()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := field.Value(out[i]), field.Value(out[j])
		if dir == Desc {
			return a > b
		}
		return a < b
	})
	return out, nil
}

// MostCommon returns the exact field value(s) with the highest
// occurrence count across all trades. Ties are all returned, in
// first-seen order.
func (e *Engine) MostCommon(field domain.Field) ([]float64, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("most-common query: field %q: %w", field, domain.ErrInvalidQueryField)
	}

	counts := make(map[float64]int)
	var order []float64
	for _, t := range e.src.Snapshot() {
		v := field.Value(t)
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}

	var out []float64
	for _, v := range order {
		if counts[v] == max {
			out = append(out, v)
		}
	}
	return out, nil
}

// MostCommonBySide independently counts the field's projected values
// for each side and returns the limit most frequent (value, count)
// pairs per side, ordered by descending count with first-seen order
// breaking ties. A non-positive limit means DefaultFreqLimit.
func (e *Engine) MostCommonBySide(field domain.Field, r Rounding, limit int) (sell, buy []FreqEntry, err error) {
	if !field.Valid() {
		return nil, nil, fmt.Errorf("frequency query: field %q: %w", field, domain.ErrInvalidQueryField)
	}
	if limit <= 0 {
		limit = DefaultFreqLimit
	}

	sellValues := make([]float64, 0)
	buyValues := make([]float64, 0)
	for _, t := range e.src.Snapshot() {
		v := r.Apply(field.Value(t))
		switch t.Side {
		case domain.SideSell:
			sellValues = append(sellValues, v)
		case domain.SideBuy:
			buyValues = append(buyValues, v)
		}
	}

	return frequencyTable(sellValues, limit), frequencyTable(buyValues, limit), nil
}

// frequencyTable counts values and returns the limit most frequent
// entries, most frequent first.
func frequencyTable(values []float64, limit int) []FreqEntry {
	counts := make(map[float64]int)
	var order []float64
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	entries := make([]FreqEntry, 0, len(order))
	for _, v := range order {
		entries = append(entries, FreqEntry{Value: v, Count: counts[v]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
