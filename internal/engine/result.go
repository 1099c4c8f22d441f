// Package engine holds the result types shared by every simulator. Each
// simulator lives in its own subpackage and produces a Result whose Total is
// always the signed sum of its Breakdown.
package engine

import (
	"math"

	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/mathutil"
)

// Sign tells whether a breakdown item adds to or subtracts from the total.
type Sign int

const (
	Plus  Sign = 1
	Minus Sign = -1
)

func (s Sign) String() string {
	if s == Minus {
		return "-"
	}
	return "+"
}

// Unit says how the amounts of a Result are read.
type Unit string

const (
	UnitCurrency Unit = "BRL"
	UnitRatio    Unit = "ratio"
)

// Item is one explained line of a calculation.
type Item struct {
	Label       string  `json:"label" yaml:"label"`
	Base        float64 `json:"base" yaml:"base"`
	FormulaText string  `json:"formulaText" yaml:"formulaText"`
	Amount      float64 `json:"amount" yaml:"amount"`
	Sign        Sign    `json:"sign" yaml:"sign"`
}

// Signed returns the item's contribution to the total.
func (i Item) Signed() float64 {
	return float64(i.Sign) * i.Amount
}

// Result is the output of a simulator.
type Result struct {
	Total     float64 `json:"total" yaml:"total"`
	Breakdown []Item  `json:"breakdown" yaml:"breakdown"`
}

// SignedSum recomputes the total from the breakdown.
func (r Result) SignedSum() float64 {
	sum := 0.0
	for _, item := range r.Breakdown {
		sum += item.Signed()
	}
	return sum
}

// Consistent reports whether Total matches the breakdown.
func (r Result) Consistent() bool {
	return mathutil.WithinTolerance(r.Total, r.SignedSum(), constants.SumTolerance)
}

// Builder accumulates breakdown items in order.
type Builder struct {
	items []Item
}

// Credit appends an additive item. Non-finite or negative amounts become 0.
func (b *Builder) Credit(label string, base float64, formula string, amount float64) {
	b.items = append(b.items, Item{
		Label:       label,
		Base:        mathutil.Finite(base),
		FormulaText: formula,
		Amount:      mathutil.NonNegative(amount),
		Sign:        Plus,
	})
}

// Debit appends a subtractive item. Non-finite or negative amounts become 0.
func (b *Builder) Debit(label string, base float64, formula string, amount float64) {
	b.items = append(b.items, Item{
		Label:       label,
		Base:        mathutil.Finite(base),
		FormulaText: formula,
		Amount:      mathutil.NonNegative(amount),
		Sign:        Minus,
	})
}

// Adjust appends an item whose sign follows delta: a positive delta is a
// credit and a negative one a debit of |delta|.
func (b *Builder) Adjust(label string, base float64, formula string, delta float64) {
	delta = mathutil.Finite(delta)
	if delta < 0 {
		b.Debit(label, base, formula, math.Abs(delta))
		return
	}
	b.Credit(label, base, formula, delta)
}

// Subtotal is the signed sum of the items added so far.
func (b *Builder) Subtotal() float64 {
	sum := 0.0
	for _, item := range b.items {
		sum += item.Signed()
	}
	return sum
}

// Len returns the number of items added so far.
func (b *Builder) Len() int {
	return len(b.items)
}

// Result freezes the breakdown and derives the total from it.
func (b *Builder) Result() Result {
	items := make([]Item, len(b.items))
	copy(items, b.items)
	r := Result{Breakdown: items}
	r.Total = r.SignedSum()
	return r
}
