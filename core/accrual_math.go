package core

import (
	"github.com/shopspring/decimal"
)

type Rounding uint8

const (
	RoundDown Rounding = iota
	RoundUp
)

func (r Rounding) String() string {
	switch r {
	case RoundDown:
		return "Down"
	case RoundUp:
		return "Up"
	default:
		return "Unknown"
	}
}

// InterestAccruingAmount tracks a pool of value against the shares issued on
// it. Base is the sum of all shares outstanding, Total the value backing
// them. Interest accrual grows Total without touching Base, which dilutes
// value-per-share for the whole pool in one write.
type InterestAccruingAmount struct {
	Base  decimal.Decimal `json:"base"`
	Total decimal.Decimal `json:"total"`
}

func NewInterestAccruingAmount() InterestAccruingAmount {
	return InterestAccruingAmount{
		Base:  decimal.Zero,
		Total: decimal.Zero,
	}
}

// mulDiv computes a*b/c quantized to TOKEN_PRECISION with the requested
// rounding. QuoRem keeps the division exact so floor/ceil never drift.
func mulDiv(a, b, c decimal.Decimal, rounding Rounding) decimal.Decimal {
	q, r := a.Mul(b).QuoRem(c, TOKEN_PRECISION)
	if rounding == RoundUp && !r.IsZero() {
		q = q.Add(QUANTUM)
	}
	return q
}

// ToBaseAmount converts a total (value) amount into shares at the pool's
// current rate. An empty pool converts 1:1.
func (p InterestAccruingAmount) ToBaseAmount(totalAmount decimal.Decimal, rounding Rounding) decimal.Decimal {
	if p.Total.IsZero() {
		return totalAmount
	}
	return mulDiv(totalAmount, p.Base, p.Total, rounding)
}

// ToTotalAmount converts shares back into a value amount at the pool's
// current rate. An empty pool converts 1:1.
func (p InterestAccruingAmount) ToTotalAmount(baseAmount decimal.Decimal, rounding Rounding) decimal.Decimal {
	if p.Base.IsZero() {
		return baseAmount
	}
	return mulDiv(baseAmount, p.Total, p.Base, rounding)
}

// Add issues shares for amount at the pre-addition rate and grows both
// sides of the pool. Returns the updated pool and the shares issued.
func (p InterestAccruingAmount) Add(amount decimal.Decimal, rounding Rounding) (InterestAccruingAmount, decimal.Decimal) {
	share := p.ToBaseAmount(amount, rounding)
	p.Base = p.Base.Add(share)
	p.Total = p.Total.Add(amount)
	return p, share
}

// Sub burns the shares equivalent to amount at the pre-subtraction rate.
// Returns the updated pool and the shares burned.
func (p InterestAccruingAmount) Sub(amount decimal.Decimal, rounding Rounding) (InterestAccruingAmount, decimal.Decimal) {
	share := p.ToBaseAmount(amount, rounding)
	p.Base = p.Base.Sub(share)
	p.Total = p.Total.Sub(amount)
	return p, share
}

// SubBase burns an exact share count and removes the equivalent amount at
// the pre-subtraction rate. Returns the updated pool and the amount removed.
func (p InterestAccruingAmount) SubBase(share decimal.Decimal, rounding Rounding) (InterestAccruingAmount, decimal.Decimal) {
	amount := p.ToTotalAmount(share, rounding)
	p.Base = p.Base.Sub(share)
	p.Total = p.Total.Sub(amount)
	return p, amount
}

// CalculateFeeAmount applies a fee rate to an amount, quantized with the
// requested rounding.
func CalculateFeeAmount(amount, feeRate decimal.Decimal, rounding Rounding) decimal.Decimal {
	fee := amount.Mul(feeRate)
	if rounding == RoundUp {
		return fee.RoundCeil(TOKEN_PRECISION)
	}
	return fee.RoundFloor(TOKEN_PRECISION)
}
