package core

import (
	"github.com/shopspring/decimal"
)

type (
	// Oracle converts between token amounts and a common value unit with
	// caller-specified rounding. Implementations must stay consistent
	// within a single accrual pass.
	Oracle interface {
		ValueOf(amount decimal.Decimal, rounding Rounding) (decimal.Decimal, error)
		AmountOf(value decimal.Decimal, rounding Rounding) (decimal.Decimal, error)
	}

	OracleRegistry interface {
		GetOracle(oracleId string) (Oracle, error)
	}
)

// StaticOracle prices a token at a fixed value per unit.
type StaticOracle struct {
	Price decimal.Decimal
}

func NewStaticOracle(price decimal.Decimal) *StaticOracle {
	return &StaticOracle{Price: price}
}

func (o *StaticOracle) ValueOf(amount decimal.Decimal, rounding Rounding) (decimal.Decimal, error) {
	value := amount.Mul(o.Price)
	if rounding == RoundUp {
		return value.RoundCeil(TOKEN_PRECISION), nil
	}
	return value.RoundFloor(TOKEN_PRECISION), nil
}

func (o *StaticOracle) AmountOf(value decimal.Decimal, rounding Rounding) (decimal.Decimal, error) {
	if o.Price.IsZero() {
		return decimal.Zero, OracleNotFound
	}
	amount := value.Div(o.Price)
	if rounding == RoundUp {
		return amount.RoundCeil(TOKEN_PRECISION), nil
	}
	return amount.RoundFloor(TOKEN_PRECISION), nil
}
