package core

import (
	"github.com/shopspring/decimal"
)

const (
	SECONDS_PER_YEAR = 31_536_000

	// TOKEN_PRECISION is the number of decimal places carried by every
	// ledger amount. All floor/ceil rounding happens at this quantum.
	TOKEN_PRECISION = 8
)

var (
	ONE  = decimal.NewFromInt(1)
	HALF = decimal.NewFromFloat(0.5)

	// QUANTUM is the smallest representable token amount.
	QUANTUM = decimal.New(1, -TOKEN_PRECISION)

	MIN_LIQUIDATION_THRESHOLD = decimal.NewFromFloat(0.01)
	MAX_LIQUIDATION_THRESHOLD = ONE
	MAX_FEE_RATE              = ONE
)
