package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// IsHealthy reports whether a position stays strictly below the liquidation
// threshold. Zero debt is always healthy; debt against zero collateral never
// is. The comparison is cross-multiplied so the boundary is exact: a
// position sitting exactly at the threshold is unhealthy.
func IsHealthy(collateralValue, borrowValue, liquidationThreshold decimal.Decimal) bool {
	if borrowValue.IsZero() {
		return true
	}
	if collateralValue.IsZero() {
		return false
	}
	return borrowValue.LessThan(liquidationThreshold.Mul(collateralValue))
}

// positionValues prices a position's live collateral and debt through the
// configured oracles. Collateral is valued pessimistically (floor) and debt
// optimistically for the protocol (ceil).
func (e *Engine) positionValues(v *Vault, p *Position) (collateralValue, borrowValue decimal.Decimal, err error) {
	collateralOracle, err := e.oracles.GetOracle(v.CollateralTokenOracle)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	borrowOracle, err := e.oracles.GetOracle(v.BorrowOracleId(e.factory.BorrowTokenOracle()))
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	collateralAmount := v.TotalCollateral.ToTotalAmount(p.CollateralShare, RoundDown)
	collateralValue, err = collateralOracle.ValueOf(collateralAmount, RoundDown)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	borrowAmount := v.TotalBorrow.ToTotalAmount(p.BorrowShare, RoundUp)
	borrowValue, err = borrowOracle.ValueOf(borrowAmount, RoundUp)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return collateralValue, borrowValue, nil
}

// healthcheck recomputes the account's live position and fails with
// ErrUnhealthy when it breaches the liquidation threshold. It runs as a
// post-condition of borrow, withdraw, leverage and deleverage, after accrual
// and ledger mutation.
func (e *Engine) healthcheck(v *Vault, p *Position) error {
	collateralValue, borrowValue, err := e.positionValues(v, p)
	if err != nil {
		return err
	}
	if !IsHealthy(collateralValue, borrowValue, v.LiquidationThreshold) {
		return errors.Wrapf(ErrUnhealthy,
			"account %s: collateral value %s, borrow value %s, threshold %s",
			p.Account, collateralValue, borrowValue, v.LiquidationThreshold)
	}
	return nil
}
