package core

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Liquidate lets anyone repay part of an unhealthy position's debt in
// exchange for its collateral plus a penalty bonus. The repay amount is
// clamped to the outstanding debt, and the seized collateral is capped at
// what the position holds. Half the penalty goes to the liquidator, half to
// the protocol.
func (e *Engine) Liquidate(ctx context.Context, liquidator, account string, repayAmount decimal.Decimal, to string) (decimal.Decimal, error) {
	if !repayAmount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if liquidator == "" || account == "" || to == "" {
		return decimal.Zero, ErrInvalidAccount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return decimal.Zero, err
	}

	p, err := e.loadPosition(ctx, v, account)
	if err != nil {
		return decimal.Zero, err
	}

	collateralValue, borrowValue, err := e.positionValues(v, p)
	if err != nil {
		return decimal.Zero, err
	}
	if IsHealthy(collateralValue, borrowValue, v.LiquidationThreshold) {
		return decimal.Zero, errors.Wrapf(ErrLiquidationFailed,
			"position healthy: collateral value %s borrow value %s threshold %s",
			collateralValue, borrowValue, v.LiquidationThreshold)
	}

	outstanding := v.TotalBorrow.ToTotalAmount(p.BorrowShare, RoundUp)
	pay := decimal.Min(repayAmount, outstanding)

	collateralOracle, err := e.oracles.GetOracle(v.CollateralTokenOracle)
	if err != nil {
		return decimal.Zero, err
	}
	borrowOracle, err := e.oracles.GetOracle(v.BorrowOracleId(e.factory.BorrowTokenOracle()))
	if err != nil {
		return decimal.Zero, err
	}

	// price the repayment and the penalty in collateral, rounded down so
	// the liquidator never seizes more than the repayment is worth
	repayValue, err := borrowOracle.ValueOf(pay, RoundDown)
	if err != nil {
		return decimal.Zero, err
	}
	repayCollateral, err := collateralOracle.AmountOf(repayValue, RoundDown)
	if err != nil {
		return decimal.Zero, err
	}

	penalty := CalculateFeeAmount(pay, v.LiquidationPenaltyFee, RoundDown)
	penaltyValue, err := borrowOracle.ValueOf(penalty, RoundDown)
	if err != nil {
		return decimal.Zero, err
	}
	penaltyCollateral, err := collateralOracle.AmountOf(penaltyValue, RoundDown)
	if err != nil {
		return decimal.Zero, err
	}

	// a deeply underwater position cannot cover the full seizure; the
	// penalty absorbs the shortfall first, then the repayment's worth
	positionCollateral := v.TotalCollateral.ToTotalAmount(p.CollateralShare, RoundDown)
	totalSeized := repayCollateral.Add(penaltyCollateral)
	if totalSeized.GreaterThan(positionCollateral) {
		shortfall := totalSeized.Sub(positionCollateral)
		penaltyCollateral = decimal.Max(decimal.Zero, penaltyCollateral.Sub(shortfall))
		totalSeized = positionCollateral
		repayCollateral = totalSeized.Sub(penaltyCollateral)
	}

	if err := e.borrowToken.Transfer(ctx, liquidator, v.Account(), pay); err != nil {
		return decimal.Zero, err
	}

	if _, err := repayShares(v, p, pay, outstanding); err != nil {
		return decimal.Zero, err
	}

	seizedShare := v.TotalCollateral.ToBaseAmount(totalSeized, RoundUp)
	if seizedShare.GreaterThan(p.CollateralShare) {
		seizedShare = p.CollateralShare
	}
	v.TotalCollateral.Base = v.TotalCollateral.Base.Sub(seizedShare)
	v.TotalCollateral.Total = v.TotalCollateral.Total.Sub(totalSeized)
	if err := p.ChangeCollateralShare(seizedShare.Neg()); err != nil {
		return decimal.Zero, err
	}

	bonus := penaltyCollateral.Mul(HALF).RoundFloor(TOKEN_PRECISION)
	protocolFee := penaltyCollateral.Sub(bonus)

	payout := repayCollateral.Add(bonus)
	if payout.IsPositive() {
		if err := e.transferCollateralOut(ctx, to, payout); err != nil {
			return decimal.Zero, err
		}
	}
	if err := e.factory.CollectFees(ctx, v.Account(), e.collateral, protocolFee); err != nil {
		return decimal.Zero, err
	}

	if err := e.trimBorrowSurplus(ctx, v); err != nil {
		return decimal.Zero, err
	}
	if err := e.settle(ctx, v, accrued, limitTrim); err != nil {
		return decimal.Zero, err
	}
	if err := e.commit(ctx, v, p); err != nil {
		return decimal.Zero, err
	}

	e.log.Info().Msgf("liquidated %s on vault %s: repaid %s seized %s", account, v.Name, pay, totalSeized)
	e.event(ctx, account, ActionLiquidate, EventDetail{Amount: pay, Share: seizedShare, Counterparty: liquidator})
	return payout, nil
}
