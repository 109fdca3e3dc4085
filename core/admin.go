package core

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Admin operations reconfigure a live vault. Only the owning factory may
// call them; every mutation follows the same clone-check-commit path as the
// user operations.

func (e *Engine) authorize(caller string) error {
	if caller != e.factory.ID() {
		return errors.Wrapf(ErrUnauthorized, "caller %s", caller)
	}
	return nil
}

func (e *Engine) SetCollateralTokenOracle(ctx context.Context, caller, oracleId string) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if oracleId == "" {
		return OracleNotFound
	}
	if _, err := e.oracles.GetOracle(oracleId); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	if v.CollateralTokenOracle == oracleId {
		return ErrValueUnchanged
	}
	v.CollateralTokenOracle = oracleId
	return e.commit(ctx, v)
}

// SetBorrowTokenOracle overrides the factory's global borrow oracle for this
// vault. An empty id clears the override.
func (e *Engine) SetBorrowTokenOracle(ctx context.Context, caller, oracleId string) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if oracleId != "" {
		if _, err := e.oracles.GetOracle(oracleId); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	if v.BorrowTokenOracle == oracleId {
		return ErrValueUnchanged
	}
	v.BorrowTokenOracle = oracleId
	return e.commit(ctx, v)
}

func (e *Engine) SetBorrowOpeningFee(ctx context.Context, caller string, fee decimal.Decimal) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if fee.IsNegative() || fee.GreaterThan(MAX_FEE_RATE) {
		return ErrInvalidFeeRate
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	if v.BorrowOpeningFee.Equal(fee) {
		return ErrValueUnchanged
	}
	v.BorrowOpeningFee = fee
	return e.commit(ctx, v)
}

func (e *Engine) SetLiquidationPenaltyFee(ctx context.Context, caller string, fee decimal.Decimal) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if fee.IsNegative() || fee.GreaterThan(MAX_FEE_RATE) {
		return ErrInvalidFeeRate
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	if v.LiquidationPenaltyFee.Equal(fee) {
		return ErrValueUnchanged
	}
	v.LiquidationPenaltyFee = fee
	return e.commit(ctx, v)
}

func (e *Engine) SetLiquidationThreshold(ctx context.Context, caller string, threshold decimal.Decimal) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if threshold.LessThan(MIN_LIQUIDATION_THRESHOLD) || threshold.GreaterThan(MAX_LIQUIDATION_THRESHOLD) {
		return ErrInvalidLiquidationThreshold
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	if v.LiquidationThreshold.Equal(threshold) {
		return ErrValueUnchanged
	}
	v.LiquidationThreshold = threshold
	return e.commit(ctx, v)
}

// SetInterestRateMultiplier accrues at the old rate first so the change
// never applies retroactively.
func (e *Engine) SetInterestRateMultiplier(ctx context.Context, caller string, multiplier decimal.Decimal) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if !multiplier.IsPositive() {
		return ErrInvalidInterestRate
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	if v.InterestRateMultiplier.Equal(multiplier) {
		return ErrValueUnchanged
	}

	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return err
	}
	v.InterestRateMultiplier = multiplier

	if err := e.settle(ctx, v, accrued, limitTrim); err != nil {
		return err
	}
	return e.commit(ctx, v)
}

// Retire puts the vault into wind-down: no new borrows or leverage, and
// accrual trims the borrow limit down toward the outstanding debt.
func (e *Engine) Retire(ctx context.Context, caller string) error {
	if err := e.authorize(caller); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	if v.IsRetired {
		return ErrValueUnchanged
	}

	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return err
	}
	v.IsRetired = true

	if err := e.trimBorrowSurplus(ctx, v); err != nil {
		return err
	}
	if err := e.settle(ctx, v, accrued, limitTrim); err != nil {
		return err
	}
	return e.commit(ctx, v)
}

func (e *Engine) Revive(ctx context.Context, caller string) error {
	if err := e.authorize(caller); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	if !v.IsRetired {
		return ErrValueUnchanged
	}
	v.IsRetired = false
	return e.commit(ctx, v)
}

// IncreaseBorrowLimit raises the limit and mints the matching debt-token
// float to the vault, so the limit and the lendable balance stay in step.
func (e *Engine) IncreaseBorrowLimit(ctx context.Context, caller string, delta decimal.Decimal) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if !delta.IsPositive() {
		return ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	if v.IsRetired {
		return VaultRetired
	}
	v.BorrowLimit = v.BorrowLimit.Add(delta)

	if err := e.borrowToken.Mint(ctx, v.Account(), delta); err != nil {
		return err
	}
	return e.commit(ctx, v)
}

// DecreaseBorrowLimit lowers the limit and burns the matching float. The
// limit can never drop below the debt already outstanding.
func (e *Engine) DecreaseBorrowLimit(ctx context.Context, caller string, delta decimal.Decimal) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if !delta.IsPositive() {
		return ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return err
	}

	limit := v.BorrowLimit.Sub(delta)
	if limit.LessThan(v.TotalBorrow.Total) {
		return errors.Wrapf(ErrInvalidAmount, "limit %s below outstanding %s", limit, v.TotalBorrow.Total)
	}
	v.BorrowLimit = limit

	if err := e.borrowToken.Burn(ctx, v.Account(), delta); err != nil {
		return err
	}
	if err := e.settle(ctx, v, accrued, limitTrim); err != nil {
		return err
	}
	return e.commit(ctx, v)
}
