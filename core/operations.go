package core

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DepositCollateral pulls collateral from the sender and credits shares to
// the target account. The credited share is priced off the amount the vault
// actually received. Deposits never require a health check.
func (e *Engine) DepositCollateral(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if from == "" || to == "" {
		return decimal.Zero, ErrInvalidAccount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return decimal.Zero, err
	}

	p, err := e.loadPosition(ctx, v, to)
	if err != nil {
		return decimal.Zero, err
	}

	received, err := e.transferCollateralIn(ctx, from, amount)
	if err != nil {
		return decimal.Zero, err
	}
	if !received.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	var share decimal.Decimal
	v.TotalCollateral, share = v.TotalCollateral.Add(received, RoundDown)
	if err := p.ChangeCollateralShare(share); err != nil {
		return decimal.Zero, err
	}

	if err := e.settle(ctx, v, accrued, limitTrim); err != nil {
		return decimal.Zero, err
	}
	if err := e.commit(ctx, v, p); err != nil {
		return decimal.Zero, err
	}

	e.event(ctx, to, ActionDeposit, EventDetail{Amount: received, Share: share})
	return share, nil
}

// WithdrawCollateral removes collateral amount from the sender's position
// and sends it to the recipient. The ledger is debited before the transfer
// and the position must remain healthy afterwards.
func (e *Engine) WithdrawCollateral(ctx context.Context, sender, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return decimal.Zero, err
	}

	p, err := e.loadPosition(ctx, v, sender)
	if err != nil {
		return decimal.Zero, err
	}

	var share decimal.Decimal
	v.TotalCollateral, share = v.TotalCollateral.Sub(amount, RoundUp)
	if err := p.ChangeCollateralShare(share.Neg()); err != nil {
		return decimal.Zero, err
	}
	if err := e.healthcheck(v, p); err != nil {
		return decimal.Zero, err
	}

	if err := e.transferCollateralOut(ctx, to, amount); err != nil {
		return decimal.Zero, err
	}

	if err := e.settle(ctx, v, accrued, limitTrim); err != nil {
		return decimal.Zero, err
	}
	if err := e.commit(ctx, v, p); err != nil {
		return decimal.Zero, err
	}

	e.event(ctx, sender, ActionWithdraw, EventDetail{Amount: amount, Share: share})
	return share, nil
}

// WithdrawAllCollateral redeems the sender's entire collateral share. The
// amount is derived from the share so full exits never leave dust behind.
func (e *Engine) WithdrawAllCollateral(ctx context.Context, sender, to string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return decimal.Zero, err
	}

	p, err := e.loadPosition(ctx, v, sender)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.CollateralShare.IsPositive() {
		return decimal.Zero, ErrInsufficientCollateral
	}

	share := p.CollateralShare
	var amount decimal.Decimal
	v.TotalCollateral, amount = v.TotalCollateral.SubBase(share, RoundDown)
	if err := p.ChangeCollateralShare(share.Neg()); err != nil {
		return decimal.Zero, err
	}
	if err := e.healthcheck(v, p); err != nil {
		return decimal.Zero, err
	}

	if err := e.transferCollateralOut(ctx, to, amount); err != nil {
		return decimal.Zero, err
	}

	if err := e.settle(ctx, v, accrued, limitTrim); err != nil {
		return decimal.Zero, err
	}
	if err := e.commit(ctx, v, p); err != nil {
		return decimal.Zero, err
	}

	e.event(ctx, sender, ActionWithdraw, EventDetail{Amount: amount, Share: share})
	return amount, nil
}

// Borrow issues debt tokens to the recipient against the sender's
// collateral. The opening fee is charged as additional debt on top of the
// requested amount and reported to the factory as protocol revenue.
func (e *Engine) Borrow(ctx context.Context, sender, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return decimal.Zero, err
	}
	if v.IsRetired {
		return decimal.Zero, VaultRetired
	}

	p, err := e.loadPosition(ctx, v, sender)
	if err != nil {
		return decimal.Zero, err
	}

	fee := CalculateFeeAmount(amount, v.BorrowOpeningFee, RoundUp)
	debt := amount.Add(fee)

	var share decimal.Decimal
	v.TotalBorrow, share = v.TotalBorrow.Add(debt, RoundUp)
	if v.TotalBorrow.Total.GreaterThan(v.BorrowLimit) {
		return decimal.Zero, errors.Wrapf(ErrBorrowLimitExceeded, "total %s limit %s", v.TotalBorrow.Total, v.BorrowLimit)
	}
	if err := p.ChangeBorrowShare(share); err != nil {
		return decimal.Zero, err
	}
	p.BorrowAmount = p.BorrowAmount.Add(debt)
	v.FeesEarned = v.FeesEarned.Add(fee)

	if err := e.healthcheck(v, p); err != nil {
		return decimal.Zero, err
	}

	if err := e.pushToken(ctx, e.borrowToken, to, amount); err != nil {
		return decimal.Zero, err
	}

	// the opening fee is protocol revenue on the same rail as interest
	if err := e.settle(ctx, v, accrued.Add(fee), limitTrim); err != nil {
		return decimal.Zero, err
	}
	if err := e.commit(ctx, v, p); err != nil {
		return decimal.Zero, err
	}

	e.event(ctx, sender, ActionBorrow, EventDetail{Amount: debt, Share: share})
	return share, nil
}

// repayShares burns pay worth of the position's debt and returns the share
// removed. A full repayment removes the exact share balance so no dust
// share survives rounding.
func repayShares(v *Vault, p *Position, pay, outstanding decimal.Decimal) (decimal.Decimal, error) {
	var share decimal.Decimal
	if pay.Equal(outstanding) {
		share = p.BorrowShare
	} else {
		share = v.TotalBorrow.ToBaseAmount(pay, RoundUp)
		if share.GreaterThan(p.BorrowShare) {
			share = p.BorrowShare
		}
	}
	v.TotalBorrow.Base = v.TotalBorrow.Base.Sub(share)
	v.TotalBorrow.Total = v.TotalBorrow.Total.Sub(pay)
	if err := p.ChangeBorrowShare(share.Neg()); err != nil {
		return decimal.Zero, err
	}
	p.BorrowAmount = decimal.Max(decimal.Zero, p.BorrowAmount.Sub(pay))
	return share, nil
}

// trimBorrowSurplus burns debt-token float above what the borrow limit
// leaves lendable. On a retired vault the limit first collapses onto the
// outstanding debt, so repayments flowing back are burned instead of piling
// up as unusable float.
func (e *Engine) trimBorrowSurplus(ctx context.Context, v *Vault) error {
	if v.IsRetired && v.BorrowLimit.GreaterThan(v.TotalBorrow.Total) {
		v.BorrowLimit = v.TotalBorrow.Total
	}
	balance, err := e.borrowToken.BalanceOf(ctx, v.Account())
	if err != nil {
		return err
	}
	headroom := decimal.Max(decimal.Zero, v.BorrowLimit.Sub(v.TotalBorrow.Total))
	surplus := balance.Sub(headroom)
	if !surplus.IsPositive() {
		return nil
	}
	e.log.Info().Msgf("burning %s surplus debt token on vault %s", surplus, v.Name)
	return e.borrowToken.Burn(ctx, v.Account(), surplus)
}

// Repay pulls debt tokens from the payer and reduces the target account's
// debt. Amounts above the outstanding debt are clamped, never pulled.
func (e *Engine) Repay(ctx context.Context, from, account string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repay(ctx, from, account, amount, false)
}

// RepayAll settles the target account's entire debt, interest included.
func (e *Engine) RepayAll(ctx context.Context, from, account string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repay(ctx, from, account, decimal.Zero, true)
}

func (e *Engine) repay(ctx context.Context, from, account string, amount decimal.Decimal, all bool) (decimal.Decimal, error) {
	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return decimal.Zero, err
	}

	p, err := e.loadPosition(ctx, v, account)
	if err != nil {
		return decimal.Zero, err
	}

	outstanding := v.TotalBorrow.ToTotalAmount(p.BorrowShare, RoundUp)
	if !outstanding.IsPositive() {
		return decimal.Zero, ErrNoOutstandingDebt
	}

	pay := outstanding
	if !all && amount.LessThan(outstanding) {
		pay = amount
	}

	if err := e.borrowToken.Transfer(ctx, from, v.Account(), pay); err != nil {
		return decimal.Zero, err
	}

	share, err := repayShares(v, p, pay, outstanding)
	if err != nil {
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

	e.event(ctx, account, ActionRepay, EventDetail{Amount: pay, Share: share, Counterparty: from})
	return pay, nil
}
