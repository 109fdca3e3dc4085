package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// flashLoanIntent carries the working state of an in-flight leverage across
// the flash-loan callback. The key ties the callback to the one loan this
// engine initiated.
type flashLoanIntent struct {
	key      uuid.UUID
	account  string
	vault    *Vault
	position *Position
	target   SwapTarget
	swapData []byte

	openingFee decimal.Decimal
	completed  bool
}

// Leverage opens or grows a looped position in one step: an optional
// upfront deposit, then a flash loan of debt tokens swapped into collateral
// through a factory-trusted target, with the loan plus fees booked as debt.
// The whole sequence either completes and commits or leaves the vault
// untouched.
func (e *Engine) Leverage(ctx context.Context, account string, depositAmount, borrowAmount decimal.Decimal, swapTarget string, swapData []byte) error {
	if !borrowAmount.IsPositive() {
		return ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target, err := e.factory.SwapTarget(swapTarget)
	if err != nil {
		return err
	}

	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return err
	}
	if v.IsRetired {
		return VaultRetired
	}

	p, err := e.loadPosition(ctx, v, account)
	if err != nil {
		return err
	}

	supplyBefore, err := e.collateral.TotalSupply(ctx)
	if err != nil {
		return err
	}

	// on any later failure the upfront deposit goes back to the sender,
	// otherwise the tokens would sit in the vault unattributed
	var depositTaken decimal.Decimal
	committed := false
	defer func() {
		if committed || !depositTaken.IsPositive() {
			return
		}
		if err := e.transferCollateralOut(ctx, account, depositTaken); err != nil {
			e.log.Error().Err(err).Msgf("refund %s deposit to %s", depositTaken, account)
		}
	}()

	if depositAmount.IsPositive() {
		received, err := e.transferCollateralIn(ctx, account, depositAmount)
		if err != nil {
			return err
		}
		depositTaken = received
		var share decimal.Decimal
		v.TotalCollateral, share = v.TotalCollateral.Add(received, RoundDown)
		if err := p.ChangeCollateralShare(share); err != nil {
			return err
		}
	}

	intent := &flashLoanIntent{
		key:      uuid.Must(uuid.NewV4()),
		account:  account,
		vault:    v,
		position: p,
		target:   target,
		swapData: swapData,
	}
	e.pendingLoan = intent
	defer func() { e.pendingLoan = nil }()

	if err := e.borrowToken.FlashLoan(ctx, e, v.Account(), borrowAmount, intent.key.Bytes()); err != nil {
		return errors.Wrap(ErrFlashLoanFailed, err.Error())
	}
	if !intent.completed {
		return ErrFlashLoanFailed
	}

	supplyAfter, err := e.collateral.TotalSupply(ctx)
	if err != nil {
		return err
	}
	if !supplyAfter.Equal(supplyBefore) {
		return ErrRebaseDetected
	}

	if err := e.healthcheck(v, p); err != nil {
		return err
	}

	if err := e.settle(ctx, v, accrued.Add(intent.openingFee), limitTrim); err != nil {
		return err
	}
	if err := e.commit(ctx, v, p); err != nil {
		return err
	}
	committed = true

	e.event(ctx, account, ActionLeverage, EventDetail{Amount: borrowAmount, Share: p.BorrowShare})
	return nil
}

// OnFlashLoan is the lender's callback during Leverage. It runs on the
// caller's stack while Leverage holds the engine lock, so it must not take
// the lock itself. Any call not matching the pending intent is rejected.
func (e *Engine) OnFlashLoan(ctx context.Context, initiator, asset string, amount, fee decimal.Decimal, data []byte) error {
	intent := e.pendingLoan
	if intent == nil || intent.completed {
		return ErrUnexpectedFlashLoan
	}

	key, err := uuid.FromBytes(data)
	if err != nil || key != intent.key {
		return ErrUnexpectedFlashLoan
	}

	v, p := intent.vault, intent.position
	if initiator != v.Account() || asset != v.BorrowAsset {
		return ErrUnexpectedFlashLoan
	}

	borrowBefore, err := e.borrowToken.BalanceOf(ctx, v.Account())
	if err != nil {
		return err
	}
	collateralBefore, err := e.collateral.BalanceOf(ctx, v.Account())
	if err != nil {
		return err
	}

	if err := intent.target.Execute(ctx, intent.swapData); err != nil {
		return errors.Wrap(err, "swap")
	}

	borrowAfter, err := e.borrowToken.BalanceOf(ctx, v.Account())
	if err != nil {
		return err
	}
	collateralAfter, err := e.collateral.BalanceOf(ctx, v.Account())
	if err != nil {
		return err
	}

	spent := borrowBefore.Sub(borrowAfter)
	gained := collateralAfter.Sub(collateralBefore)
	if spent.GreaterThan(amount) {
		return errors.Wrapf(ErrInvalidAmount, "swap spent %s of a %s loan", spent, amount)
	}
	if !gained.IsPositive() {
		return errors.Wrap(ErrInvalidAmount, "swap yielded no collateral")
	}

	var collateralShare decimal.Decimal
	v.TotalCollateral, collateralShare = v.TotalCollateral.Add(gained, RoundDown)
	if err := p.ChangeCollateralShare(collateralShare); err != nil {
		return err
	}

	// the borrower owes principal, flash fee and the opening fee on top
	debt := spent.Add(fee)
	openingFee := CalculateFeeAmount(debt, v.BorrowOpeningFee, RoundUp)
	debt = debt.Add(openingFee)

	var borrowShare decimal.Decimal
	v.TotalBorrow, borrowShare = v.TotalBorrow.Add(debt, RoundUp)
	if v.TotalBorrow.Total.GreaterThan(v.BorrowLimit) {
		return errors.Wrapf(ErrBorrowLimitExceeded, "total %s limit %s", v.TotalBorrow.Total, v.BorrowLimit)
	}
	if err := p.ChangeBorrowShare(borrowShare); err != nil {
		return err
	}
	p.BorrowAmount = p.BorrowAmount.Add(debt)
	v.FeesEarned = v.FeesEarned.Add(openingFee)
	intent.openingFee = openingFee

	// the lender pulls principal plus fee back from the vault account
	repayable := borrowAfter.GreaterThanOrEqual(amount.Add(fee))
	if !repayable {
		return errors.Wrapf(ErrFlashLoanFailed, "vault float %s cannot return %s", borrowAfter, amount.Add(fee))
	}

	intent.completed = true
	return nil
}

// Deleverage unwinds a looped position: collateral is debited from the
// position, swapped into debt tokens through a trusted target, and the
// proceeds repay the position's debt. Swap proceeds beyond the outstanding
// debt are paid out to the position owner.
func (e *Engine) Deleverage(ctx context.Context, account string, withdrawalAmount decimal.Decimal, swapTarget string, swapData []byte) error {
	if !withdrawalAmount.IsPositive() {
		return ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target, err := e.factory.SwapTarget(swapTarget)
	if err != nil {
		return err
	}

	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return err
	}

	p, err := e.loadPosition(ctx, v, account)
	if err != nil {
		return err
	}

	supplyBefore, err := e.collateral.TotalSupply(ctx)
	if err != nil {
		return err
	}

	var share decimal.Decimal
	v.TotalCollateral, share = v.TotalCollateral.Sub(withdrawalAmount, RoundUp)
	if err := p.ChangeCollateralShare(share.Neg()); err != nil {
		return err
	}

	collateralBefore, err := e.collateral.BalanceOf(ctx, v.Account())
	if err != nil {
		return err
	}
	borrowBefore, err := e.borrowToken.BalanceOf(ctx, v.Account())
	if err != nil {
		return err
	}

	if err := target.Execute(ctx, swapData); err != nil {
		return errors.Wrap(err, "swap")
	}

	collateralAfter, err := e.collateral.BalanceOf(ctx, v.Account())
	if err != nil {
		return err
	}
	borrowAfter, err := e.borrowToken.BalanceOf(ctx, v.Account())
	if err != nil {
		return err
	}

	collateralSpent := collateralBefore.Sub(collateralAfter)
	borrowGained := borrowAfter.Sub(borrowBefore)
	if collateralSpent.GreaterThan(withdrawalAmount) {
		return errors.Wrapf(ErrInvalidAmount, "swap spent %s of %s debited collateral", collateralSpent, withdrawalAmount)
	}
	if !borrowGained.IsPositive() {
		return errors.Wrap(ErrInvalidAmount, "swap yielded no debt token")
	}

	// collateral the swap left untouched goes back into the position
	unused := withdrawalAmount.Sub(collateralSpent)
	if unused.IsPositive() {
		var back decimal.Decimal
		v.TotalCollateral, back = v.TotalCollateral.Add(unused, RoundDown)
		if err := p.ChangeCollateralShare(back); err != nil {
			return err
		}
	}

	outstanding := v.TotalBorrow.ToTotalAmount(p.BorrowShare, RoundUp)
	pay := decimal.Min(borrowGained, outstanding)
	if pay.IsPositive() {
		if _, err := repayShares(v, p, pay, outstanding); err != nil {
			return err
		}
	}
	if surplus := borrowGained.Sub(pay); surplus.IsPositive() {
		if err := e.pushToken(ctx, e.borrowToken, account, surplus); err != nil {
			return err
		}
	}

	supplyAfter, err := e.collateral.TotalSupply(ctx)
	if err != nil {
		return err
	}
	if !supplyAfter.Equal(supplyBefore) {
		return ErrRebaseDetected
	}

	if err := e.healthcheck(v, p); err != nil {
		return err
	}

	if err := e.trimBorrowSurplus(ctx, v); err != nil {
		return err
	}
	if err := e.settle(ctx, v, accrued, limitTrim); err != nil {
		return err
	}
	if err := e.commit(ctx, v, p); err != nil {
		return err
	}

	e.event(ctx, account, ActionDeleverage, EventDetail{Amount: pay, Share: share})
	return nil
}
