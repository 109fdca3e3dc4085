package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// pullToken moves tokens from an external account into the vault and
// returns the amount the vault actually received, measured as a balance
// delta so fee-on-transfer tokens credit what arrived, not what was sent.
func (e *Engine) pullToken(ctx context.Context, token Token, from string, amount decimal.Decimal) (decimal.Decimal, error) {
	account := e.vault.Account()
	before, err := token.BalanceOf(ctx, account)
	if err != nil {
		return decimal.Zero, err
	}
	if err := token.Transfer(ctx, from, account, amount); err != nil {
		return decimal.Zero, err
	}
	after, err := token.BalanceOf(ctx, account)
	if err != nil {
		return decimal.Zero, err
	}
	return after.Sub(before), nil
}

// pushToken moves tokens from the vault to an external account.
func (e *Engine) pushToken(ctx context.Context, token Token, to string, amount decimal.Decimal) error {
	return token.Transfer(ctx, e.vault.Account(), to, amount)
}

// transferCollateralIn pulls collateral for a deposit. For native vaults the
// sender's native coin is wrapped in place first, so the vault only ever
// holds the wrapped token. Wrap failures fall through to pulling wrapped
// tokens the sender already holds.
func (e *Engine) transferCollateralIn(ctx context.Context, from string, amount decimal.Decimal) (decimal.Decimal, error) {
	if e.vault.NativeCollateral && e.wrapper != nil {
		if err := e.wrapper.Wrap(ctx, from, amount); err != nil {
			e.log.Debug().Err(err).Msg("wrap native, falling back to wrapped transfer")
		}
	}
	return e.pullToken(ctx, e.collateral, from, amount)
}

// transferCollateralOut sends collateral to the recipient. Native vaults
// unwrap and deliver the native coin; when the recipient refuses native
// delivery the amount is re-wrapped and delivered as the wrapped token.
func (e *Engine) transferCollateralOut(ctx context.Context, to string, amount decimal.Decimal) error {
	if !e.vault.NativeCollateral || e.wrapper == nil || e.native == nil {
		return e.pushToken(ctx, e.collateral, to, amount)
	}

	account := e.vault.Account()
	if err := e.wrapper.Unwrap(ctx, account, amount); err != nil {
		return err
	}
	if err := e.native.Send(ctx, account, to, amount); err != nil {
		e.log.Debug().Err(err).Msgf("native send to %s refused, delivering wrapped", to)
		if err := e.wrapper.Wrap(ctx, account, amount); err != nil {
			return err
		}
		return e.pushToken(ctx, e.collateral, to, amount)
	}
	return nil
}
