package core

import (
	"context"

	"github.com/shopspring/decimal"
)

type (
	// Token is the minimal ledger surface of an external token contract.
	// Transfers may deliver less than the nominal amount (fee-on-transfer
	// tokens); callers that care measure balance deltas.
	Token interface {
		Asset() string
		BalanceOf(ctx context.Context, account string) (decimal.Decimal, error)
		Transfer(ctx context.Context, from, to string, amount decimal.Decimal) error
		TotalSupply(ctx context.Context) (decimal.Decimal, error)
	}

	// BorrowToken is the protocol debt token: a Token plus mint/burn and a
	// flash-loan provider surface.
	BorrowToken interface {
		Token
		Mint(ctx context.Context, to string, amount decimal.Decimal) error
		Burn(ctx context.Context, from string, amount decimal.Decimal) error
		FlashFee(amount decimal.Decimal) decimal.Decimal
		FlashLoan(ctx context.Context, borrower FlashBorrower, receiver string, amount decimal.Decimal, data []byte) error
	}

	// FlashBorrower receives flash-loaned funds. The lender pulls back
	// principal plus fee from the receiver after the callback returns.
	FlashBorrower interface {
		OnFlashLoan(ctx context.Context, initiator, asset string, amount, fee decimal.Decimal, data []byte) error
	}

	// NativeWrapper is the wrapped-native token: a Token plus wrap/unwrap
	// between an account's native balance and its wrapped balance.
	NativeWrapper interface {
		Token
		Wrap(ctx context.Context, account string, amount decimal.Decimal) error
		Unwrap(ctx context.Context, account string, amount decimal.Decimal) error
	}

	// NativeBank moves the chain's native asset. Send fails when the
	// recipient refuses delivery.
	NativeBank interface {
		Send(ctx context.Context, from, to string, amount decimal.Decimal) error
	}

	// SwapTarget executes opaque calldata. The engine never interprets the
	// payload; it only measures balance deltas around the call.
	SwapTarget interface {
		ID() string
		Execute(ctx context.Context, data []byte) error
	}
)
