package core

import "github.com/pkg/errors"

var (
	// validation
	ErrInvalidAmount               = errors.New("invalid amount")
	ErrInvalidAccount              = errors.New("invalid account")
	ErrValueUnchanged              = errors.New("value unchanged")
	ErrInvalidFeeRate              = errors.New("fee rate out of bounds")
	ErrInvalidLiquidationThreshold = errors.New("liquidation threshold out of bounds")
	ErrInvalidInterestRate         = errors.New("invalid interest rate multiplier")

	// authorization
	ErrUnauthorized        = errors.New("unauthorized caller")
	ErrUnexpectedFlashLoan = errors.New("unexpected flash loan callback")

	// solvency
	ErrUnhealthy         = errors.New("position unhealthy")
	ErrLiquidationFailed = errors.New("liquidation failed")

	// resource
	ErrBorrowLimitExceeded    = errors.New("borrow limit exceeded")
	ErrUntrustedSwapTarget    = errors.New("untrusted swap target")
	ErrRebaseDetected         = errors.New("collateral supply changed mid-operation")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrNoOutstandingDebt      = errors.New("no outstanding debt")

	// integration
	ErrFlashLoanFailed = errors.New("flash loan failed")

	VaultNotFound    = errors.New("vault not found")
	VaultRetired     = errors.New("vault retired")
	PositionNotFound = errors.New("position not found")
	OracleNotFound   = errors.New("oracle not found")
)
