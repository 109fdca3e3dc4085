package core

import (
	"context"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	// VaultService aggregates the persistence surfaces an engine needs.
	VaultService interface {
		VaultStore
		PositionStore
		EventStore
	}

	// Engine executes all operations against a single vault. Every public
	// method takes the engine lock, works on cloned state and persists only
	// after all checks and token moves succeed.
	Engine struct {
		mu  sync.Mutex
		clk clock.Clock
		log Log

		factory Factory
		oracles OracleRegistry

		borrowToken BorrowToken
		collateral  Token
		wrapper     NativeWrapper
		native      NativeBank

		vault *Vault
		svc   VaultService

		pendingLoan *flashLoanIntent
	}

	EngineOption func(*Engine)
)

func WithClock(clk clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clk = clk
	}
}

// WithNativeCollateral enables native-coin handling. Deposits wrap incoming
// native into the collateral token and withdrawals unwrap on the way out.
func WithNativeCollateral(wrapper NativeWrapper, native NativeBank) EngineOption {
	return func(e *Engine) {
		e.wrapper = wrapper
		e.native = native
	}
}

func NewEngine(log Log, factory Factory, oracles OracleRegistry, borrowToken BorrowToken, collateral Token, vault *Vault, svc VaultService, opts ...EngineOption) *Engine {
	e := &Engine{
		clk: clock.New(),
		log: log,

		factory: factory,
		oracles: oracles,

		borrowToken: borrowToken,
		collateral:  collateral,

		vault: vault,
		svc:   svc,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) VaultId() uuid.UUID {
	return e.vault.Id
}

// accrue runs interest accrual and collateral resync on the working copy.
// Side effects (interest mint, surplus burn) are deferred to settle so an
// aborted operation leaves no trace outside the vault state.
func (e *Engine) accrue(ctx context.Context, v *Vault) (accrued, limitTrim decimal.Decimal, err error) {
	balance, err := e.collateral.BalanceOf(ctx, v.Account())
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	v.ResyncCollateral(balance)

	accrued, limitTrim = v.AccrueInterest(e.log, e.clk.Now().Unix(), e.factory.BorrowInterestRate())
	return accrued, limitTrim, nil
}

// settle performs the external side effects of a completed accrual: the
// accrued interest and opening fees are reported to the factory, and any
// debt-token float trimmed off a retired vault's limit is burned.
func (e *Engine) settle(ctx context.Context, v *Vault, accrued, limitTrim decimal.Decimal) error {
	if limitTrim.IsPositive() {
		if err := e.borrowToken.Burn(ctx, v.Account(), limitTrim); err != nil {
			return err
		}
	}
	if accrued.IsPositive() {
		if err := e.factory.NotifyAccruedInterest(ctx, v.Id, accrued); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadPosition(ctx context.Context, v *Vault, account string) (*Position, error) {
	position, err := FindOrCreatePosition(ctx, e.clk, e.svc, v.Id, account)
	if err != nil {
		return nil, err
	}
	return position.Clone(), nil
}

// commit makes the working copies authoritative. Vault state first, then
// positions, so a half-failed persist never shows a position ahead of its
// vault totals.
func (e *Engine) commit(ctx context.Context, v *Vault, positions ...*Position) error {
	now := e.clk.Now().Unix()
	if err := e.svc.UpdateVault(ctx, v); err != nil {
		return err
	}
	for _, p := range positions {
		p.LastUpdate = now
		if err := e.svc.UpsertPosition(ctx, p); err != nil {
			return err
		}
	}
	*e.vault = *v
	return nil
}

// event records an operation for audit. Event persistence is best effort,
// a failed write never fails the operation itself.
func (e *Engine) event(ctx context.Context, account string, action ActionType, detail EventDetail) {
	evt := NewEvent(e.clk, e.vault.Id, account, action, detail)
	if err := e.svc.CreateEvent(ctx, evt); err != nil {
		e.log.Warn().Err(err).Msgf("create %s event", action)
	}
}

// Accrue brings the vault's interest bookkeeping up to the current time.
func (e *Engine) Accrue(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	accrued, limitTrim, err := e.accrue(ctx, v)
	if err != nil {
		return err
	}
	if err := e.settle(ctx, v, accrued, limitTrim); err != nil {
		return err
	}
	return e.commit(ctx, v)
}

// Snapshot returns a copy of the current vault state.
func (e *Engine) Snapshot() *Vault {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vault.Clone()
}

type PositionInfo struct {
	Account          string          `json:"account"`
	CollateralShare  decimal.Decimal `json:"collateral_share"`
	CollateralAmount decimal.Decimal `json:"collateral_amount"`
	BorrowShare      decimal.Decimal `json:"borrow_share"`
	BorrowAmount     decimal.Decimal `json:"borrow_amount"`
	Healthy          bool            `json:"healthy"`
}

// Inspect reports an account's position valued at current share prices.
func (e *Engine) Inspect(ctx context.Context, account string) (*PositionInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.vault.Clone()
	p, err := e.loadPosition(ctx, v, account)
	if err != nil {
		return nil, err
	}

	collateralValue, borrowValue, err := e.positionValues(v, p)
	if err != nil {
		return nil, err
	}

	return &PositionInfo{
		Account:          account,
		CollateralShare:  p.CollateralShare,
		CollateralAmount: v.TotalCollateral.ToTotalAmount(p.CollateralShare, RoundDown),
		BorrowShare:      p.BorrowShare,
		BorrowAmount:     v.TotalBorrow.ToTotalAmount(p.BorrowShare, RoundUp),
		Healthy:          IsHealthy(collateralValue, borrowValue, v.LiquidationThreshold),
	}, nil
}
