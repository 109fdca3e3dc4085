package core

import (
	"context"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	// Factory is the capability surface a vault engine consumes from its
	// owning factory.
	Factory interface {
		ID() string
		BorrowInterestRate() decimal.Decimal
		BorrowTokenOracle() string
		IsTrustedSwapTarget(id string) bool
		SwapTarget(id string) (SwapTarget, error)
		FeeReceiver() string
		NotifyAccruedInterest(ctx context.Context, vaultId uuid.UUID, amount decimal.Decimal) error
		CollectFees(ctx context.Context, from string, token Token, amount decimal.Decimal) error
	}

	// VaultFactory creates and administers vault engines. It is composed of
	// three concerns behind one surface: a config store (global rate, fee
	// receiver, global borrow oracle), a vault registry, and a swap-target
	// allow-list.
	VaultFactory struct {
		id  string
		clk clock.Clock
		log Log

		borrowToken BorrowToken
		oracles     OracleRegistry

		mu                sync.RWMutex
		borrowRate        decimal.Decimal
		borrowTokenOracle string
		feeReceiver       string
		swapTargets       map[string]SwapTarget
		vaults            map[uuid.UUID]*Engine
	}
)

func NewVaultFactory(clk clock.Clock, log Log, id string, borrowToken BorrowToken, oracles OracleRegistry, borrowTokenOracle, feeReceiver string, borrowRate decimal.Decimal) *VaultFactory {
	return &VaultFactory{
		id:  id,
		clk: clk,
		log: log,

		borrowToken: borrowToken,
		oracles:     oracles,

		borrowRate:        borrowRate,
		borrowTokenOracle: borrowTokenOracle,
		feeReceiver:       feeReceiver,
		swapTargets:       make(map[string]SwapTarget),
		vaults:            make(map[uuid.UUID]*Engine),
	}
}

func (f *VaultFactory) ID() string {
	return f.id
}

func (f *VaultFactory) BorrowInterestRate() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.borrowRate
}

// SetBorrowInterestRate changes the protocol-wide annual borrow rate.
// Every registered vault accrues first so the new rate never applies
// retroactively.
func (f *VaultFactory) SetBorrowInterestRate(ctx context.Context, rate decimal.Decimal) error {
	if rate.IsNegative() {
		return ErrInvalidInterestRate
	}
	f.mu.RLock()
	engines := make([]*Engine, 0, len(f.vaults))
	for _, e := range f.vaults {
		engines = append(engines, e)
	}
	f.mu.RUnlock()

	for _, e := range engines {
		if err := e.Accrue(ctx); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.borrowRate = rate
	f.mu.Unlock()
	return nil
}

func (f *VaultFactory) BorrowTokenOracle() string {
	return f.borrowTokenOracle
}

func (f *VaultFactory) FeeReceiver() string {
	return f.feeReceiver
}

func (f *VaultFactory) IsTrustedSwapTarget(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.swapTargets[id]
	return ok
}

func (f *VaultFactory) SwapTarget(id string) (SwapTarget, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	target, ok := f.swapTargets[id]
	if !ok {
		return nil, errors.Wrapf(ErrUntrustedSwapTarget, "target %s", id)
	}
	return target, nil
}

func (f *VaultFactory) AddTrustedSwapTarget(target SwapTarget) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swapTargets[target.ID()] = target
}

func (f *VaultFactory) RemoveTrustedSwapTarget(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.swapTargets, id)
}

// NotifyAccruedInterest mints the accrued amount of debt token to the
// protocol fee receiver. Vaults never mint directly.
func (f *VaultFactory) NotifyAccruedInterest(ctx context.Context, vaultId uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	f.log.Info().Msgf("vault %s accrued %s interest", vaultId, amount)
	return f.borrowToken.Mint(ctx, f.feeReceiver, amount)
}

// CollectFees pulls a fee amount of the given token from the vault to the
// protocol fee receiver.
func (f *VaultFactory) CollectFees(ctx context.Context, from string, token Token, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	return token.Transfer(ctx, from, f.feeReceiver, amount)
}

// CreateVault registers a new vault for the given collateral token and
// returns its operation engine.
func (f *VaultFactory) CreateVault(ctx context.Context, name string, collateral Token, nativeCollateral bool, config VaultConfig, svc VaultService, opts ...EngineOption) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	vault := NewVault(f.clk, f.id, name, collateral.Asset(), f.borrowToken.Asset(), nativeCollateral, config)
	if err := svc.CreateVault(ctx, vault); err != nil {
		return nil, err
	}

	opts = append([]EngineOption{WithClock(f.clk)}, opts...)
	engine := NewEngine(f.log, f, f.oracles, f.borrowToken, collateral, vault, svc, opts...)

	// seed the vault's debt-token float to its borrow limit headroom
	if config.BorrowLimit.IsPositive() {
		if err := f.borrowToken.Mint(ctx, vault.Account(), config.BorrowLimit); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.vaults[vault.Id] = engine
	f.mu.Unlock()

	return engine, nil
}

func (f *VaultFactory) GetVault(vaultId uuid.UUID) (*Engine, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	engine, ok := f.vaults[vaultId]
	if !ok {
		return nil, VaultNotFound
	}
	return engine, nil
}
