package core

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWrapper pairs a wrapped token ledger with per-account native balances.
type fakeWrapper struct {
	*fakeToken
	native map[string]decimal.Decimal
}

func newFakeWrapper(asset string) *fakeWrapper {
	return &fakeWrapper{
		fakeToken: newFakeToken(asset),
		native:    make(map[string]decimal.Decimal),
	}
}

func (w *fakeWrapper) Wrap(_ context.Context, account string, amount decimal.Decimal) error {
	if w.native[account].LessThan(amount) {
		return errors.Errorf("%s: insufficient native balance", account)
	}
	w.native[account] = w.native[account].Sub(amount)
	w.mint(account, amount)
	return nil
}

func (w *fakeWrapper) Unwrap(_ context.Context, account string, amount decimal.Decimal) error {
	if w.balances[account].LessThan(amount) {
		return errors.Errorf("%s: insufficient wrapped balance", account)
	}
	w.balances[account] = w.balances[account].Sub(amount)
	w.supply = w.supply.Sub(amount)
	w.native[account] = w.native[account].Add(amount)
	return nil
}

// fakeBank moves native balances and lets tests mark accounts that refuse
// delivery.
type fakeBank struct {
	wrapper *fakeWrapper
	refuse  map[string]bool
}

func (b *fakeBank) Send(_ context.Context, from, to string, amount decimal.Decimal) error {
	if b.refuse[to] {
		return errors.Errorf("%s refuses native delivery", to)
	}
	if b.wrapper.native[from].LessThan(amount) {
		return errors.Errorf("%s: insufficient native balance", from)
	}
	b.wrapper.native[from] = b.wrapper.native[from].Sub(amount)
	b.wrapper.native[to] = b.wrapper.native[to].Add(amount)
	return nil
}

func newNativeEnv(t *testing.T) (*testEnv, *fakeWrapper, *fakeBank) {
	ctx := context.Background()
	env := &testEnv{ctx: ctx}

	wrapper := newFakeWrapper("WXDC")
	bank := &fakeBank{wrapper: wrapper, refuse: make(map[string]bool)}

	base := newTestEnv(t, defaultConfig(), decimal.Zero)
	engine, err := base.factory.CreateVault(ctx, "xdc-usv", wrapper, true, defaultConfig(), base.store,
		WithNativeCollateral(wrapper, bank))
	require.NoError(t, err)

	env.clk = base.clk
	env.store = base.store
	env.factory = base.factory
	env.engine = engine
	env.collateral = wrapper.fakeToken
	env.borrow = base.borrow
	return env, wrapper, bank
}

func TestNativeDepositWraps(t *testing.T) {
	env, wrapper, _ := newNativeEnv(t)
	wrapper.native["alice"] = decimal.NewFromInt(100)

	share, err := env.engine.DepositCollateral(env.ctx, "alice", "alice", decimal.NewFromInt(100))
	assert.NoError(t, err)
	assert.True(t, share.Equal(decimal.NewFromInt(100)))

	// the vault holds wrapped tokens, alice's native is gone
	assert.True(t, wrapper.balances[env.vaultAccount()].Equal(decimal.NewFromInt(100)))
	assert.True(t, wrapper.native["alice"].IsZero())
}

func TestNativeWithdrawUnwraps(t *testing.T) {
	env, wrapper, _ := newNativeEnv(t)
	wrapper.native["alice"] = decimal.NewFromInt(100)

	_, err := env.engine.DepositCollateral(env.ctx, "alice", "alice", decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = env.engine.WithdrawCollateral(env.ctx, "alice", "alice", decimal.NewFromInt(40))
	assert.NoError(t, err)

	assert.True(t, wrapper.native["alice"].Equal(decimal.NewFromInt(40)), "got %s", wrapper.native["alice"])
	assert.True(t, wrapper.balances["alice"].IsZero())
}

func TestNativeWithdrawFallsBackToWrapped(t *testing.T) {
	env, wrapper, bank := newNativeEnv(t)
	wrapper.native["alice"] = decimal.NewFromInt(100)

	_, err := env.engine.DepositCollateral(env.ctx, "alice", "alice", decimal.NewFromInt(100))
	require.NoError(t, err)

	// the recipient cannot take native, so it gets the wrapped token
	bank.refuse["contract"] = true
	_, err = env.engine.WithdrawCollateral(env.ctx, "alice", "contract", decimal.NewFromInt(40))
	assert.NoError(t, err)

	assert.True(t, wrapper.balances["contract"].Equal(decimal.NewFromInt(40)), "got %s", wrapper.balances["contract"])
	assert.True(t, wrapper.native["contract"].IsZero())
}

func TestNativeDepositFromWrappedBalance(t *testing.T) {
	env, wrapper, _ := newNativeEnv(t)
	// alice holds wrapped tokens and no native; the wrap attempt fails and
	// the deposit falls through to a plain transfer
	wrapper.mint("alice", decimal.NewFromInt(50))

	share, err := env.engine.DepositCollateral(env.ctx, "alice", "alice", decimal.NewFromInt(50))
	assert.NoError(t, err)
	assert.True(t, share.Equal(decimal.NewFromInt(50)))
}
