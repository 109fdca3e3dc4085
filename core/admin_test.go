package core

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAuthorization(t *testing.T) {
	env := newTestEnv(t, defaultConfig(), decimal.Zero)

	err := env.engine.SetLiquidationThreshold(env.ctx, "mallory", decimal.NewFromFloat(0.5))
	assert.Equal(t, ErrUnauthorized, errors.Cause(err))

	err = env.engine.Retire(env.ctx, "mallory")
	assert.Equal(t, ErrUnauthorized, errors.Cause(err))

	err = env.engine.IncreaseBorrowLimit(env.ctx, "mallory", decimal.NewFromInt(1))
	assert.Equal(t, ErrUnauthorized, errors.Cause(err))
}

func TestAdminIdempotencyGuard(t *testing.T) {
	env := newTestEnv(t, defaultConfig(), decimal.Zero)

	err := env.engine.SetLiquidationThreshold(env.ctx, testFactoryId, decimal.NewFromFloat(0.9))
	assert.Equal(t, ErrValueUnchanged, err)

	err = env.engine.SetBorrowOpeningFee(env.ctx, testFactoryId, decimal.NewFromFloat(0.05))
	assert.Equal(t, ErrValueUnchanged, err)

	err = env.engine.Revive(env.ctx, testFactoryId)
	assert.Equal(t, ErrValueUnchanged, err)
}

func TestAdminBounds(t *testing.T) {
	env := newTestEnv(t, defaultConfig(), decimal.Zero)

	assert.Equal(t, ErrInvalidLiquidationThreshold,
		env.engine.SetLiquidationThreshold(env.ctx, testFactoryId, decimal.NewFromFloat(1.5)))
	assert.Equal(t, ErrInvalidFeeRate,
		env.engine.SetBorrowOpeningFee(env.ctx, testFactoryId, decimal.NewFromFloat(-0.1)))
	assert.Equal(t, ErrInvalidFeeRate,
		env.engine.SetLiquidationPenaltyFee(env.ctx, testFactoryId, decimal.NewFromFloat(1.1)))
	assert.Equal(t, ErrInvalidInterestRate,
		env.engine.SetInterestRateMultiplier(env.ctx, testFactoryId, decimal.Zero))
}

func TestSetOracles(t *testing.T) {
	env := newTestEnv(t, defaultConfig(), decimal.Zero)

	err := env.engine.SetCollateralTokenOracle(env.ctx, testFactoryId, "oracle:missing")
	assert.Equal(t, OracleNotFound, errors.Cause(err))

	require.NoError(t, env.engine.SetBorrowTokenOracle(env.ctx, testFactoryId, "oracle:collateral"))
	assert.Equal(t, "oracle:collateral", env.engine.Snapshot().BorrowTokenOracle)

	// clearing the override falls back to the factory's global oracle
	require.NoError(t, env.engine.SetBorrowTokenOracle(env.ctx, testFactoryId, ""))
	assert.Equal(t, "oracle:borrow", env.engine.Snapshot().BorrowOracleId(env.factory.BorrowTokenOracle()))
}

func TestBorrowLimitAdjustments(t *testing.T) {
	env := newTestEnv(t, defaultConfig(), decimal.Zero)
	vault := env.vaultAccount()

	// creation minted the full limit as lendable float
	assert.True(t, env.borrow.balances[vault].Equal(decimal.NewFromInt(1000)))

	require.NoError(t, env.engine.IncreaseBorrowLimit(env.ctx, testFactoryId, decimal.NewFromInt(500)))
	assert.True(t, env.engine.Snapshot().BorrowLimit.Equal(decimal.NewFromInt(1500)))
	assert.True(t, env.borrow.balances[vault].Equal(decimal.NewFromInt(1500)))

	require.NoError(t, env.engine.DecreaseBorrowLimit(env.ctx, testFactoryId, decimal.NewFromInt(1200)))
	assert.True(t, env.engine.Snapshot().BorrowLimit.Equal(decimal.NewFromInt(300)))
	assert.True(t, env.borrow.balances[vault].Equal(decimal.NewFromInt(300)))
}

func TestDecreaseBorrowLimitBelowOutstanding(t *testing.T) {
	config := defaultConfig()
	config.BorrowOpeningFee = decimal.Zero
	env := newTestEnv(t, config, decimal.Zero)
	env.collateral.mint("alice", decimal.NewFromInt(1000))

	_, err := env.engine.DepositCollateral(env.ctx, "alice", "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = env.engine.Borrow(env.ctx, "alice", "alice", decimal.NewFromInt(400))
	require.NoError(t, err)

	// 1000 - 700 = 300 would undercut the 400 outstanding
	err = env.engine.DecreaseBorrowLimit(env.ctx, testFactoryId, decimal.NewFromInt(700))
	assert.Equal(t, ErrInvalidAmount, errors.Cause(err))

	assert.NoError(t, env.engine.DecreaseBorrowLimit(env.ctx, testFactoryId, decimal.NewFromInt(600)))
}

func TestSetInterestRateMultiplierAccruesFirst(t *testing.T) {
	config := defaultConfig()
	config.BorrowOpeningFee = decimal.Zero
	env := newTestEnv(t, config, decimal.NewFromFloat(0.031536))
	env.collateral.mint("alice", decimal.NewFromInt(1000))

	_, err := env.engine.DepositCollateral(env.ctx, "alice", "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = env.engine.Borrow(env.ctx, "alice", "alice", decimal.NewFromInt(100))
	require.NoError(t, err)

	env.clk.Add(365 * 24 * time.Hour)
	require.NoError(t, env.engine.SetInterestRateMultiplier(env.ctx, testFactoryId, decimal.NewFromInt(2)))

	// the elapsed year accrued at the old 1x rate
	v := env.engine.Snapshot()
	assert.True(t, v.TotalBorrow.Total.Equal(decimal.NewFromFloat(103.1536)), "got %s", v.TotalBorrow.Total)
	assert.True(t, v.InterestRateMultiplier.Equal(decimal.NewFromInt(2)))
}

func TestRetireTrimsOnAccrual(t *testing.T) {
	config := defaultConfig()
	config.BorrowOpeningFee = decimal.Zero
	env := newTestEnv(t, config, decimal.NewFromFloat(0.031536))
	env.collateral.mint("alice", decimal.NewFromInt(1000))

	_, err := env.engine.DepositCollateral(env.ctx, "alice", "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = env.engine.Borrow(env.ctx, "alice", "alice", decimal.NewFromInt(100))
	require.NoError(t, err)

	require.NoError(t, env.engine.Retire(env.ctx, testFactoryId))

	env.clk.Add(365 * 24 * time.Hour)
	require.NoError(t, env.engine.Accrue(env.ctx))

	// accrual collapsed the limit onto the outstanding debt and burned the
	// matching float
	v := env.engine.Snapshot()
	assert.True(t, v.BorrowLimit.Equal(v.TotalBorrow.Total), "limit %s outstanding %s", v.BorrowLimit, v.TotalBorrow.Total)

	// repayments into the retired vault are burned, not hoarded
	env.borrow.mint("alice", decimal.NewFromFloat(3.1536))
	_, err = env.engine.RepayAll(env.ctx, "alice", "alice")
	require.NoError(t, err)

	v = env.engine.Snapshot()
	assert.True(t, v.TotalBorrow.Total.IsZero())
	assert.True(t, env.borrow.balances[env.vaultAccount()].IsZero(), "got %s", env.borrow.balances[env.vaultAccount()])
}

func TestFactorySetBorrowInterestRate(t *testing.T) {
	env := newTestEnv(t, defaultConfig(), decimal.Zero)

	err := env.factory.SetBorrowInterestRate(env.ctx, decimal.NewFromInt(-1))
	assert.Equal(t, ErrInvalidInterestRate, errors.Cause(err))

	require.NoError(t, env.factory.SetBorrowInterestRate(env.ctx, decimal.NewFromFloat(0.05)))
	assert.True(t, env.factory.BorrowInterestRate().Equal(decimal.NewFromFloat(0.05)))
}

func TestFactoryVaultRegistry(t *testing.T) {
	env := newTestEnv(t, defaultConfig(), decimal.Zero)

	engine, err := env.factory.GetVault(env.engine.VaultId())
	assert.NoError(t, err)
	assert.Equal(t, env.engine, engine)

	_, err = env.factory.GetVault(uuid.Must(uuid.NewV4()))
	assert.Equal(t, VaultNotFound, errors.Cause(err))
}
