package core

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopLog() Log {
	logger := zerolog.Nop()
	return &logger
}

func TestVaultConfigValidate(t *testing.T) {
	valid := defaultConfig()

	tests := []struct {
		name    string
		mutate  func(*VaultConfig)
		wantErr error
	}{
		{
			name:    "valid",
			mutate:  func(*VaultConfig) {},
			wantErr: nil,
		},
		{
			name:    "threshold too low",
			mutate:  func(c *VaultConfig) { c.LiquidationThreshold = decimal.NewFromFloat(0.005) },
			wantErr: ErrInvalidLiquidationThreshold,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *VaultConfig) { c.LiquidationThreshold = decimal.NewFromFloat(1.1) },
			wantErr: ErrInvalidLiquidationThreshold,
		},
		{
			name:    "negative penalty",
			mutate:  func(c *VaultConfig) { c.LiquidationPenaltyFee = decimal.NewFromFloat(-0.01) },
			wantErr: ErrInvalidFeeRate,
		},
		{
			name:    "opening fee above one",
			mutate:  func(c *VaultConfig) { c.BorrowOpeningFee = decimal.NewFromFloat(1.5) },
			wantErr: ErrInvalidFeeRate,
		},
		{
			name:    "zero multiplier",
			mutate:  func(c *VaultConfig) { c.InterestRateMultiplier = decimal.Zero },
			wantErr: ErrInvalidInterestRate,
		},
		{
			name:    "negative limit",
			mutate:  func(c *VaultConfig) { c.BorrowLimit = decimal.NewFromInt(-1) },
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			assert.Equal(t, tt.wantErr, config.Validate())
		})
	}
}

func TestNewVaultDeterministicId(t *testing.T) {
	clk := clock.NewMock()
	a := NewVault(clk, "factory:test", "weth-usv", "WETH", "USV", false, defaultConfig())
	b := NewVault(clk, "factory:test", "weth-usv", "WETH", "USV", false, defaultConfig())
	c := NewVault(clk, "factory:test", "wbtc-usv", "WBTC", "USV", false, defaultConfig())

	assert.Equal(t, a.Id, b.Id)
	assert.NotEqual(t, a.Id, c.Id)
}

func TestAccrueInterestIdempotent(t *testing.T) {
	clk := clock.NewMock()
	vault := NewVault(clk, "factory:test", "weth-usv", "WETH", "USV", false, defaultConfig())
	vault.TotalBorrow = InterestAccruingAmount{
		Base:  decimal.NewFromInt(100),
		Total: decimal.NewFromInt(100),
	}

	rate := decimal.NewFromFloat(0.031536)
	now := clk.Now().Add(time.Hour).Unix()

	accrued, _ := vault.AccrueInterest(nopLog(), now, rate)
	assert.True(t, accrued.IsPositive())

	// same timestamp accrues nothing more
	again, _ := vault.AccrueInterest(nopLog(), now, rate)
	assert.True(t, again.IsZero(), "got %s", again)

	// an earlier timestamp never rolls the clock back
	before := vault.LastAccrual
	_, _ = vault.AccrueInterest(nopLog(), now-600, rate)
	assert.Equal(t, before, vault.LastAccrual)
}

func TestAccrueInterestGrowsTotalOnly(t *testing.T) {
	clk := clock.NewMock()
	vault := NewVault(clk, "factory:test", "weth-usv", "WETH", "USV", false, defaultConfig())
	vault.TotalBorrow = InterestAccruingAmount{
		Base:  decimal.NewFromInt(100),
		Total: decimal.NewFromInt(100),
	}

	// 1e-9 per second over a day on 100
	rate := decimal.NewFromFloat(0.031536)
	accrued, trim := vault.AccrueInterest(nopLog(), clk.Now().Add(24*time.Hour).Unix(), rate)

	assert.True(t, accrued.Equal(decimal.NewFromFloat(0.00864)), "got %s", accrued)
	assert.True(t, trim.IsZero())
	assert.True(t, vault.TotalBorrow.Base.Equal(decimal.NewFromInt(100)))
	assert.True(t, vault.TotalBorrow.Total.Equal(decimal.NewFromFloat(100.00864)))
	assert.True(t, vault.FeesEarned.Equal(accrued))
}

func TestAccrueInterestSkipsIdleVault(t *testing.T) {
	clk := clock.NewMock()
	vault := NewVault(clk, "factory:test", "weth-usv", "WETH", "USV", false, defaultConfig())

	accrued, trim := vault.AccrueInterest(nopLog(), clk.Now().Add(time.Hour).Unix(), decimal.NewFromFloat(0.1))
	assert.True(t, accrued.IsZero())
	assert.True(t, trim.IsZero())
	// the accrual clock still advances
	assert.Equal(t, clk.Now().Add(time.Hour).Unix(), vault.LastAccrual)
}

func TestAccrueInterestTrimsRetiredLimit(t *testing.T) {
	clk := clock.NewMock()
	config := defaultConfig()
	config.BorrowLimit = decimal.NewFromInt(1000)
	vault := NewVault(clk, "factory:test", "weth-usv", "WETH", "USV", false, config)
	vault.IsRetired = true
	vault.TotalBorrow = InterestAccruingAmount{
		Base:  decimal.NewFromInt(100),
		Total: decimal.NewFromInt(100),
	}

	rate := decimal.NewFromFloat(0.031536)
	accrued, trim := vault.AccrueInterest(nopLog(), clk.Now().Add(24*time.Hour).Unix(), rate)
	require.True(t, accrued.IsPositive())

	// the limit collapses onto the new outstanding total
	assert.True(t, vault.BorrowLimit.Equal(vault.TotalBorrow.Total))
	assert.True(t, trim.Equal(decimal.NewFromInt(1000).Sub(vault.TotalBorrow.Total)), "got %s", trim)
}

func TestInterestRatePerSecond(t *testing.T) {
	clk := clock.NewMock()
	config := defaultConfig()
	config.InterestRateMultiplier = decimal.NewFromInt(2)
	vault := NewVault(clk, "factory:test", "weth-usv", "WETH", "USV", false, config)

	rate := vault.InterestRatePerSecond(decimal.NewFromFloat(0.031536))
	assert.True(t, rate.Equal(decimal.NewFromFloat(2e-9)), "got %s", rate)
}

func TestBorrowOracleIdFallback(t *testing.T) {
	clk := clock.NewMock()
	vault := NewVault(clk, "factory:test", "weth-usv", "WETH", "USV", false, defaultConfig())

	assert.Equal(t, "oracle:global", vault.BorrowOracleId("oracle:global"))

	vault.BorrowTokenOracle = "oracle:override"
	assert.Equal(t, "oracle:override", vault.BorrowOracleId("oracle:global"))
}
