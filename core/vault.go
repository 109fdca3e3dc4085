package core

import (
	"context"

	"github.com/Pearl-Finance/stackvault-core/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	VaultStore interface {
		CreateVault(ctx context.Context, vault *Vault) error
		UpdateVault(ctx context.Context, vault *Vault) error
		GetVaultById(ctx context.Context, vaultId uuid.UUID) (*Vault, error)
		ListVaults(ctx context.Context) ([]*Vault, error)
	}

	Vault struct {
		Id        uuid.UUID `json:"id" gorm:"primaryKey"`
		FactoryId string    `json:"factoryId"`
		Name      string    `json:"name"`

		CollateralAsset  string `json:"collateralAsset"`
		BorrowAsset      string `json:"borrowAsset"`
		NativeCollateral bool   `json:"nativeCollateral"`

		TotalCollateral InterestAccruingAmount `json:"totalCollateral" gorm:"embedded;embeddedPrefix:collateral_"`
		TotalBorrow     InterestAccruingAmount `json:"totalBorrow" gorm:"embedded;embeddedPrefix:borrow_"`

		VaultConfig `json:"vaultConfig" gorm:"embedded"`
		AccrualInfo `json:"accrualInfo" gorm:"embedded"`

		CreatedAt int64 `json:"createdAt"`
	}

	VaultConfig struct {
		IsRetired bool `json:"isRetired"`

		CollateralTokenOracle string `json:"collateralTokenOracle"`
		// BorrowTokenOracle overrides the factory's global borrow oracle
		// when set.
		BorrowTokenOracle string `json:"borrowTokenOracle"`

		BorrowLimit            decimal.Decimal `json:"borrowLimit"`
		LiquidationThreshold   decimal.Decimal `json:"liquidationThreshold"`
		LiquidationPenaltyFee  decimal.Decimal `json:"liquidationPenaltyFee"`
		BorrowOpeningFee       decimal.Decimal `json:"borrowOpeningFee"`
		InterestRateMultiplier decimal.Decimal `json:"interestRateMultiplier"`
	}

	AccrualInfo struct {
		// LastAccrual is strictly non-decreasing.
		LastAccrual int64           `json:"lastAccrual"`
		FeesEarned  decimal.Decimal `json:"feesEarned"`
	}
)

func NewVault(clk clock.Clock, factoryId, name, collateralAsset, borrowAsset string, nativeCollateral bool, config VaultConfig) *Vault {
	return &Vault{
		Id:               uuid.Must(uuid.FromString(utils.GenUuidFromStrings(factoryId, name, collateralAsset, borrowAsset))),
		FactoryId:        factoryId,
		Name:             name,
		CollateralAsset:  collateralAsset,
		BorrowAsset:      borrowAsset,
		NativeCollateral: nativeCollateral,
		TotalCollateral:  NewInterestAccruingAmount(),
		TotalBorrow:      NewInterestAccruingAmount(),
		VaultConfig:      config,
		AccrualInfo: AccrualInfo{
			LastAccrual: clk.Now().Unix(),
			FeesEarned:  decimal.Zero,
		},
		CreatedAt: clk.Now().Unix(),
	}
}

func (c *VaultConfig) Validate() error {
	if c.LiquidationThreshold.LessThan(MIN_LIQUIDATION_THRESHOLD) ||
		c.LiquidationThreshold.GreaterThan(MAX_LIQUIDATION_THRESHOLD) {
		return ErrInvalidLiquidationThreshold
	}
	if c.LiquidationPenaltyFee.IsNegative() || c.LiquidationPenaltyFee.GreaterThan(MAX_FEE_RATE) {
		return ErrInvalidFeeRate
	}
	if c.BorrowOpeningFee.IsNegative() || c.BorrowOpeningFee.GreaterThan(MAX_FEE_RATE) {
		return ErrInvalidFeeRate
	}
	if !c.InterestRateMultiplier.IsPositive() {
		return ErrInvalidInterestRate
	}
	if c.BorrowLimit.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (v *Vault) Clone() *Vault {
	clone := *v
	return &clone
}

// Account is the ledger account under which the vault holds token balances.
func (v *Vault) Account() string {
	return "vault:" + v.Id.String()
}

// InterestRatePerSecond scales the factory's global annual borrow rate by
// this vault's multiplier.
func (v *Vault) InterestRatePerSecond(globalRate decimal.Decimal) decimal.Decimal {
	return globalRate.Mul(v.InterestRateMultiplier).Div(decimal.NewFromInt(SECONDS_PER_YEAR))
}

// AccrueInterest advances the debt ledger by elapsed-time interest. It is a
// no-op when no time has passed or no debt is outstanding. Interest grows
// only the pool total, never base, so no per-position write is needed. For
// retired vaults the borrow limit is trimmed down toward the new outstanding
// total; the trimmed headroom is returned so the caller can burn the
// matching debt-token balance.
func (v *Vault) AccrueInterest(log Log, currentTimestamp int64, globalRate decimal.Decimal) (accrued, limitTrim decimal.Decimal) {
	accrued, limitTrim = decimal.Zero, decimal.Zero

	elapsed := currentTimestamp - v.LastAccrual
	if elapsed <= 0 {
		return
	}
	v.LastAccrual = currentTimestamp

	if v.TotalBorrow.Base.IsZero() {
		return
	}

	rate := v.InterestRatePerSecond(globalRate)
	accrued = v.TotalBorrow.Total.
		Mul(rate).
		Mul(decimal.NewFromInt(elapsed)).
		RoundFloor(TOKEN_PRECISION)
	if accrued.IsZero() {
		return
	}

	v.TotalBorrow.Total = v.TotalBorrow.Total.Add(accrued)
	v.FeesEarned = v.FeesEarned.Add(accrued)

	log.Debug().Msgf("accrued %s interest over %ds on vault %s", accrued, elapsed, v.Name)

	if v.IsRetired {
		// a winding-down vault keeps its limit pinned to the outstanding
		// debt; surrendered headroom is reported for burning
		if v.BorrowLimit.GreaterThan(v.TotalBorrow.Total) {
			limitTrim = v.BorrowLimit.Sub(v.TotalBorrow.Total)
		}
		v.BorrowLimit = v.TotalBorrow.Total
	}

	return
}

// ResyncCollateral re-anchors the collateral total to the vault's live token
// balance. Rebasing or yield-bearing collateral drifts the balance away from
// the recorded total; shares are untouched.
func (v *Vault) ResyncCollateral(liveBalance decimal.Decimal) {
	v.TotalCollateral.Total = liveBalance
}

// BorrowOracleId resolves the effective borrow-token oracle, falling back to
// the factory's global one when the vault carries no override.
func (v *Vault) BorrowOracleId(fallback string) string {
	if v.BorrowTokenOracle != "" {
		return v.BorrowTokenOracle
	}
	return fallback
}
