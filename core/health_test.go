package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsHealthy(t *testing.T) {
	threshold := decimal.NewFromFloat(0.9)

	tests := []struct {
		name            string
		collateralValue decimal.Decimal
		borrowValue     decimal.Decimal
		healthy         bool
	}{
		{
			name:            "no debt",
			collateralValue: decimal.Zero,
			borrowValue:     decimal.Zero,
			healthy:         true,
		},
		{
			name:            "debt without collateral",
			collateralValue: decimal.Zero,
			borrowValue:     decimal.NewFromInt(1),
			healthy:         false,
		},
		{
			name:            "well collateralized",
			collateralValue: decimal.NewFromInt(100),
			borrowValue:     decimal.NewFromInt(50),
			healthy:         true,
		},
		{
			name:            "just under the threshold",
			collateralValue: decimal.NewFromInt(100),
			borrowValue:     decimal.NewFromFloat(89.99999999),
			healthy:         true,
		},
		{
			name:            "exactly at the threshold",
			collateralValue: decimal.NewFromInt(100),
			borrowValue:     decimal.NewFromInt(90),
			healthy:         false,
		},
		{
			name:            "above the threshold",
			collateralValue: decimal.NewFromInt(100),
			borrowValue:     decimal.NewFromInt(95),
			healthy:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsHealthy(tt.collateralValue, tt.borrowValue, threshold)
			assert.Equal(t, tt.healthy, result)
		})
	}
}

func TestIsHealthyAvoidsDivisionDrift(t *testing.T) {
	// values chosen so a divided ratio would round off the boundary
	threshold := decimal.NewFromFloat(0.33333333)
	collateralValue := decimal.NewFromInt(3)
	borrowValue := decimal.NewFromFloat(0.99999999)

	assert.False(t, IsHealthy(collateralValue, borrowValue, threshold))
	assert.True(t, IsHealthy(collateralValue, borrowValue.Sub(QUANTUM), threshold))
}
