package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type (
	PositionStore interface {
		FindPosition(ctx context.Context, vaultId uuid.UUID, account string) (*Position, error)
		UpsertPosition(ctx context.Context, position *Position) error
		ListPositions(ctx context.Context, vaultId uuid.UUID) ([]*Position, error)
	}

	Position struct {
		VaultId uuid.UUID `json:"vaultId" gorm:"primaryKey"`
		Account string    `json:"account" gorm:"primaryKey"`

		CollateralShare decimal.Decimal `json:"collateralShare"`
		BorrowShare     decimal.Decimal `json:"borrowShare"`
		// BorrowAmount caches raw borrowed principal plus fees for display.
		// Solvency always derives from BorrowShare.
		BorrowAmount decimal.Decimal `json:"borrowAmount"`

		CreatedAt  int64 `json:"createdAt"`
		LastUpdate int64 `json:"lastUpdate"`
	}
)

func NewPosition(clk clock.Clock, vaultId uuid.UUID, account string) *Position {
	return &Position{
		VaultId: vaultId,
		Account: account,

		CollateralShare: decimal.Zero,
		BorrowShare:     decimal.Zero,
		BorrowAmount:    decimal.Zero,
		CreatedAt:       clk.Now().Unix(),
		LastUpdate:      clk.Now().Unix(),
	}
}

// FindOrCreatePosition loads an account's position, creating the sparse
// record on first touch. Shares return to zero on full exit but the record
// is never deleted.
func FindOrCreatePosition(ctx context.Context, clk clock.Clock, store PositionStore, vaultId uuid.UUID, account string) (*Position, error) {
	position, err := store.FindPosition(ctx, vaultId, account)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			position = NewPosition(clk, vaultId, account)
			if err := store.UpsertPosition(ctx, position); err != nil {
				return nil, err
			}
			return position, nil
		}
		return nil, err
	}
	return position, nil
}

func (p *Position) Clone() *Position {
	clone := *p
	return &clone
}

func (p *Position) ChangeCollateralShare(delta decimal.Decimal) error {
	share := p.CollateralShare.Add(delta)
	if share.IsNegative() {
		return ErrInsufficientCollateral
	}
	p.CollateralShare = share
	return nil
}

func (p *Position) ChangeBorrowShare(delta decimal.Decimal) error {
	share := p.BorrowShare.Add(delta)
	if share.IsNegative() {
		return ErrNoOutstandingDebt
	}
	p.BorrowShare = share
	return nil
}

func (p *Position) IsEmpty() bool {
	return p.CollateralShare.LessThan(QUANTUM) && p.BorrowShare.LessThan(QUANTUM)
}
