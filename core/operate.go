package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type ActionType string

const (
	ActionDeposit    ActionType = "deposit"
	ActionWithdraw   ActionType = "withdraw"
	ActionBorrow     ActionType = "borrow"
	ActionRepay      ActionType = "repay"
	ActionLeverage   ActionType = "leverage"
	ActionDeleverage ActionType = "deleverage"
	ActionLiquidate  ActionType = "liquidate"
)

type (
	EventStore interface {
		CreateEvent(ctx context.Context, event *Event) error
		ListEvents(ctx context.Context, vaultId uuid.UUID, account string, createdBeforeAt, limit int64) ([]Event, error)
	}

	// Event records a completed vault operation.
	Event struct {
		Id      uuid.UUID   `json:"id" gorm:"primaryKey"`
		VaultId uuid.UUID   `json:"vaultId" gorm:"index"`
		Account string      `json:"account" gorm:"index"`
		Action  ActionType  `json:"action"`
		Detail  EventDetail `json:"detail" gorm:"type:text"`

		CreatedAt int64 `json:"createdAt"`
	}

	EventDetail struct {
		Amount decimal.Decimal `json:"amount"`
		Share  decimal.Decimal `json:"share"`
		// Counterparty is the second account touched by the operation, e.g.
		// the liquidator on a liquidation.
		Counterparty string `json:"counterparty,omitempty"`
	}
)

func NewEvent(clk clock.Clock, vaultId uuid.UUID, account string, action ActionType, detail EventDetail) *Event {
	return &Event{
		Id:        uuid.Must(uuid.NewV4()),
		VaultId:   vaultId,
		Account:   account,
		Action:    action,
		Detail:    detail,
		CreatedAt: clk.Now().Unix(),
	}
}

func (d EventDetail) Value() (driver.Value, error) {
	raw, err := json.Marshal(d)
	return string(raw), err
}

func (d *EventDetail) Scan(value any) error {
	switch raw := value.(type) {
	case []byte:
		return json.Unmarshal(raw, d)
	case string:
		return json.Unmarshal([]byte(raw), d)
	default:
		return errors.Errorf("unsupported event detail type %T", value)
	}
}
