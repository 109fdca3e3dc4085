// Package store persists vaults, positions and events with gorm.
package store

import (
	"context"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Pearl-Finance/stackvault-core/core"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&core.Vault{}, &core.Position{}, &core.Event{})
}

func (s *Store) CreateVault(ctx context.Context, vault *core.Vault) error {
	return s.db.WithContext(ctx).Create(vault).Error
}

func (s *Store) UpdateVault(ctx context.Context, vault *core.Vault) error {
	return s.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: false}).
		Where("id = ?", vault.Id).
		Select("*").
		Updates(vault).Error
}

func (s *Store) GetVaultById(ctx context.Context, vaultId uuid.UUID) (*core.Vault, error) {
	var vault core.Vault
	if err := s.db.WithContext(ctx).Where("id = ?", vaultId).First(&vault).Error; err != nil {
		return nil, err
	}
	return &vault, nil
}

func (s *Store) ListVaults(ctx context.Context) ([]*core.Vault, error) {
	var vaults []*core.Vault
	if err := s.db.WithContext(ctx).Order("created_at").Find(&vaults).Error; err != nil {
		return nil, err
	}
	return vaults, nil
}

func (s *Store) FindPosition(ctx context.Context, vaultId uuid.UUID, account string) (*core.Position, error) {
	var position core.Position
	err := s.db.WithContext(ctx).
		Where("vault_id = ? AND account = ?", vaultId, account).
		First(&position).Error
	if err != nil {
		return nil, err
	}
	return &position, nil
}

func (s *Store) UpsertPosition(ctx context.Context, position *core.Position) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vault_id"}, {Name: "account"}},
			UpdateAll: true,
		}).
		Create(position).Error
}

func (s *Store) ListPositions(ctx context.Context, vaultId uuid.UUID) ([]*core.Position, error) {
	var positions []*core.Position
	err := s.db.WithContext(ctx).
		Where("vault_id = ?", vaultId).
		Order("account").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (s *Store) CreateEvent(ctx context.Context, event *core.Event) error {
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *Store) ListEvents(ctx context.Context, vaultId uuid.UUID, account string, createdBeforeAt, limit int64) ([]core.Event, error) {
	tx := s.db.WithContext(ctx).Where("vault_id = ?", vaultId)
	if account != "" {
		tx = tx.Where("account = ?", account)
	}
	if createdBeforeAt > 0 {
		tx = tx.Where("created_at < ?", createdBeforeAt)
	}
	if limit > 0 {
		tx = tx.Limit(int(limit))
	}

	var events []core.Event
	if err := tx.Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
