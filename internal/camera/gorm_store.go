package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Repository on a GORM database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore returns a store backed by db. Call Migrate once before use.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the cameras table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Config{}); err != nil {
		return fmt.Errorf("migrating cameras table: %w", err)
	}
	return nil
}

// GetCameraConfig implements Store.GetCameraConfig.
func (s *GormStore) GetCameraConfig(ctx context.Context, id string) (Config, error) {
	var cfg Config
	if err := s.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Config{}, ErrNotFound
		}
		return Config{}, fmt.Errorf("loading camera %s: %w", id, err)
	}
	return cfg, nil
}

// SetCameraOnlineStatus implements Store.SetCameraOnlineStatus.
func (s *GormStore) SetCameraOnlineStatus(ctx context.Context, id string, online bool, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&Config{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"online":         online,
			"last_status_at": at,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("updating online status of camera %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveCameraConfig implements Repository.SaveCameraConfig as an upsert on id.
func (s *GormStore) SaveCameraConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "source_uri", "host", "port", "username", "password", "quality_tier", "updated_at",
		}),
	}).Create(&cfg).Error
	if err != nil {
		return fmt.Errorf("saving camera %s: %w", cfg.ID, err)
	}
	return nil
}

// ListCameraConfigs implements Repository.ListCameraConfigs, ordered by id.
func (s *GormStore) ListCameraConfigs(ctx context.Context) ([]Config, error) {
	var cfgs []Config
	if err := s.db.WithContext(ctx).Order("id").Find(&cfgs).Error; err != nil {
		return nil, fmt.Errorf("listing cameras: %w", err)
	}
	return cfgs, nil
}

// DeleteCameraConfig implements Repository.DeleteCameraConfig.
func (s *GormStore) DeleteCameraConfig(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Config{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting camera %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
