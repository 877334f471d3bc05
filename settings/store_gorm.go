package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type guildSettingsRow struct {
	GuildID   string         `gorm:"primaryKey"`
	Data      *GuildSettings `gorm:"serializer:json;type:text"`
	UpdatedAt time.Time
}

func (guildSettingsRow) TableName() string {
	return "guild_settings"
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&guildSettingsRow{}); err != nil {
		return nil, fmt.Errorf("migrating guild settings table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, guildID string) (*GuildSettings, error) {
	var row guildSettingsRow
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Default(guildID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading guild settings: %w", err)
	}
	if row.Data == nil {
		return Default(guildID), nil
	}
	row.Data.GuildID = guildID
	return row.Data, nil
}

func (s *GormStore) Upsert(ctx context.Context, gs *GuildSettings) error {
	row := guildSettingsRow{
		GuildID:   gs.GuildID,
		Data:      gs,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, guildID string) error {
	return s.db.WithContext(ctx).Where("guild_id = ?", guildID).Delete(&guildSettingsRow{}).Error
}
