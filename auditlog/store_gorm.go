package auditlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type bindingRow struct {
	GuildID   string `gorm:"primaryKey"`
	Category  string `gorm:"primaryKey"`
	ChannelID string
	SinkID    string
	SinkToken string
	IsActive  bool
	UpdatedAt time.Time
}

func (bindingRow) TableName() string {
	return "audit_bindings"
}

func (r bindingRow) binding() Binding {
	return Binding{
		GuildID:   r.GuildID,
		Category:  Category(r.Category),
		ChannelID: r.ChannelID,
		SinkID:    r.SinkID,
		SinkToken: r.SinkToken,
		IsActive:  r.IsActive,
	}
}

type GormBindingStore struct {
	db *gorm.DB
}

var _ BindingStore = (*GormBindingStore)(nil)

func NewGormBindingStore(db *gorm.DB) (*GormBindingStore, error) {
	if err := db.AutoMigrate(&bindingRow{}); err != nil {
		return nil, fmt.Errorf("migrating audit bindings table: %w", err)
	}
	return &GormBindingStore{db: db}, nil
}

func (s *GormBindingStore) Get(ctx context.Context, guildID string, cat Category) (*Binding, error) {
	var row bindingRow
	err := s.db.WithContext(ctx).Where("guild_id = ? AND category = ?", guildID, string(cat)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b := row.binding()
	return &b, nil
}

func (s *GormBindingStore) Upsert(ctx context.Context, b Binding) error {
	row := bindingRow{
		GuildID:   b.GuildID,
		Category:  string(b.Category),
		ChannelID: b.ChannelID,
		SinkID:    b.SinkID,
		SinkToken: b.SinkToken,
		IsActive:  b.IsActive,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel_id", "sink_id", "sink_token", "is_active", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormBindingStore) Delete(ctx context.Context, guildID string, cat Category) error {
	return s.db.WithContext(ctx).Where("guild_id = ? AND category = ?", guildID, string(cat)).Delete(&bindingRow{}).Error
}

func (s *GormBindingStore) List(ctx context.Context, guildID string) ([]Binding, error) {
	var rows []bindingRow
	if err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Order("category").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Binding, len(rows))
	for i, r := range rows {
		out[i] = r.binding()
	}
	return out, nil
}
