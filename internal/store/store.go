// Package store reads gateway entities from the database.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/mono-ai/aiproxy/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store is the gorm-backed directory of channels, groups, tokens and model configs.
type Store struct {
	db *gorm.DB
}

// New creates a store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ListEnabledChannels returns every enabled channel ordered by id.
func (s *Store) ListEnabledChannels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	if errFind := s.db.WithContext(ctx).
		Where("status = ?", models.ChannelStatusEnabled).
		Order("id ASC").
		Find(&channels).Error; errFind != nil {
		return nil, errFind
	}
	return channels, nil
}

// GetGroup returns the group with id.
func (s *Store) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	var group models.Group
	if errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errFind
	}
	return &group, nil
}

// GetTokenByKey returns the token whose secret is key.
func (s *Store) GetTokenByKey(ctx context.Context, key string) (*models.Token, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNotFound
	}
	var token models.Token
	if errFind := s.db.WithContext(ctx).Where("key = ?", key).First(&token).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errFind
	}
	return &token, nil
}

// GetModelConfig returns the config of model.
func (s *Store) GetModelConfig(ctx context.Context, model string) (*models.ModelConfig, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, ErrNotFound
	}
	var cfg models.ModelConfig
	if errFind := s.db.WithContext(ctx).Where("model = ?", model).First(&cfg).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errFind
	}
	return &cfg, nil
}

// ListModelConfigs returns every model config ordered by model name.
func (s *Store) ListModelConfigs(ctx context.Context) ([]models.ModelConfig, error) {
	var configs []models.ModelConfig
	if errFind := s.db.WithContext(ctx).Order("model ASC").Find(&configs).Error; errFind != nil {
		return nil, errFind
	}
	return configs, nil
}

// GetPriceForModel returns the price sheet of model.
func (s *Store) GetPriceForModel(ctx context.Context, model string) (*models.Price, error) {
	cfg, err := s.GetModelConfig(ctx, model)
	if err != nil {
		return nil, err
	}
	price := cfg.Price
	return &price, nil
}
