package repository

import (
	"context"

	"github.com/ECGOPS/OPSOMS-sub004/internal/model"

	"gorm.io/gorm"
)

type DeviceRepository interface {
	ValidateAPIKey(ctx context.Context, apiKey, region string) (bool, error)
}

type DeviceClientRepository struct {
	db *gorm.DB
}

func NewDeviceClientRepository(db *gorm.DB) *DeviceClientRepository {
	return &DeviceClientRepository{db: db}
}

func (r *DeviceClientRepository) ValidateAPIKey(ctx context.Context, apiKey, region string) (bool, error) {
	var n int64
	query := r.db.WithContext(ctx).Model(&model.DeviceClient{}).
		Where("api_key = ? AND status = 1", apiKey)
	if region != "" {
		query = query.Where("region = ?", region)
	}
	if err := query.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
