package repository

import (
	"context"

	"github.com/ECGOPS/OPSOMS-sub004/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FailedInterface interface {
	Create(ctx context.Context, failed *model.FailedIntent) error
	Get(ctx context.Context, id string) (*model.FailedIntent, error)
	List(ctx context.Context) ([]model.FailedIntent, error)
	Delete(ctx context.Context, id string) error
	WithTx(tx *gorm.DB) FailedInterface
}

type FailedRepository struct {
	db *gorm.DB
}

func NewFailedRepository(db *gorm.DB) *FailedRepository {
	return &FailedRepository{db: db}
}

func (r *FailedRepository) Create(ctx context.Context, failed *model.FailedIntent) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(failed).Error
}

func (r *FailedRepository) Get(ctx context.Context, id string) (*model.FailedIntent, error) {
	var f model.FailedIntent
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *FailedRepository) List(ctx context.Context) ([]model.FailedIntent, error) {
	var failed []model.FailedIntent
	err := r.db.WithContext(ctx).Order("failed_at DESC").Find(&failed).Error
	return failed, err
}

func (r *FailedRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.FailedIntent{}, "id = ?", id).Error
}

func (r *FailedRepository) WithTx(tx *gorm.DB) FailedInterface {
	return &FailedRepository{db: tx}
}
