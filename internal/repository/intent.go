package repository

import (
	"context"

	"github.com/ECGOPS/OPSOMS-sub004/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IntentInterface interface {
	Create(ctx context.Context, intent *model.PendingIntent) error
	Get(ctx context.Context, id string) (*model.PendingIntent, error)
	ListPending(ctx context.Context) ([]model.PendingIntent, error)
	Delete(ctx context.Context, id string) error
	UpdateRetry(ctx context.Context, id string, retryCount int) error
	Count(ctx context.Context) (int64, error)
	PingContext(ctx context.Context) error
	WithTx(tx *gorm.DB) IntentInterface
}

type IntentRepository struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

func (r *IntentRepository) Create(ctx context.Context, intent *model.PendingIntent) error {
	// Upsert by primary key so a re-queued intent id never duplicates.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(intent).Error
}

func (r *IntentRepository) Get(ctx context.Context, id string) (*model.PendingIntent, error) {
	var intent model.PendingIntent
	if err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// ListPending returns every queued intent in FIFO replay order. Causal
// ordering of multiple offline edits to the same record depends on this.
func (r *IntentRepository) ListPending(ctx context.Context) ([]model.PendingIntent, error) {
	var intents []model.PendingIntent
	err := r.db.WithContext(ctx).
		Order("enqueued_at ASC, id ASC").
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

// Delete is idempotent; removing an absent id is not an error.
func (r *IntentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.PendingIntent{}, "id = ?", id).Error
}

func (r *IntentRepository) UpdateRetry(ctx context.Context, id string, retryCount int) error {
	return r.db.WithContext(ctx).Model(&model.PendingIntent{}).
		Where("id = ?", id).
		Update("retry_count", retryCount).Error
}

func (r *IntentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.PendingIntent{}).Count(&n).Error
	return n, err
}

func (r *IntentRepository) PingContext(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *IntentRepository) WithTx(tx *gorm.DB) IntentInterface {
	return &IntentRepository{db: tx}
}
