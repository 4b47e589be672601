package repository

import (
	"context"

	"github.com/ECGOPS/OPSOMS-sub004/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CacheInterface interface {
	Upsert(ctx context.Context, rec *model.CachedRecord) error
	Get(ctx context.Context, kind, id string) (*model.CachedRecord, error)
	ListByKind(ctx context.Context, kind string) ([]model.CachedRecord, error)
	Delete(ctx context.Context, kind, id string) error
	Rekey(ctx context.Context, kind, localID, remoteID string) error
	MarkClean(ctx context.Context, kind, id string) error
	WithTx(tx *gorm.DB) CacheInterface
}

type CacheRepository struct {
	db *gorm.DB
}

func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

func (r *CacheRepository) Upsert(ctx context.Context, rec *model.CachedRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
}

func (r *CacheRepository) Get(ctx context.Context, kind, id string) (*model.CachedRecord, error) {
	var rec model.CachedRecord
	err := r.db.WithContext(ctx).
		First(&rec, "record_kind = ? AND record_id = ?", kind, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *CacheRepository) ListByKind(ctx context.Context, kind string) ([]model.CachedRecord, error) {
	var recs []model.CachedRecord
	err := r.db.WithContext(ctx).
		Where("record_kind = ?", kind).
		Order("updated_at DESC").
		Find(&recs).Error
	return recs, err
}

func (r *CacheRepository) Delete(ctx context.Context, kind, id string) error {
	return r.db.WithContext(ctx).
		Delete(&model.CachedRecord{}, "record_kind = ? AND record_id = ?", kind, id).Error
}

// Rekey moves a locally-keyed cache entry under its server-assigned id after
// a create has been acknowledged.
func (r *CacheRepository) Rekey(ctx context.Context, kind, localID, remoteID string) error {
	return r.db.WithContext(ctx).Model(&model.CachedRecord{}).
		Where("record_kind = ? AND record_id = ?", kind, localID).
		Updates(map[string]any{"record_id": remoteID, "dirty": false}).Error
}

func (r *CacheRepository) MarkClean(ctx context.Context, kind, id string) error {
	return r.db.WithContext(ctx).Model(&model.CachedRecord{}).
		Where("record_kind = ? AND record_id = ?", kind, id).
		Update("dirty", false).Error
}

func (r *CacheRepository) WithTx(tx *gorm.DB) CacheInterface {
	return &CacheRepository{db: tx}
}
