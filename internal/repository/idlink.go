package repository

import (
	"context"

	"github.com/ECGOPS/OPSOMS-sub004/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IDLinkInterface interface {
	Save(ctx context.Context, link *model.IDLink) error
	Resolve(ctx context.Context, localID string) (string, error)
	WithTx(tx *gorm.DB) IDLinkInterface
}

type IDLinkRepository struct {
	db *gorm.DB
}

func NewIDLinkRepository(db *gorm.DB) *IDLinkRepository {
	return &IDLinkRepository{db: db}
}

func (r *IDLinkRepository) Save(ctx context.Context, link *model.IDLink) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(link).Error
}

// Resolve returns the server id linked to a local id, or the empty string when
// no link exists yet.
func (r *IDLinkRepository) Resolve(ctx context.Context, localID string) (string, error) {
	var link model.IDLink
	if err := r.db.WithContext(ctx).First(&link, "local_id = ?", localID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return link.RemoteID, nil
}

func (r *IDLinkRepository) WithTx(tx *gorm.DB) IDLinkInterface {
	return &IDLinkRepository{db: tx}
}
