package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/gin-blog/internal/model"
)

// OrphanRepository 记录删除失败的图片文件，供清理任务重试
type OrphanRepository interface {
	Record(ctx context.Context, ref, reason string) error
	ListDue(ctx context.Context, maxAttempts, limit int) ([]*model.OrphanAsset, error)
	Remove(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

type orphanRepository struct{ db *gorm.DB }

func NewOrphanRepository(db *gorm.DB) OrphanRepository { return &orphanRepository{db: db} }

func (r *orphanRepository) Record(ctx context.Context, ref, reason string) error {
	o := &model.OrphanAsset{ID: uuid.New().String(), Ref: ref, Reason: reason}
	// 同一文件只记一次
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(o).Error
}

func (r *orphanRepository) ListDue(ctx context.Context, maxAttempts, limit int) ([]*model.OrphanAsset, error) {
	var res []*model.OrphanAsset
	err := r.db.WithContext(ctx).
		Where("attempts < ?", maxAttempts).
		Order("created_at").
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *orphanRepository) Remove(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.OrphanAsset{}).Error
}

func (r *orphanRepository) MarkFailed(ctx context.Context, id, reason string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.OrphanAsset{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":      gorm.Expr("attempts + 1"),
			"reason":        reason,
			"last_tried_at": now,
		}).Error
}
