package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/gin-blog/internal/model"
)

// PostRepository 帖子仓储接口
type PostRepository interface {
	// Create 创建帖子
	Create(ctx context.Context, post *model.Post) error

	// GetByID 根据ID查询帖子（含作者）
	GetByID(ctx context.Context, id string) (*model.Post, error)

	// List 按创建时间倒序分页查询
	List(ctx context.Context, offset, limit int) ([]*model.Post, error)

	// UpdateFields 更新标题、正文与图片引用；author_id、created_at 永不写入
	UpdateFields(ctx context.Context, id string, title, content string, imageRef *string) error

	// Delete 删除帖子行
	Delete(ctx context.Context, id string) error

	// Count 统计帖子数量
	Count(ctx context.Context) (int64, error)

	// Transaction 在事务内执行 fn
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	// WithTx 返回绑定到事务 tx 的仓储
	WithTx(tx *gorm.DB) PostRepository
}

// postRepository 基于 gorm 的实现
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository 创建帖子仓储
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) WithTx(tx *gorm.DB) PostRepository { return &postRepository{db: tx} }

// Create 创建帖子
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Omit("Author", "Likes").Create(post).Error
}

// GetByID 根据ID查询帖子
func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&post).Error
	if err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

// List 按创建时间倒序分页查询
func (r *postRepository) List(ctx context.Context, offset, limit int) ([]*model.Post, error) {
	var posts []*model.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdateFields 更新可编辑字段
func (r *postRepository) UpdateFields(ctx context.Context, id string, title, content string, imageRef *string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":      title,
			"content":    content,
			"image_ref":  imageRef,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 删除帖子行
func (r *postRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count 统计帖子数量
func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Post{}).Count(&count).Error
	return count, err
}

// Transaction 在事务内执行 fn
func (r *postRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
