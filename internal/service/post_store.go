package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/internal/storage"
	"github.com/d60-Lab/gin-blog/pkg/logger"
)

var tracer = otel.Tracer("github.com/d60-Lab/gin-blog/internal/service")

// Upload 上传的图片
type Upload struct {
	Filename string
	Body     io.Reader
}

// NewPost 新帖子字段（已校验）
type NewPost struct {
	Title    string
	Content  string
	AuthorID string
	Image    *Upload
}

// PostChanges 编辑字段；Image 非空时替换图片，ClearImage 时移除图片
type PostChanges struct {
	Title      string
	Content    string
	Image      *Upload
	ClearImage bool
}

// PostStore 负责帖子行与其图片文件的一致性，不做权限判断
type PostStore struct {
	posts   repository.PostRepository
	likes   repository.LikeRepository
	users   repository.UserRepository
	orphans repository.OrphanRepository
	assets  storage.AssetStore
	locks   *keyedMutex
}

func NewPostStore(posts repository.PostRepository, likes repository.LikeRepository, users repository.UserRepository,
	orphans repository.OrphanRepository, assets storage.AssetStore) *PostStore {
	return &PostStore{posts: posts, likes: likes, users: users, orphans: orphans, assets: assets, locks: newKeyedMutex()}
}

// Get 查询帖子
func (s *PostStore) Get(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("post", id, err)
	}
	return p, nil
}

// Create 先落图片再写行；写行失败时删掉刚落的图片
func (s *PostStore) Create(ctx context.Context, in NewPost) (*model.Post, error) {
	ctx, span := tracer.Start(ctx, "PostStore.Create")
	defer span.End()

	if _, err := s.users.GetByID(ctx, in.AuthorID); err != nil {
		return nil, notFound("author", in.AuthorID, err)
	}

	var ref *string
	if in.Image != nil {
		r, err := s.putImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		ref = &r
	}

	post := &model.Post{ID: uuid.New().String(), Title: in.Title, Content: in.Content, AuthorID: in.AuthorID, ImageRef: ref}
	if err := s.posts.Create(ctx, post); err != nil {
		if ref != nil {
			s.discard(ctx, *ref, "post insert failed")
		}
		return nil, fmt.Errorf("create post: %w", err)
	}
	span.SetAttributes(attribute.String("post.id", post.ID))
	return post, nil
}

// Update 顺序：落新图 -> 提交行 -> 删旧图
func (s *PostStore) Update(ctx context.Context, id string, ch PostChanges) (*model.Post, error) {
	ctx, span := tracer.Start(ctx, "PostStore.Update", trace.WithAttributes(attribute.String("post.id", id)))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("post", id, err)
	}

	oldRef := post.ImageRef
	newRef := oldRef
	if ch.Image != nil {
		r, err := s.putImage(ctx, ch.Image)
		if err != nil {
			return nil, err
		}
		newRef = &r
	} else if ch.ClearImage {
		newRef = nil
	}

	if err := s.posts.UpdateFields(ctx, id, ch.Title, ch.Content, newRef); err != nil {
		if ch.Image != nil {
			s.discard(ctx, *newRef, "post update failed")
		}
		return nil, notFound("post", id, err)
	}

	if oldRef != nil && (newRef == nil || *newRef != *oldRef) {
		s.discard(ctx, *oldRef, "image replaced")
	}

	post.Title = ch.Title
	post.Content = ch.Content
	post.ImageRef = newRef
	return post, nil
}

// Delete 同一事务删除点赞与帖子，提交后再删图片；删图失败只记录，不影响结果
func (s *PostStore) Delete(ctx context.Context, id string) (*model.Post, error) {
	ctx, span := tracer.Start(ctx, "PostStore.Delete", trace.WithAttributes(attribute.String("post.id", id)))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	var post *model.Post
	err := s.posts.Transaction(ctx, func(tx *gorm.DB) error {
		p, err := s.posts.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		n, err := s.likes.WithTx(tx).DeleteByPost(ctx, id)
		if err != nil {
			return err
		}
		if err := s.posts.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		span.SetAttributes(attribute.Int64("likes.deleted", n))
		post = p
		return nil
	})
	if err != nil {
		return nil, notFound("post", id, err)
	}

	if post.HasImage() {
		s.discard(ctx, *post.ImageRef, "post deleted")
	}
	return post, nil
}

// ImageURL 返回图片公开地址，无图片时为空
func (s *PostStore) ImageURL(p *model.Post) string {
	if !p.HasImage() {
		return ""
	}
	return s.assets.URL(*p.ImageRef)
}

func (s *PostStore) putImage(ctx context.Context, up *Upload) (string, error) {
	ref, err := s.assets.Put(ctx, up.Filename, up.Body)
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, storage.ErrUnsupportedImage):
		return "", fieldError("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	case errors.Is(err, storage.ErrTooLarge):
		return "", fieldError("image", "The uploaded image is too large.")
	default:
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
}

// discard 删除不再被引用的图片；失败时记入 orphan_assets 由清理任务重试
func (s *PostStore) discard(ctx context.Context, ref, reason string) {
	err := s.assets.Delete(ctx, ref)
	if err == nil {
		return
	}
	logger.Warn("asset delete failed, left orphaned",
		zap.String("ref", ref), zap.String("reason", reason), zap.Error(err))
	if s.orphans == nil {
		return
	}
	if rerr := s.orphans.Record(context.WithoutCancel(ctx), ref, err.Error()); rerr != nil {
		logger.Error("record orphan asset failed", zap.String("ref", ref), zap.Error(rerr))
	}
}

// notFound 把仓储层 ErrNotFound 转成服务层 ErrNotFound，其余错误原样返回
func notFound(kind, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return err
}
