package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-blog/internal/cache"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/pkg/logger"
)

// Action 点赞切换的结果
type Action string

const (
	ActionLiked   Action = "liked"
	ActionUnliked Action = "unliked"
)

const maxToggleAttempts = 3

// errToggleRace 插入冲突后删除又落空：并发的另一次切换刚删掉了那一行
var errToggleRace = errors.New("like toggled concurrently")

// LikeService 点赞服务
type LikeService interface {
	Toggle(ctx context.Context, userID, postID string) (Action, error)
	Count(ctx context.Context, postID string) (int64, error)
	Counts(ctx context.Context, postIDs []string) (map[string]int64, error)
	HasLiked(ctx context.Context, userID, postID string) (bool, error)
	LikedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	// Forget 丢弃帖子的计数缓存
	Forget(ctx context.Context, postID string)
}

type likeService struct {
	db       *gorm.DB
	likeRepo repository.LikeRepository
	postRepo repository.PostRepository
	counter  *cache.LikeCounter // 可为 nil
}

func NewLikeService(db *gorm.DB, likeRepo repository.LikeRepository, postRepo repository.PostRepository, counter *cache.LikeCounter) LikeService {
	return &likeService{db: db, likeRepo: likeRepo, postRepo: postRepo, counter: counter}
}

// Toggle 先尝试插入，唯一键冲突说明已点赞，转为删除；不加应用层锁
func (s *likeService) Toggle(ctx context.Context, userID, postID string) (Action, error) {
	ctx, span := tracer.Start(ctx, "LikeService.Toggle", trace.WithAttributes(attribute.String("post.id", postID)))
	defer span.End()

	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return "", notFound("post", postID, err)
	}

	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		var action Action
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			likes := s.likeRepo.WithTx(tx)
			created, err := likes.Create(ctx, userID, postID)
			if err != nil {
				return err
			}
			if created {
				action = ActionLiked
				return nil
			}
			deleted, err := likes.Delete(ctx, userID, postID)
			if err != nil {
				return err
			}
			if !deleted {
				return errToggleRace
			}
			action = ActionUnliked
			return nil
		})
		if errors.Is(err, errToggleRace) {
			logger.Debug("like toggle raced, retrying", zap.String("user", userID), zap.String("post", postID), zap.Int("attempt", attempt))
			continue
		}
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			// 检查之后帖子（或用户）被删了
			return "", fmt.Errorf("toggle like on post %s: %w", postID, ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("toggle like: %w", err)
		}
		s.Forget(ctx, postID)
		span.SetAttributes(attribute.String("like.action", string(action)))
		return action, nil
	}
	return "", fmt.Errorf("toggle like after %d attempts: %w", maxToggleAttempts, errToggleRace)
}

func (s *likeService) Count(ctx context.Context, postID string) (int64, error) {
	var (
		ver       int64
		cacheable bool
	)
	if s.counter != nil {
		if n, ok := s.counter.Get(ctx, postID); ok {
			return n, nil
		}
		// 代数要在查库之前读
		v, err := s.counter.Version(ctx, postID)
		ver, cacheable = v, err == nil
	}
	n, err := s.likeRepo.CountByPost(ctx, postID)
	if err != nil {
		return 0, err
	}
	if cacheable {
		if _, err := s.counter.Fill(ctx, postID, n, ver); err != nil {
			logger.Debug("cache like count failed", zap.String("post", postID), zap.Error(err))
		}
	}
	return n, nil
}

func (s *likeService) Counts(ctx context.Context, postIDs []string) (map[string]int64, error) {
	res := make(map[string]int64, len(postIDs))
	missing := postIDs
	var versions map[string]int64
	if s.counter != nil {
		cached := s.counter.GetMany(ctx, postIDs)
		missing = make([]string, 0, len(postIDs))
		for _, id := range postIDs {
			if n, ok := cached[id]; ok {
				res[id] = n
			} else {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			// 出错时为 nil，本次不回填
			versions, _ = s.counter.Versions(ctx, missing)
		}
	}
	if len(missing) == 0 {
		return res, nil
	}
	loaded, err := s.likeRepo.CountByPosts(ctx, missing)
	if err != nil {
		return nil, err
	}
	fill := make(map[string]int64, len(missing))
	for _, id := range missing {
		res[id] = loaded[id]
		fill[id] = loaded[id]
	}
	if versions != nil {
		if err := s.counter.FillMany(ctx, fill, versions); err != nil {
			logger.Debug("cache like counts failed", zap.Error(err))
		}
	}
	return res, nil
}

func (s *likeService) HasLiked(ctx context.Context, userID, postID string) (bool, error) {
	return s.likeRepo.Exists(ctx, userID, postID)
}

func (s *likeService) LikedSet(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	return s.likeRepo.LikedPostIDs(ctx, userID, postIDs)
}

func (s *likeService) Forget(ctx context.Context, postID string) {
	if s.counter == nil {
		return
	}
	if err := s.counter.Invalidate(ctx, postID); err != nil {
		logger.Warn("invalidate like count failed", zap.String("post", postID), zap.Error(err))
	}
}
