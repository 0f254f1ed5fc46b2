package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d60-Lab/gin-blog/internal/model"
)

// PostForm 创建/编辑表单
type PostForm struct {
	Title      string  `form:"title" validate:"required,max=200"`
	Content    string  `form:"content" validate:"required"`
	ClearImage bool    `form:"clear_image"`
	Image      *Upload `form:"-" validate:"-"`
}

// PostView 帖子展示数据
type PostView struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	ImageURL   string    `json:"image_url,omitempty"`
	LikeCount  int64     `json:"like_count"`
	Liked      bool      `json:"liked"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FeedPage 首页分页
type FeedPage struct {
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Total    int64       `json:"total"`
	List     []*PostView `json:"list"`
}

// DeleteResult Deleted 为 false 表示请求未确认，未做任何修改
type DeleteResult struct {
	Post    *model.Post
	Deleted bool
}

// PostService 帖子编排：校验、鉴权，再委托 PostStore
type PostService interface {
	Create(ctx context.Context, actorID string, form PostForm) (*model.Post, error)
	Update(ctx context.Context, actorID, postID string, form PostForm) (*model.Post, error)
	Delete(ctx context.Context, actorID, postID string, confirmed bool) (*DeleteResult, error)
	Feed(ctx context.Context, viewerID string, page, pageSize int) (*FeedPage, error)
	Detail(ctx context.Context, viewerID, postID string) (*PostView, error)
}

type postService struct {
	store *PostStore
	likes LikeService
}

func NewPostService(store *PostStore, likes LikeService) PostService {
	return &postService{store: store, likes: likes}
}

func (s *postService) Create(ctx context.Context, actorID string, form PostForm) (*model.Post, error) {
	form = form.normalized()
	if err := validateStruct(form); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, NewPost{Title: form.Title, Content: form.Content, AuthorID: actorID, Image: form.Image})
}

func (s *postService) Update(ctx context.Context, actorID, postID string, form PostForm) (*model.Post, error) {
	post, err := s.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, fmt.Errorf("edit post %s: %w", postID, ErrForbidden)
	}
	form = form.normalized()
	if err := validateStruct(form); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, postID, PostChanges{Title: form.Title, Content: form.Content, Image: form.Image, ClearImage: form.ClearImage})
}

// Delete 先查存在，再鉴权，最后看是否确认
func (s *postService) Delete(ctx context.Context, actorID, postID string, confirmed bool) (*DeleteResult, error) {
	post, err := s.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, fmt.Errorf("delete post %s: %w", postID, ErrForbidden)
	}
	if !confirmed {
		return &DeleteResult{Post: post}, nil
	}
	deleted, err := s.store.Delete(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.likes.Forget(ctx, postID)
	return &DeleteResult{Post: deleted, Deleted: true}, nil
}

func (s *postService) Feed(ctx context.Context, viewerID string, page, pageSize int) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	posts, err := s.store.posts.List(ctx, offset, pageSize)
	if err != nil {
		return nil, err
	}
	total, err := s.store.posts.Count(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	counts, err := s.likes.Counts(ctx, ids)
	if err != nil {
		return nil, err
	}
	liked, err := s.likes.LikedSet(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}

	list := make([]*PostView, len(posts))
	for i, p := range posts {
		list[i] = s.view(p, counts[p.ID], liked[p.ID])
	}
	return &FeedPage{Page: page, PageSize: pageSize, Total: total, List: list}, nil
}

func (s *postService) Detail(ctx context.Context, viewerID, postID string) (*PostView, error) {
	post, err := s.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	cnt, err := s.likes.Count(ctx, postID)
	if err != nil {
		return nil, err
	}
	liked := false
	if viewerID != "" {
		if liked, err = s.likes.HasLiked(ctx, viewerID, postID); err != nil {
			return nil, err
		}
	}
	return s.view(post, cnt, liked), nil
}

func (s *postService) view(p *model.Post, likes int64, liked bool) *PostView {
	v := &PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  p.AuthorID,
		ImageURL:  s.store.ImageURL(p),
		LikeCount: likes,
		Liked:     liked,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Author != nil {
		v.AuthorName = p.Author.Username
	}
	return v
}

func (f PostForm) normalized() PostForm {
	f.Title = strings.TrimSpace(f.Title)
	f.Content = strings.TrimSpace(f.Content)
	return f
}
