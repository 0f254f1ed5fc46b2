package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/gin-blog/internal/cache"
	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/internal/storage"
)

var (
	dbSeq    atomic.Int64
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	gifBytes = append([]byte("GIF89a"), make([]byte, 32)...)
)

func setupTestDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:svc%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent), TranslateError: true})
	require.NoError(tb, err)
	sqlDB, err := db.DB()
	require.NoError(tb, err)
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(tb, db.AutoMigrate(&model.User{}, &model.Post{}, &model.Like{}, &model.OrphanAsset{}))
	return db
}

// flakyStore 可以让 Delete 失败
type flakyStore struct {
	*storage.FSStore
	failDelete atomic.Bool
}

func (s *flakyStore) Delete(ctx context.Context, ref string) error {
	if s.failDelete.Load() {
		return errors.New("disk unavailable")
	}
	return s.FSStore.Delete(ctx, ref)
}

type testEnv struct {
	db      *gorm.DB
	likes   repository.LikeRepository
	orphans repository.OrphanRepository
	assets  *flakyStore
	counter *cache.LikeCounter
	store   *PostStore
	likeSvc LikeService
	postSvc PostService
	userSvc UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	postRepo := repository.NewPostRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	userRepo := repository.NewUserRepository(db)
	orphanRepo := repository.NewOrphanRepository(db)
	assets := &flakyStore{FSStore: storage.NewFSStore(afero.NewMemMapFs(), "/media", 1<<20)}
	counter := cache.NewLikeCounter(rdb, time.Minute)

	store := NewPostStore(postRepo, likeRepo, userRepo, orphanRepo, assets)
	likeSvc := NewLikeService(db, likeRepo, postRepo, counter)
	return &testEnv{
		db:      db,
		likes:   likeRepo,
		orphans: orphanRepo,
		assets:  assets,
		counter: counter,
		store:   store,
		likeSvc: likeSvc,
		postSvc: NewPostService(store, likeSvc),
		userSvc: NewUserService(userRepo, bcrypt.MinCost),
	}
}

func (e *testEnv) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := e.userSvc.Register(context.Background(), RegisterForm{
		Username: name, Email: name + "@example.com", Password: "secret-pass", PasswordConfirm: "secret-pass",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) post(t *testing.T, author *model.User, title string, image []byte) *model.Post {
	t.Helper()
	form := PostForm{Title: title, Content: "content of " + title}
	if image != nil {
		form.Image = upload("img", image)
	}
	p, err := e.postSvc.Create(context.Background(), author.ID, form)
	require.NoError(t, err)
	return p
}

func (e *testEnv) likeRows(t *testing.T, userID, postID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Like{}).Where("user_id = ? AND post_id = ?", userID, postID).Count(&n).Error)
	return n
}

func upload(name string, data []byte) *Upload {
	return &Upload{Filename: name, Body: io.NopCloser(bytes.NewReader(data))}
}
