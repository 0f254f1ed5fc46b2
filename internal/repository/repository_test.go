package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/gin-blog/internal/model"
)

var dbSeq atomic.Int64

func setupTestDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:repo%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent), TranslateError: true})
	if err != nil {
		tb.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(tb, err)
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&model.User{}, &model.Post{}, &model.Like{}, &model.OrphanAsset{}); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(tb testing.TB, db *gorm.DB, id string) *model.User {
	tb.Helper()
	u := &model.User{ID: id, Username: id, Email: id + "@example.com", Password: "p"}
	require.NoError(tb, db.Create(u).Error)
	return u
}

func seedPost(tb testing.TB, db *gorm.DB, id, authorID string) *model.Post {
	tb.Helper()
	p := &model.Post{ID: id, Title: "title " + id, Content: "content", AuthorID: authorID}
	require.NoError(tb, NewPostRepository(db).Create(context.Background(), p))
	return p
}
