package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/gin-blog/internal/model"
)

// alice 发帖，bob 点赞/取消，bob 删除被拒，alice 确认删除
func TestPostService_Scenario(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	p, err := e.postSvc.Create(ctx, alice.ID, PostForm{Title: "Hello", Content: "World"})
	require.NoError(t, err)
	var n int64
	require.NoError(t, e.db.Model(&model.Post{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, alice.ID, p.AuthorID)

	action, err := e.likeSvc.Toggle(ctx, bob.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionLiked, action)
	cnt, err := e.likeSvc.Count(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cnt)

	action, err = e.likeSvc.Toggle(ctx, bob.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionUnliked, action)
	cnt, err = e.likeSvc.Count(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, cnt)

	_, err = e.likeSvc.Toggle(ctx, bob.ID, p.ID)
	require.NoError(t, err)

	_, err = e.postSvc.Delete(ctx, bob.ID, p.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.store.Get(ctx, p.ID)
	require.NoError(t, err, "post must survive a non-author delete")
	assert.EqualValues(t, 1, e.likeRows(t, bob.ID, p.ID))

	res, err := e.postSvc.Delete(ctx, alice.ID, p.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, "Hello", res.Post.Title)
	require.NoError(t, e.db.Model(&model.Post{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, e.db.Model(&model.Like{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestPostService_UnconfirmedDeleteIsNoop(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	p := e.post(t, alice, "Hello", pngBytes)

	res, err := e.postSvc.Delete(ctx, alice.ID, p.ID, false)
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	_, err = e.store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, e.exists(t, *p.ImageRef))
}

func TestPostService_DeleteOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	_, err := e.postSvc.Delete(ctx, alice.ID, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)

	// 非作者即使未确认也是 Forbidden
	p := e.post(t, alice, "Hello", nil)
	_, err = e.postSvc.Delete(ctx, bob.ID, p.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPostService_Validation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")

	_, err := e.postSvc.Create(ctx, alice.ID, PostForm{Title: "   ", Content: ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "content")

	_, err = e.postSvc.Create(ctx, alice.ID, PostForm{Title: strings.Repeat("x", model.TitleMaxLen+1), Content: "c"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Ensure this value has at most 200 characters.", verr.Fields["title"])

	_, err = e.postSvc.Create(ctx, alice.ID, PostForm{Title: strings.Repeat("я", model.TitleMaxLen), Content: "c"})
	assert.NoError(t, err)
}

func TestPostService_UpdateAuthorOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "Hello", nil)

	_, err := e.postSvc.Update(ctx, bob.ID, p.ID, PostForm{Title: "pwned", Content: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := e.postSvc.Update(ctx, alice.ID, p.ID, PostForm{Title: "Hello again", Content: "World"})
	require.NoError(t, err)
	assert.Equal(t, "Hello again", updated.Title)
	assert.Equal(t, alice.ID, updated.AuthorID)

	_, err = e.postSvc.Update(ctx, alice.ID, "missing", PostForm{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostService_FeedAndDetail(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	first := e.post(t, alice, "First", pngBytes)
	second := e.post(t, alice, "Second", nil)
	require.NoError(t, e.db.Model(first).UpdateColumn("created_at", first.CreatedAt.Add(-60e9)).Error)

	_, err := e.likeSvc.Toggle(ctx, bob.ID, first.ID)
	require.NoError(t, err)

	page, err := e.postSvc.Feed(ctx, bob.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.List, 2)
	assert.Equal(t, second.ID, page.List[0].ID)
	assert.Equal(t, first.ID, page.List[1].ID)
	assert.EqualValues(t, 1, page.List[1].LikeCount)
	assert.True(t, page.List[1].Liked)
	assert.False(t, page.List[0].Liked)
	assert.Equal(t, "alice", page.List[1].AuthorName)
	assert.NotEmpty(t, page.List[1].ImageURL)
	assert.Empty(t, page.List[0].ImageURL)

	page, err = e.postSvc.Feed(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)

	v, err := e.postSvc.Detail(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.LikeCount)
	assert.False(t, v.Liked)

	_, err = e.postSvc.Detail(ctx, alice.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
