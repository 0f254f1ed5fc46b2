package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// LikeCounter caches per-post like counts in redis. The likes table stays
// the source of truth; every entry is a disposable copy with a TTL.
type LikeCounter struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLikeCounter builds a counter cache using the provided client.
func NewLikeCounter(client *redis.Client, ttl time.Duration) *LikeCounter {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LikeCounter{client: client, ttl: ttl}
}

// 代数键比计数键多留一段时间，覆盖进行中的回填
const genGrace = time.Hour

func likeCountKey(postID string) string { return fmt.Sprintf("post:likes:%s", postID) }
func likeGenKey(postID string) string   { return fmt.Sprintf("post:likes:gen:%s", postID) }

// Get returns the cached count. ok is false on a miss or a redis error.
func (c *LikeCounter) Get(ctx context.Context, postID string) (int64, bool) {
	v, err := c.client.Get(ctx, likeCountKey(postID)).Result()
	if err != nil {
		c.misses.Add(1)
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		c.misses.Add(1)
		return 0, false
	}
	c.hits.Add(1)
	return n, true
}

// GetMany returns cached counts for the ids that are present.
func (c *LikeCounter) GetMany(ctx context.Context, postIDs []string) map[string]int64 {
	out := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out
	}
	keys := make([]string, len(postIDs))
	for i, id := range postIDs {
		keys[i] = likeCountKey(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.misses.Add(int64(len(postIDs)))
		return out
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(str, 10, 64); err == nil {
			out[postIDs[i]] = n
		}
	}
	c.hits.Add(int64(len(out)))
	c.misses.Add(int64(len(postIDs) - len(out)))
	return out
}

// fillScript 只在失效代数未变时写入计数，防止失效之前读到的旧值被写回。
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if (gen or '0') ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// Version returns the invalidation generation of postID. Read it before
// loading the count from the database and pass it to Fill.
func (c *LikeCounter) Version(ctx context.Context, postID string) (int64, error) {
	v, err := c.client.Get(ctx, likeGenKey(postID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Versions is the batch form of Version.
func (c *LikeCounter) Versions(ctx context.Context, postIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(postIDs))
	for i, id := range postIDs {
		keys[i] = likeGenKey(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		out[postIDs[i]] = 0
		if str, ok := v.(string); ok {
			if n, err := strconv.ParseInt(str, 10, 64); err == nil {
				out[postIDs[i]] = n
			}
		}
	}
	return out, nil
}

// Fill stores n for postID unless the post was invalidated after version
// was read. stored reports whether the value was written.
func (c *LikeCounter) Fill(ctx context.Context, postID string, n, version int64) (stored bool, err error) {
	res, err := fillScript.Run(ctx, c.client,
		[]string{likeCountKey(postID), likeGenKey(postID)},
		n, version, c.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// FillMany runs Fill for every id present in versions, in one pipeline.
func (c *LikeCounter) FillMany(ctx context.Context, counts, versions map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	// 管道里不能回退 EVALSHA -> EVAL，先确保脚本已加载
	if err := fillScript.Load(ctx, c.client).Err(); err != nil {
		return err
	}
	pipe := c.client.Pipeline()
	for id, n := range counts {
		ver, ok := versions[id]
		if !ok {
			continue
		}
		fillScript.EvalSha(ctx, pipe, []string{likeCountKey(id), likeGenKey(id)}, n, ver, c.ttl.Milliseconds())
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate drops the cached count for postID and bumps its generation,
// so fills that started earlier are rejected.
func (c *LikeCounter) Invalidate(ctx context.Context, postID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, likeCountKey(postID))
	pipe.Incr(ctx, likeGenKey(postID))
	pipe.Expire(ctx, likeGenKey(postID), c.ttl+genGrace)
	_, err := pipe.Exec(ctx)
	return err
}

// Stats reports cache hits and misses since start.
func (c *LikeCounter) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
