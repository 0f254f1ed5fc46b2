package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/gin-blog/config"
	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))

	likeRepo := repository.NewLikeRepository(db)
	postRepo := repository.NewPostRepository(db)
	likeSvc := service.NewLikeService(db, likeRepo, postRepo, nil)

	ctx := context.Background()

	N := envInt("N", 1000)        // 用户数
	ROUNDS := envInt("ROUNDS", 3) // 每个用户的切换次数
	CONC := envInt("CONC", 16)

	// seed: 作者 + 一篇帖子 + N 个点赞用户
	author := model.User{ID: uuid.New().String()}
	author.Username = "bench" + author.ID[:8]
	author.Email = author.Username + "@example.com"
	author.Password = "x"
	check(db.Create(&author).Error)
	post := model.Post{ID: uuid.New().String(), Title: "likebench", Content: "likebench", AuthorID: author.ID}
	check(db.Omit("Author", "Likes").Create(&post).Error)

	users := make([]model.User, N)
	batch := 1000
	for i := 0; i < N; i++ {
		id := uuid.New().String()
		users[i] = model.User{ID: id, Username: "u" + id[:8] + id[9:13], Email: id[:8] + "@example.com", Password: "x"}
		if (i+1)%batch == 0 {
			sub := users[i+1-batch : i+1]
			check(db.Create(&sub).Error)
		}
	}
	if N%batch != 0 {
		sub := users[N-N%batch:]
		check(db.Create(&sub).Error)
	}

	// 同一用户的多次切换打散后并发执行
	jobs := make([]int, 0, N*ROUNDS)
	for r := 0; r < ROUNDS; r++ {
		for i := 0; i < N; i++ {
			jobs = append(jobs, i)
		}
	}
	rand.Shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })

	feed := make(chan int, len(jobs))
	for _, j := range jobs {
		feed <- j
	}
	close(feed)

	workers := CONC
	if workers > len(jobs) {
		workers = len(jobs)
	}
	latCh := make(chan time.Duration, len(jobs))
	var failed atomic.Int64
	done := make(chan struct{}, workers)

	t0 := time.Now()
	for w := 0; w < workers; w++ {
		go func() {
			for i := range feed {
				st := time.Now()
				if _, err := likeSvc.Toggle(ctx, users[i].ID, post.ID); err != nil {
					failed.Add(1)
				}
				latCh <- time.Since(st)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	close(latCh)
	total := time.Since(t0)

	recs := make([]time.Duration, 0, len(jobs))
	for d := range latCh {
		recs = append(recs, d)
	}

	// 唯一性：任何 (user, post) 至多一行
	var dupes int64
	check(db.Raw(`SELECT COUNT(*) FROM (
		SELECT user_id FROM likes WHERE post_id = ? GROUP BY user_id HAVING COUNT(*) > 1
	) d`, post.ID).Scan(&dupes).Error)
	count := must(likeRepo.CountByPost(ctx, post.ID))

	pct := func(vs []time.Duration, p float64) time.Duration {
		if len(vs) == 0 {
			return 0
		}
		xs := append([]time.Duration(nil), vs...)
		sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
		k := int(math.Ceil(p*float64(len(xs)))) - 1
		if k < 0 {
			k = 0
		}
		if k >= len(xs) {
			k = len(xs) - 1
		}
		return xs[k]
	}

	fmt.Printf("N=%d, ROUNDS=%d, CONC=%d, driver=%s\n", N, ROUNDS, CONC, cfg.Database.Driver)
	fmt.Printf("Toggle total: %v, per op: %v, p50: %v, p95: %v, p99: %v, failed: %d\n",
		total, total/time.Duration(len(jobs)), pct(recs, 0.50), pct(recs, 0.95), pct(recs, 0.99), failed.Load())
	fmt.Printf("Duplicate (user, post) pairs: %d\n", dupes)

	expected := int64(0)
	if ROUNDS%2 == 1 {
		expected = int64(N)
	}
	fmt.Printf("Likes on post: %d (expected %d when every toggle succeeds)\n", count, expected)

	if dupes > 0 || (failed.Load() == 0 && count != expected) {
		fmt.Fprintln(os.Stderr, "like invariants violated")
		os.Exit(1)
	}
}
