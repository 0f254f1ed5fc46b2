package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/gin-blog/internal/repository"
	"github.com/d60-Lab/gin-blog/internal/storage"
	"github.com/d60-Lab/gin-blog/pkg/logger"
)

// AssetJanitor 轮询 orphan_assets，重试删除遗留图片
type AssetJanitor struct {
	orphans      repository.OrphanRepository
	assets       storage.AssetStore
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewAssetJanitor(orphans repository.OrphanRepository, assets storage.AssetStore, batchSize, maxAttempts int, pollInterval time.Duration) *AssetJanitor {
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &AssetJanitor{orphans: orphans, assets: assets, batchSize: batchSize, maxAttempts: maxAttempts, pollInterval: pollInterval}
}

// Start 启动后台轮询；返回停止函数，等待当前一轮结束
func (j *AssetJanitor) Start() func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.loop(stop)
	}()
	return func(ctx context.Context) error {
		close(stop)
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (j *AssetJanitor) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := j.ProcessOnce(context.Background()); err != nil {
				logger.Error("asset janitor pass failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 处理一批遗留文件，返回成功清理的数量
func (j *AssetJanitor) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := j.orphans.ListDue(ctx, j.maxAttempts, j.batchSize)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, o := range batch {
		if err := j.assets.Delete(ctx, o.Ref); err != nil {
			if o.Attempts+1 >= j.maxAttempts {
				logger.Error("giving up on orphan asset", zap.String("ref", o.Ref), zap.Int("attempts", o.Attempts+1), zap.Error(err))
			}
			if merr := j.orphans.MarkFailed(ctx, o.ID, err.Error()); merr != nil {
				return removed, merr
			}
			continue
		}
		if err := j.orphans.Remove(ctx, o.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		logger.Info("orphan assets removed", zap.Int("count", removed))
	}
	return removed, nil
}
