// Package profile 通过 LINE 获取用户资料，并缓存在 Redis 与数据库中
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/line"
)

type Fetcher interface {
	GetProfile(ctx context.Context, userID string) (*line.Profile, error)
}

type Store interface {
	UpsertUserProfile(ctx context.Context, profile *domain.UserProfile) error
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

type Resolver struct {
	fetcher  Fetcher
	store    Store
	rdb      *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger

	group singleflight.Group
}

// NewResolver 创建资料解析器，rdb 为 nil 时不使用 Redis 缓存
func NewResolver(fetcher Fetcher, store Store, rdb *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		fetcher:  fetcher,
		store:    store,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("profile:%s", userID)
}

// Resolve 返回用户资料。优先读取 Redis 缓存，未命中时请求 LINE 并写回缓存；
// LINE 不可用时退回到数据库中保存的上一次资料
func (r *Resolver) Resolve(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if cached := r.readCache(ctx, userID); cached != nil {
		return cached, nil
	}

	v, err, _ := r.group.Do(userID, func() (any, error) {
		return r.fetch(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.UserProfile), nil
}

// Refresh 忽略缓存，直接从 LINE 拉取最新资料
func (r *Resolver) Refresh(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return r.fetch(ctx, userID)
}

func (r *Resolver) fetch(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := r.fetcher.GetProfile(ctx, userID)
	if err != nil {
		stored, storeErr := r.store.GetUserProfile(ctx, userID)
		if storeErr == nil {
			r.logger.Warn("无法从 LINE 获取用户资料，使用数据库中的记录", slog.String("user_id", userID), slog.String("error", err.Error()))
			return stored, nil
		}
		if !errors.Is(storeErr, domain.ErrNotFound) {
			r.logger.Error("无法读取数据库中的用户资料", slog.String("user_id", userID), slog.String("error", storeErr.Error()))
		}
		return nil, err
	}

	profile := &domain.UserProfile{
		UserID:      userID,
		DisplayName: p.DisplayName,
		PictureURL:  p.PictureURL,
		LastActive:  time.Now(),
	}

	// 保存失败不影响本次解析
	if err := r.store.UpsertUserProfile(ctx, profile); err != nil {
		r.logger.Error("无法保存用户资料", slog.String("user_id", userID), slog.String("error", err.Error()))
	}

	r.writeCache(ctx, profile)

	return profile, nil
}

func (r *Resolver) readCache(ctx context.Context, userID string) *domain.UserProfile {
	if r.rdb == nil {
		return nil
	}

	data, err := r.rdb.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("无法读取用户资料缓存", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
		return nil
	}

	profile := &domain.UserProfile{}
	if err := json.Unmarshal(data, profile); err != nil {
		return nil
	}

	return profile
}

func (r *Resolver) writeCache(ctx context.Context, profile *domain.UserProfile) {
	if r.rdb == nil {
		return
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return
	}

	if err := r.rdb.Set(ctx, cacheKey(profile.UserID), data, r.cacheTTL).Err(); err != nil {
		r.logger.Warn("无法写入用户资料缓存", slog.String("user_id", profile.UserID), slog.String("error", err.Error()))
	}
}
