// Package storage 房间状态镜像与最终排名的持久化
//
// 镜像只用于观察和查询已结束游戏的排名，进程重启后不会据此恢复对局。
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/palemoky/imposter-party/internal/config"
	"github.com/palemoky/imposter-party/internal/logger"
	"github.com/palemoky/imposter-party/internal/types"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("storage: not found")

// New 按配置创建存储，日志取自 ctx
func New(ctx context.Context, cfg config.StorageConfig) (types.RoomStore, error) {
	log := logger.FromContext(ctx).Named("storage")

	switch cfg.Driver {
	case "", config.StorageNone:
		log.Infow("💾 未启用持久化，房间镜像仅保存在内存")
		return NewNopStore(), nil
	case config.StorageRedis:
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Infow("💾 已连接 Redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		return NewRedisStore(client), nil
	case config.StorageBolt:
		store, err := OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		log.Infow("💾 已打开 bbolt 数据库", "path", cfg.BoltPath)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
