package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/palemoky/imposter-party/internal/config"
	"github.com/palemoky/imposter-party/internal/protocol"
)

const (
	// Redis key 前缀
	roomKeyPrefix   = "room:"
	resultKeyPrefix = "result:"

	roomExpiration   = 2 * time.Hour  // 房间镜像过期时间
	resultExpiration = 24 * time.Hour // 最终排名过期时间
)

// RedisStore Redis 存储
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient 连接 Redis 并检查可用性
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// --- 房间镜像 ---

// SaveRoom 保存房间快照
func (rs *RedisStore) SaveRoom(ctx context.Context, room *protocol.RoomSnapshot) error {
	if room == nil {
		return nil
	}

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("序列化房间数据失败: %w", err)
	}
	return rs.client.Set(ctx, roomKeyPrefix+room.Code, data, roomExpiration).Err()
}

// DeleteRoom 删除房间快照
func (rs *RedisStore) DeleteRoom(ctx context.Context, code string) error {
	return rs.client.Del(ctx, roomKeyPrefix+code).Err()
}

// --- 最终排名 ---

// SaveResults 保存最终排名
func (rs *RedisStore) SaveResults(ctx context.Context, code string, standings []protocol.PlayerInfo) error {
	data, err := json.Marshal(standings)
	if err != nil {
		return fmt.Errorf("序列化排名失败: %w", err)
	}
	return rs.client.Set(ctx, resultKeyPrefix+code, data, resultExpiration).Err()
}

// LoadResults 读取最终排名
func (rs *RedisStore) LoadResults(ctx context.Context, code string) ([]protocol.PlayerInfo, error) {
	data, err := rs.client.Get(ctx, resultKeyPrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var standings []protocol.PlayerInfo
	if err := json.Unmarshal(data, &standings); err != nil {
		return nil, fmt.Errorf("反序列化排名失败: %w", err)
	}
	return standings, nil
}

// Close 关闭连接
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
