package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/palemoky/imposter-party/internal/protocol"
)

var (
	roomsBucket   = []byte("rooms")
	resultsBucket = []byte("results")
)

// BoltStore 单机 bbolt 存储
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore 打开（或创建）数据库文件
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{roomsBucket, resultsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveRoom 保存房间快照
func (bs *BoltStore) SaveRoom(_ context.Context, room *protocol.RoomSnapshot) error {
	if room == nil {
		return nil
	}
	return bs.put(roomsBucket, room.Code, room)
}

// DeleteRoom 删除房间快照
func (bs *BoltStore) DeleteRoom(_ context.Context, code string) error {
	return bs.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(roomsBucket).Delete([]byte(code))
	})
}

// SaveResults 保存最终排名
func (bs *BoltStore) SaveResults(_ context.Context, code string, standings []protocol.PlayerInfo) error {
	return bs.put(resultsBucket, code, standings)
}

// LoadResults 读取最终排名
func (bs *BoltStore) LoadResults(_ context.Context, code string) ([]protocol.PlayerInfo, error) {
	var standings []protocol.PlayerInfo
	if err := bs.get(resultsBucket, code, &standings); err != nil {
		return nil, err
	}
	return standings, nil
}

// Close 关闭数据库
func (bs *BoltStore) Close() error {
	return bs.db.Close()
}

func (bs *BoltStore) put(bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	return bs.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (bs *BoltStore) get(bucket []byte, key string, v any) error {
	return bs.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// data 只在事务内有效，Unmarshal 会复制
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode %s/%s: %w", bucket, key, err)
		}
		return nil
	})
}
