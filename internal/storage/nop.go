package storage

import (
	"context"

	"github.com/palemoky/imposter-party/internal/protocol"
)

// NopStore 不做任何持久化
type NopStore struct{}

// NewNopStore 创建空存储
func NewNopStore() *NopStore {
	return &NopStore{}
}

func (NopStore) SaveRoom(context.Context, *protocol.RoomSnapshot) error { return nil }

func (NopStore) DeleteRoom(context.Context, string) error { return nil }

func (NopStore) SaveResults(context.Context, string, []protocol.PlayerInfo) error { return nil }

func (NopStore) LoadResults(context.Context, string) ([]protocol.PlayerInfo, error) {
	return nil, ErrNotFound
}

func (NopStore) Close() error { return nil }
