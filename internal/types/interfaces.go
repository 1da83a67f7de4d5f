package types

import (
	"context"

	"github.com/palemoky/imposter-party/internal/protocol"
)

// ClientInterface 定义客户端接口
type ClientInterface interface {
	GetID() string
	SetID(id string)
	SendMessage(msg *protocol.Message)
	Close()
}

// Broadcaster 房间范围的消息广播（由 Hub 实现）
type Broadcaster interface {
	BroadcastToRoom(code string, msg *protocol.Message)
}

// RoomStore 房间镜像与最终排名存储（Redis / bbolt / 空实现）
type RoomStore interface {
	SaveRoom(ctx context.Context, room *protocol.RoomSnapshot) error
	DeleteRoom(ctx context.Context, code string) error
	SaveResults(ctx context.Context, code string, standings []protocol.PlayerInfo) error
	LoadResults(ctx context.Context, code string) ([]protocol.PlayerInfo, error)
	Close() error
}
