package handler

import (
	"go.uber.org/zap"

	"github.com/palemoky/imposter-party/internal/game/room"
	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/protocol/codec"
	"github.com/palemoky/imposter-party/internal/types"
)

// ServerContext 处理器需要的服务器能力
type ServerContext interface {
	IsMaintenanceMode() bool
	Subscribe(code string, client types.ClientInterface)
	Unsubscribe(code string, client types.ClientInterface)
	Rebind(client types.ClientInterface, playerID string) bool
}

// Handler 消息处理器
type Handler struct {
	server   ServerContext
	rooms    *room.RoomManager
	logger   *zap.SugaredLogger
	handlers map[protocol.MessageType]handlerFunc
}

// handlerFunc 统一的处理器函数签名
type handlerFunc func(client types.ClientInterface, msg *protocol.Message)

// NewHandler 创建处理器
func NewHandler(server ServerContext, rooms *room.RoomManager, logger *zap.SugaredLogger) *Handler {
	h := &Handler{
		server: server,
		rooms:  rooms,
		logger: logger.Named("handler"),
	}
	h.initHandlers()
	return h
}

// initHandlers 初始化消息处理器映射
func (h *Handler) initHandlers() {
	h.handlers = map[protocol.MessageType]handlerFunc{
		// 连接操作
		protocol.MsgPing:      h.handlePing,
		protocol.MsgReconnect: h.handleReconnect,

		// 房间操作
		protocol.MsgCreateRoom: h.handleCreateRoom,
		protocol.MsgJoinRoom:   h.handleJoinRoom,
		protocol.MsgLeaveRoom:  h.handleLeaveRoom,
		protocol.MsgStartGame:  h.handleStartGame,

		// 游戏操作
		protocol.MsgSubmitAnswer: h.handleSubmitAnswer,
		protocol.MsgSubmitVote:   h.handleSubmitVote,

		// 查询
		protocol.MsgGetResults: h.handleGetResults,
	}
}

// Handle 处理消息
func (h *Handler) Handle(client types.ClientInterface, msg *protocol.Message) {
	if handler, ok := h.handlers[msg.Type]; ok {
		handler(client, msg)
		return
	}

	h.logger.Warnw("⚠️ 未知消息类型", "type", msg.Type, "player", client.GetID(), "payload_bytes", len(msg.Payload))
	client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
}

// HandleDisconnect 连接断开，玩家在所有房间标记为离线
func (h *Handler) HandleDisconnect(client types.ClientInterface) {
	if codes := h.rooms.Disconnect(client.GetID()); len(codes) > 0 {
		h.logger.Infow("玩家掉线", "player", client.GetID(), "rooms", codes)
	}
}

// sendError 把错误转换为错误消息单播给客户端
func (h *Handler) sendError(client types.ClientInterface, err error) {
	client.SendMessage(codec.NewErrorMessageFromError(err))
}
