package handler

import (
	"context"
	"time"

	"github.com/palemoky/imposter-party/internal/apperrors"
	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/protocol/codec"
	"github.com/palemoky/imposter-party/internal/types"
)

// resultsTimeout 查询最终排名的存储超时
const resultsTimeout = 3 * time.Second

// handleCreateRoom 处理创建房间，创建者自动订阅房间广播
func (h *Handler) handleCreateRoom(client types.ClientInterface, msg *protocol.Message) {
	// 维护模式检查
	if h.server.IsMaintenanceMode() {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeServerMaintenance))
		return
	}

	payload, err := codec.ParsePayload[protocol.CreateRoomPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	room, err := h.rooms.CreateRoom(client.GetID(), payload.PlayerName, payload.Settings)
	if err != nil {
		h.sendError(client, err)
		return
	}

	h.server.Subscribe(room.Code, client)

	snap := room.Snapshot()
	player, _ := snap.Player(client.GetID())
	client.SendMessage(codec.MustNewMessage(protocol.MsgRoomCreated, protocol.RoomJoinedPayload{
		Room:   snap,
		Player: player,
	}))
}

// handleJoinRoom 处理加入房间，也用于断线后按原身份回到房间
// 先订阅再加入，保证不会漏掉加入之后的房间事件
func (h *Handler) handleJoinRoom(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.JoinRoomPayload](msg)
	if err != nil || payload.RoomCode == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	h.server.Subscribe(payload.RoomCode, client)

	snap, err := h.rooms.JoinRoom(payload.RoomCode, client.GetID(), payload.PlayerName)
	if err != nil {
		h.server.Unsubscribe(payload.RoomCode, client)
		h.sendError(client, err)
		return
	}

	player, _ := snap.Player(client.GetID())
	client.SendMessage(codec.MustNewMessage(protocol.MsgRoomJoined, protocol.RoomJoinedPayload{
		Room:   snap,
		Player: player,
	}))
}

// handleLeaveRoom 处理离开房间
func (h *Handler) handleLeaveRoom(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.RoomCodePayload](msg)
	if err != nil || payload.RoomCode == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	if err := h.rooms.LeaveRoom(payload.RoomCode, client.GetID()); err != nil {
		h.sendError(client, err)
		return
	}
	h.server.Unsubscribe(payload.RoomCode, client)
}

// handleStartGame 处理房主开始游戏，成功后由房间广播 game_started
func (h *Handler) handleStartGame(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.RoomCodePayload](msg)
	if err != nil || payload.RoomCode == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	if err := h.rooms.StartGame(payload.RoomCode, client.GetID()); err != nil {
		h.sendError(client, err)
	}
}

// handleGetResults 查询已结束游戏的最终排名
func (h *Handler) handleGetResults(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.RoomCodePayload](msg)
	if err != nil || payload.RoomCode == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resultsTimeout)
	defer cancel()

	standings, err := h.rooms.GetResults(ctx, payload.RoomCode)
	if err != nil {
		h.sendError(client, err)
		return
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgResults, protocol.ResultsPayload{
		RoomCode:  payload.RoomCode,
		Standings: standings,
	}))
}

// handleReconnect 新连接接管断线前的玩家身份
// 之后客户端需再发送 join_room 回到房间
// 当前身份仍在某个房间在线时拒绝，否则旧席位会一直显示在线
func (h *Handler) handleReconnect(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.ReconnectPayload](msg)
	if err != nil || payload.PlayerID == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	if current := client.GetID(); current != payload.PlayerID {
		if codes := h.rooms.RoomsOf(current); len(codes) > 0 {
			h.logger.Infow("🚫 当前身份仍在房间中", "player", current, "rooms", codes)
			h.sendError(client, apperrors.ErrStillSeated)
			return
		}
	}

	if !h.server.Rebind(client, payload.PlayerID) {
		h.logger.Infow("🚫 重连身份仍在线", "player", payload.PlayerID)
		h.sendError(client, apperrors.ErrIdentityInUse)
		return
	}

	h.logger.Infow("🔄 身份已恢复", "player", payload.PlayerID)
	client.SendMessage(codec.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		PlayerID: payload.PlayerID,
	}))
}
