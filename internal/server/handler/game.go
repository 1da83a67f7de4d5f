package handler

import (
	"time"

	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/protocol/codec"
	"github.com/palemoky/imposter-party/internal/types"
)

// handleSubmitAnswer 处理回答，结果由房间广播
func (h *Handler) handleSubmitAnswer(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parseChoice(client, msg)
	if !ok {
		return
	}
	if err := h.rooms.SubmitAnswer(payload.RoomCode, client.GetID(), payload.ChoiceID); err != nil {
		h.sendError(client, err)
	}
}

// handleSubmitVote 处理投票，结果由房间广播
func (h *Handler) handleSubmitVote(client types.ClientInterface, msg *protocol.Message) {
	payload, ok := parseChoice(client, msg)
	if !ok {
		return
	}
	if err := h.rooms.SubmitVote(payload.RoomCode, client.GetID(), payload.ChoiceID); err != nil {
		h.sendError(client, err)
	}
}

// handlePing 心跳
func (h *Handler) handlePing(client types.ClientInterface, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	client.SendMessage(codec.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

func parseChoice(client types.ClientInterface, msg *protocol.Message) (*protocol.SubmitChoicePayload, bool) {
	payload, err := codec.ParsePayload[protocol.SubmitChoicePayload](msg)
	if err != nil || payload.RoomCode == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return nil, false
	}
	return payload, true
}
