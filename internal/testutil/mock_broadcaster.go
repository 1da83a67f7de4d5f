//go:build !production

package testutil

import (
	"sync"

	"github.com/palemoky/imposter-party/internal/protocol"
)

// RecordingBroadcaster 记录每个房间广播的消息
type RecordingBroadcaster struct {
	mu       sync.Mutex
	messages map[string][]*protocol.Message
}

// NewRecordingBroadcaster 创建广播记录器
func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{messages: make(map[string][]*protocol.Message)}
}

func (b *RecordingBroadcaster) BroadcastToRoom(code string, msg *protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[code] = append(b.messages[code], msg)
}

// Messages 返回某个房间的全部广播
func (b *RecordingBroadcaster) Messages(code string) []*protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*protocol.Message, len(b.messages[code]))
	copy(out, b.messages[code])
	return out
}

// Types 返回某个房间按顺序广播的消息类型
func (b *RecordingBroadcaster) Types(code string) []protocol.MessageType {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]protocol.MessageType, 0, len(b.messages[code]))
	for _, msg := range b.messages[code] {
		types = append(types, msg.Type)
	}
	return types
}

// Count 某类消息的广播次数
func (b *RecordingBroadcaster) Count(code string, msgType protocol.MessageType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, msg := range b.messages[code] {
		if msg.Type == msgType {
			n++
		}
	}
	return n
}

// Last 某类消息的最后一次广播，没有时返回 nil
func (b *RecordingBroadcaster) Last(code string, msgType protocol.MessageType) *protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.messages[code]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == msgType {
			return msgs[i]
		}
	}
	return nil
}

// Reset 清空记录
func (b *RecordingBroadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = make(map[string][]*protocol.Message)
}
