package server

import (
	"sync"

	"github.com/palemoky/imposter-party/internal/game/room"
	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/types"
)

// Hub 在线连接表与房间订阅表，实现 types.Broadcaster
type Hub struct {
	mu      sync.RWMutex
	clients map[string]types.ClientInterface            // 玩家 ID → 连接
	rooms   map[string]map[string]types.ClientInterface // 房间号 → 玩家 ID → 连接
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]types.ClientInterface),
		rooms:   make(map[string]map[string]types.ClientInterface),
	}
}

// Register 注册连接
func (h *Hub) Register(client types.ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.GetID()] = client
}

// Unregister 注销连接并退订所有房间
// 只有当前登记的连接才会被移除，已被重新绑定的旧连接不影响新连接
func (h *Hub) Unregister(client types.ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := client.GetID()
	if h.clients[id] != client {
		return
	}
	delete(h.clients, id)

	for code, members := range h.rooms {
		if members[id] == client {
			delete(members, id)
			if len(members) == 0 {
				delete(h.rooms, code)
			}
		}
	}
}

// Rebind 把连接改绑到已有玩家身份
// 该身份仍有在线连接时返回 false
func (h *Hub) Rebind(client types.ClientInterface, playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	oldID := client.GetID()
	if oldID == playerID {
		return true
	}
	if existing, ok := h.clients[playerID]; ok && existing != client {
		return false
	}

	if h.clients[oldID] == client {
		delete(h.clients, oldID)
	}
	client.SetID(playerID)
	h.clients[playerID] = client

	for _, members := range h.rooms {
		if members[oldID] == client {
			delete(members, oldID)
			members[playerID] = client
		}
	}
	return true
}

// Subscribe 订阅房间广播
func (h *Hub) Subscribe(code string, client types.ClientInterface) {
	code = room.NormalizeCode(code)

	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[code]
	if !ok {
		members = make(map[string]types.ClientInterface)
		h.rooms[code] = members
	}
	members[client.GetID()] = client
}

// Unsubscribe 退订房间广播
func (h *Hub) Unsubscribe(code string, client types.ClientInterface) {
	code = room.NormalizeCode(code)

	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[code]
	if !ok {
		return
	}
	id := client.GetID()
	if members[id] == client {
		delete(members, id)
	}
	if len(members) == 0 {
		delete(h.rooms, code)
	}
}

// BroadcastToRoom 向房间所有订阅者广播
// SendMessage 不阻塞，可以在持有房间锁时调用
func (h *Hub) BroadcastToRoom(code string, msg *protocol.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[code] {
		client.SendMessage(msg)
	}
}

// OnlineCount 在线连接数
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount 房间订阅者数量
func (h *Hub) SubscriberCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room.NormalizeCode(code)])
}

// CloseAll 关闭所有连接
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]types.ClientInterface, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
