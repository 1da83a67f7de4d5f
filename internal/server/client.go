package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/protocol/codec"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 4096

	// 发送缓冲区大小
	sendBufferSize = 256
)

// Client 一个 WebSocket 连接
// connID 在连接生命周期内不变，id 为玩家身份，重连时可改绑
type Client struct {
	IP string

	connID string
	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	id     string
	closed bool
}

// NewClient 创建新客户端，初始玩家 ID 为随机 UUID
func NewClient(s *Server, conn *websocket.Conn) *Client {
	id := uuid.New().String()
	return &Client{
		connID: id,
		id:     id,
		server: s,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// GetID 玩家 ID
func (c *Client) GetID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// SetID 改绑玩家 ID
func (c *Client) SetID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

// ReadPump 从 WebSocket 读取消息
func (c *Client) ReadPump() {
	defer func() {
		c.handleDisconnect()
		_ = c.conn.Close()
	}()

	log := c.server.logger
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnw("读取错误", "player", c.GetID(), "error", err)
			}
			return
		}

		msg, decodeErr := codec.Decode(data)
		var msgType protocol.MessageType
		if decodeErr == nil {
			msgType = msg.Type
		}

		switch c.server.throttle.check(c.connID, msgType) {
		case verdictDisconnect:
			log.Warnw("🚫 多次超速，断开连接", "player", c.GetID(), "ip", c.IP, "strikes", c.server.throttle.strikes(c.connID))
			return
		case verdictReject:
			log.Warnw("⚠️ 消息过于频繁", "player", c.GetID(), "ip", c.IP, "type", msgType)
			c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeRateLimit))
			continue
		}

		if decodeErr != nil {
			log.Debugw("消息解析错误", "player", c.GetID(), "error", decodeErr)
			c.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}

		c.server.handler.Handle(c, msg)
	}
}

// WritePump 向 WebSocket 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端，不阻塞
func (c *Client) SendMessage(msg *protocol.Message) {
	data, err := codec.Encode(msg)
	if err != nil {
		c.server.logger.Errorw("消息编码错误", "type", msg.Type, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		// 发送缓冲区已满，关闭连接
		c.server.logger.Warnw("发送缓冲区已满，关闭连接", "player", c.id)
		c.closed = true
		close(c.send)
	}
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// handleDisconnect 连接断开：标记离线、注销连接、释放连接槽位
func (c *Client) handleDisconnect() {
	c.server.handler.HandleDisconnect(c)
	c.server.hub.Unregister(c)
	c.server.throttle.forget(c.connID)
	c.server.releaseSlot()
	c.Close()

	c.server.logger.Infow("👋 连接断开", "player", c.GetID(), "ip", c.IP)
}
