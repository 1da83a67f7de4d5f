package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/palemoky/imposter-party/internal/config"
	"github.com/palemoky/imposter-party/internal/game/room"
	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/protocol/codec"
	"github.com/palemoky/imposter-party/internal/server/handler"
	"github.com/palemoky/imposter-party/internal/types"
)

// httpShutdownTimeout HTTP 服务关闭等待时长
const httpShutdownTimeout = 5 * time.Second

// Server WebSocket 服务器
type Server struct {
	config      *config.Config
	store       types.RoomStore
	hub         *Hub
	roomManager *room.RoomManager
	handler     *handler.Handler
	upgrader    websocket.Upgrader
	logger      *zap.SugaredLogger

	// 安全组件
	origins    *originPolicy
	throttle   *throttle
	trustProxy bool

	// 连接控制
	maxConnections int
	semaphore      chan struct{} // 信号量控制并发连接数

	// 维护模式
	maintenanceMode bool
	maintenanceMu   sync.RWMutex
}

// NewServer 创建服务器实例
// store 由调用方创建并负责关闭，opts 透传给房间管理器
func NewServer(cfg *config.Config, store types.RoomStore, logger *zap.SugaredLogger, opts ...room.Option) (*Server, error) {
	s := &Server{
		config:         cfg,
		store:          store,
		hub:            NewHub(),
		logger:         logger.Named("server"),
		origins:        newOriginPolicy(cfg.Security.AllowedOrigins),
		throttle:       newThrottle(cfg.Security),
		trustProxy:     cfg.Security.TrustProxyHeaders,
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.allow,
	}

	opts = append([]room.Option{room.WithStore(store), room.WithLogger(logger)}, opts...)
	rm, err := room.NewRoomManager(cfg.Game, s.hub, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建房间管理器失败: %w", err)
	}
	s.roomManager = rm
	s.handler = handler.NewHandler(s, rm, logger)

	s.logger.Infow("🔒 安全配置",
		"messages_per_second", cfg.Security.MessagesPerSecond,
		"max_connections", cfg.Server.MaxConnections,
		"allowed_origins", cfg.Security.AllowedOrigins)

	return s, nil
}

// Routes HTTP 路由
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run 启动服务器并阻塞到 ctx 取消
// ctx 取消后进入维护模式，等待进行中的对局结束（最长 ShutdownTimeout），再关闭所有连接
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, fmt.Sprint(s.config.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Infow("🚀 服务器启动", "addr", "ws://"+addr+"/ws", "cpus", runtime.NumCPU())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务异常退出: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.roomManager.Run(gctx)
	})

	g.Go(func() error {
		s.monitorStats(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.GracefulShutdown(s.config.Game.ShutdownTimeoutDuration())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// handleWebSocket 处理 WebSocket 连接
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := remoteIP(r, s.trustProxy)

	// 维护模式检查（最优先）
	if s.IsMaintenanceMode() {
		s.logger.Infow("🔧 维护模式，拒绝新连接", "ip", clientIP)
		http.Error(w, "Server is under maintenance, please try again later", http.StatusServiceUnavailable)
		return
	}

	if !s.acquireSlot() {
		s.logger.Warnw("🚫 达到最大连接数限制", "max", s.maxConnections, "ip", clientIP)
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}

	// Upgrade 失败时已由 CheckOrigin 或握手写回错误响应
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.releaseSlot()
		s.logger.Warnw("WebSocket 升级失败", "ip", clientIP, "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	client := NewClient(s, conn)
	client.IP = clientIP
	s.hub.Register(client)

	client.SendMessage(codec.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		PlayerID: client.GetID(),
	}))

	s.logger.Infow("✅ 新连接", "player", client.GetID(), "ip", clientIP)

	go client.ReadPump()
	go client.WritePump()
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.IsMaintenanceMode() {
		http.Error(w, "MAINTENANCE", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// acquireSlot 占用一个连接槽位，已满时返回 false
func (s *Server) acquireSlot() bool {
	select {
	case s.semaphore <- struct{}{}:
		return true
	default:
		return false
	}
}

// releaseSlot 释放连接槽位
func (s *Server) releaseSlot() {
	select {
	case <-s.semaphore:
	default:
	}
}

// --- handler.ServerContext ---

// Subscribe 订阅房间广播
func (s *Server) Subscribe(code string, client types.ClientInterface) {
	s.hub.Subscribe(code, client)
}

// Unsubscribe 退订房间广播
func (s *Server) Unsubscribe(code string, client types.ClientInterface) {
	s.hub.Unsubscribe(code, client)
}

// Rebind 把连接改绑到已有玩家身份
func (s *Server) Rebind(client types.ClientInterface, playerID string) bool {
	return s.hub.Rebind(client, playerID)
}

// OnlineCount 在线连接数
func (s *Server) OnlineCount() int {
	return s.hub.OnlineCount()
}
