package server

import (
	"context"
	"runtime"
	"time"
)

// statsInterval 监控日志间隔
const statsInterval = 30 * time.Second

// monitorStats 定期输出服务器状态，ctx 取消后退出
func (s *Server) monitorStats(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			s.logger.Infow("📊 [监控]",
				"online", s.OnlineCount(),
				"rooms", s.roomManager.RoomCount(),
				"active_games", s.roomManager.ActiveGamesCount(),
				"goroutines", runtime.NumGoroutine(),
				"connections", len(s.semaphore),
				"max_connections", s.maxConnections,
				"alloc_mb", float64(m.Alloc)/1024/1024)
		}
	}
}

// EnterMaintenanceMode 进入维护模式：拒绝新连接和新房间
func (s *Server) EnterMaintenanceMode() {
	s.maintenanceMu.Lock()
	already := s.maintenanceMode
	s.maintenanceMode = true
	s.maintenanceMu.Unlock()

	if !already {
		s.logger.Info("🔧 进入维护模式：停止新连接和房间创建")
	}
}

// IsMaintenanceMode 检查是否在维护模式
func (s *Server) IsMaintenanceMode() bool {
	s.maintenanceMu.RLock()
	defer s.maintenanceMu.RUnlock()
	return s.maintenanceMode
}

// GracefulShutdown 优雅关闭：进入维护模式，等待进行中的对局结束，然后关闭
func (s *Server) GracefulShutdown(timeout time.Duration) {
	s.EnterMaintenanceMode()

	deadline := time.Now().Add(timeout)
	interval := s.config.Game.ShutdownCheckIntervalDuration()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		active := s.roomManager.ActiveGamesCount()
		if active == 0 {
			s.logger.Info("✅ 所有对局已结束")
			break
		}
		s.logger.Infow("⏳ 等待对局结束...", "active_games", active)
		<-ticker.C
	}

	if active := s.roomManager.ActiveGamesCount(); active > 0 {
		s.logger.Warnw("⚠️ 超时，仍有对局进行中，强制关闭", "active_games", active)
	}

	s.Shutdown()
}

// Shutdown 关闭所有房间和连接
func (s *Server) Shutdown() {
	s.roomManager.Shutdown()
	s.hub.CloseAll()
	s.logger.Info("服务器已关闭")
}
