package room

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/palemoky/imposter-party/internal/apperrors"
	"github.com/palemoky/imposter-party/internal/config"
	"github.com/palemoky/imposter-party/internal/game/question"
	"github.com/palemoky/imposter-party/internal/logger"
	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/storage"
	"github.com/palemoky/imposter-party/internal/types"
)

// storeTimeout 镜像写入的超时
const storeTimeout = 5 * time.Second

// RoomManager 房间注册表：房间号 → 房间
type RoomManager struct {
	cfg          config.GameConfig
	bank         *question.Bank
	broadcaster  types.Broadcaster
	store        types.RoomStore
	mirror       *mirrorWriter
	results      *lru.ARCCache // 房间号 → 最终排名
	scheduler    Scheduler
	generateCode func() string
	newRand      func() *rand.Rand
	logger       *zap.SugaredLogger

	rooms map[string]*Room
	mu    sync.RWMutex
}

// Option 注册表选项
type Option func(*RoomManager)

// WithScheduler 替换定时器来源
func WithScheduler(s Scheduler) Option {
	return func(rm *RoomManager) { rm.scheduler = s }
}

// WithCodeGenerator 替换房间号生成器
func WithCodeGenerator(gen func() string) Option {
	return func(rm *RoomManager) { rm.generateCode = gen }
}

// WithRandSeed 固定随机种子，房间按创建顺序获得确定的随机序列
func WithRandSeed(seed uint64) Option {
	return func(rm *RoomManager) {
		master := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		rm.newRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(master.Uint64(), master.Uint64()))
		}
	}
}

// WithQuestionBank 替换题库
func WithQuestionBank(b *question.Bank) Option {
	return func(rm *RoomManager) { rm.bank = b }
}

// WithStore 设置房间镜像存储
func WithStore(s types.RoomStore) Option {
	return func(rm *RoomManager) { rm.store = s }
}

// WithLogger 设置日志
func WithLogger(l *zap.SugaredLogger) Option {
	return func(rm *RoomManager) { rm.logger = l }
}

// NewRoomManager 创建房间管理器
func NewRoomManager(cfg config.GameConfig, broadcaster types.Broadcaster, opts ...Option) (*RoomManager, error) {
	results, err := lru.NewARC(max(cfg.ResultsCacheSize, 1))
	if err != nil {
		return nil, err
	}

	rm := &RoomManager{
		cfg:          cfg,
		broadcaster:  broadcaster,
		store:        storage.NewNopStore(),
		results:      results,
		scheduler:    RealScheduler(),
		generateCode: GenerateRoomCode,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		logger: logger.DefaultLogger(),
		rooms:  make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(rm)
	}

	if rm.bank == nil {
		if cfg.QuestionsFile != "" {
			if rm.bank, err = question.LoadBank(cfg.QuestionsFile); err != nil {
				return nil, err
			}
		} else {
			rm.bank = question.DefaultBank()
		}
	}
	rm.logger = rm.logger.Named("room")
	rm.mirror = newMirrorWriter(rm.store, rm.logger)

	return rm, nil
}

// CreateRoom 创建房间，创建者成为房主
func (rm *RoomManager) CreateRoom(hostID, hostName string, settings protocol.GameSettings) (*Room, error) {
	name, err := normalizeName(hostName)
	if err != nil {
		return nil, err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	code, err := rm.uniqueCodeLocked()
	if err != nil {
		rm.logger.Warnf("⚠️ 生成房间号失败，当前 %d 个房间", len(rm.rooms))
		return nil, err
	}

	room := newRoom(code, hostID, name, rm.resolveSettings(settings), roomDeps{
		bank:         rm.bank,
		rng:          rm.newRand(),
		scheduler:    rm.scheduler,
		broadcaster:  rm.broadcaster,
		observer:     rm,
		logger:       rm.logger,
		minPlayers:   rm.cfg.MinPlayers,
		maxPlayers:   rm.cfg.MaxPlayers,
		startDelay:   rm.cfg.StartDelayDuration(),
		intermission: rm.cfg.IntermissionDuration(),
	})
	rm.rooms[code] = room

	rm.roomChanged(room.Snapshot())
	rm.logger.Infof("🏠 房间 %s 已创建，房主 %s", code, name)

	return room, nil
}

// uniqueCodeLocked 生成未被占用的房间号
func (rm *RoomManager) uniqueCodeLocked() (string, error) {
	for range maxCodeAttempts {
		code := rm.generateCode()
		if _, exists := rm.rooms[code]; !exists {
			return code, nil
		}
	}
	return "", apperrors.ErrCodeSpaceExhausted
}

// resolveSettings 非正数使用默认值，超过上限的截断
func (rm *RoomManager) resolveSettings(s protocol.GameSettings) Settings {
	out := Settings{
		TotalRounds:     s.TotalRounds,
		RoundTimeLimit:  time.Duration(s.RoundTimeLimit) * time.Millisecond,
		VotingTimeLimit: time.Duration(s.VotingTimeLimit) * time.Millisecond,
		ImposterCount:   s.ImposterCount,
	}
	if out.TotalRounds <= 0 {
		out.TotalRounds = rm.cfg.DefaultRounds
	}
	out.TotalRounds = min(out.TotalRounds, rm.cfg.MaxRounds)
	if out.RoundTimeLimit <= 0 {
		out.RoundTimeLimit = rm.cfg.RoundTimeLimitDuration()
	}
	out.RoundTimeLimit = min(out.RoundTimeLimit, rm.cfg.MaxTimeLimitDuration())
	if out.VotingTimeLimit <= 0 {
		out.VotingTimeLimit = rm.cfg.VotingTimeLimitDuration()
	}
	out.VotingTimeLimit = min(out.VotingTimeLimit, rm.cfg.MaxTimeLimitDuration())
	if out.ImposterCount <= 0 {
		out.ImposterCount = rm.cfg.ImposterCount
	}
	out.ImposterCount = min(out.ImposterCount, rm.cfg.MaxPlayers)
	return out
}

// GetRoom 获取房间，房间号不区分大小写
func (rm *RoomManager) GetRoom(code string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[NormalizeCode(code)]
}

// RemoveRoom 删除房间并停止其定时器，重复调用无副作用
func (rm *RoomManager) RemoveRoom(code string) {
	code = NormalizeCode(code)

	rm.mu.Lock()
	room, exists := rm.rooms[code]
	delete(rm.rooms, code)
	rm.mu.Unlock()

	if !exists {
		return
	}
	// Close 之后房间不再产生镜像写入，删除排在所有快照之后
	room.Close()
	rm.mirror.deleteRoom(code)
	rm.logger.Infof("🧹 房间 %s 已移除", code)
}

// JoinRoom 加入房间
func (rm *RoomManager) JoinRoom(code, playerID, name string) (*protocol.RoomSnapshot, error) {
	room := rm.GetRoom(code)
	if room == nil {
		return nil, apperrors.ErrRoomNotFound
	}
	return room.Join(playerID, name)
}

// StartGame 开始游戏
func (rm *RoomManager) StartGame(code, requesterID string) error {
	room := rm.GetRoom(code)
	if room == nil {
		return apperrors.ErrRoomNotFound
	}
	return room.Start(requesterID)
}

// SubmitAnswer 提交答案
func (rm *RoomManager) SubmitAnswer(code, playerID, choiceID string) error {
	room := rm.GetRoom(code)
	if room == nil {
		return apperrors.ErrRoomNotFound
	}
	return room.SubmitAnswer(playerID, choiceID)
}

// SubmitVote 提交投票
func (rm *RoomManager) SubmitVote(code, voterID, accusedID string) error {
	room := rm.GetRoom(code)
	if room == nil {
		return apperrors.ErrRoomNotFound
	}
	return room.SubmitVote(voterID, accusedID)
}

// LeaveRoom 离开房间
func (rm *RoomManager) LeaveRoom(code, playerID string) error {
	room := rm.GetRoom(code)
	if room == nil {
		return apperrors.ErrRoomNotFound
	}
	return room.Leave(playerID)
}

// Disconnect 玩家断开连接，在其所在的每个房间执行离开，返回受影响的房间号
func (rm *RoomManager) Disconnect(playerID string) []string {
	var codes []string
	for _, room := range rm.snapshotRooms() {
		if room.disconnect(playerID) {
			codes = append(codes, room.Code)
		}
	}
	return codes
}

// RoomsOf 玩家在线所在的房间号
func (rm *RoomManager) RoomsOf(playerID string) []string {
	var codes []string
	for _, room := range rm.snapshotRooms() {
		if room.IsConnected(playerID) {
			codes = append(codes, room.Code)
		}
	}
	return codes
}

// GetResults 查询已结束游戏的最终排名：先查本地缓存，再查镜像存储
func (rm *RoomManager) GetResults(ctx context.Context, code string) ([]protocol.PlayerInfo, error) {
	code = NormalizeCode(code)

	if v, ok := rm.results.Get(code); ok {
		return v.([]protocol.PlayerInfo), nil
	}
	if room := rm.GetRoom(code); room != nil && room.Phase() == PhaseFinished {
		return room.Standings(), nil
	}

	standings, err := rm.store.LoadResults(ctx, code)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			rm.logger.Warnw("读取最终排名失败", "room", code, "error", err)
		}
		return nil, apperrors.ErrResultsNotFound
	}
	rm.results.Add(code, standings)
	return standings, nil
}

// ActiveGamesCount 进行中的游戏数量
func (rm *RoomManager) ActiveGamesCount() int {
	count := 0
	for _, room := range rm.snapshotRooms() {
		if room.Phase().InProgress() {
			count++
		}
	}
	return count
}

// RoomCount 房间总数
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// Run 定期回收房间，直到 ctx 取消
func (rm *RoomManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(rm.cfg.CleanupIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rm.cleanup(rm.scheduler.Now())
		}
	}
}

// cleanup 回收已结束、无人在线或大厅闲置超时的房间
func (rm *RoomManager) cleanup(now time.Time) []string {
	var removed []string
	for _, room := range rm.snapshotRooms() {
		reason, ok := room.expired(now, &rm.cfg)
		if !ok {
			continue
		}
		rm.logger.Infof("🧹 房间 %s 因%s被回收", room.Code, reason)
		rm.RemoveRoom(room.Code)
		removed = append(removed, room.Code)
	}
	return removed
}

// Shutdown 关闭所有房间的定时器，并等待镜像写完
func (rm *RoomManager) Shutdown() {
	for _, room := range rm.snapshotRooms() {
		room.Close()
	}
	rm.mirror.close()
}

// snapshotRooms 复制房间列表，遍历时不持有注册表锁
func (rm *RoomManager) snapshotRooms() []*Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// roomChanged 排队写入房间镜像
func (rm *RoomManager) roomChanged(snap *protocol.RoomSnapshot) {
	rm.mirror.saveRoom(snap)
}

// roomFinished 缓存最终排名并排队写入存储
func (rm *RoomManager) roomFinished(code string, standings []protocol.PlayerInfo) {
	rm.results.Add(code, standings)
	rm.mirror.saveResults(code, standings)
}
