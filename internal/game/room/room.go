package room

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/palemoky/imposter-party/internal/apperrors"
	"github.com/palemoky/imposter-party/internal/game/question"
	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/types"
)

const (
	PointsPerCorrectVote = 100 // 投中内鬼的得分
	maxNameLength        = 24  // 昵称最大字符数
)

// Player 房间中的玩家，离开后仍保留在名单中
type Player struct {
	ID        string
	Name      string
	Score     int
	Connected bool
	JoinedAt  time.Time
}

// Settings 房间设置
type Settings struct {
	TotalRounds     int
	RoundTimeLimit  time.Duration
	VotingTimeLimit time.Duration
	ImposterCount   int
}

// observer 房间状态变化的回调，在房间锁内调用，实现方不得回调房间或获取注册表锁
type observer interface {
	roomChanged(snap *protocol.RoomSnapshot)
	roomFinished(code string, standings []protocol.PlayerInfo)
}

// roomDeps 房间的外部依赖，由注册表注入
type roomDeps struct {
	bank         *question.Bank
	rng          *rand.Rand
	scheduler    Scheduler
	broadcaster  types.Broadcaster
	observer     observer
	logger       *zap.SugaredLogger
	minPlayers   int
	maxPlayers   int
	startDelay   time.Duration
	intermission time.Duration
}

// Room 一局游戏会话，所有状态由 mu 保护
type Room struct {
	Code      string
	CreatedAt time.Time

	deps roomDeps

	mu               sync.Mutex
	phase            Phase
	players          []*Player // 按加入顺序
	byID             map[string]*Player
	hostID           string
	settings         Settings
	currentRound     int
	question         *question.Question
	imposterQuestion *question.Question
	imposterIDs      []string
	answers          map[string]string // 答题者 → 被选中的玩家
	votes            map[string]string // 投票者 → 被指认的玩家
	eligible         map[string]struct{}
	usedQuestionIDs  []string

	timer        Timer
	timerGen     uint64
	deadline     time.Time
	lastActivity time.Time
	emptySince   time.Time
	finishedAt   time.Time
	closed       bool
}

// newRoom 创建房间，创建者为唯一玩家和房主
func newRoom(code, hostID, hostName string, settings Settings, deps roomDeps) *Room {
	now := deps.scheduler.Now()
	host := &Player{ID: hostID, Name: hostName, Connected: true, JoinedAt: now}
	return &Room{
		Code:         code,
		CreatedAt:    now,
		deps:         deps,
		phase:        PhaseLobby,
		players:      []*Player{host},
		byID:         map[string]*Player{hostID: host},
		hostID:       hostID,
		settings:     settings,
		answers:      make(map[string]string),
		votes:        make(map[string]string),
		lastActivity: now,
	}
}

// normalizeName 校验并整理昵称
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxNameLength {
		return "", apperrors.ErrInvalidName
	}
	return name, nil
}

// Phase 当前阶段
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// CurrentRound 当前轮次，开始前为 0
func (r *Room) CurrentRound() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentRound
}

// HostID 房主 ID
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// IsConnected 玩家是否在房间中且在线
func (r *Room) IsConnected(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[playerID]
	return ok && p.Connected
}

// Snapshot 返回房间状态的只读副本
func (r *Room) Snapshot() *protocol.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Standings 按得分排序的名次，同分按加入顺序
func (r *Room) Standings() []protocol.PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.standingsLocked()
}

// Close 停止定时器，之后房间不再响应任何操作
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.stopTimerLocked()
}

func (r *Room) connectedCountLocked() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) connectedIDsLocked() []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		if p.Connected {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// ensureHostLocked 房主不在线时，由最早加入的在线玩家接任；无人在线则保持不变
func (r *Room) ensureHostLocked() {
	if host, ok := r.byID[r.hostID]; ok && host.Connected {
		return
	}
	for _, p := range r.players {
		if p.Connected {
			r.hostID = p.ID
			return
		}
	}
}

// canSubmitLocked 提交者须在本阶段开始时在线且当前仍在线
func (r *Room) canSubmitLocked(playerID string) bool {
	p, ok := r.byID[playerID]
	if !ok || !p.Connected {
		return false
	}
	_, ok = r.eligible[playerID]
	return ok
}

// eligibleConnectedLocked 本阶段有资格且仍在线的人数，已离开玩家的提交仍计入答案数
func (r *Room) eligibleConnectedLocked() int {
	n := 0
	for id := range r.eligible {
		if p, ok := r.byID[id]; ok && p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) snapshotEligibleLocked() {
	r.eligible = make(map[string]struct{}, len(r.players))
	for _, id := range r.connectedIDsLocked() {
		r.eligible[id] = struct{}{}
	}
}

func (r *Room) touchLocked() {
	r.lastActivity = r.deps.scheduler.Now()
}

func (r *Room) playerInfoLocked(p *Player) protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:          p.ID,
		Name:        p.Name,
		Score:       p.Score,
		IsConnected: p.Connected,
		IsHost:      p.ID == r.hostID,
	}
}

func (r *Room) snapshotLocked() *protocol.RoomSnapshot {
	snap := &protocol.RoomSnapshot{
		Code:            r.Code,
		Phase:           r.phase.String(),
		Players:         make([]protocol.PlayerInfo, 0, len(r.players)),
		HostID:          r.hostID,
		CurrentRound:    r.currentRound,
		TotalRounds:     r.settings.TotalRounds,
		ImposterIDs:     slices.Clone(r.imposterIDs),
		Answers:         make(map[string]string, len(r.answers)),
		Votes:           make(map[string]string, len(r.votes)),
		UsedQuestionIDs: slices.Clone(r.usedQuestionIDs),
		RoundTimeLimit:  r.settings.RoundTimeLimit.Milliseconds(),
		VotingTimeLimit: r.settings.VotingTimeLimit.Milliseconds(),
		ImposterCount:   r.settings.ImposterCount,
	}
	if snap.ImposterIDs == nil {
		snap.ImposterIDs = []string{}
	}
	if snap.UsedQuestionIDs == nil {
		snap.UsedQuestionIDs = []string{}
	}
	for _, p := range r.players {
		snap.Players = append(snap.Players, r.playerInfoLocked(p))
	}
	for k, v := range r.answers {
		snap.Answers[k] = v
	}
	for k, v := range r.votes {
		snap.Votes[k] = v
	}
	if r.question != nil {
		snap.Question = questionInfo(r.question)
	}
	if r.imposterQuestion != nil {
		snap.ImposterQuestion = questionInfo(r.imposterQuestion)
	}
	if !r.deadline.IsZero() {
		snap.Deadline = r.deadline.UnixMilli()
	}
	return snap
}

func (r *Room) standingsLocked() []protocol.PlayerInfo {
	standings := make([]protocol.PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		standings = append(standings, r.playerInfoLocked(p))
	}
	slices.SortStableFunc(standings, func(a, b protocol.PlayerInfo) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return standings
}

func questionInfo(q *question.Question) *protocol.QuestionInfo {
	return &protocol.QuestionInfo{ID: q.ID, Text: q.Text, Category: q.Category}
}
