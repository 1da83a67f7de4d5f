package room

import (
	"time"

	"github.com/palemoky/imposter-party/internal/apperrors"
	"github.com/palemoky/imposter-party/internal/config"
	"github.com/palemoky/imposter-party/internal/game/imposter"
	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/protocol/codec"
)

// 名单变化原因
const (
	ReasonJoined      = "joined"
	ReasonLeft        = "left"
	ReasonReconnected = "reconnected"
)

// Join 加入房间
// 已在名单中的玩家视为重连（任意阶段）；新玩家只能在大厅阶段加入
func (r *Room) Join(playerID, name string) (*protocol.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, apperrors.ErrRoomNotFound
	}

	if p, ok := r.byID[playerID]; ok {
		if r.phase == PhaseFinished || p.Connected {
			return r.snapshotLocked(), nil
		}
		p.Connected = true
		r.emptySince = time.Time{}
		r.ensureHostLocked()
		r.touchLocked()

		r.deps.logger.Infof("📶 玩家 %s 重新加入房间 %s", p.Name, r.Code)
		return r.emitRosterLocked(playerID, ReasonReconnected), nil
	}

	if r.phase != PhaseLobby {
		return nil, apperrors.ErrGameStarted
	}
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if len(r.players) >= r.deps.maxPlayers {
		return nil, apperrors.ErrRoomFull
	}

	p := &Player{ID: playerID, Name: name, Connected: true, JoinedAt: r.deps.scheduler.Now()}
	r.players = append(r.players, p)
	r.byID[playerID] = p
	r.emptySince = time.Time{}
	r.ensureHostLocked()
	r.touchLocked()

	r.deps.logger.Infof("👤 玩家 %s 加入房间 %s", name, r.Code)
	return r.emitRosterLocked(playerID, ReasonJoined), nil
}

// Start 房主开始游戏，延迟 startDelay 后进入第一轮
func (r *Room) Start(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return apperrors.ErrRoomNotFound
	}
	if r.phase != PhaseLobby {
		return apperrors.ErrGameStarted
	}
	if requesterID != r.hostID {
		return apperrors.ErrUnauthorized
	}
	if r.connectedCountLocked() < r.deps.minPlayers {
		return apperrors.ErrInsufficientPlayers
	}

	r.phase = PhaseQuestion
	r.touchLocked()
	r.scheduleLocked(r.deps.startDelay, r.beginRoundLocked)

	r.deps.logger.Infof("🎮 房间 %s 开始游戏，%d 名玩家，共 %d 轮", r.Code, r.connectedCountLocked(), r.settings.TotalRounds)
	snap := r.snapshotLocked()
	r.emitLocked(protocol.MsgGameStarted, protocol.RoomPayload{Room: snap}, snap)
	return nil
}

// beginRoundLocked 开始新一轮：抽题、选内鬼、启动答题计时
func (r *Room) beginRoundLocked() {
	r.currentRound++
	r.phase = PhaseQuestion
	r.answers = make(map[string]string)
	r.votes = make(map[string]string)

	main, imp := r.deps.bank.DrawPair(r.usedQuestionIDs, r.deps.rng)
	r.question, r.imposterQuestion = &main, &imp
	r.usedQuestionIDs = append(r.usedQuestionIDs, main.ID, imp.ID)

	// 无人在线时内鬼为空，本轮只会由计时器推进
	connected := r.connectedIDsLocked()
	r.imposterIDs = imposter.Choose(connected, r.settings.ImposterCount, r.deps.rng)
	r.snapshotEligibleLocked()

	r.scheduleLocked(r.settings.RoundTimeLimit, r.startVotingLocked)

	r.deps.logger.Debugf("❓ 房间 %s 第 %d/%d 轮开始，题目 %s/%s", r.Code, r.currentRound, r.settings.TotalRounds, main.ID, imp.ID)
	snap := r.snapshotLocked()
	r.emitLocked(protocol.MsgRoundStarted, protocol.RoomPayload{Room: snap}, snap)
}

// SubmitAnswer 提交答案（选择一名玩家）
// 非答题阶段或无资格的提交直接忽略；答案数达到有资格的在线人数时立即进入投票
func (r *Room) SubmitAnswer(playerID, choiceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.phase != PhaseQuestion || r.currentRound == 0 || !r.canSubmitLocked(playerID) {
		return nil
	}
	if _, ok := r.byID[choiceID]; !ok {
		return apperrors.ErrInvalidChoice
	}

	r.answers[playerID] = choiceID
	r.touchLocked()

	snap := r.snapshotLocked()
	r.emitLocked(protocol.MsgGameUpdated, protocol.RoomPayload{Room: snap}, snap)

	if len(r.answers) >= r.eligibleConnectedLocked() {
		r.startVotingLocked()
	}
	return nil
}

// startVotingLocked 进入投票阶段
func (r *Room) startVotingLocked() {
	r.phase = PhaseVoting
	r.votes = make(map[string]string)
	r.snapshotEligibleLocked()
	r.scheduleLocked(r.settings.VotingTimeLimit, r.endRoundLocked)

	r.deps.logger.Debugf("🗳️ 房间 %s 第 %d 轮进入投票，%d 人已作答", r.Code, r.currentRound, len(r.answers))
	snap := r.snapshotLocked()
	r.emitLocked(protocol.MsgVotingStarted, protocol.RoomPayload{Room: snap}, snap)
}

// SubmitVote 投票指认内鬼
// 非投票阶段或无资格的投票直接忽略；票数达到有资格的在线人数时立即结算
func (r *Room) SubmitVote(voterID, accusedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.phase != PhaseVoting || !r.canSubmitLocked(voterID) {
		return nil
	}
	if _, ok := r.byID[accusedID]; !ok {
		return apperrors.ErrInvalidChoice
	}

	r.votes[voterID] = accusedID
	r.touchLocked()

	snap := r.snapshotLocked()
	r.emitLocked(protocol.MsgGameUpdated, protocol.RoomPayload{Room: snap}, snap)

	if len(r.votes) >= r.eligibleConnectedLocked() {
		r.endRoundLocked()
	}
	return nil
}

// endRoundLocked 结算本轮：投中内鬼的玩家各得 PointsPerCorrectVote 分
func (r *Room) endRoundLocked() {
	r.phase = PhaseResults

	imposters := make(map[string]struct{}, len(r.imposterIDs))
	for _, id := range r.imposterIDs {
		imposters[id] = struct{}{}
	}
	awards := make(map[string]int)
	for voterID, accusedID := range r.votes {
		if _, hit := imposters[accusedID]; !hit {
			continue
		}
		if p, ok := r.byID[voterID]; ok {
			p.Score += PointsPerCorrectVote
			awards[voterID] = PointsPerCorrectVote
		}
	}

	r.scheduleLocked(r.deps.intermission, r.advanceLocked)

	r.deps.logger.Debugf("📊 房间 %s 第 %d 轮结算，%d 人投中内鬼", r.Code, r.currentRound, len(awards))
	snap := r.snapshotLocked()
	r.emitLocked(protocol.MsgRoundEnded, protocol.RoundEndedPayload{Room: snap, Awards: awards}, snap)
}

// advanceLocked 结算展示结束后进入下一轮或结束游戏
func (r *Room) advanceLocked() {
	if r.currentRound >= r.settings.TotalRounds {
		r.finishLocked()
		return
	}
	r.beginRoundLocked()
}

// finishLocked 结束游戏，之后房间状态不再变化
func (r *Room) finishLocked() {
	r.phase = PhaseFinished
	r.stopTimerLocked()
	r.finishedAt = r.deps.scheduler.Now()
	r.touchLocked()

	standings := r.standingsLocked()
	r.deps.logger.Infof("🏁 房间 %s 游戏结束，第一名 %s（%d 分）", r.Code, standings[0].Name, standings[0].Score)

	snap := r.snapshotLocked()
	r.emitLocked(protocol.MsgGameEnded, protocol.GameEndedPayload{Room: snap, Standings: standings}, snap)
	r.deps.observer.roomFinished(r.Code, standings)
}

// Leave 玩家离开（或掉线），已提交的答案和投票保留
// 是否完成本阶段只在下一次提交或计时器到期时重新判断
func (r *Room) Leave(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.leaveLocked(playerID)
	return err
}

// disconnect 连接断开时调用，返回玩家是否由在线变为离线
func (r *Room) disconnect(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	left, _ := r.leaveLocked(playerID)
	return left
}

func (r *Room) leaveLocked(playerID string) (bool, error) {
	p, ok := r.byID[playerID]
	if !ok {
		return false, apperrors.ErrNotInRoom
	}
	if r.closed || r.phase == PhaseFinished || !p.Connected {
		return false, nil
	}

	p.Connected = false
	r.ensureHostLocked()
	r.touchLocked()
	if r.connectedCountLocked() == 0 {
		r.emptySince = r.deps.scheduler.Now()
	}

	r.deps.logger.Infof("👋 玩家 %s 离开房间 %s", p.Name, r.Code)
	r.emitRosterLocked(playerID, ReasonLeft)
	return true, nil
}

// expired 判断房间是否应被回收，返回回收原因
func (r *Room) expired(now time.Time, cfg *config.GameConfig) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.phase == PhaseFinished && now.Sub(r.finishedAt) >= cfg.FinishedRetentionDuration():
		return "已结束", true
	case !r.emptySince.IsZero() && now.Sub(r.emptySince) >= cfg.EmptyRoomTimeoutDuration():
		return "无人在线", true
	case r.phase == PhaseLobby && now.Sub(r.lastActivity) >= cfg.LobbyTimeoutDuration():
		return "大厅闲置", true
	}
	return "", false
}

func (r *Room) emitRosterLocked(playerID, reason string) *protocol.RoomSnapshot {
	snap := r.snapshotLocked()
	r.emitLocked(protocol.MsgRosterChanged, protocol.RosterChangedPayload{
		Room:     snap,
		PlayerID: playerID,
		Reason:   reason,
	}, snap)
	return snap
}

// emitLocked 广播房间事件并通知注册表，持锁调用以保证同一房间的事件顺序
func (r *Room) emitLocked(msgType protocol.MessageType, payload any, snap *protocol.RoomSnapshot) {
	r.deps.broadcaster.BroadcastToRoom(r.Code, codec.MustNewMessage(msgType, payload))
	r.deps.observer.roomChanged(snap)
}
