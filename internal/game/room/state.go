package room

// Phase 房间阶段
type Phase int

const (
	PhaseLobby    Phase = iota // 等待开始
	PhaseQuestion              // 答题
	PhaseVoting                // 投票
	PhaseResults               // 本轮结算
	PhaseFinished              // 游戏结束
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseQuestion:
		return "question"
	case PhaseVoting:
		return "voting"
	case PhaseResults:
		return "results"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// InProgress 是否处于对局中（开始后、结束前）
func (p Phase) InProgress() bool {
	return p == PhaseQuestion || p == PhaseVoting || p == PhaseResults
}
