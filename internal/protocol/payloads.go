package protocol

// --- 客户端请求 Payloads ---

// ReconnectPayload 按身份重新加入（断线后换了新连接）
type ReconnectPayload struct {
	PlayerID string `json:"player_id"`
}

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// GameSettings 创建房间时可选的游戏设置，非正数表示使用默认值
type GameSettings struct {
	TotalRounds     int   `json:"total_rounds,omitempty"`
	RoundTimeLimit  int64 `json:"round_time_limit,omitempty"`  // 毫秒
	VotingTimeLimit int64 `json:"voting_time_limit,omitempty"` // 毫秒
	ImposterCount   int   `json:"imposter_count,omitempty"`
}

// CreateRoomPayload 创建房间请求
type CreateRoomPayload struct {
	PlayerName string       `json:"player_name"`
	Settings   GameSettings `json:"settings"`
}

// JoinRoomPayload 加入房间请求
type JoinRoomPayload struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

// RoomCodePayload 只携带房间号的请求（开始、离开、查询结果）
type RoomCodePayload struct {
	RoomCode string `json:"room_code"`
}

// SubmitChoicePayload 回答或投票请求，ChoiceID 为被选中的玩家 ID
type SubmitChoicePayload struct {
	RoomCode string `json:"room_code"`
	ChoiceID string `json:"choice_id"`
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功响应
type ConnectedPayload struct {
	PlayerID string `json:"player_id"`
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// PlayerInfo 玩家信息
type PlayerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	IsConnected bool   `json:"is_connected"`
	IsHost      bool   `json:"is_host"`
}

// QuestionInfo 问题信息
type QuestionInfo struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

// RoomSnapshot 房间完整状态快照，所有房间事件都携带它
type RoomSnapshot struct {
	Code             string            `json:"code"`
	Phase            string            `json:"phase"`
	Players          []PlayerInfo      `json:"players"`
	HostID           string            `json:"host_id"`
	CurrentRound     int               `json:"current_round"`
	TotalRounds      int               `json:"total_rounds"`
	Question         *QuestionInfo     `json:"question,omitempty"`
	ImposterQuestion *QuestionInfo     `json:"imposter_question,omitempty"`
	ImposterIDs      []string          `json:"imposter_ids"`
	Answers          map[string]string `json:"answers"`
	Votes            map[string]string `json:"votes"`
	UsedQuestionIDs  []string          `json:"used_question_ids"`
	RoundTimeLimit   int64             `json:"round_time_limit"`  // 毫秒
	VotingTimeLimit  int64             `json:"voting_time_limit"` // 毫秒
	ImposterCount    int               `json:"imposter_count"`
	Deadline         int64             `json:"deadline,omitempty"` // 当前阶段截止时间（Unix 毫秒）
}

// Player 在快照中查找玩家
func (s *RoomSnapshot) Player(id string) (PlayerInfo, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerInfo{}, false
}

// RoomPayload 通用房间事件
type RoomPayload struct {
	Room *RoomSnapshot `json:"room"`
}

// RoomJoinedPayload 创建/加入房间成功响应
type RoomJoinedPayload struct {
	Room   *RoomSnapshot `json:"room"`
	Player PlayerInfo    `json:"player"`
}

// RosterChangedPayload 玩家列表变化
type RosterChangedPayload struct {
	Room     *RoomSnapshot `json:"room"`
	PlayerID string        `json:"player_id"`
	Reason   string        `json:"reason"` // joined/left/reconnected
}

// RoundEndedPayload 本轮结算
type RoundEndedPayload struct {
	Room   *RoomSnapshot  `json:"room"`
	Awards map[string]int `json:"awards"` // 投票者 ID → 本轮得分
}

// GameEndedPayload 游戏结束
type GameEndedPayload struct {
	Room      *RoomSnapshot `json:"room"`
	Standings []PlayerInfo  `json:"standings"`
}

// ResultsPayload 最终排名查询结果
type ResultsPayload struct {
	RoomCode  string       `json:"room_code"`
	Standings []PlayerInfo `json:"standings"`
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
