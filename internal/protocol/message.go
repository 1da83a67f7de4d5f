package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgReconnect MessageType = "reconnect" // 按身份重新加入
	MsgPing      MessageType = "ping"      // 心跳 ping

	// 房间操作
	MsgCreateRoom MessageType = "create_room" // 创建房间
	MsgJoinRoom   MessageType = "join_room"   // 加入房间
	MsgLeaveRoom  MessageType = "leave_room"  // 离开房间
	MsgStartGame  MessageType = "start_game"  // 房主开始游戏

	// 游戏操作
	MsgSubmitAnswer MessageType = "submit_answer" // 回答问题（选择一名玩家）
	MsgSubmitVote   MessageType = "submit_vote"   // 投票指认内鬼

	// 查询
	MsgGetResults MessageType = "get_results" // 获取已结束对局的最终排名
)

// 服务端 → 客户端 消息类型
const (
	// 连接相关
	MsgConnected MessageType = "connected" // 连接成功
	MsgPong      MessageType = "pong"      // 心跳 pong

	// 房间相关
	MsgRoomCreated   MessageType = "room_created"   // 房间创建成功
	MsgRoomJoined    MessageType = "room_joined"    // 加入房间成功
	MsgRosterChanged MessageType = "roster_changed" // 玩家列表变化（加入/离开/重连/换房主）

	// 游戏流程
	MsgGameStarted   MessageType = "game_started"   // 游戏开始
	MsgRoundStarted  MessageType = "round_started"  // 新一轮开始
	MsgVotingStarted MessageType = "voting_started" // 进入投票
	MsgGameUpdated   MessageType = "game_updated"   // 有人提交了回答或投票
	MsgRoundEnded    MessageType = "round_ended"    // 本轮结算
	MsgGameEnded     MessageType = "game_ended"     // 游戏结束
	MsgResults       MessageType = "results"        // 最终排名查询结果

	// 错误
	MsgError MessageType = "error" // 错误消息
)
