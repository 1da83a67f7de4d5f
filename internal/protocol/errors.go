package protocol

// 错误码
const (
	ErrCodeUnknown      = 1000
	ErrCodeInvalidMsg   = 1001
	ErrCodeRateLimit    = 1002 // 速率限制
	ErrCodeIdentityUsed = 1003 // 重连的身份仍在线
	ErrCodeStillSeated  = 1004 // 当前身份仍在房间中在线

	ErrCodeRoomNotFound       = 2001
	ErrCodeRoomFull           = 2002
	ErrCodeNotInRoom          = 2003
	ErrCodeGameStarted        = 2004 // 游戏已开始
	ErrCodeInvalidName        = 2005
	ErrCodeCodeSpaceExhausted = 2006
	ErrCodeResultsNotFound    = 2007

	ErrCodeUnauthorized        = 3001 // 非房主
	ErrCodeInsufficientPlayers = 3002
	ErrCodeInvalidChoice       = 3003

	ErrCodeServerMaintenance = 5003 // 服务器维护中
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:             "Something went wrong",
	ErrCodeInvalidMsg:          "Invalid message format",
	ErrCodeRateLimit:           "Too many requests, slow down",
	ErrCodeIdentityUsed:        "That player is still connected",
	ErrCodeStillSeated:         "Leave your current game before switching player",
	ErrCodeRoomNotFound:        "Game not found",
	ErrCodeRoomFull:            "Game is full",
	ErrCodeNotInRoom:           "You are not in this game",
	ErrCodeGameStarted:         "Game already in progress",
	ErrCodeInvalidName:         "Please choose a name between 1 and 24 characters",
	ErrCodeCodeSpaceExhausted:  "No free game codes, try again later",
	ErrCodeResultsNotFound:     "No results for this game",
	ErrCodeUnauthorized:        "Only host can start the game",
	ErrCodeInsufficientPlayers: "Need at least 3 players to start",
	ErrCodeInvalidChoice:       "That player is not in this game",
	ErrCodeServerMaintenance:   "Server is under maintenance",
}
