package apperrors

import (
	"github.com/palemoky/imposter-party/internal/protocol"
)

// GameError 游戏错误（注册表、房间和分发器共享），Message 直接展示给玩家
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

func newError(code int) *GameError {
	return &GameError{Code: code, Message: protocol.ErrorMessages[code]}
}

// 预定义错误
var (
	ErrRoomNotFound        = newError(protocol.ErrCodeRoomNotFound)
	ErrRoomFull            = newError(protocol.ErrCodeRoomFull)
	ErrNotInRoom           = newError(protocol.ErrCodeNotInRoom)
	ErrGameStarted         = newError(protocol.ErrCodeGameStarted)
	ErrInvalidName         = newError(protocol.ErrCodeInvalidName)
	ErrCodeSpaceExhausted  = newError(protocol.ErrCodeCodeSpaceExhausted)
	ErrResultsNotFound     = newError(protocol.ErrCodeResultsNotFound)
	ErrUnauthorized        = newError(protocol.ErrCodeUnauthorized)
	ErrInsufficientPlayers = newError(protocol.ErrCodeInsufficientPlayers)
	ErrInvalidChoice       = newError(protocol.ErrCodeInvalidChoice)
	ErrIdentityInUse       = newError(protocol.ErrCodeIdentityUsed)
	ErrStillSeated         = newError(protocol.ErrCodeStillSeated)
)
