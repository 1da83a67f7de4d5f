package room

import (
	"strings"

	"github.com/valyala/fastrand"
)

const (
	RoomCodeLength  = 6                                 // 房间号长度
	RoomCodeChars   = "ABCDEFGHJKMNPQRSTUVWXYZ23456789" // 去掉易混淆的 I/L/O/0/1
	maxCodeAttempts = 1000                              // 生成房间号的最大尝试次数
)

// GenerateRoomCode 随机生成房间号，不检查是否冲突
func GenerateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		code[i] = RoomCodeChars[fastrand.Uint32n(uint32(len(RoomCodeChars)))]
	}
	return string(code)
}

// NormalizeCode 规范化玩家输入的房间号
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
