package room

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/palemoky/imposter-party/internal/config"
	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/protocol/codec"
	"github.com/palemoky/imposter-party/internal/testutil"
)

var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	rm    *RoomManager
	sched *ManualScheduler
	bc    *testutil.RecordingBroadcaster
	cfg   config.GameConfig
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		DefaultRounds:         5,
		MaxRounds:             20,
		RoundTimeLimit:        30,
		VotingTimeLimit:       20,
		MaxTimeLimit:          300,
		ImposterCount:         1,
		MinPlayers:            3,
		MaxPlayers:            12,
		StartDelay:            1000,
		IntermissionDelay:     3,
		LobbyTimeout:          30,
		EmptyRoomTimeout:      60,
		FinishedRetention:     10,
		CleanupInterval:       60,
		ResultsCacheSize:      16,
		ShutdownTimeout:       30,
		ShutdownCheckInterval: 5,
	}
}

func newTestEnv(t *testing.T, mutate func(*config.GameConfig), opts ...Option) *testEnv {
	t.Helper()

	cfg := testGameConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	sched := NewManualScheduler(testEpoch)
	bc := testutil.NewRecordingBroadcaster()
	base := []Option{WithScheduler(sched), WithRandSeed(42), WithLogger(zap.NewNop().Sugar())}
	rm, err := NewRoomManager(cfg, bc, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(rm.Shutdown)
	return &testEnv{rm: rm, sched: sched, bc: bc, cfg: cfg}
}

// connectedCount 在线玩家数
func connectedCount(r *Room) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectedCountLocked()
}

// newLobby 创建房间，p1 为房主，其余玩家依次加入
func (e *testEnv) newLobby(t *testing.T, players int, settings protocol.GameSettings) *Room {
	t.Helper()

	room, err := e.rm.CreateRoom("p1", "Player1", settings)
	require.NoError(t, err)
	for i := 2; i <= players; i++ {
		_, err := e.rm.JoinRoom(room.Code, playerID(i), "Player"+strconv.Itoa(i))
		require.NoError(t, err)
	}
	return room
}

// startedRoom 创建房间并推进到第一轮答题
func (e *testEnv) startedRoom(t *testing.T, players int, settings protocol.GameSettings) *Room {
	t.Helper()

	room := e.newLobby(t, players, settings)
	require.NoError(t, e.rm.StartGame(room.Code, "p1"))
	e.sched.Advance(e.cfg.StartDelayDuration())
	require.Equal(t, PhaseQuestion, room.Phase())
	require.Equal(t, 1, room.CurrentRound())
	return room
}

// answerAll 所有在线玩家都选择 p1
func (e *testEnv) answerAll(t *testing.T, room *Room) {
	t.Helper()

	for _, p := range room.Snapshot().Players {
		if p.IsConnected {
			require.NoError(t, room.SubmitAnswer(p.ID, "p1"))
		}
	}
}

// voteAll 所有在线玩家投给 accused
func (e *testEnv) voteAll(t *testing.T, room *Room, accused func(voterID string) string) {
	t.Helper()

	for _, p := range room.Snapshot().Players {
		if p.IsConnected {
			require.NoError(t, room.SubmitVote(p.ID, accused(p.ID)))
		}
	}
}

func playerID(i int) string {
	return "p" + strconv.Itoa(i)
}

func parse[T any](t *testing.T, msg *protocol.Message) *T {
	t.Helper()

	require.NotNil(t, msg)
	payload, err := codec.ParsePayload[T](msg)
	require.NoError(t, err)
	return payload
}

// nonImposter 返回第一个不是内鬼的玩家
func nonImposter(snap *protocol.RoomSnapshot) string {
	imposters := map[string]bool{}
	for _, id := range snap.ImposterIDs {
		imposters[id] = true
	}
	for _, p := range snap.Players {
		if !imposters[p.ID] {
			return p.ID
		}
	}
	return ""
}
