package handler

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/palemoky/imposter-party/internal/config"
	"github.com/palemoky/imposter-party/internal/game/room"
	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/protocol/codec"
	"github.com/palemoky/imposter-party/internal/testutil"
	"github.com/palemoky/imposter-party/internal/types"
)

// fakeServer 同时充当 ServerContext 和房间广播器
type fakeServer struct {
	mu          sync.Mutex
	maintenance bool
	online      map[string]types.ClientInterface
	subs        map[string]map[string]types.ClientInterface
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		online: make(map[string]types.ClientInterface),
		subs:   make(map[string]map[string]types.ClientInterface),
	}
}

func (f *fakeServer) IsMaintenanceMode() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maintenance
}

func (f *fakeServer) Subscribe(code string, client types.ClientInterface) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code = room.NormalizeCode(code)
	if f.subs[code] == nil {
		f.subs[code] = make(map[string]types.ClientInterface)
	}
	f.subs[code][client.GetID()] = client
}

func (f *fakeServer) Unsubscribe(code string, client types.ClientInterface) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[room.NormalizeCode(code)], client.GetID())
}

func (f *fakeServer) Rebind(client types.ClientInterface, playerID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.online[playerID]; ok && existing != client {
		return false
	}
	delete(f.online, client.GetID())
	client.SetID(playerID)
	f.online[playerID] = client
	return true
}

func (f *fakeServer) BroadcastToRoom(code string, msg *protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.subs[code] {
		c.SendMessage(msg)
	}
}

func (f *fakeServer) subscribed(code, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[room.NormalizeCode(code)][id]
	return ok
}

func (f *fakeServer) connect(c types.ClientInterface) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[c.GetID()] = c
}

type testEnv struct {
	h     *Handler
	srv   *fakeServer
	rm    *room.RoomManager
	sched *room.ManualScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.GameConfig{
		DefaultRounds:     1,
		MaxRounds:         20,
		RoundTimeLimit:    30,
		VotingTimeLimit:   20,
		MaxTimeLimit:      300,
		ImposterCount:     1,
		MinPlayers:        3,
		MaxPlayers:        12,
		StartDelay:        1000,
		IntermissionDelay: 3,
		LobbyTimeout:      30,
		EmptyRoomTimeout:  60,
		FinishedRetention: 10,
		CleanupInterval:   60,
		ResultsCacheSize:  16,
	}
	srv := newFakeServer()
	sched := room.NewManualScheduler(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := zap.NewNop().Sugar()
	rm, err := room.NewRoomManager(cfg, srv,
		room.WithScheduler(sched), room.WithRandSeed(7), room.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(rm.Shutdown)

	return &testEnv{h: NewHandler(srv, rm, logger), srv: srv, rm: rm, sched: sched}
}

func (e *testEnv) client(id string) *testutil.SimpleClient {
	c := testutil.NewSimpleClient(id)
	e.srv.connect(c)
	return c
}

func send(t *testing.T, h *Handler, c types.ClientInterface, msgType protocol.MessageType, payload any) {
	t.Helper()
	h.Handle(c, codec.MustNewMessage(msgType, payload))
}

func parse[T any](t *testing.T, msg *protocol.Message) *T {
	t.Helper()
	require.NotNil(t, msg)
	p, err := codec.ParsePayload[T](msg)
	require.NoError(t, err)
	return p
}

func lastOfType(c *testutil.SimpleClient, msgType protocol.MessageType) *protocol.Message {
	msgs := c.SentMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == msgType {
			return msgs[i]
		}
	}
	return nil
}

func lastErrorCode(t *testing.T, c *testutil.SimpleClient) int {
	t.Helper()
	return parse[protocol.ErrorPayload](t, lastOfType(c, protocol.MsgError)).Code
}

// createLobby p1 创建房间，p2..pn 加入
func (e *testEnv) createLobby(t *testing.T, n int) (string, []*testutil.SimpleClient) {
	t.Helper()

	clients := []*testutil.SimpleClient{e.client("p1")}
	send(t, e.h, clients[0], protocol.MsgCreateRoom, protocol.CreateRoomPayload{PlayerName: "Alice"})
	created := parse[protocol.RoomJoinedPayload](t, lastOfType(clients[0], protocol.MsgRoomCreated))
	code := created.Room.Code

	names := []string{"Bob", "Carol", "Dave", "Erin"}
	for i := 1; i < n; i++ {
		c := e.client("p" + strconv.Itoa(i+1))
		send(t, e.h, c, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomCode: code, PlayerName: names[i-1]})
		require.NotNil(t, lastOfType(c, protocol.MsgRoomJoined))
		clients = append(clients, c)
	}
	return code, clients
}

func TestHandle_UnknownType(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	c := e.client("p1")

	e.h.Handle(c, &protocol.Message{Type: "bogus"})

	assert.Equal(t, protocol.ErrCodeInvalidMsg, lastErrorCode(t, c))
}

func TestHandle_MalformedPayload(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	c := e.client("p1")

	e.h.Handle(c, &protocol.Message{Type: protocol.MsgJoinRoom, Payload: json.RawMessage(`[1,2]`)})
	assert.Equal(t, protocol.ErrCodeInvalidMsg, lastErrorCode(t, c))

	e.h.Handle(c, &protocol.Message{Type: protocol.MsgStartGame})
	assert.Equal(t, protocol.ErrCodeInvalidMsg, lastErrorCode(t, c), "缺少房间号")
}

func TestHandle_Ping(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	c := e.client("p1")

	send(t, e.h, c, protocol.MsgPing, protocol.PingPayload{Timestamp: 12345})

	pong := parse[protocol.PongPayload](t, lastOfType(c, protocol.MsgPong))
	assert.Equal(t, int64(12345), pong.ClientTimestamp)
	assert.Positive(t, pong.ServerTimestamp)
}

func TestHandleCreateRoom(t *testing.T) {
	t.Parallel()

	t.Run("成功创建并订阅", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		c := e.client("p1")

		send(t, e.h, c, protocol.MsgCreateRoom, protocol.CreateRoomPayload{
			PlayerName: "  Alice ",
			Settings:   protocol.GameSettings{TotalRounds: 3},
		})

		created := parse[protocol.RoomJoinedPayload](t, lastOfType(c, protocol.MsgRoomCreated))
		assert.Equal(t, "lobby", created.Room.Phase)
		assert.Equal(t, 3, created.Room.TotalRounds)
		assert.Equal(t, "p1", created.Room.HostID)
		assert.Equal(t, "Alice", created.Player.Name)
		assert.True(t, created.Player.IsHost)
		assert.True(t, e.srv.subscribed(created.Room.Code, "p1"))
	})

	t.Run("名字非法", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		c := e.client("p1")

		send(t, e.h, c, protocol.MsgCreateRoom, protocol.CreateRoomPayload{PlayerName: "   "})

		assert.Equal(t, protocol.ErrCodeInvalidName, lastErrorCode(t, c))
		assert.Equal(t, 0, e.rm.RoomCount())
	})

	t.Run("维护模式拒绝创建", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		e.srv.maintenance = true
		c := e.client("p1")

		send(t, e.h, c, protocol.MsgCreateRoom, protocol.CreateRoomPayload{PlayerName: "Alice"})

		assert.Equal(t, protocol.ErrCodeServerMaintenance, lastErrorCode(t, c))
		assert.Equal(t, 0, e.rm.RoomCount())
	})
}

func TestHandleJoinRoom(t *testing.T) {
	t.Parallel()

	t.Run("加入后其他人收到名单变化", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		code, clients := e.createLobby(t, 2)

		joined := parse[protocol.RoomJoinedPayload](t, lastOfType(clients[1], protocol.MsgRoomJoined))
		assert.Equal(t, "Bob", joined.Player.Name)
		assert.Len(t, joined.Room.Players, 2)
		assert.True(t, e.srv.subscribed(code, "p2"))

		roster := parse[protocol.RosterChangedPayload](t, lastOfType(clients[0], protocol.MsgRosterChanged))
		assert.Equal(t, "p2", roster.PlayerID)
		assert.Equal(t, "joined", roster.Reason)
	})

	t.Run("房间号不区分大小写", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		code, _ := e.createLobby(t, 1)
		c := e.client("p9")

		send(t, e.h, c, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomCode: " " + strings.ToLower(code) + " ", PlayerName: "Zed"})

		assert.NotNil(t, lastOfType(c, protocol.MsgRoomJoined))
		assert.True(t, e.srv.subscribed(code, "p9"))
	})

	t.Run("房间不存在时不保留订阅", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		c := e.client("p1")

		send(t, e.h, c, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomCode: "ZZZZZZ", PlayerName: "Bob"})

		assert.Equal(t, protocol.ErrCodeRoomNotFound, lastErrorCode(t, c))
		assert.False(t, e.srv.subscribed("ZZZZZZ", "p1"))
	})

	t.Run("游戏已开始", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		code, clients := e.createLobby(t, 3)
		send(t, e.h, clients[0], protocol.MsgStartGame, protocol.RoomCodePayload{RoomCode: code})

		late := e.client("p9")
		send(t, e.h, late, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomCode: code, PlayerName: "Late"})

		assert.Equal(t, protocol.ErrCodeGameStarted, lastErrorCode(t, late))
		assert.False(t, e.srv.subscribed(code, "p9"))
	})
}

func TestHandleStartGame(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	code, clients := e.createLobby(t, 2)

	send(t, e.h, clients[0], protocol.MsgStartGame, protocol.RoomCodePayload{RoomCode: code})
	assert.Equal(t, protocol.ErrCodeInsufficientPlayers, lastErrorCode(t, clients[0]))

	c3 := e.client("p3")
	send(t, e.h, c3, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomCode: code, PlayerName: "Carol"})

	send(t, e.h, clients[1], protocol.MsgStartGame, protocol.RoomCodePayload{RoomCode: code})
	assert.Equal(t, protocol.ErrCodeUnauthorized, lastErrorCode(t, clients[1]))

	send(t, e.h, clients[0], protocol.MsgStartGame, protocol.RoomCodePayload{RoomCode: code})
	for _, c := range []*testutil.SimpleClient{clients[0], clients[1], c3} {
		assert.NotNil(t, lastOfType(c, protocol.MsgGameStarted))
	}

	e.sched.Advance(time.Second)
	started := parse[protocol.RoomPayload](t, lastOfType(c3, protocol.MsgRoundStarted))
	assert.Equal(t, 1, started.Room.CurrentRound)
	assert.Equal(t, "question", started.Room.Phase)
}

func TestHandle_FullGameAndResults(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	code, clients := e.createLobby(t, 3)

	send(t, e.h, clients[0], protocol.MsgGetResults, protocol.RoomCodePayload{RoomCode: code})
	assert.Equal(t, protocol.ErrCodeResultsNotFound, lastErrorCode(t, clients[0]))

	send(t, e.h, clients[0], protocol.MsgStartGame, protocol.RoomCodePayload{RoomCode: code})
	e.sched.Advance(time.Second)

	send(t, e.h, clients[0], protocol.MsgSubmitAnswer, protocol.SubmitChoicePayload{RoomCode: code, ChoiceID: "nobody"})
	assert.Equal(t, protocol.ErrCodeInvalidChoice, lastErrorCode(t, clients[0]))

	for _, c := range clients {
		send(t, e.h, c, protocol.MsgSubmitAnswer, protocol.SubmitChoicePayload{RoomCode: code, ChoiceID: "p1"})
	}
	voting := parse[protocol.RoomPayload](t, lastOfType(clients[2], protocol.MsgVotingStarted))
	require.Len(t, voting.Room.ImposterIDs, 1)
	imposter := voting.Room.ImposterIDs[0]

	for _, c := range clients {
		send(t, e.h, c, protocol.MsgSubmitVote, protocol.SubmitChoicePayload{RoomCode: code, ChoiceID: imposter})
	}
	ended := parse[protocol.RoundEndedPayload](t, lastOfType(clients[0], protocol.MsgRoundEnded))
	assert.Len(t, ended.Awards, 3)

	e.sched.Advance(3 * time.Second)
	gameEnded := parse[protocol.GameEndedPayload](t, lastOfType(clients[1], protocol.MsgGameEnded))
	assert.Equal(t, "finished", gameEnded.Room.Phase)

	send(t, e.h, clients[2], protocol.MsgGetResults, protocol.RoomCodePayload{RoomCode: code})
	results := parse[protocol.ResultsPayload](t, lastOfType(clients[2], protocol.MsgResults))
	assert.Equal(t, code, results.RoomCode)
	require.Len(t, results.Standings, 3)
	for _, p := range results.Standings {
		assert.Equal(t, room.PointsPerCorrectVote, p.Score)
	}
}

func TestHandleLeaveRoom(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	code, clients := e.createLobby(t, 2)

	send(t, e.h, clients[1], protocol.MsgLeaveRoom, protocol.RoomCodePayload{RoomCode: code})

	assert.False(t, e.srv.subscribed(code, "p2"))
	roster := parse[protocol.RosterChangedPayload](t, lastOfType(clients[0], protocol.MsgRosterChanged))
	assert.Equal(t, "left", roster.Reason)
	assert.Equal(t, "p2", roster.PlayerID)

	stranger := e.client("p9")
	send(t, e.h, stranger, protocol.MsgLeaveRoom, protocol.RoomCodePayload{RoomCode: code})
	assert.Equal(t, protocol.ErrCodeNotInRoom, lastErrorCode(t, stranger))
}

func TestHandleReconnect(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	code, clients := e.createLobby(t, 2)

	// 身份仍在线时拒绝
	intruder := e.client("tmp-1")
	send(t, e.h, intruder, protocol.MsgReconnect, protocol.ReconnectPayload{PlayerID: "p2"})
	assert.Equal(t, protocol.ErrCodeIdentityUsed, lastErrorCode(t, intruder))
	assert.Equal(t, "tmp-1", intruder.GetID())

	// p2 掉线
	e.h.HandleDisconnect(clients[1])
	e.srv.mu.Lock()
	delete(e.srv.online, "p2")
	e.srv.mu.Unlock()
	snap := e.rm.GetRoom(code).Snapshot()
	p2, ok := snap.Player("p2")
	require.True(t, ok)
	assert.False(t, p2.IsConnected)

	// 新连接接管身份并回到房间
	fresh := e.client("tmp-2")
	send(t, e.h, fresh, protocol.MsgReconnect, protocol.ReconnectPayload{PlayerID: "p2"})
	connected := parse[protocol.ConnectedPayload](t, lastOfType(fresh, protocol.MsgConnected))
	assert.Equal(t, "p2", connected.PlayerID)
	assert.Equal(t, "p2", fresh.GetID())

	send(t, e.h, fresh, protocol.MsgJoinRoom, protocol.JoinRoomPayload{RoomCode: code})
	joined := parse[protocol.RoomJoinedPayload](t, lastOfType(fresh, protocol.MsgRoomJoined))
	assert.True(t, joined.Player.IsConnected)
	assert.Equal(t, "Bob", joined.Player.Name)

	roster := parse[protocol.RosterChangedPayload](t, lastOfType(clients[0], protocol.MsgRosterChanged))
	assert.Equal(t, "reconnected", roster.Reason)
}

func TestHandleReconnect_SeatedIdentity(t *testing.T) {
	t.Parallel()

	t.Run("房间中在线时拒绝切换身份", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		code, clients := e.createLobby(t, 3)
		host := clients[0]

		send(t, e.h, host, protocol.MsgReconnect, protocol.ReconnectPayload{PlayerID: "unused-id"})

		assert.Equal(t, protocol.ErrCodeStillSeated, lastErrorCode(t, host))
		assert.Equal(t, "p1", host.GetID())
		assert.Nil(t, lastOfType(host, protocol.MsgConnected))
		assert.Equal(t, "p1", e.rm.GetRoom(code).HostID())
		assert.Equal(t, []string{code}, e.rm.RoomsOf("p1"))
	})

	t.Run("游戏中同样拒绝", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		code, clients := e.createLobby(t, 3)
		send(t, e.h, clients[0], protocol.MsgStartGame, protocol.RoomCodePayload{RoomCode: code})
		e.sched.Advance(time.Second)

		send(t, e.h, clients[2], protocol.MsgReconnect, protocol.ReconnectPayload{PlayerID: "unused-id"})

		assert.Equal(t, protocol.ErrCodeStillSeated, lastErrorCode(t, clients[2]))
		assert.Equal(t, "p3", clients[2].GetID())
	})

	t.Run("离开房间后可以切换", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		code, clients := e.createLobby(t, 2)
		send(t, e.h, clients[1], protocol.MsgLeaveRoom, protocol.RoomCodePayload{RoomCode: code})

		send(t, e.h, clients[1], protocol.MsgReconnect, protocol.ReconnectPayload{PlayerID: "unused-id"})

		connected := parse[protocol.ConnectedPayload](t, lastOfType(clients[1], protocol.MsgConnected))
		assert.Equal(t, "unused-id", connected.PlayerID)
		assert.Equal(t, "unused-id", clients[1].GetID())
	})

	t.Run("重连到自己的身份不受影响", func(t *testing.T) {
		t.Parallel()
		e := newTestEnv(t)
		_, clients := e.createLobby(t, 1)

		send(t, e.h, clients[0], protocol.MsgReconnect, protocol.ReconnectPayload{PlayerID: "p1"})

		assert.NotNil(t, lastOfType(clients[0], protocol.MsgConnected))
		assert.Nil(t, lastOfType(clients[0], protocol.MsgError))
	})
}

func TestHandleDisconnect_HostMigrates(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	code, clients := e.createLobby(t, 3)

	e.h.HandleDisconnect(clients[0])

	assert.Equal(t, "p2", e.rm.GetRoom(code).HostID())
	roster := parse[protocol.RosterChangedPayload](t, lastOfType(clients[2], protocol.MsgRosterChanged))
	assert.Equal(t, "p2", roster.Room.HostID)
}

func TestHandle_WithMockClient(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)

	c := new(testutil.MockClient)
	c.On("GetID").Return("p1")
	c.On("SendMessage", mock.MatchedBy(func(m *protocol.Message) bool {
		return m.Type == protocol.MsgError
	})).Once()

	send(t, e.h, c, protocol.MsgSubmitVote, protocol.SubmitChoicePayload{RoomCode: "ABCDEF", ChoiceID: "p2"})

	c.AssertExpectations(t)
}
