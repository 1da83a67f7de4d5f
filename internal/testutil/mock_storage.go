//go:build !production

package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/imposter-party/internal/protocol"
)

// MockRoomStore 实现 types.RoomStore 的 mock
type MockRoomStore struct {
	mock.Mock
}

func (m *MockRoomStore) SaveRoom(ctx context.Context, room *protocol.RoomSnapshot) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomStore) DeleteRoom(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockRoomStore) SaveResults(ctx context.Context, code string, standings []protocol.PlayerInfo) error {
	args := m.Called(ctx, code, standings)
	return args.Error(0)
}

func (m *MockRoomStore) LoadResults(ctx context.Context, code string) ([]protocol.PlayerInfo, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]protocol.PlayerInfo), args.Error(1)
}

func (m *MockRoomStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
