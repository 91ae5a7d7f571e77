package api

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/codebox/internal/session"
	"github.com/p-arndt/codebox/protocol"
)

type MockToolInvoker struct {
	mock.Mock
}

func (m *MockToolInvoker) List() []protocol.ToolInfo {
	args := m.Called()
	if tools := args.Get(0); tools != nil {
		return tools.([]protocol.ToolInfo)
	}
	return nil
}

func (m *MockToolInvoker) Call(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	args := m.Called(ctx, name, raw)
	return args.Get(0), args.Error(1)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Get(ctx context.Context, id string) (*session.SessionInfo, error) {
	args := m.Called(ctx, id)
	if info := args.Get(0); info != nil {
		return info.(*session.SessionInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionService) List(ctx context.Context) []session.SessionInfo {
	args := m.Called(ctx)
	if sessions := args.Get(0); sessions != nil {
		return sessions.([]session.SessionInfo)
	}
	return nil
}

func (m *MockSessionService) Destroy(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
