package tools

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/codebox/internal/session"
)

type MockSandboxService struct {
	mock.Mock
}

func (m *MockSandboxService) Create(ctx context.Context) (*session.SessionInfo, error) {
	args := m.Called(ctx)
	if info := args.Get(0); info != nil {
		return info.(*session.SessionInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSandboxService) Execute(ctx context.Context, id, code string, timeoutMs int) (*session.ExecResult, error) {
	args := m.Called(ctx, id, code, timeoutMs)
	if res := args.Get(0); res != nil {
		return res.(*session.ExecResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSandboxService) StartInstall(ctx context.Context, id, pkg string) (*session.InstallStatus, error) {
	args := m.Called(ctx, id, pkg)
	if st := args.Get(0); st != nil {
		return st.(*session.InstallStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSandboxService) CheckInstall(ctx context.Context, id, pkg string) (*session.InstallStatus, error) {
	args := m.Called(ctx, id, pkg)
	if st := args.Get(0); st != nil {
		return st.(*session.InstallStatus), args.Error(1)
	}
	return nil, args.Error(1)
}
