package reaper

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/codebox/internal/docker"
)

// MockSessionManager mocks the SessionManager interface.
type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) IdleSessions(threshold time.Duration) []string {
	args := m.Called(threshold)
	if ids := args.Get(0); ids != nil {
		return ids.([]string)
	}
	return nil
}

func (m *MockSessionManager) ReapIfIdle(ctx context.Context, id string, threshold time.Duration) (bool, error) {
	args := m.Called(ctx, id, threshold)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionManager) PruneDestroyed(age time.Duration) int {
	args := m.Called(age)
	return args.Int(0)
}

func (m *MockSessionManager) Owns(sessionID string) bool {
	args := m.Called(sessionID)
	return args.Bool(0)
}

// MockReaperDocker mocks the ReaperDocker interface.
type MockReaperDocker struct {
	mock.Mock
}

func (m *MockReaperDocker) RemoveContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

func (m *MockReaperDocker) ListSandboxContainers(ctx context.Context) ([]docker.ContainerInfo, error) {
	args := m.Called(ctx)
	if containers := args.Get(0); containers != nil {
		return containers.([]docker.ContainerInfo), args.Error(1)
	}
	return nil, args.Error(1)
}
