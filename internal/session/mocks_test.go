package session

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/codebox/internal/docker"
	"github.com/p-arndt/codebox/internal/pool"
)

type MockRuntime struct {
	mock.Mock
}

func (m *MockRuntime) CreateContainer(ctx context.Context, opts docker.CreateOpts) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func (m *MockRuntime) Exec(ctx context.Context, containerID string, opts docker.ExecOpts) (*docker.ExecOutput, error) {
	args := m.Called(ctx, containerID, opts)
	if out := args.Get(0); out != nil {
		return out.(*docker.ExecOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRuntime) CopyFile(ctx context.Context, containerID, dstPath string, content []byte) error {
	args := m.Called(ctx, containerID, dstPath, content)
	return args.Error(0)
}

func (m *MockRuntime) RemoveContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

// manualPool queues submitted tasks until the test runs them.
type manualPool struct {
	mu    sync.Mutex
	tasks []pool.Task
	err   error
}

func (p *manualPool) Submit(name string, task pool.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *manualPool) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// runAll runs the queued tasks in order with ctx.
func (p *manualPool) runAll(ctx context.Context) {
	p.mu.Lock()
	tasks := p.tasks
	p.tasks = nil
	p.mu.Unlock()
	for _, t := range tasks {
		t(ctx)
	}
}
