package image

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/codebox/internal/store"
)

// MockRuntime mocks the Runtime interface.
type MockRuntime struct {
	mock.Mock
}

func (m *MockRuntime) ImageExists(ctx context.Context, ref string) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockRuntime) BuildImage(ctx context.Context, dockerfilePath, tag string, out io.Writer) error {
	args := m.Called(ctx, dockerfilePath, tag, out)
	return args.Error(0)
}

func (m *MockRuntime) PullImage(ctx context.Context, ref string, out io.Writer) error {
	args := m.Called(ctx, ref, out)
	return args.Error(0)
}

// MockBuildRecords mocks the BuildRecords interface.
type MockBuildRecords struct {
	mock.Mock
}

func (m *MockBuildRecords) GetImageBuild(image string) (*store.ImageBuild, error) {
	args := m.Called(image)
	if b := args.Get(0); b != nil {
		return b.(*store.ImageBuild), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBuildRecords) RecordImageBuild(b *store.ImageBuild) error {
	args := m.Called(b)
	return args.Error(0)
}
