package session

import (
	"context"

	"github.com/p-arndt/codebox/internal/docker"
	"github.com/p-arndt/codebox/internal/pool"
)

// Runtime is the container engine as seen by the session manager.
type Runtime interface {
	CreateContainer(ctx context.Context, opts docker.CreateOpts) (string, error)
	Exec(ctx context.Context, containerID string, opts docker.ExecOpts) (*docker.ExecOutput, error)
	CopyFile(ctx context.Context, containerID, dstPath string, content []byte) error
	RemoveContainer(ctx context.Context, containerID string) error
}

// TaskPool runs install jobs in the background.
type TaskPool interface {
	Submit(name string, task pool.Task) error
}
