package reaper

import (
	"context"
	"time"

	"github.com/p-arndt/codebox/internal/docker"
)

// SessionManager abstracts the registry operations needed by the reaper.
type SessionManager interface {
	IdleSessions(threshold time.Duration) []string
	ReapIfIdle(ctx context.Context, id string, threshold time.Duration) (bool, error)
	PruneDestroyed(age time.Duration) int
	Owns(sessionID string) bool
}

// ReaperDocker abstracts docker operations needed by the reaper.
type ReaperDocker interface {
	RemoveContainer(ctx context.Context, containerID string) error
	ListSandboxContainers(ctx context.Context) ([]docker.ContainerInfo, error)
}
