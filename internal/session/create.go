package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/p-arndt/codebox/internal/docker"
)

func newSessionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// Create starts a new sandbox container and registers it as ready. If the
// container cannot be started nothing is registered and the returned error
// wraps ErrProvisioning.
func (m *Manager) Create(ctx context.Context) (*SessionInfo, error) {
	id := newSessionID()
	outputDir := filepath.Join(m.cfg.Artifacts.Dir, id)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: output dir: %v", ErrProvisioning, err)
	}
	// The interpreter inside the container may run as an unprivileged user.
	if err := os.Chmod(outputDir, 0o777); err != nil {
		os.RemoveAll(outputDir)
		return nil, fmt.Errorf("%w: output dir: %v", ErrProvisioning, err)
	}

	now := m.now().UTC()
	sess := &Session{
		ID:           id,
		Image:        m.cfg.DefaultImage,
		OutputDir:    outputDir,
		status:       StatusCreating,
		createdAt:    now,
		lastActivity: now,
		jobs:         make(map[string]*installJob),
	}

	// Held until the container is up so a concurrent Destroy waits for it.
	sess.execMu.Lock()
	defer sess.execMu.Unlock()

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	containerID, err := m.runtime.CreateContainer(ctx, docker.CreateOpts{
		SessionID: id,
		Image:     sess.Image,
		Defaults:  m.cfg.Defaults,
		OutputDir: outputDir,
	})
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		os.RemoveAll(outputDir)
		m.logger.Error("create session", "session_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}

	now = m.now().UTC()
	sess.stateMu.Lock()
	sess.ContainerID = containerID
	sess.status = StatusReady
	sess.createdAt = now
	sess.lastActivity = now
	sess.stateMu.Unlock()

	m.logger.Info("session created", "session_id", id, "container", shortID(containerID))

	info := sess.info()
	return &info, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
