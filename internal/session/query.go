package session

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"
)

// Get reports the session's status. Asking counts as activity.
func (m *Manager) Get(ctx context.Context, id string) (*SessionInfo, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.touch(m.now().UTC())
	info := sess.info()
	return &info, nil
}

// List returns all live sessions, oldest first.
func (m *Manager) List(ctx context.Context) []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	result := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		info := s.info()
		if info.Status == StatusDestroyed || info.Status == StatusCreating {
			continue
		}
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Touch records activity on a live session.
func (m *Manager) Touch(id string) error {
	sess, err := m.lookup(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.touch(m.now().UTC())
	return nil
}

// Destroy tears the session down. It waits for an in-flight execution or
// install to finish first. Destroying an already destroyed session is a
// no-op; ids that were never issued return ErrNotFound.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sess.execMu.Lock()
	defer sess.execMu.Unlock()
	return m.destroyLocked(ctx, sess)
}

// destroyLocked removes the container and output directory exactly once.
// The caller holds sess.execMu.
func (m *Manager) destroyLocked(ctx context.Context, sess *Session) error {
	sess.stateMu.Lock()
	if sess.status == StatusDestroyed {
		sess.stateMu.Unlock()
		return nil
	}
	sess.status = StatusDestroyed
	sess.destroyedAt = m.now().UTC()
	for _, job := range sess.jobs {
		if job.state == InstallInstalling {
			job.state = InstallFailed
			job.detail = "session destroyed"
			job.finishedAt = sess.destroyedAt
		}
	}
	sess.jobs = nil
	containerID := sess.ContainerID
	sess.stateMu.Unlock()

	var removeErr error
	if containerID != "" {
		if err := m.runtime.RemoveContainer(ctx, containerID); err != nil {
			m.logger.Error("remove container", "session_id", sess.ID, "container", shortID(containerID), "error", err)
			removeErr = fmt.Errorf("remove container: %w", err)
		}
	}
	if err := os.RemoveAll(sess.OutputDir); err != nil {
		m.logger.Warn("remove output dir", "session_id", sess.ID, "error", err)
	}

	m.logger.Info("session destroyed", "session_id", sess.ID)
	return removeErr
}

// IdleSessions returns the ids of ready sessions inactive for longer than
// threshold.
func (m *Manager) IdleSessions(threshold time.Duration) []string {
	now := m.now().UTC()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, s := range m.sessions {
		s.stateMu.RLock()
		idle := s.status == StatusReady && now.Sub(s.lastActivity) > threshold
		s.stateMu.RUnlock()
		if idle {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ReapIfIdle destroys the session if it is still ready and idle once its
// exec lock is held. A session busy with an execution or install is left
// alone and reported as not reaped.
func (m *Manager) ReapIfIdle(ctx context.Context, id string, threshold time.Duration) (bool, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if !sess.execMu.TryLock() {
		return false, nil
	}
	defer sess.execMu.Unlock()

	sess.stateMu.RLock()
	idle := sess.status == StatusReady && m.now().UTC().Sub(sess.lastActivity) > threshold
	sess.stateMu.RUnlock()
	if !idle {
		return false, nil
	}

	if err := m.destroyLocked(ctx, sess); err != nil {
		return true, err
	}
	return true, nil
}

// PruneDestroyed forgets destroyed sessions older than age. Their ids then
// report ErrNotFound on Destroy as well.
func (m *Manager) PruneDestroyed(age time.Duration) int {
	cutoff := m.now().UTC().Add(-age)

	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, s := range m.sessions {
		s.stateMu.RLock()
		gone := s.status == StatusDestroyed && s.destroyedAt.Before(cutoff)
		s.stateMu.RUnlock()
		if gone {
			delete(m.sessions, id)
			pruned++
		}
	}
	return pruned
}

// Owns reports whether sessionID names a session that is being created or
// is live, that is one whose container must not be removed from outside.
func (m *Manager) Owns(sessionID string) bool {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	return ok && s.Status() != StatusDestroyed
}

// DestroyAll tears down every live session. Used on shutdown.
func (m *Manager) DestroyAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Destroy(ctx, id); err != nil {
			m.logger.Error("destroy on shutdown", "session_id", id, "error", err)
		}
	}
}
