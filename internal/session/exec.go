package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/p-arndt/codebox/internal/docker"
	"github.com/p-arndt/codebox/protocol"
)

type ExecResult struct {
	Stdout     string         `json:"stdout"`
	Stderr     string         `json:"stderr"`
	ExitCode   int            `json:"exit_code"`
	Truncated  bool           `json:"truncated,omitempty"`
	Artifacts  []ArtifactLink `json:"artifacts"`
	DurationMs int64          `json:"duration_ms"`
}

// killTimeout bounds the cleanup exec that stops a timed-out script.
const killTimeout = 10 * time.Second

// Execute runs code with python3 inside the session's container. A non-zero
// exit status is part of the result. Files created or changed under the
// output directory are returned as artifact links.
func (m *Manager) Execute(ctx context.Context, id, code string, timeoutMs int) (*ExecResult, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sess.execMu.Lock()
	defer sess.execMu.Unlock()

	// Destroy may have won the lock.
	if !sess.setStatus(StatusReady, StatusExecuting) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	defer func() {
		sess.setStatus(StatusExecuting, StatusReady)
		sess.touch(m.now().UTC())
	}()

	timeout := m.execTimeout(timeoutMs)
	before, scanErr := m.scanOutputs(sess)

	execID := uuid.New().String()[:8]
	script := protocol.ScriptPath(execID)
	if err := m.runtime.CopyFile(ctx, sess.ContainerID, script, []byte(code)); err != nil {
		return nil, fmt.Errorf("write code: %w", err)
	}
	defer m.removeScript(sess, script)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := m.runtime.Exec(runCtx, sess.ContainerID, docker.ExecOpts{
		Cmd:     []string{"python3", script},
		WorkDir: protocol.ContainerOutputDir,
		Env:     []string{"PYTHONUNBUFFERED=1", "MPLBACKEND=Agg"},
	})
	duration := time.Since(start)

	if err != nil {
		if runCtx.Err() != nil {
			m.killScript(sess, script)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			m.logger.Warn("execution timed out", "session_id", id, "exec_id", execID, "timeout", timeout)
			te := &TimeoutError{Timeout: timeout}
			if out != nil {
				te.Stdout = out.Stdout
				te.Stderr = out.Stderr
			}
			return nil, te
		}
		return nil, fmt.Errorf("exec: %w", err)
	}

	result := &ExecResult{
		Stdout:     out.Stdout,
		Stderr:     out.Stderr,
		ExitCode:   out.ExitCode,
		Truncated:  out.Truncated,
		Artifacts:  []ArtifactLink{},
		DurationMs: duration.Milliseconds(),
	}

	if scanErr == nil {
		after, err := m.scanOutputs(sess)
		if err == nil {
			result.Artifacts = m.artifactLinks(sess.ID, changedFiles(before, after))
		} else {
			scanErr = err
		}
	}
	if scanErr != nil {
		m.logger.Warn("artifact scan failed, reporting none", "session_id", id, "error", scanErr)
	}

	m.logger.Info("code executed", "session_id", id, "exec_id", execID,
		"exit_code", result.ExitCode, "artifacts", len(result.Artifacts), "duration", duration)
	return result, nil
}

func (m *Manager) execTimeout(timeoutMs int) time.Duration {
	ceiling := m.cfg.Defaults.MaxExecTimeoutMs
	if timeoutMs <= 0 || timeoutMs > ceiling {
		timeoutMs = ceiling
	}
	return time.Duration(timeoutMs) * time.Millisecond
}

// killScript stops every process started from script.
func (m *Manager) killScript(sess *Session, script string) {
	if err := m.cleanupExec(sess, "pkill", "-9", "-f", script); err != nil {
		m.logger.Error("kill timed out script", "session_id", sess.ID, "script", script, "error", err)
	}
}

func (m *Manager) removeScript(sess *Session, script string) {
	if err := m.cleanupExec(sess, "rm", "-f", script); err != nil {
		m.logger.Warn("remove script", "session_id", sess.ID, "script", script, "error", err)
	}
}

// cleanupExec runs cmd in the session's container with its own deadline,
// since the caller's context may already be done.
func (m *Manager) cleanupExec(sess *Session, cmd ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()

	_, err := m.runtime.Exec(ctx, sess.ContainerID, docker.ExecOpts{Cmd: cmd})
	return err
}
