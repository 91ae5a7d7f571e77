package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/p-arndt/codebox/internal/docker"
	"github.com/p-arndt/codebox/protocol"
)

type InstallState string

const (
	InstallInstalling InstallState = "installing"
	InstallSuccess    InstallState = "success"
	InstallFailed     InstallState = "failed"
)

type InstallStatus struct {
	SessionID  string       `json:"container_id"`
	Package    string       `json:"package_name"`
	State      InstallState `json:"status"`
	Detail     string       `json:"detail,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// installJob is guarded by the owning session's stateMu.
type installJob struct {
	pkg        string
	state      InstallState
	detail     string
	startedAt  time.Time
	finishedAt time.Time
}

func (j *installJob) snapshot(sessionID string) InstallStatus {
	st := InstallStatus{
		SessionID: sessionID,
		Package:   j.pkg,
		State:     j.state,
		Detail:    j.detail,
		StartedAt: j.startedAt,
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		st.FinishedAt = &t
	}
	return st
}

// pip requirement specifiers: name, extras and version constraints. A
// leading dash is refused so the value is never read as an option.
var packagePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-\[\],<>=!~*+]*$`)

const maxPackageLen = 200

// detailTailBytes caps the error output kept on a failed job.
const detailTailBytes = 2000

func validatePackage(pkg string) error {
	if len(pkg) > maxPackageLen || !packagePattern.MatchString(pkg) {
		return fmt.Errorf("%w: %q", ErrInvalidPackage, pkg)
	}
	return nil
}

// StartInstall schedules pip to install pkg into the session and returns at
// once. While a job for the same package is installing its status is
// returned instead of starting another; a finished job is replaced.
func (m *Manager) StartInstall(ctx context.Context, id, pkg string) (*InstallStatus, error) {
	pkg = strings.TrimSpace(pkg)
	if err := validatePackage(pkg); err != nil {
		return nil, err
	}
	sess, err := m.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := m.now().UTC()
	sess.touch(now)

	sess.stateMu.Lock()
	if sess.status == StatusDestroyed {
		sess.stateMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job, ok := sess.jobs[pkg]; ok && job.state == InstallInstalling {
		st := job.snapshot(sess.ID)
		sess.stateMu.Unlock()
		return &st, nil
	}
	job := &installJob{pkg: pkg, state: InstallInstalling, startedAt: now}
	sess.jobs[pkg] = job
	st := job.snapshot(sess.ID)
	sess.stateMu.Unlock()

	err = m.tasks.Submit("install "+pkg, func(ctx context.Context) {
		m.runInstall(ctx, sess, job)
	})
	if err != nil {
		m.finishInstall(sess, job, InstallFailed, "install not scheduled: "+err.Error())
		st = m.jobStatus(sess, job)
	}

	m.logger.Info("install requested", "session_id", id, "package", pkg)
	return &st, nil
}

// CheckInstall reports the latest install job for pkg in the session.
func (m *Manager) CheckInstall(ctx context.Context, id, pkg string) (*InstallStatus, error) {
	pkg = strings.TrimSpace(pkg)
	sess, err := m.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.touch(m.now().UTC())

	sess.stateMu.RLock()
	defer sess.stateMu.RUnlock()
	job, ok := sess.jobs[pkg]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrInstallJobNotFound, pkg, id)
	}
	st := job.snapshot(sess.ID)
	return &st, nil
}

// runInstall is the pool task behind StartInstall. It waits for the
// session's exec lock like any foreground execution.
func (m *Manager) runInstall(ctx context.Context, sess *Session, job *installJob) {
	if ctx.Err() != nil {
		m.finishInstall(sess, job, InstallFailed, "install cancelled: server shutting down")
		return
	}

	sess.execMu.Lock()
	defer sess.execMu.Unlock()

	if sess.Status() == StatusDestroyed {
		m.finishInstall(sess, job, InstallFailed, "session destroyed before install started")
		return
	}

	timeout := m.cfg.InstallTimeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m.logger.Info("installing package", "session_id", sess.ID, "package", job.pkg)
	out, err := m.runtime.Exec(runCtx, sess.ContainerID, docker.ExecOpts{
		Cmd:     []string{"pip", "install", "--no-cache-dir", job.pkg},
		WorkDir: protocol.ContainerWorkDir,
	})
	sess.touch(m.now().UTC())

	switch {
	case err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		m.finishInstall(sess, job, InstallFailed, fmt.Sprintf("install timed out after %s", timeout))
	case err != nil:
		m.finishInstall(sess, job, InstallFailed, err.Error())
	case out.ExitCode != 0:
		detail := tail(out.Stderr, detailTailBytes)
		if detail == "" {
			detail = tail(out.Stdout, detailTailBytes)
		}
		if detail == "" {
			detail = fmt.Sprintf("pip exited with status %d", out.ExitCode)
		}
		m.finishInstall(sess, job, InstallFailed, detail)
	default:
		m.finishInstall(sess, job, InstallSuccess, fmt.Sprintf("%s installed", job.pkg))
	}
}

// finishInstall performs the job's single terminal transition. Later calls
// are ignored.
func (m *Manager) finishInstall(sess *Session, job *installJob, state InstallState, detail string) {
	sess.stateMu.Lock()
	defer sess.stateMu.Unlock()
	if job.state != InstallInstalling {
		return
	}
	job.state = state
	job.detail = detail
	job.finishedAt = m.now().UTC()

	if state == InstallFailed {
		m.logger.Warn("install failed", "session_id", sess.ID, "package", job.pkg, "detail", detail)
	} else {
		m.logger.Info("install finished", "session_id", sess.ID, "package", job.pkg)
	}
}

func (m *Manager) jobStatus(sess *Session, job *installJob) InstallStatus {
	sess.stateMu.RLock()
	defer sess.stateMu.RUnlock()
	return job.snapshot(sess.ID)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
