package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/p-arndt/codebox/internal/config"
)

type Status string

const (
	StatusCreating  Status = "creating"
	StatusReady     Status = "ready"
	StatusExecuting Status = "executing"
	StatusDestroyed Status = "destroyed"
)

// Session is one sandbox container and the state kept about it.
//
// execMu serializes everything that runs a command in the container or tears
// it down. stateMu guards the fields below it and is the only lock taken by
// read-only queries, so they never wait on a running execution.
type Session struct {
	ID          string
	ContainerID string
	Image       string
	OutputDir   string

	execMu sync.Mutex

	stateMu      sync.RWMutex
	status       Status
	createdAt    time.Time
	lastActivity time.Time
	destroyedAt  time.Time
	jobs         map[string]*installJob
}

type SessionInfo struct {
	ID             string          `json:"id"`
	Image          string          `json:"image"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivityAt time.Time       `json:"last_activity_at"`
	InstallJobs    []InstallStatus `json:"install_jobs,omitempty"`
}

type Manager struct {
	cfg     *config.Config
	runtime Runtime
	tasks   TaskPool
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg *config.Config, rt Runtime, tasks TaskPool, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		runtime:  rt,
		tasks:    tasks,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// lookup returns the live session for id. Destroyed sessions are reported
// as not found.
func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || sess.Status() == StatusDestroyed {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *Session) Status() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.status
}

// setStatus moves the session from one status to another and reports
// whether the session was in the expected status.
func (s *Session) setStatus(from, to Status) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.status != from {
		return false
	}
	s.status = to
	return true
}

func (s *Session) touch(now time.Time) {
	s.stateMu.Lock()
	s.lastActivity = now
	s.stateMu.Unlock()
}

func (s *Session) info() SessionInfo {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	info := SessionInfo{
		ID:             s.ID,
		Image:          s.Image,
		Status:         s.status,
		CreatedAt:      s.createdAt,
		LastActivityAt: s.lastActivity,
	}
	for _, job := range s.jobs {
		info.InstallJobs = append(info.InstallJobs, job.snapshot(s.ID))
	}
	sort.Slice(info.InstallJobs, func(i, j int) bool {
		return info.InstallJobs[i].Package < info.InstallJobs[j].Package
	})
	return info
}
