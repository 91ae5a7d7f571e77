package reaper

import (
	"context"
	"log/slog"
	"time"
)

type Reaper struct {
	sessions    SessionManager
	docker      ReaperDocker
	interval    time.Duration
	idleTimeout time.Duration
	logger      *slog.Logger
}

func New(sm SessionManager, dc ReaperDocker, interval, idleTimeout time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		sessions:    sm,
		docker:      dc,
		interval:    interval,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("reaper started", "interval", r.interval, "idle_timeout", r.idleTimeout)

	r.reconcile(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.reapIdle(ctx)
		}
	}
}

func (r *Reaper) reapIdle(ctx context.Context) {
	idle := r.sessions.IdleSessions(r.idleTimeout)

	reaped := 0
	for _, id := range idle {
		ok, err := r.sessions.ReapIfIdle(ctx, id, r.idleTimeout)
		if err != nil {
			r.logger.Error("reaper: destroy session", "session_id", id, "error", err)
		}
		if ok {
			r.logger.Info("reaped idle session", "session_id", id)
			reaped++
		}
	}

	pruned := r.sessions.PruneDestroyed(r.idleTimeout)

	if reaped > 0 || pruned > 0 {
		r.logger.Info("reaper: sweep complete", "reaped", reaped, "pruned", pruned)
	}
}

// reconcile removes managed containers that no session in this process owns,
// typically left behind by a previous run.
func (r *Reaper) reconcile(ctx context.Context) {
	r.logger.Info("reconciliation starting")

	containers, err := r.docker.ListSandboxContainers(ctx)
	if err != nil {
		r.logger.Error("reconcile: list containers", "error", err)
		return
	}

	removed := 0
	for _, c := range containers {
		if r.sessions.Owns(c.SessionID) {
			continue
		}
		r.logger.Warn("reconcile: removing orphaned container",
			"session_id", c.SessionID, "container", c.ContainerID)
		if err := r.docker.RemoveContainer(ctx, c.ContainerID); err != nil {
			r.logger.Error("reconcile: remove container", "container", c.ContainerID, "error", err)
			continue
		}
		removed++
	}

	r.logger.Info("reconciliation complete", "removed", removed)
}
