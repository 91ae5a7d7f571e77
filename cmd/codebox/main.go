// codebox runs Python code for tool-calling clients inside disposable Docker
// containers and serves the files each run produces.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/p-arndt/codebox/internal/api"
	"github.com/p-arndt/codebox/internal/config"
	"github.com/p-arndt/codebox/internal/docker"
	"github.com/p-arndt/codebox/internal/image"
	"github.com/p-arndt/codebox/internal/pool"
	"github.com/p-arndt/codebox/internal/reaper"
	"github.com/p-arndt/codebox/internal/session"
	"github.com/p-arndt/codebox/internal/store"
	"github.com/p-arndt/codebox/internal/tools"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath    string
		logLevel   string
		skipBuild  bool
		listBuilds bool
	)
	flagSet := pflag.NewFlagSet("codebox", pflag.ContinueOnError)
	flagSet.StringVar(&cfgPath, "config", "codebox.yaml", "path to the YAML config file")
	flagSet.StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flagSet.BoolVar(&skipBuild, "skip-build", false, "do not build or pull the sandbox image on startup")
	flagSet.BoolVar(&listBuilds, "list-builds", false, "print recorded image builds and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if listBuilds {
		return printBuilds(st, os.Stdout)
	}

	if err := os.MkdirAll(cfg.Artifacts.Dir, 0o755); err != nil {
		return fmt.Errorf("artifacts dir: %w", err)
	}

	dc, err := docker.New()
	if err != nil {
		return fmt.Errorf("docker client: %w", err)
	}
	defer dc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dc.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping failed, is Docker running? %w", err)
	}
	logger.Info("docker connection OK")

	if skipBuild {
		logger.Warn("image provisioning skipped", "image", cfg.DefaultImage)
	} else {
		prov := image.NewProvisioner(dc, st, image.Options{
			Image:          cfg.DefaultImage,
			DockerfilePath: cfg.DockerfilePath,
			CheckChanges:   cfg.CheckDockerfileChanges,
		}, logger)
		if err := prov.Ensure(ctx); err != nil {
			return fmt.Errorf("provision image %s: %w", cfg.DefaultImage, err)
		}
	}

	installs := pool.New(cfg.Install.Workers, logger)
	mgr := session.NewManager(cfg, dc, installs, logger)

	registry, err := tools.NewSandboxRegistry(mgr)
	if err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}

	reaperDone := make(chan struct{})
	if cfg.Reaper.Enabled {
		rpr := reaper.New(mgr, dc, cfg.ReapInterval(), cfg.IdleTimeout(), logger)
		go func() {
			defer close(reaperDone)
			rpr.Run(ctx)
		}()
	} else {
		close(reaperDone)
		logger.Info("idle reaper disabled")
	}

	srv := api.NewServer(cfg, registry, mgr, logger)
	httpServer := &http.Server{
		Addr:              cfg.Listen(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen(), "base_url", cfg.BaseURL())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutting down...", "signal", sig.String())
	case err := <-serveErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	cancel()
	<-reaperDone

	pending, running := installs.Stats()
	if pending+running > 0 {
		logger.Info("waiting for installs", "pending", pending, "running", running)
	}
	if err := installs.Shutdown(shutdownCtx); err != nil {
		logger.Warn("install pool shutdown", "error", err)
	}

	mgr.DestroyAll(shutdownCtx)
	logger.Info("shutdown complete")
	return runErr
}

// newLogger writes text records to stdout and, when configured, appends them
// to the log file too.
func newLogger(lc config.LoggingConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(lc.Level))); err != nil {
		return nil, nil, fmt.Errorf("logging level %q: %w", lc.Level, err)
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { f.Close() }
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), closeFn, nil
}

func printBuilds(st *store.Store, w io.Writer) error {
	builds, err := st.ListImageBuilds()
	if err != nil {
		return fmt.Errorf("list builds: %w", err)
	}
	if len(builds) == 0 {
		fmt.Fprintln(w, "no image builds recorded")
		return nil
	}
	for _, b := range builds {
		fp := b.Fingerprint
		if len(fp) > 16 {
			fp = fp[:16]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Image, b.BuiltAt.UTC().Format(time.RFC3339), fp, b.RecipePath)
	}
	return nil
}
