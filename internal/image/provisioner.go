// Package image makes sure the sandbox base image exists and matches the
// Dockerfile it is built from before any session is created.
package image

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/zeebo/blake3"

	"github.com/p-arndt/codebox/internal/store"
)

// Runtime is the subset of the container runtime the provisioner drives.
type Runtime interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
	BuildImage(ctx context.Context, dockerfilePath, tag string, out io.Writer) error
	PullImage(ctx context.Context, ref string, out io.Writer) error
}

// BuildRecords persists the fingerprint an image was last built from.
type BuildRecords interface {
	GetImageBuild(image string) (*store.ImageBuild, error)
	RecordImageBuild(b *store.ImageBuild) error
}

type Options struct {
	Image          string
	DockerfilePath string
	CheckChanges   bool
}

type Provisioner struct {
	runtime Runtime
	records BuildRecords
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func NewProvisioner(rt Runtime, records BuildRecords, opts Options, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		runtime: rt,
		records: records,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Fingerprint returns the hex BLAKE3-256 digest of a recipe.
func Fingerprint(recipe []byte) string {
	sum := blake3.Sum256(recipe)
	return hex.EncodeToString(sum[:])
}

// Ensure builds the image when it is missing or when its Dockerfile changed
// since the recorded build. Without a Dockerfile a missing image is pulled.
func (p *Provisioner) Ensure(ctx context.Context) error {
	exists, err := p.runtime.ImageExists(ctx, p.opts.Image)
	if err != nil {
		return fmt.Errorf("check image %s: %w", p.opts.Image, err)
	}

	recipe, err := os.ReadFile(p.opts.DockerfilePath)
	if errors.Is(err, fs.ErrNotExist) {
		if exists {
			p.logger.Info("image present, no recipe to compare", "image", p.opts.Image)
			return nil
		}
		p.logger.Info("pulling image", "image", p.opts.Image)
		if err := p.runtime.PullImage(ctx, p.opts.Image, p.progressWriter()); err != nil {
			return fmt.Errorf("pull %s: %w", p.opts.Image, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read recipe: %w", err)
	}

	fingerprint := Fingerprint(recipe)

	if exists {
		if !p.opts.CheckChanges {
			p.logger.Info("image present, change check disabled", "image", p.opts.Image)
			return nil
		}
		rec, err := p.records.GetImageBuild(p.opts.Image)
		if err != nil {
			return err
		}
		if rec != nil && rec.Fingerprint == fingerprint {
			p.logger.Info("image up to date", "image", p.opts.Image, "fingerprint", short(fingerprint))
			return nil
		}
		p.logger.Info("recipe changed, rebuilding", "image", p.opts.Image, "fingerprint", short(fingerprint))
	} else {
		p.logger.Info("image missing, building", "image", p.opts.Image, "recipe", p.opts.DockerfilePath)
	}

	start := p.now()
	if err := p.runtime.BuildImage(ctx, p.opts.DockerfilePath, p.opts.Image, p.progressWriter()); err != nil {
		return fmt.Errorf("build %s: %w", p.opts.Image, err)
	}

	if err := p.records.RecordImageBuild(&store.ImageBuild{
		Image:       p.opts.Image,
		Fingerprint: fingerprint,
		RecipePath:  p.opts.DockerfilePath,
		BuiltAt:     p.now(),
	}); err != nil {
		return err
	}

	p.logger.Info("image built", "image", p.opts.Image, "duration", p.now().Sub(start))
	return nil
}

// progressWriter forwards build and pull output to the debug log line by line.
func (p *Provisioner) progressWriter() io.Writer {
	return &lineLogger{logger: p.logger}
}

type lineLogger struct {
	logger *slog.Logger
	buf    []byte
}

func (w *lineLogger) Write(b []byte) (int, error) {
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(w.buf[:i]); len(line) > 0 {
			w.logger.Debug("image build", "output", string(line))
		}
		w.buf = w.buf[i+1:]
	}
	return len(b), nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
