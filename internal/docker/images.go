package docker

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
)

// ImageExists reports whether ref is present in the local image store.
func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, err := c.docker.ImageInspect(ctx, ref)
	if err == nil {
		return true, nil
	}
	if client.IsErrNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("image inspect: %w", err)
}

// BuildImage builds dockerfilePath with its directory as build context and
// tags the result as tag. Build progress is written to out; a failing build
// step is returned as an error.
func (c *Client) BuildImage(ctx context.Context, dockerfilePath, tag string, out io.Writer) error {
	contextDir := filepath.Dir(dockerfilePath)
	buildCtx, err := tarBuildContext(contextDir)
	if err != nil {
		return err
	}

	resp, err := c.docker.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  filepath.Base(dockerfilePath),
		Remove:      true,
		ForceRemove: true,
		Labels: map[string]string{
			"codebox.recipe": filepath.Base(dockerfilePath),
		},
	})
	if err != nil {
		return fmt.Errorf("image build: %w", err)
	}
	defer resp.Body.Close()

	if out == nil {
		out = io.Discard
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil); err != nil {
		return fmt.Errorf("image build: %w", err)
	}
	return nil
}

// PullImage pulls ref from its registry, consuming the progress stream.
func (c *Client) PullImage(ctx context.Context, ref string, out io.Writer) error {
	reader, err := c.docker.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("image pull: %w", err)
	}
	defer reader.Close()

	if out == nil {
		out = io.Discard
	}
	if err := jsonmessage.DisplayJSONMessagesStream(reader, out, 0, false, nil); err != nil {
		return fmt.Errorf("image pull: %w", err)
	}
	return nil
}
