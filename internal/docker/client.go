package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"

	"github.com/p-arndt/codebox/internal/config"
	"github.com/p-arndt/codebox/protocol"
)

type Client struct {
	docker *client.Client
}

func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Client{docker: cli}, nil
}

func (c *Client) Close() error {
	return c.docker.Close()
}

// Ping verifies the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.docker.Ping(ctx)
	return err
}

type CreateOpts struct {
	SessionID string
	Image     string
	Defaults  config.Defaults
	OutputDir string            // host directory mounted at protocol.ContainerOutputDir
	Labels    map[string]string // additional labels
}

// CreateContainer creates and starts a long-lived sandbox container that
// idles until commands are executed in it.
func (c *Client) CreateContainer(ctx context.Context, opts CreateOpts) (string, error) {
	labels := map[string]string{
		protocol.LabelPrefix + "session_id": opts.SessionID,
		protocol.LabelPrefix + "managed":    "true",
	}
	for k, v := range opts.Labels {
		labels[k] = v
	}

	resources := container.Resources{
		NanoCPUs:  int64(opts.Defaults.CPULimit * 1e9),
		Memory:    int64(opts.Defaults.MemLimitMB) * units.MiB,
		PidsLimit: int64Ptr(int64(opts.Defaults.PidsLimit)),
	}

	hostCfg := &container.HostConfig{
		Resources:   resources,
		AutoRemove:  false,
		SecurityOpt: []string{"no-new-privileges"},
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: opts.OutputDir,
				Target: protocol.ContainerOutputDir,
			},
			{
				Type:   mount.TypeTmpfs,
				Target: protocol.ContainerRunDir,
				TmpfsOptions: &mount.TmpfsOptions{
					SizeBytes: 64 * units.MiB,
					Mode:      0o1777,
				},
			},
			{
				Type:   mount.TypeTmpfs,
				Target: "/tmp",
				TmpfsOptions: &mount.TmpfsOptions{
					SizeBytes: 512 * units.MiB,
				},
			},
		},
	}
	if opts.Defaults.NetworkMode != "" {
		hostCfg.NetworkMode = container.NetworkMode(opts.Defaults.NetworkMode)
	}

	containerCfg := &container.Config{
		Image:      opts.Image,
		Labels:     labels,
		Tty:        false,
		WorkingDir: protocol.ContainerWorkDir,
		Cmd:        []string{"sleep", "infinity"},
	}

	resp, err := c.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, protocol.ContainerName(opts.SessionID))
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}

	if err := c.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Clean up on start failure.
		_ = c.docker.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("container start: %w", err)
	}

	return resp.ID, nil
}

type ExecOpts struct {
	Cmd     []string
	WorkDir string
	Env     []string
}

type ExecOutput struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// Exec runs a command inside a running container and captures its
// demultiplexed output and exit code. When ctx ends before the command
// does, the attach stream is closed and the output captured so far is
// returned together with an error wrapping ctx.Err(). The process keeps
// running inside the container; callers are responsible for killing it.
func (c *Client) Exec(ctx context.Context, containerID string, opts ExecOpts) (*ExecOutput, error) {
	execCfg := container.ExecOptions{
		Cmd:          opts.Cmd,
		WorkingDir:   opts.WorkDir,
		Env:          opts.Env,
		AttachStdout: true,
		AttachStderr: true,
	}

	execResp, err := c.docker.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return nil, fmt.Errorf("exec create: %w", err)
	}

	attachResp, err := c.docker.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach: %w", err)
	}
	defer attachResp.Close()

	stdout := newCappedBuffer(protocol.MaxOutputBytes)
	stderr := newCappedBuffer(protocol.MaxOutputBytes)

	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		copyDone <- err
	}()

	select {
	case err := <-copyDone:
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("exec read: %w", err)
		}
	case <-ctx.Done():
		// Unblock the reader, then wait so the buffers are no longer written.
		attachResp.Close()
		<-copyDone
		return &ExecOutput{
			Stdout:    stdout.String(),
			Stderr:    stderr.String(),
			ExitCode:  -1,
			Truncated: stdout.truncated || stderr.truncated,
		}, fmt.Errorf("exec wait: %w", ctx.Err())
	}

	inspect, err := c.docker.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("exec inspect: %w", err)
	}

	return &ExecOutput{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  inspect.ExitCode,
		Truncated: stdout.truncated || stderr.truncated,
	}, nil
}

// CopyFile writes content to an absolute path inside the container. The
// parent directory must already exist; the file is owned by the container
// user.
func (c *Client) CopyFile(ctx context.Context, containerID, dstPath string, content []byte) error {
	clean := path.Clean(dstPath)
	if !path.IsAbs(clean) || clean == "/" {
		return fmt.Errorf("invalid destination path %q", dstPath)
	}
	archive, err := tarSingleFile(path.Base(clean), content, 0o644)
	if err != nil {
		return fmt.Errorf("pack %s: %w", dstPath, err)
	}
	err = c.docker.CopyToContainer(ctx, containerID, path.Dir(clean), archive, container.CopyToContainerOptions{
		CopyUIDGID: true,
	})
	if err != nil {
		return fmt.Errorf("copy to container: %w", err)
	}
	return nil
}

// RemoveContainer force-removes a container and its anonymous volumes.
func (c *Client) RemoveContainer(ctx context.Context, containerID string) error {
	err := c.docker.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container remove: %w", err)
	}
	return nil
}

// ContainerInfo holds basic info about a sandbox container.
type ContainerInfo struct {
	ContainerID string
	SessionID   string
}

// ListSandboxContainers returns all containers carrying the managed label.
func (c *Client) ListSandboxContainers(ctx context.Context) ([]ContainerInfo, error) {
	f := filters.NewArgs()
	f.Add("label", protocol.LabelPrefix+"managed=true")

	containers, err := c.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	var result []ContainerInfo
	for _, ctr := range containers {
		sessionID := ctr.Labels[protocol.LabelPrefix+"session_id"]
		if sessionID == "" {
			continue
		}
		result = append(result, ContainerInfo{
			ContainerID: ctr.ID,
			SessionID:   sessionID,
		})
	}
	return result, nil
}

// cappedBuffer keeps the first limit bytes written to it and reports
// every write as fully consumed so the stream demultiplexer keeps draining.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

func int64Ptr(v int64) *int64 {
	return &v
}
