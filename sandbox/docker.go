package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DockerFactory creates Docker-backed providers.
type DockerFactory struct {
	logger *zap.Logger
}

// NewDockerFactory creates a factory for Docker-backed environments.
func NewDockerFactory(logger *zap.Logger) *DockerFactory {
	return &DockerFactory{logger: logger}
}

// New provisions a long-lived container and returns it ready for commands.
func (f *DockerFactory) New(ctx context.Context, opts Options) (Provider, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, &ProvisioningError{Err: fmt.Errorf("create docker client: %w", err)}
	}

	provider, err := newDockerProvider(ctx, cli, f.logger, opts)
	if err != nil {
		cli.Close()
		return nil, err
	}
	return provider, nil
}

// DockerProvider is one live container. The container runs `sleep infinity`
// and commands are issued against it with docker exec, so filesystem state
// and installed packages persist across commands until Cleanup.
type DockerProvider struct {
	cli         *client.Client
	logger      *zap.Logger
	opts        Options
	containerID string
}

func newDockerProvider(ctx context.Context, cli *client.Client, logger *zap.Logger, opts Options) (*DockerProvider, error) {
	// Make sure the image is pulled
	pullCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", zap.String("image", opts.Image))
	reader, err := cli.ImagePull(pullCtx, opts.Image, image.PullOptions{})
	if err != nil {
		return nil, &ProvisioningError{Err: fmt.Errorf("pull image %s: %w", opts.Image, err)}
	}
	// Read everything to block until the pull is complete
	io.Copy(io.Discard, reader)
	reader.Close()

	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode(networkMode(opts.NetworkEnabled)),
		Resources: container.Resources{
			Memory:   int64(opts.MemoryMB) * 1024 * 1024,
			NanoCPUs: int64(opts.CPULimit * 1e9),
		},
		AutoRemove: false,
	}

	containerName := "pybox-" + uuid.NewString()
	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:      opts.Image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: opts.WorkDir,
		Tty:        false,
	}, hostConfig, nil, nil, containerName)
	if err != nil {
		return nil, &ProvisioningError{Err: fmt.Errorf("create container: %w", err)}
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		removeCtx, removeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer removeCancel()
		_ = cli.ContainerRemove(removeCtx, resp.ID, container.RemoveOptions{Force: true})
		return nil, &ProvisioningError{Err: fmt.Errorf("start container: %w", err)}
	}

	logger.Info("sandbox container started",
		zap.String("container", containerName),
		zap.String("image", opts.Image),
		zap.String("network", networkMode(opts.NetworkEnabled)))

	return &DockerProvider{
		cli:         cli,
		logger:      logger,
		opts:        opts,
		containerID: resp.ID,
	}, nil
}

// RunCommand executes a shell command in the container with a hard wall-clock
// budget and returns its captured standard output.
func (p *DockerProvider) RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if p.containerID == "" {
		return "", &UnavailableError{Err: fmt.Errorf("container already destroyed")}
	}

	// timeout(1) inside the container terminates the process itself; the
	// grace period below only covers a backend that stops responding.
	execCtx, cancel := context.WithTimeout(ctx, timeout+execGracePeriod)
	defer cancel()

	execResp, err := p.cli.ContainerExecCreate(execCtx, p.containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   p.opts.WorkDir,
		Cmd:          []string{"sh", "-c", wrapWithTimeout(command, timeout)},
	})
	if err != nil {
		return "", &UnavailableError{Err: fmt.Errorf("create exec: %w", err)}
	}

	attachResp, err := p.cli.ContainerExecAttach(execCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return "", &UnavailableError{Err: fmt.Errorf("attach to exec: %w", err)}
	}
	defer attachResp.Close()

	stdout, stderr, timedOut := drainDemuxed(execCtx, attachResp.Reader)
	if timedOut {
		return "", &TimeoutError{Timeout: timeout}
	}

	inspectResp, err := p.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return stdout, &UnavailableError{Err: fmt.Errorf("inspect exec: %w", err)}
	}

	switch {
	case inspectResp.ExitCode == timeoutExitCode:
		return stdout, &TimeoutError{Timeout: timeout}
	case inspectResp.ExitCode != 0:
		return stdout, &CommandError{
			ExitCode: inspectResp.ExitCode,
			Stderr:   strings.TrimSpace(stderr),
		}
	}

	return stdout, nil
}

// drainDemuxed copies a multiplexed exec stream into stdout/stderr until the
// stream ends or ctx expires. On timeout the copy goroutine still owns the
// buffers, so nothing captured so far is returned.
func drainDemuxed(ctx context.Context, r io.Reader) (stdout, stderr string, timedOut bool) {
	var outBuf, errBuf bytes.Buffer

	done := make(chan struct{})
	go func() {
		// Use stdcopy to demultiplex stdout from stderr
		_, _ = stdcopy.StdCopy(&outBuf, &errBuf, r)
		close(done)
	}()

	select {
	case <-done:
		return outBuf.String(), errBuf.String(), false
	case <-ctx.Done():
		return "", "", true
	}
}

// WriteFile copies content into the container's working directory,
// overwriting any prior content at that path.
func (p *DockerProvider) WriteFile(ctx context.Context, filePath, content string) error {
	if p.containerID == "" {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("container already destroyed")}
	}
	if err := validateRelPath(filePath); err != nil {
		return &FilesystemError{Path: filePath, Err: err}
	}

	archive, err := fileToTar(filePath, []byte(content))
	if err != nil {
		return &FilesystemError{Path: filePath, Err: err}
	}

	err = p.cli.CopyToContainer(ctx, p.containerID, p.opts.WorkDir, archive, container.CopyToContainerOptions{})
	if err != nil {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("copy to container: %w", err)}
	}
	return nil
}

// ReadFile reads a file back out of the container's working directory.
func (p *DockerProvider) ReadFile(ctx context.Context, filePath string) (string, error) {
	if p.containerID == "" {
		return "", &FilesystemError{Path: filePath, Err: fmt.Errorf("container already destroyed")}
	}
	if err := validateRelPath(filePath); err != nil {
		return "", &FilesystemError{Path: filePath, Err: err}
	}

	reader, _, err := p.cli.CopyFromContainer(ctx, p.containerID, path.Join(p.opts.WorkDir, filePath))
	if err != nil {
		return "", &FilesystemError{Path: filePath, Err: fmt.Errorf("copy from container: %w", err)}
	}
	defer reader.Close()

	content, err := fileFromTar(reader)
	if err != nil {
		return "", &FilesystemError{Path: filePath, Err: err}
	}
	return string(content), nil
}

// Cleanup force-removes the container. Safe to call more than once.
func (p *DockerProvider) Cleanup(ctx context.Context) error {
	if p.containerID == "" {
		return nil
	}

	err := p.cli.ContainerRemove(ctx, p.containerID, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return &UnavailableError{Err: fmt.Errorf("remove container: %w", err)}
	}

	p.logger.Info("sandbox container removed", zap.String("id", p.containerID))
	p.containerID = ""
	return p.cli.Close()
}
