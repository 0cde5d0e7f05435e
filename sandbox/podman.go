package sandbox

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PodmanFactory creates Podman-backed providers. It drives the podman CLI
// through a CommandRunner so tests can substitute a fake.
type PodmanFactory struct {
	logger    *zap.Logger
	cmdRunner CommandRunner
	fs        FileSystem
}

// PodmanFactoryOption defines a functional option for PodmanFactory
type PodmanFactoryOption func(*PodmanFactory)

// WithPodmanCommandRunner sets the CommandRunner for PodmanFactory
func WithPodmanCommandRunner(cmdRunner CommandRunner) PodmanFactoryOption {
	return func(f *PodmanFactory) {
		f.cmdRunner = cmdRunner
	}
}

// WithPodmanFileSystem sets the FileSystem for PodmanFactory
func WithPodmanFileSystem(fs FileSystem) PodmanFactoryOption {
	return func(f *PodmanFactory) {
		f.fs = fs
	}
}

// NewPodmanFactory creates a factory for Podman-backed environments with
// default implementations and optional interfaces
func NewPodmanFactory(logger *zap.Logger, opts ...PodmanFactoryOption) *PodmanFactory {
	factory := &PodmanFactory{
		logger:    logger,
		cmdRunner: &RealCommandRunner{}, // Default implementation
		fs:        &RealFileSystem{},    // Default implementation
	}

	// Apply options
	for _, opt := range opts {
		opt(factory)
	}

	return factory
}

// New provisions a long-lived podman container and returns it ready for
// commands.
func (f *PodmanFactory) New(ctx context.Context, opts Options) (Provider, error) {
	containerName := "pybox-" + uuid.NewString()

	cmdArgs := []string{
		"podman", "run",
		"-d",
		"--name", containerName,
		"--memory", fmt.Sprintf("%dm", opts.MemoryMB),
		"--cpus", fmt.Sprintf("%g", opts.CPULimit),
		"--network", networkMode(opts.NetworkEnabled),
		"--workdir", opts.WorkDir,
		opts.Image,
		"sleep", "infinity",
	}

	_, stderr, exitCode, err := f.cmdRunner.RunCommand(ctx, cmdArgs)
	if err != nil {
		return nil, &ProvisioningError{Err: fmt.Errorf("podman run: %w", err)}
	}
	if exitCode != 0 {
		return nil, &ProvisioningError{Err: fmt.Errorf("podman run exited with code %d: %s", exitCode, strings.TrimSpace(stderr))}
	}

	f.logger.Info("sandbox container started",
		zap.String("container", containerName),
		zap.String("image", opts.Image),
		zap.String("network", networkMode(opts.NetworkEnabled)))

	return &PodmanProvider{
		logger:        f.logger,
		opts:          opts,
		cmdRunner:     f.cmdRunner,
		fs:            f.fs,
		containerName: containerName,
	}, nil
}

// PodmanProvider is one live podman container, with commands issued through
// podman exec and files transferred with podman cp.
type PodmanProvider struct {
	logger        *zap.Logger
	opts          Options
	cmdRunner     CommandRunner
	fs            FileSystem
	containerName string
}

// RunCommand executes a shell command in the container with a hard
// wall-clock budget and returns its captured standard output.
func (p *PodmanProvider) RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if p.containerName == "" {
		return "", &UnavailableError{Err: fmt.Errorf("container already destroyed")}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout+execGracePeriod)
	defer cancel()

	cmdArgs := []string{
		"podman", "exec",
		"--workdir", p.opts.WorkDir,
		p.containerName,
		"sh", "-c", wrapWithTimeout(command, timeout),
	}

	stdout, stderr, exitCode, err := p.cmdRunner.RunCommand(execCtx, cmdArgs)
	if execCtx.Err() == context.DeadlineExceeded {
		return stdout, &TimeoutError{Timeout: timeout}
	}
	if err != nil {
		return stdout, &UnavailableError{Err: fmt.Errorf("podman exec: %w", err)}
	}

	switch {
	case exitCode == timeoutExitCode:
		return stdout, &TimeoutError{Timeout: timeout}
	case exitCode != 0:
		return stdout, &CommandError{ExitCode: exitCode, Stderr: strings.TrimSpace(stderr)}
	}

	return stdout, nil
}

// WriteFile copies content into the container's working directory through a
// host-side staging file.
func (p *PodmanProvider) WriteFile(ctx context.Context, filePath, content string) error {
	if p.containerName == "" {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("container already destroyed")}
	}
	if err := validateRelPath(filePath); err != nil {
		return &FilesystemError{Path: filePath, Err: err}
	}

	stagingDir, err := p.fs.MkdirTemp("", "pybox-cp-*")
	if err != nil {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("create staging dir: %w", err)}
	}
	defer p.fs.RemoveAll(stagingDir)

	stagingFile := filepath.Join(stagingDir, filepath.Base(filePath))
	if err := p.fs.WriteFile(stagingFile, []byte(content), FilePermission); err != nil {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("write staging file: %w", err)}
	}

	// Make sure the destination directory exists inside the container
	if dir := path.Dir(filePath); dir != "." {
		if _, err := p.RunCommand(ctx, "mkdir -p "+shellQuote(dir), execGracePeriod); err != nil {
			return &FilesystemError{Path: filePath, Err: fmt.Errorf("create parent directory: %w", err)}
		}
	}

	dest := fmt.Sprintf("%s:%s", p.containerName, path.Join(p.opts.WorkDir, filePath))
	_, stderr, exitCode, err := p.cmdRunner.RunCommand(ctx, []string{"podman", "cp", stagingFile, dest})
	if err != nil {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("podman cp: %w", err)}
	}
	if exitCode != 0 {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("podman cp exited with code %d: %s", exitCode, strings.TrimSpace(stderr))}
	}
	return nil
}

// ReadFile reads a file back out of the container's working directory.
func (p *PodmanProvider) ReadFile(ctx context.Context, filePath string) (string, error) {
	if p.containerName == "" {
		return "", &FilesystemError{Path: filePath, Err: fmt.Errorf("container already destroyed")}
	}
	if err := validateRelPath(filePath); err != nil {
		return "", &FilesystemError{Path: filePath, Err: err}
	}

	stagingDir, err := p.fs.MkdirTemp("", "pybox-cp-*")
	if err != nil {
		return "", &FilesystemError{Path: filePath, Err: fmt.Errorf("create staging dir: %w", err)}
	}
	defer p.fs.RemoveAll(stagingDir)

	stagingFile := filepath.Join(stagingDir, filepath.Base(filePath))
	src := fmt.Sprintf("%s:%s", p.containerName, path.Join(p.opts.WorkDir, filePath))
	_, stderr, exitCode, err := p.cmdRunner.RunCommand(ctx, []string{"podman", "cp", src, stagingFile})
	if err != nil {
		return "", &FilesystemError{Path: filePath, Err: fmt.Errorf("podman cp: %w", err)}
	}
	if exitCode != 0 {
		return "", &FilesystemError{Path: filePath, Err: fmt.Errorf("podman cp exited with code %d: %s", exitCode, strings.TrimSpace(stderr))}
	}

	content, err := p.fs.ReadFile(stagingFile)
	if err != nil {
		return "", &FilesystemError{Path: filePath, Err: fmt.Errorf("read staging file: %w", err)}
	}
	return string(content), nil
}

// Cleanup force-removes the container. Safe to call more than once; a
// container that is already gone is not an error.
func (p *PodmanProvider) Cleanup(ctx context.Context) error {
	if p.containerName == "" {
		return nil
	}

	_, stderr, exitCode, err := p.cmdRunner.RunCommand(ctx, []string{"podman", "rm", "-f", p.containerName})
	if err != nil {
		return &UnavailableError{Err: fmt.Errorf("podman rm: %w", err)}
	}
	if exitCode != 0 {
		p.logger.Warn("podman rm reported failure, treating container as gone",
			zap.String("container", p.containerName),
			zap.String("stderr", strings.TrimSpace(stderr)))
	}

	p.logger.Info("sandbox container removed", zap.String("container", p.containerName))
	p.containerName = ""
	return nil
}
