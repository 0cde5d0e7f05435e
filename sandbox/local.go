package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LocalFactory creates providers that run commands directly on the host
// (WARNING: no isolation; for development only, gated by configuration).
type LocalFactory struct {
	logger    *zap.Logger
	cmdRunner CommandRunner
	fs        FileSystem
}

// LocalFactoryOption defines a functional option for LocalFactory
type LocalFactoryOption func(*LocalFactory)

// WithLocalCommandRunner sets the CommandRunner for LocalFactory
func WithLocalCommandRunner(cmdRunner CommandRunner) LocalFactoryOption {
	return func(f *LocalFactory) {
		f.cmdRunner = cmdRunner
	}
}

// WithLocalFileSystem sets the FileSystem for LocalFactory
func WithLocalFileSystem(fs FileSystem) LocalFactoryOption {
	return func(f *LocalFactory) {
		f.fs = fs
	}
}

// NewLocalFactory creates a factory for host-local environments with default
// implementations and optional interfaces
func NewLocalFactory(logger *zap.Logger, opts ...LocalFactoryOption) *LocalFactory {
	factory := &LocalFactory{
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

// New creates a temporary working directory on the host and returns a
// provider scoped to it. Resource limits and network posture are not
// enforced by this backend.
func (f *LocalFactory) New(_ context.Context, opts Options) (Provider, error) {
	workDir, err := f.fs.MkdirTemp("", "pybox-session-*")
	if err != nil {
		return nil, &ProvisioningError{Err: fmt.Errorf("create session dir: %w", err)}
	}

	f.logger.Info("local sandbox session started", zap.String("work_dir", workDir))

	return &LocalProvider{
		logger:    f.logger,
		opts:      opts,
		cmdRunner: f.cmdRunner,
		fs:        f.fs,
		workDir:   workDir,
	}, nil
}

// LocalProvider runs commands on the host inside a temporary working
// directory.
type LocalProvider struct {
	logger    *zap.Logger
	opts      Options
	cmdRunner CommandRunner
	fs        FileSystem
	workDir   string
}

// RunCommand executes a shell command in the session's working directory
// with a hard wall-clock budget and returns its captured standard output.
func (p *LocalProvider) RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if p.workDir == "" {
		return "", &UnavailableError{Err: fmt.Errorf("session already destroyed")}
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdArgs := []string{"sh", "-c", "cd " + shellQuote(p.workDir) + " && " + command}
	stdout, stderr, exitCode, err := p.cmdRunner.RunCommand(execCtx, cmdArgs)
	if execCtx.Err() == context.DeadlineExceeded {
		return stdout, &TimeoutError{Timeout: timeout}
	}
	if err != nil {
		return stdout, &UnavailableError{Err: fmt.Errorf("run command: %w", err)}
	}
	if exitCode != 0 {
		return stdout, &CommandError{ExitCode: exitCode, Stderr: strings.TrimSpace(stderr)}
	}

	return stdout, nil
}

// WriteFile writes content under the session's working directory,
// overwriting any prior content at that path.
func (p *LocalProvider) WriteFile(_ context.Context, filePath, content string) error {
	if p.workDir == "" {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("session already destroyed")}
	}
	if err := validateRelPath(filePath); err != nil {
		return &FilesystemError{Path: filePath, Err: err}
	}

	fullPath := filepath.Join(p.workDir, filePath)
	if err := p.fs.MkdirAll(filepath.Dir(fullPath), DirPermission); err != nil {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("create parent directory: %w", err)}
	}
	if err := p.fs.WriteFile(fullPath, []byte(content), FilePermission); err != nil {
		return &FilesystemError{Path: filePath, Err: fmt.Errorf("write file: %w", err)}
	}
	return nil
}

// ReadFile reads a file from the session's working directory.
func (p *LocalProvider) ReadFile(_ context.Context, filePath string) (string, error) {
	if p.workDir == "" {
		return "", &FilesystemError{Path: filePath, Err: fmt.Errorf("session already destroyed")}
	}
	if err := validateRelPath(filePath); err != nil {
		return "", &FilesystemError{Path: filePath, Err: err}
	}

	content, err := p.fs.ReadFile(filepath.Join(p.workDir, filePath))
	if err != nil {
		return "", &FilesystemError{Path: filePath, Err: fmt.Errorf("read file: %w", err)}
	}
	return string(content), nil
}

// Cleanup removes the session's working directory. Safe to call more than
// once.
func (p *LocalProvider) Cleanup(_ context.Context) error {
	if p.workDir == "" {
		return nil
	}

	if err := p.fs.RemoveAll(p.workDir); err != nil {
		return &FilesystemError{Path: p.workDir, Err: fmt.Errorf("remove session dir: %w", err)}
	}

	p.logger.Info("local sandbox session removed", zap.String("work_dir", p.workDir))
	p.workDir = ""
	return nil
}
