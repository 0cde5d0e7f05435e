package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Options declares the resource and isolation constraints of an environment.
// They are fixed at creation time; changing them requires destroying and
// recreating the environment.
type Options struct {
	Image          string
	WorkDir        string
	MemoryMB       int
	CPULimit       float64
	NetworkEnabled bool
}

// Provider is one live isolated execution environment. A Provider returned
// by a Factory is ready for use. Implementations are not safe for concurrent
// use; callers must serialize access.
type Provider interface {
	// RunCommand executes a shell command inside the environment and returns
	// its captured standard output. The timeout is a hard wall-clock budget;
	// when it is exceeded the underlying process is terminated and a
	// *TimeoutError is returned within a bounded grace period.
	RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error)

	// WriteFile writes content to a path relative to the environment's
	// working directory, overwriting any prior content.
	WriteFile(ctx context.Context, path, content string) error

	// ReadFile reads a file from a path relative to the environment's
	// working directory.
	ReadFile(ctx context.Context, path string) (string, error)

	// Cleanup destroys the environment and releases its resources. It is
	// idempotent; calling it on an already-destroyed environment is safe.
	Cleanup(ctx context.Context) error
}

// Factory creates ready-to-use providers for one backend.
type Factory interface {
	New(ctx context.Context, opts Options) (Provider, error)
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments
func (RealCommandRunner) RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Safe as this is controlled input

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	exitCode = 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			return "", "", 0, err
		}
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	ReadFile(filename string) ([]byte, error)
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// File permission constants
const (
	DirPermission  = 0755
	FilePermission = 0600
)

// timeoutExitCode is what timeout(1) reports when the budget is exceeded.
const timeoutExitCode = 124

// execGracePeriod bounds how long a command may overrun its budget before
// the backend gives up on the in-environment timeout and force-terminates.
const execGracePeriod = 5 * time.Second

// validateRelPath rejects paths that would escape the environment's working
// directory.
func validateRelPath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute path not allowed: %s", path)
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("unsafe relative path: %s", path)
	}
	return nil
}

// networkMode maps the network posture to a container network mode.
func networkMode(enabled bool) string {
	if enabled {
		return "bridge"
	}
	return "none"
}

// wrapWithTimeout runs a shell command under timeout(1) so that exceeding
// the budget terminates the process inside the environment, not just the
// caller's wait. timeout exits with code 124 in that case.
func wrapWithTimeout(command string, timeout time.Duration) string {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("timeout %d sh -c %s", secs, shellQuote(command))
}

// shellQuote single-quotes a string for use in sh -c.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
