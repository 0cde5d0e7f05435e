package sandbox

import (
	"fmt"
	"time"
)

// ProvisioningError reports that an environment could not be created or
// reached. It is not retryable by the caller of this package.
type ProvisioningError struct {
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("sandbox provisioning failed: %v", e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// TimeoutError reports that a command exceeded its wall-clock budget and
// was terminated.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s", e.Timeout)
}

// CommandError reports a command that ran to completion but exited non-zero.
// Stderr carries the diagnostic text the command produced.
type CommandError struct {
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("command exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("command exited with code %d: %s", e.ExitCode, e.Stderr)
}

// UnavailableError reports that the environment has died or the backend
// stopped responding mid-session.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("sandbox unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// FilesystemError reports a failed file transfer into or out of the
// environment, either because the path is invalid or the environment is
// unreachable.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("sandbox filesystem error on %q: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
