package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pybox-dev/pybox/config"
	"github.com/pybox-dev/pybox/sandbox"
)

// ArtifactPath is the fixed, well-known path the code artifact is written to
// inside the environment. Single slot: each request overwrites it.
const ArtifactPath = "execution_script.py"

// ErrorKind classifies a failed execution by where the fault originated.
type ErrorKind string

// Error kinds, mutually exclusive.
const (
	ErrorKindNone                    ErrorKind = ""
	ErrorKindDependencyInstallFailed ErrorKind = "dependency_install_failed"
	ErrorKindExecutionTimedOut       ErrorKind = "execution_timed_out"
	ErrorKindExecutionFaulted        ErrorKind = "execution_faulted"
	ErrorKindProvisioningFailed      ErrorKind = "provisioning_failed"
)

// ExecutionRequest describes one code execution. It is immutable once
// accepted.
type ExecutionRequest struct {
	Code           string
	TimeoutSeconds int
	Packages       []string
	AllowNetwork   bool
	AutoTerminate  bool
}

// ExecutionResult is the structured outcome of one request. It is populated
// completely by either the success path or a failure path, never partially.
type ExecutionResult struct {
	Succeeded    bool
	RawOutput    string
	ErrorKind    ErrorKind
	HumanMessage string
}

// session binds the live environment to the installed-package tracker so
// their lifetimes cannot diverge: destroying one destroys the other.
type session struct {
	provider       sandbox.Provider
	installed      map[string]struct{}
	networkEnabled bool
}

// Orchestrator processes execution requests one at a time against a single
// shared environment. Safe for concurrent callers; access to the session is
// serialized so the install-then-run ordering holds across requests.
type Orchestrator struct {
	logger         *zap.Logger
	factory        sandbox.Factory
	defaults       config.SandboxConfig
	installTimeout time.Duration

	mu   sync.Mutex
	sess *session
}

// New creates an Orchestrator using the application's sandbox defaults.
func New(logger *zap.Logger, factory sandbox.Factory, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		logger:         logger,
		factory:        factory,
		defaults:       cfg.Sandbox,
		installTimeout: cfg.GetInstallTimeout(),
	}
}

// Execute runs one request through the full lifecycle:
// readiness → install → write → run → classify → optional teardown.
//
// The environment is created lazily on the first request; its network
// posture is taken from that request and stays frozen until the environment
// is destroyed. Callers needing a different posture must Reset between
// requests.
func (o *Orchestrator) Execute(ctx context.Context, req ExecutionRequest) (result ExecutionResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Registered before the teardown defer so it runs after it: a panic in
	// any step still tears the session down, then becomes a failure result.
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("unexpected fault during execution", zap.Any("fault", r))
			result = o.failure(req, ErrorKindExecutionFaulted, "",
				fmt.Sprintf("Error executing code: unexpected fault: %v", r))
		}
	}()

	// Teardown on auto-terminate runs on every exit path, including faults.
	defer func() {
		if req.AutoTerminate {
			if err := o.resetLocked(ctx); err != nil {
				o.logger.Error("auto-terminate cleanup failed", zap.Error(err))
			}
		}
	}()

	if req.TimeoutSeconds <= 0 {
		return o.failure(req, ErrorKindExecutionFaulted, "",
			fmt.Sprintf("Error executing code: timeout must be positive, got %d", req.TimeoutSeconds))
	}

	// Environment readiness: create lazily, network posture from this
	// request overriding the configured default.
	if o.sess == nil {
		o.logger.Info("initializing sandbox for code execution",
			zap.Bool("allow_network", req.AllowNetwork))

		provider, err := o.factory.New(ctx, sandbox.Options{
			Image:          o.defaults.Image,
			WorkDir:        o.defaults.WorkDir,
			MemoryMB:       o.defaults.MemoryMB,
			CPULimit:       o.defaults.CPULimit,
			NetworkEnabled: req.AllowNetwork,
		})
		if err != nil {
			o.logger.Error("sandbox provisioning failed", zap.Error(err))
			return o.failure(req, ErrorKindProvisioningFailed, "",
				fmt.Sprintf("Error executing code: %v", err))
		}

		o.sess = &session{
			provider:       provider,
			installed:      make(map[string]struct{}),
			networkEnabled: req.AllowNetwork,
		}
	}
	sess := o.sess

	// Dependency installation: one batched command for the packages this
	// environment has not seen, with its own independent timeout.
	if toInstall := missing(sess.installed, req.Packages); len(toInstall) > 0 {
		o.logger.Info("installing packages", zap.Strings("packages", toInstall))

		installCmd := "pip install " + strings.Join(toInstall, " ") + " --no-cache-dir"
		installOut, err := sess.provider.RunCommand(ctx, installCmd, o.installTimeout)
		if err != nil {
			// All-or-nothing: the tracker is not touched on failure, even if
			// some packages in the batch would have succeeded individually.
			o.logger.Error("package installation failed",
				zap.Strings("packages", toInstall), zap.Error(err))
			return o.classifyInstallError(req, toInstall, installOut, err)
		}

		for _, pkg := range toInstall {
			sess.installed[pkg] = struct{}{}
		}
		o.logger.Info("package installation completed", zap.String("output", installOut))
	}

	// Code materialization: single-slot artifact, prior content overwritten.
	if err := sess.provider.WriteFile(ctx, ArtifactPath, req.Code); err != nil {
		o.logger.Error("failed to write code artifact", zap.Error(err))
		return o.failure(req, ErrorKindProvisioningFailed, "",
			fmt.Sprintf("Error executing code: %v", err))
	}

	// Bounded execution.
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	o.logger.Info("executing code in sandbox", zap.Duration("timeout", timeout))

	output, err := sess.provider.RunCommand(ctx, "python "+ArtifactPath, timeout)
	if err != nil {
		return o.classifyRunError(req, output, err)
	}

	return ExecutionResult{
		Succeeded:    true,
		RawOutput:    output,
		HumanMessage: o.successMessage(req, output),
	}
}

// Reset ends the current session: provider cleanup, then the handle and the
// installed-package set are destroyed as one atomic step. A missing session
// is a no-op, not an error.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resetLocked(ctx)
}

func (o *Orchestrator) resetLocked(ctx context.Context) error {
	if o.sess == nil {
		return nil
	}

	err := o.sess.provider.Cleanup(ctx)
	o.sess = nil
	if err != nil {
		return fmt.Errorf("sandbox cleanup: %w", err)
	}

	o.logger.Info("sandbox session has been reset")
	return nil
}

// classifyInstallError maps a typed provider error from the install phase.
// A command fault or timeout is a dependency failure; an environment that
// died mid-install is a provisioning failure.
func (o *Orchestrator) classifyInstallError(req ExecutionRequest, packages []string, output string, err error) ExecutionResult {
	var timeoutErr *sandbox.TimeoutError
	var cmdErr *sandbox.CommandError

	if errors.As(err, &timeoutErr) || errors.As(err, &cmdErr) {
		return o.failure(req, ErrorKindDependencyInstallFailed, output,
			fmt.Sprintf("Error installing packages %s: %v\nExecution aborted. Please check the package names or try increasing the timeout.",
				strings.Join(packages, ", "), err))
	}

	return o.failure(req, ErrorKindProvisioningFailed, output,
		fmt.Sprintf("Error installing packages %s: %v", strings.Join(packages, ", "), err))
}

// classifyRunError maps a typed provider error from the run phase to an
// error kind. Classification relies on error types, never on message text.
func (o *Orchestrator) classifyRunError(req ExecutionRequest, output string, err error) ExecutionResult {
	var timeoutErr *sandbox.TimeoutError
	var cmdErr *sandbox.CommandError

	switch {
	case errors.As(err, &timeoutErr):
		o.logger.Warn("code execution timed out", zap.Int("timeout_sec", req.TimeoutSeconds))
		return o.failure(req, ErrorKindExecutionTimedOut, output,
			fmt.Sprintf("Execution timed out after %d seconds. The code might be too complex, contain infinite loops, or require more time to complete. Please modify the code or increase the timeout.",
				req.TimeoutSeconds))

	case errors.As(err, &cmdErr):
		o.logger.Warn("code execution faulted", zap.Int("exit_code", cmdErr.ExitCode))
		return o.failure(req, ErrorKindExecutionFaulted, output,
			fmt.Sprintf("Error executing code: %v", err))

	default:
		// UnavailableError, FilesystemError, or anything else means the
		// environment itself cannot be reached.
		o.logger.Error("sandbox became unavailable during execution", zap.Error(err))
		return o.failure(req, ErrorKindProvisioningFailed, output,
			fmt.Sprintf("Error executing code: %v", err))
	}
}

func (o *Orchestrator) successMessage(req ExecutionRequest, output string) string {
	return fmt.Sprintf("Code execution completed successfully! Output:\n\n%s\n\n"+
		"Execution environment: isolated sandbox (Python)\n"+
		"Timeout setting: %d seconds\n"+
		"Network access: %s\n"+
		sessionFooter,
		output, req.TimeoutSeconds, o.networkPosture())
}

func (o *Orchestrator) failure(req ExecutionRequest, kind ErrorKind, output, message string) ExecutionResult {
	return ExecutionResult{
		Succeeded:    false,
		RawOutput:    output,
		ErrorKind:    kind,
		HumanMessage: message + "\n" + sessionFooter,
	}
}

// sessionFooter tells the caller the conceptual interaction is still open;
// the orchestrator never ends it by itself.
const sessionFooter = "The sandbox session remains open; it must be ended explicitly (reset, or request auto-termination)."

// networkPosture reports the environment's actual network posture, which was
// frozen by the first request of the session and may differ from later
// requests' wishes.
func (o *Orchestrator) networkPosture() string {
	if o.sess != nil && o.sess.networkEnabled {
		return "Enabled"
	}
	return "Disabled"
}

// missing returns the packages not yet installed, preserving request order.
func missing(installed map[string]struct{}, packages []string) []string {
	var toInstall []string
	for _, pkg := range packages {
		if pkg == "" {
			continue
		}
		if _, ok := installed[pkg]; !ok {
			toInstall = append(toInstall, pkg)
		}
	}
	return toInstall
}
