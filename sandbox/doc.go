// Package sandbox provides isolated execution environments for untrusted code.
//
// The sandbox package implements the provider side of the execution
// lifecycle: each Provider is one live, resource-bounded environment with
// its own filesystem, into which callers write files and run commands until
// the environment is cleaned up. It supports multiple backends including
// Docker, Podman, and local execution (for development).
//
// Providers surface failures as typed errors (ProvisioningError,
// TimeoutError, CommandError, UnavailableError, FilesystemError) so callers
// can classify outcomes with errors.As instead of inspecting message text.
//
// Usage:
//
//	factory, err := sandbox.NewFactory(logger, "docker")
//	provider, err := factory.New(ctx, sandbox.Options{
//	    Image:    "python:3.12-slim",
//	    WorkDir:  "/workspace",
//	    MemoryMB: 512,
//	})
//	out, err := provider.RunCommand(ctx, "python main.py", 30*time.Second)
package sandbox
