package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pybox-dev/pybox/config"
)

// NewFactory creates an appropriate provider factory for the given backend
func NewFactory(logger *zap.Logger, backend string) (Factory, error) {
	switch backend {
	case "docker":
		return NewDockerFactory(logger), nil
	case "podman":
		return NewPodmanFactory(logger), nil
	case "local":
		return NewLocalFactory(logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewFromConfig creates the provider factory configured for the application
func NewFromConfig(logger *zap.Logger, cfg *config.Config) (Factory, error) {
	return NewFactory(logger, cfg.Sandbox.Backend)
}
