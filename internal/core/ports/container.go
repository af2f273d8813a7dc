package ports

import (
	"context"
	"io"

	"github.com/devrim/slipway/internal/core/domain"
)

// ContainerService defines the core operations for managing containers.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the business logic.
type ContainerService interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
	StartContainer(ctx context.Context, spec domain.LaunchSpec) (string, error)
	StopContainer(ctx context.Context, id string) error
	GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error)

	// WaitContainer blocks until the container is no longer running and
	// returns its exit code. The container's lifecycle is the process's
	// lifecycle; there is no retry at this layer.
	WaitContainer(ctx context.Context, id string) (int64, error)
}
