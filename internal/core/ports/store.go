package ports

import (
	"context"

	"github.com/devrim/slipway/internal/core/domain"
)

// DeploymentStore persists deployment records across restarts.
type DeploymentStore interface {
	SaveDeployment(ctx context.Context, d domain.Deployment) error
	GetDeployment(ctx context.Context, id string) (domain.Deployment, error)
	ListDeployments(ctx context.Context) ([]domain.Deployment, error)
	MarkStopped(ctx context.Context, id string) error
}
