package ports

import (
	"context"

	"github.com/devrim/slipway/internal/core/domain"
)

// BuilderService defines operations for building container images from source code.
type BuilderService interface {
	// BuildImage stages the application source (cloning it first when the
	// request names a repository URL), renders the build recipe and builds
	// an image. Identical inputs reuse a previously built image.
	BuildImage(ctx context.Context, req domain.BuildRequest) (domain.BuildResult, error)

	// ImageExists reports whether an image is present in the daemon.
	ImageExists(ctx context.Context, imageName string) (bool, error)
}
