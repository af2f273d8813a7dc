// Package launch starts application containers with an explicit, testable
// port contract: explicit override > PORT environment value > default.
package launch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/devrim/slipway/internal/core/domain"
	"github.com/devrim/slipway/internal/core/ports"
	"github.com/devrim/slipway/internal/logging"
)

// Options controls a single launch. The zero value launches on the port
// from the PORT environment value, falling back to domain.DefaultPort.
type Options struct {
	// Name is the container name; generated from the deployment ID if empty.
	Name string

	// Port is an explicit override. Zero means "not set".
	Port int

	// EnvPort is the raw PORT value from the process environment, empty if
	// absent. Kept as a string so resolution (and its validation) happens
	// in exactly one place.
	EnvPort string
}

// ResolvePort applies the override precedence and validates the result.
func ResolvePort(explicit int, envPort string) (int, error) {
	switch {
	case explicit != 0:
		if explicit < 1 || explicit > 65535 {
			return 0, fmt.Errorf("port %d out of range", explicit)
		}
		return explicit, nil

	case envPort != "":
		port, err := strconv.Atoi(envPort)
		if err != nil {
			return 0, fmt.Errorf("PORT must be a numeric string, got %q", envPort)
		}
		if port < 1 || port > 65535 {
			return 0, fmt.Errorf("PORT %d out of range", port)
		}
		return port, nil

	default:
		return domain.DefaultPort, nil
	}
}

// Launcher drives the start→run-until-exit half of the lifecycle.
type Launcher struct {
	containers ports.ContainerService
	store      ports.DeploymentStore
}

func NewLauncher(containers ports.ContainerService, store ports.DeploymentStore) *Launcher {
	return &Launcher{containers: containers, store: store}
}

// Launch starts exactly one container for the image. The resolved port is
// used three ways that must agree: the uvicorn argv, the PORT environment
// variable inside the container, and the published host port.
func (l *Launcher) Launch(ctx context.Context, rec domain.Recipe, image string, opts Options) (domain.Deployment, error) {
	var d domain.Deployment

	port, err := ResolvePort(opts.Port, opts.EnvPort)
	if err != nil {
		return d, err
	}

	id := uuid.NewString()
	name := opts.Name
	if name == "" {
		name = "slipway-" + id[:8]
	}

	spec := domain.LaunchSpec{
		Image: image,
		Name:  name,
		Cmd:   rec.ServerCommand(port),
		Env:   []string{fmt.Sprintf("PORT=%d", port)},
		Port:  port,
	}

	containerID, err := l.containers.StartContainer(ctx, spec)
	if err != nil {
		return d, err
	}

	d = domain.Deployment{
		ID:          id,
		Name:        name,
		Image:       image,
		ContainerID: containerID,
		Port:        port,
		State:       "running",
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.store.SaveDeployment(ctx, d); err != nil {
		// Without a record there is no handle to stop the container
		// through later; take it down now, best effort.
		if stopErr := l.containers.StopContainer(ctx, containerID); stopErr != nil {
			slog.Warn("failed to stop unrecorded container", "container_id", containerID, "error", stopErr)
		}
		return domain.Deployment{}, err
	}

	logging.WithDeployment(id).Info("deployment started", "container_id", containerID, "port", port)
	return d, nil
}

// Stop stops a deployment's container and records it as stopped.
func (l *Launcher) Stop(ctx context.Context, id string) error {
	d, err := l.store.GetDeployment(ctx, id)
	if err != nil {
		return err
	}
	if err := l.containers.StopContainer(ctx, d.ContainerID); err != nil {
		return err
	}
	return l.store.MarkStopped(ctx, id)
}

// Logs returns the deployment's container log stream.
func (l *Launcher) Logs(ctx context.Context, id string) (io.ReadCloser, error) {
	d, err := l.store.GetDeployment(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.containers.GetContainerLogs(ctx, d.ContainerID)
}

// List returns all recorded deployments.
func (l *Launcher) List(ctx context.Context) ([]domain.Deployment, error) {
	return l.store.ListDeployments(ctx)
}

// Wait blocks until the deployment's container exits, marks it stopped and
// returns the container's exit code unchanged.
func (l *Launcher) Wait(ctx context.Context, id string) (int64, error) {
	d, err := l.store.GetDeployment(ctx, id)
	if err != nil {
		return 0, err
	}
	code, err := l.containers.WaitContainer(ctx, d.ContainerID)
	if err != nil {
		return code, err
	}
	if err := l.store.MarkStopped(ctx, id); err != nil {
		return code, err
	}
	return code, nil
}
