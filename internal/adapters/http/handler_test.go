package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrim/slipway/internal/core/domain"
	"github.com/devrim/slipway/internal/launch"
)

type fakeBuilder struct {
	requests []domain.BuildRequest
	err      error
}

func (f *fakeBuilder) BuildImage(ctx context.Context, req domain.BuildRequest) (domain.BuildResult, error) {
	if f.err != nil {
		return domain.BuildResult{}, f.err
	}
	f.requests = append(f.requests, req)
	return domain.BuildResult{ImageID: "sha256:abc", ImageName: req.ImageName}, nil
}

func (f *fakeBuilder) ImageExists(ctx context.Context, imageName string) (bool, error) {
	return true, nil
}

type fakeContainers struct {
	started []domain.LaunchSpec
	live    []domain.Container
}

func (f *fakeContainers) ListContainers(ctx context.Context) ([]domain.Container, error) {
	return f.live, nil
}

func (f *fakeContainers) StartContainer(ctx context.Context, spec domain.LaunchSpec) (string, error) {
	f.started = append(f.started, spec)
	return "container-1", nil
}

func (f *fakeContainers) StopContainer(ctx context.Context, id string) error { return nil }

func (f *fakeContainers) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("log line\n")), nil
}

func (f *fakeContainers) WaitContainer(ctx context.Context, id string) (int64, error) {
	return 0, nil
}

type memStore struct {
	deployments map[string]domain.Deployment
}

func newMemStore() *memStore {
	return &memStore{deployments: make(map[string]domain.Deployment)}
}

func (m *memStore) SaveDeployment(ctx context.Context, d domain.Deployment) error {
	m.deployments[d.ID] = d
	return nil
}

func (m *memStore) GetDeployment(ctx context.Context, id string) (domain.Deployment, error) {
	d, ok := m.deployments[id]
	if !ok {
		return d, fmt.Errorf("deployment %s not found", id)
	}
	return d, nil
}

func (m *memStore) ListDeployments(ctx context.Context) ([]domain.Deployment, error) {
	var all []domain.Deployment
	for _, d := range m.deployments {
		all = append(all, d)
	}
	return all, nil
}

func (m *memStore) MarkStopped(ctx context.Context, id string) error {
	d, ok := m.deployments[id]
	if !ok {
		return fmt.Errorf("deployment %s not found", id)
	}
	d.State = "stopped"
	m.deployments[id] = d
	return nil
}

type testEnv struct {
	app        *fiber.App
	builder    *fakeBuilder
	containers *fakeContainers
	store      *memStore
}

func newTestEnv(envPort string) *testEnv {
	builder := &fakeBuilder{}
	containers := &fakeContainers{}
	store := newMemStore()
	launcher := launch.NewLauncher(containers, store)
	handler := NewDeploymentHandler(builder, launcher, containers, envPort)

	app := fiber.New()
	v1 := app.Group("/api/v1")
	v1.Post("/builds", handler.Build)
	v1.Get("/containers", handler.ListContainers)
	d := v1.Group("/deployments")
	d.Post("/", handler.Deploy)
	d.Get("/", handler.ListDeployments)
	d.Delete("/:id", handler.StopDeployment)
	d.Get("/:id/logs", handler.GetDeploymentLogs)

	return &testEnv{app: app, builder: builder, containers: containers, store: store}
}

func jsonRequest(method, target string, body any) *http.Request {
	encoded, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDeploy(t *testing.T) {
	t.Run("launches an existing image", func(t *testing.T) {
		env := newTestEnv("")

		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/deployments/", DeployRequest{
			Image: "myapp:latest",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var d domain.Deployment
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
		assert.Equal(t, "myapp:latest", d.Image)
		assert.Equal(t, domain.DefaultPort, d.Port)
		assert.Empty(t, env.builder.requests)
		require.Len(t, env.containers.started, 1)
	})

	t.Run("builds first when a repo URL is given", func(t *testing.T) {
		env := newTestEnv("")

		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/deployments/", DeployRequest{
			RepoURL: "https://example.com/app.git",
			Image:   "myapp:latest",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		require.Len(t, env.builder.requests, 1)
		assert.Equal(t, "https://example.com/app.git", env.builder.requests[0].RepoURL)
		require.Len(t, env.containers.started, 1)
	})

	t.Run("explicit port beats the server's PORT", func(t *testing.T) {
		env := newTestEnv("8080")

		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/deployments/", DeployRequest{
			Image: "myapp:latest",
			Port:  9000,
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Equal(t, 9000, env.containers.started[0].Port)
	})

	t.Run("PORT applies when no explicit port is given", func(t *testing.T) {
		env := newTestEnv("8080")

		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/deployments/", DeployRequest{
			Image: "myapp:latest",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Equal(t, 8080, env.containers.started[0].Port)
	})

	t.Run("rejects a request with neither image nor source", func(t *testing.T) {
		env := newTestEnv("")

		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/deployments/", DeployRequest{}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, env.containers.started)
	})

	t.Run("surfaces a build failure without launching", func(t *testing.T) {
		env := newTestEnv("")
		env.builder.err = fmt.Errorf("build failed: no matching distribution found for nosuchpackage")

		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/deployments/", DeployRequest{
			SourceDir: "/tmp/app",
			Image:     "myapp:latest",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "nosuchpackage")
		assert.Empty(t, env.containers.started)
	})
}

func TestBuild(t *testing.T) {
	t.Run("builds without launching", func(t *testing.T) {
		env := newTestEnv("")

		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/builds", DeployRequest{
			SourceDir: "/tmp/app",
			Image:     "myapp:latest",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		require.Len(t, env.builder.requests, 1)
		assert.Empty(t, env.containers.started)
	})

	t.Run("rejects a build without a source", func(t *testing.T) {
		env := newTestEnv("")

		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/builds", DeployRequest{
			Image: "myapp:latest",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects a build without an image name", func(t *testing.T) {
		env := newTestEnv("")

		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/builds", DeployRequest{
			SourceDir: "/tmp/app",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestListAndStop(t *testing.T) {
	t.Run("list returns deployments", func(t *testing.T) {
		env := newTestEnv("")

		_, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/deployments/", DeployRequest{
			Image: "myapp:latest",
		}))
		require.NoError(t, err)

		resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/deployments/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var all []domain.Deployment
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
		assert.Len(t, all, 1)
	})

	t.Run("containers reports live daemon state", func(t *testing.T) {
		env := newTestEnv("")
		env.containers.live = []domain.Container{
			{ID: "cafebabe1234", Name: "slipway-abc", Image: "myapp:latest", Status: "Up 5 minutes", State: "running"},
		}

		resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/containers", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var live []domain.Container
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&live))
		require.Len(t, live, 1)
		assert.Equal(t, "slipway-abc", live[0].Name)
		assert.Equal(t, "running", live[0].State)
	})

	t.Run("stop on unknown deployment fails", func(t *testing.T) {
		env := newTestEnv("")

		resp, err := env.app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/deployments/missing", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("logs streams the container output", func(t *testing.T) {
		env := newTestEnv("")

		createResp, err := env.app.Test(jsonRequest(http.MethodPost, "/api/v1/deployments/", DeployRequest{
			Image: "myapp:latest",
		}))
		require.NoError(t, err)
		var d domain.Deployment
		require.NoError(t, json.NewDecoder(createResp.Body).Decode(&d))

		resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/deployments/"+d.ID+"/logs", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "log line")
	})
}
