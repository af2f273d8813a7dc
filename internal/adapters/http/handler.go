package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/devrim/slipway/internal/core/domain"
	"github.com/devrim/slipway/internal/core/ports"
	"github.com/devrim/slipway/internal/launch"
)

type DeploymentHandler struct {
	builder    ports.BuilderService
	launcher   *launch.Launcher
	containers ports.ContainerService
	envPort    string
}

// NewDeploymentHandler wires the builder and launcher behind the API.
// envPort is the raw PORT value the server process was started with; it is
// the middle rung of the port precedence for launched apps.
func NewDeploymentHandler(builder ports.BuilderService, launcher *launch.Launcher, containers ports.ContainerService, envPort string) *DeploymentHandler {
	return &DeploymentHandler{builder: builder, launcher: launcher, containers: containers, envPort: envPort}
}

type DeployRequest struct {
	RepoURL   string `json:"repo_url"`
	SourceDir string `json:"source_dir"`
	Image     string `json:"image"`
	Name      string `json:"name"`
	Port      int    `json:"port"`

	// Recipe overrides; zero values fall back to the defaults.
	BaseImage  string `json:"base_image"`
	Manifest   string `json:"manifest"`
	EntryPoint string `json:"entry_point"`
}

func (r DeployRequest) recipe() domain.Recipe {
	rec := domain.DefaultRecipe()
	if r.BaseImage != "" {
		rec.BaseImage = r.BaseImage
	}
	if r.Manifest != "" {
		rec.ManifestPath = r.Manifest
	}
	if r.EntryPoint != "" {
		rec.EntryPoint = r.EntryPoint
	}
	return rec
}

// Build builds an image without launching it.
func (h *DeploymentHandler) Build(c *fiber.Ctx) error {
	var req DeployRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.RepoURL == "" && req.SourceDir == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Repo URL or source dir is required",
		})
	}
	if req.Image == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Image name is required",
		})
	}

	result, err := h.builder.BuildImage(c.Context(), domain.BuildRequest{
		RepoURL:   req.RepoURL,
		SourceDir: req.SourceDir,
		ImageName: req.Image,
		Recipe:    req.recipe(),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Build failed: " + err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// Deploy builds (when source is given) and launches a deployment.
func (h *DeploymentHandler) Deploy(c *fiber.Ctx) error {
	var req DeployRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	rec := req.recipe()
	image := req.Image

	if req.RepoURL != "" || req.SourceDir != "" {
		if image == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Image name is required",
			})
		}
		// Blocking build; background workers are a later concern.
		if _, err := h.builder.BuildImage(c.Context(), domain.BuildRequest{
			RepoURL:   req.RepoURL,
			SourceDir: req.SourceDir,
			ImageName: image,
			Recipe:    rec,
		}); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Build failed: " + err.Error(),
			})
		}
	} else if image == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Image name or source is required",
		})
	}

	deployment, err := h.launcher.Launch(c.Context(), rec, image, launch.Options{
		Name:    req.Name,
		Port:    req.Port,
		EnvPort: h.envPort,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(deployment)
}

// ListContainers reports live daemon state, as opposed to ListDeployments
// which reports slipway's own records.
func (h *DeploymentHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.containers.ListContainers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(containers)
}

func (h *DeploymentHandler) ListDeployments(c *fiber.Ctx) error {
	deployments, err := h.launcher.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(deployments)
}

func (h *DeploymentHandler) StopDeployment(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Deployment ID is required",
		})
	}

	if err := h.launcher.Stop(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *DeploymentHandler) GetDeploymentLogs(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Deployment ID is required",
		})
	}

	logs, err := h.launcher.Logs(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set("Content-Type", "text/plain")
	return c.SendStream(logs)
}
