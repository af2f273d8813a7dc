package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is the port baked into built images. It only takes effect
// when neither the runtime environment nor the caller overrides it.
const DefaultPort = 10000

// Recipe describes how to turn an ASGI application source tree into a
// runnable image. The zero value is not usable; start from DefaultRecipe.
type Recipe struct {
	// BaseImage is the pinned runtime image, e.g. "python:3.11-slim".
	// Pinning the minor version keeps rebuilds from drifting.
	BaseImage string `json:"base_image"`

	// SystemPackages are OS-level toolchain packages installed before the
	// dependency manifest, for native extension builds.
	SystemPackages []string `json:"system_packages"`

	// ManifestPath is the dependency manifest, relative to the source root.
	ManifestPath string `json:"manifest_path"`

	// EntryPoint is the module-qualified application object, e.g. "main:app".
	EntryPoint string `json:"entry_point"`

	// Port is the declared port baked into the image (ENV PORT / EXPOSE).
	Port int `json:"port"`
}

// DefaultRecipe returns the recipe for a typical FastAPI/uvicorn service.
func DefaultRecipe() Recipe {
	return Recipe{
		BaseImage:      "python:3.11-slim",
		SystemPackages: []string{"build-essential", "libpq-dev"},
		ManifestPath:   "requirements.txt",
		EntryPoint:     "main:app",
		Port:           DefaultPort,
	}
}

// Validate checks the fields the builder and launcher depend on.
func (r Recipe) Validate() error {
	if r.BaseImage == "" {
		return fmt.Errorf("recipe: base image is required")
	}
	if r.ManifestPath == "" {
		return fmt.Errorf("recipe: manifest path is required")
	}
	if strings.Contains(r.ManifestPath, "..") || strings.HasPrefix(r.ManifestPath, "/") {
		return fmt.Errorf("recipe: manifest path %q must be relative to the source root", r.ManifestPath)
	}
	module, attr, ok := strings.Cut(r.EntryPoint, ":")
	if !ok || module == "" || attr == "" {
		return fmt.Errorf("recipe: entry point %q must be of the form module:attribute", r.EntryPoint)
	}
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("recipe: port %d out of range", r.Port)
	}
	return nil
}

// ServerCommand builds the argv that starts the ASGI server bound to all
// interfaces on the given port. The argument list is constructed
// programmatically; nothing here passes through a shell.
func (r Recipe) ServerCommand(port int) []string {
	return []string{
		"uvicorn", r.EntryPoint,
		"--host", "0.0.0.0",
		"--port", strconv.Itoa(port),
	}
}
