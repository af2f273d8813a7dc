package domain

import "time"

// BuildRequest carries everything the builder needs to produce an image.
// Exactly one of RepoURL and SourceDir must be set.
type BuildRequest struct {
	RepoURL   string `json:"repo_url,omitempty"`
	SourceDir string `json:"source_dir,omitempty"`
	ImageName string `json:"image_name"`
	Recipe    Recipe `json:"recipe"`
}

// BuildResult describes a completed (or cache-reused) image build.
type BuildResult struct {
	ImageID      string `json:"image_id"`
	ImageName    string `json:"image_name"`
	ManifestHash string `json:"manifest_hash"`
	SourceHash   string `json:"source_hash"`
	CacheHit     bool   `json:"cache_hit"`
}

// LaunchSpec is the typed container start request: image, name, the argv to
// run, the environment to inject, and the single port published on 0.0.0.0.
type LaunchSpec struct {
	Image string
	Name  string
	Cmd   []string
	Env   []string
	Port  int
}

// Deployment represents one launched application container.
type Deployment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Image       string    `json:"image"`
	ContainerID string    `json:"container_id"`
	Port        int       `json:"port"`
	State       string    `json:"state"` // running, exited, stopped
	CreatedAt   time.Time `json:"created_at"`
}

// Container is a live container as reported by the runtime daemon.
type Container struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Status string `json:"status"`
	State  string `json:"state"`
}
