package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-git/go-git/v5"

	"github.com/devrim/slipway/internal/buildcache"
	"github.com/devrim/slipway/internal/core/domain"
	"github.com/devrim/slipway/internal/logging"
	"github.com/devrim/slipway/internal/recipe"
)

// imageAPI is the slice of the daemon the builder needs. BuildImage's cache
// orchestration is written against it rather than the SDK client directly.
type imageAPI interface {
	build(ctx context.Context, buildContext io.Reader, imageName, dockerfile string) error
	inspectID(ctx context.Context, ref string) (string, error)
	exists(ctx context.Context, ref string) (bool, error)
}

// dockerImages implements imageAPI on the Docker SDK.
type dockerImages struct {
	cli *client.Client
}

func (d *dockerImages) build(ctx context.Context, buildContext io.Reader, imageName, dockerfile string) error {
	resp, err := d.cli.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:       []string{imageName},
		Dockerfile: dockerfile,
		Remove:     true, // remove intermediate containers
	})
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	// The stream carries per-step progress and, on failure, the step's
	// error. DisplayJSONMessagesStream surfaces that error verbatim.
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

func (d *dockerImages) inspectID(ctx context.Context, ref string) (string, error) {
	inspect, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to inspect image: %w", err)
	}
	return inspect.ID, nil
}

func (d *dockerImages) exists(ctx context.Context, ref string) (bool, error) {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect image: %w", err)
	}
	return true, nil
}

// Adapter implements ports.BuilderService using the Docker SDK.
type Adapter struct {
	images imageAPI
	cache  *buildcache.Index
}

func NewBuilderAdapter(cache *buildcache.Index) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{images: &dockerImages{cli: cli}, cache: cache}, nil
}

// BuildImage stages the source, consults the content-addressed cache, and
// builds the image if the inputs have not been seen before. Any failing
// build step aborts the whole build; the daemon's error is surfaced as-is.
func (a *Adapter) BuildImage(ctx context.Context, req domain.BuildRequest) (domain.BuildResult, error) {
	var result domain.BuildResult

	if err := req.Recipe.Validate(); err != nil {
		return result, err
	}
	if req.ImageName == "" {
		return result, fmt.Errorf("image name is required")
	}

	srcDir, cleanup, err := a.stageSource(ctx, req)
	if err != nil {
		return result, err
	}
	defer cleanup()

	manifest, err := os.ReadFile(filepath.Join(srcDir, req.Recipe.ManifestPath))
	if err != nil {
		return result, fmt.Errorf("failed to read dependency manifest %s: %w", req.Recipe.ManifestPath, err)
	}

	sourceHash, err := buildcache.SourceTreeHash(srcDir)
	if err != nil {
		return result, err
	}
	key := buildcache.Key{
		Manifest: buildcache.ManifestHash(manifest),
		Source:   sourceHash,
		Recipe:   buildcache.RecipeHash(req.Recipe),
	}

	result.ImageName = req.ImageName
	result.ManifestHash = key.Manifest
	result.SourceHash = key.Source

	if imageID, ok, err := a.cache.Lookup(key); err != nil {
		return result, err
	} else if ok {
		exists, err := a.images.exists(ctx, imageID)
		if err != nil {
			return result, err
		}
		if exists {
			logging.WithImage(req.ImageName).Info("reusing cached image", "image_id", imageID)
			result.ImageID = imageID
			result.CacheHit = true
			return result, nil
		}
		// Image was removed from the daemon; the index entry is stale.
		if err := a.cache.Forget(key); err != nil {
			return result, err
		}
	}

	if err := a.runBuild(ctx, srcDir, req); err != nil {
		return result, err
	}

	imageID, err := a.images.inspectID(ctx, req.ImageName)
	if err != nil {
		return result, err
	}
	result.ImageID = imageID

	if err := a.cache.Record(key, imageID, req.ImageName); err != nil {
		return result, err
	}
	return result, nil
}

// ImageExists checks if a Docker image is present in the daemon.
func (a *Adapter) ImageExists(ctx context.Context, imageName string) (bool, error) {
	return a.images.exists(ctx, imageName)
}

// stageSource resolves the build context directory. Repository URLs are
// shallow-cloned into a temporary directory; local paths are used in place.
func (a *Adapter) stageSource(ctx context.Context, req domain.BuildRequest) (string, func(), error) {
	switch {
	case req.RepoURL != "" && req.SourceDir != "":
		return "", nil, fmt.Errorf("repo URL and source dir are mutually exclusive")

	case req.RepoURL != "":
		tmpDir, err := os.MkdirTemp("", "slipway-build-*")
		if err != nil {
			return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		slog.Info("cloning repository", "url", req.RepoURL)
		_, err = git.PlainCloneContext(ctx, tmpDir, false, &git.CloneOptions{
			URL:   req.RepoURL,
			Depth: 1, // shallow clone for speed
		})
		if err != nil {
			os.RemoveAll(tmpDir)
			return "", nil, fmt.Errorf("failed to clone repo: %w", err)
		}
		return tmpDir, func() { os.RemoveAll(tmpDir) }, nil

	case req.SourceDir != "":
		info, err := os.Stat(req.SourceDir)
		if err != nil {
			return "", nil, fmt.Errorf("failed to stat source dir: %w", err)
		}
		if !info.IsDir() {
			return "", nil, fmt.Errorf("source path %s is not a directory", req.SourceDir)
		}
		return req.SourceDir, func() {}, nil

	default:
		return "", nil, fmt.Errorf("either repo URL or source dir is required")
	}
}

// runBuild renders the build file into the context, tars it and hands the
// daemon the build.
func (a *Adapter) runBuild(ctx context.Context, srcDir string, req domain.BuildRequest) error {
	rendered, err := recipe.Render(req.Recipe)
	if err != nil {
		return err
	}

	buildFile := filepath.Join(srcDir, recipe.ContextFileName)
	if err := os.WriteFile(buildFile, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("failed to write build file: %w", err)
	}
	defer os.Remove(buildFile)

	tar, err := archive.TarWithOptions(srcDir, &archive.TarOptions{
		ExcludePatterns: []string{".git"},
	})
	if err != nil {
		return fmt.Errorf("failed to create build context: %w", err)
	}
	defer tar.Close()

	logging.WithImage(req.ImageName).Info("building image", "base", req.Recipe.BaseImage)
	return a.images.build(ctx, tar, req.ImageName, recipe.ContextFileName)
}
