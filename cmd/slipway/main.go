package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/devrim/slipway/internal/adapters/builder"
	"github.com/devrim/slipway/internal/adapters/docker"
	"github.com/devrim/slipway/internal/adapters/store"
	"github.com/devrim/slipway/internal/buildcache"
	"github.com/devrim/slipway/internal/config"
	"github.com/devrim/slipway/internal/core/domain"
	"github.com/devrim/slipway/internal/launch"
	"github.com/devrim/slipway/internal/logging"
)

type services struct {
	builder  *builder.Adapter
	launcher *launch.Launcher
	cache    *buildcache.Index
	store    *store.Store
	cfg      *config.Config
}

func openServices() (*services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	cache, err := buildcache.OpenIndex(filepath.Join(cfg.DataDir, "buildcache.db"))
	if err != nil {
		return nil, nil, err
	}
	deployments, err := store.Open(filepath.Join(cfg.DataDir, "deployments.db"))
	if err != nil {
		cache.Close()
		return nil, nil, err
	}

	dockerAdapter, err := docker.NewAdapter()
	if err != nil {
		cache.Close()
		deployments.Close()
		return nil, nil, err
	}
	builderAdapter, err := builder.NewBuilderAdapter(cache)
	if err != nil {
		cache.Close()
		deployments.Close()
		return nil, nil, err
	}

	s := &services{
		builder:  builderAdapter,
		launcher: launch.NewLauncher(dockerAdapter, deployments),
		cache:    cache,
		store:    deployments,
		cfg:      cfg,
	}
	cleanup := func() {
		cache.Close()
		deployments.Close()
	}
	return s, cleanup, nil
}

func recipeFromFlags(c *cli.Context) domain.Recipe {
	rec := domain.DefaultRecipe()
	if v := c.String("base-image"); v != "" {
		rec.BaseImage = v
	}
	if v := c.String("manifest"); v != "" {
		rec.ManifestPath = v
	}
	if v := c.String("entrypoint"); v != "" {
		rec.EntryPoint = v
	}
	return rec
}

func buildRequestFromFlags(c *cli.Context) domain.BuildRequest {
	return domain.BuildRequest{
		RepoURL:   c.String("repo"),
		SourceDir: c.String("source"),
		ImageName: c.String("image"),
		Recipe:    recipeFromFlags(c),
	}
}

func main() {
	sourceFlags := []cli.Flag{
		&cli.StringFlag{Name: "repo", Usage: "git repository URL to build from"},
		&cli.StringFlag{Name: "source", Usage: "local source directory to build from"},
		&cli.StringFlag{Name: "image", Usage: "image name to build/launch", Required: true},
		&cli.StringFlag{Name: "base-image", Usage: "pinned base runtime image"},
		&cli.StringFlag{Name: "manifest", Usage: "dependency manifest path"},
		&cli.StringFlag{Name: "entrypoint", Usage: "module-qualified app object, e.g. main:app"},
	}

	app := &cli.App{
		Name:  "slipway",
		Usage: "build and launch ASGI application containers",
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "build an image from an application source tree",
				Flags: sourceFlags,
				Action: func(c *cli.Context) error {
					s, cleanup, err := openServices()
					if err != nil {
						return err
					}
					defer cleanup()

					result, err := s.builder.BuildImage(c.Context, buildRequestFromFlags(c))
					if err != nil {
						return err
					}
					if result.CacheHit {
						fmt.Fprintf(c.App.Writer, "reused %s (%s)\n", result.ImageName, result.ImageID)
					} else {
						fmt.Fprintf(c.App.Writer, "built %s (%s)\n", result.ImageName, result.ImageID)
					}
					return nil
				},
			},
			{
				Name:  "deploy",
				Usage: "build (if source is given) and launch a deployment",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "container name"},
					&cli.IntFlag{Name: "port", Usage: "explicit port override"},
					&cli.BoolFlag{Name: "attach", Usage: "wait for the container and inherit its exit code"},
				}, sourceFlags...),
				Action: func(c *cli.Context) error {
					s, cleanup, err := openServices()
					if err != nil {
						return err
					}
					defer cleanup()

					rec := recipeFromFlags(c)
					image := c.String("image")

					if c.String("repo") != "" || c.String("source") != "" {
						if _, err := s.builder.BuildImage(c.Context, buildRequestFromFlags(c)); err != nil {
							return err
						}
					}

					d, err := s.launcher.Launch(c.Context, rec, image, launch.Options{
						Name:    c.String("name"),
						Port:    c.Int("port"),
						EnvPort: s.cfg.EnvPort,
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s listening on 0.0.0.0:%d\n", d.ID, d.Port)

					if !c.Bool("attach") {
						return nil
					}
					code, err := s.launcher.Wait(c.Context, d.ID)
					if err != nil {
						return err
					}
					if code != 0 {
						// Exit status is inherited from the server process.
						return cli.Exit("", int(code))
					}
					return nil
				},
			},
			{
				Name:  "ps",
				Usage: "list deployments",
				Action: func(c *cli.Context) error {
					s, cleanup, err := openServices()
					if err != nil {
						return err
					}
					defer cleanup()

					deployments, err := s.launcher.List(c.Context)
					if err != nil {
						return err
					}
					for _, d := range deployments {
						fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%d\t%s\n",
							d.ID, d.Name, d.Image, d.Port, d.State)
					}
					return nil
				},
			},
			{
				Name:      "logs",
				Usage:     "print a deployment's logs",
				ArgsUsage: "<deployment-id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("deployment ID is required")
					}
					s, cleanup, err := openServices()
					if err != nil {
						return err
					}
					defer cleanup()

					logs, err := s.launcher.Logs(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					defer logs.Close()
					_, err = io.Copy(c.App.Writer, logs)
					return err
				},
			},
			{
				Name:      "stop",
				Usage:     "stop a deployment",
				ArgsUsage: "<deployment-id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("deployment ID is required")
					}
					s, cleanup, err := openServices()
					if err != nil {
						return err
					}
					defer cleanup()

					return s.launcher.Stop(c.Context, c.Args().First())
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
