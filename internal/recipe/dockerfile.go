// Package recipe renders a Recipe into an ordered container build file.
//
// The step order is load-bearing: the dependency manifest is copied and
// installed before the rest of the source so that source-only changes reuse
// the dependency layer, while a manifest change invalidates it.
package recipe

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/devrim/slipway/internal/core/domain"
)

// ContextFileName is the name the rendered file is written under inside the
// build context. A distinctive name keeps it from clobbering a Dockerfile the
// application may already carry.
const ContextFileName = "Dockerfile.slipway"

const dockerfileTemplate = `FROM {{.BaseImage}}

WORKDIR /app

{{if .SystemPackages -}}
RUN apt-get update && \
    apt-get install -y --no-install-recommends {{join .SystemPackages " "}} && \
    rm -rf /var/lib/apt/lists/*

{{end -}}
COPY {{.ManifestPath}} ./
RUN pip install --no-cache-dir -r {{.ManifestPath}}

COPY . .

ENV PORT={{.Port}}
EXPOSE {{.Port}}

CMD {{.DefaultCommand}}
`

var tmpl = template.Must(template.New("dockerfile").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(dockerfileTemplate))

type templateData struct {
	domain.Recipe
	DefaultCommand string
}

// Render produces the build file for the given recipe. The baked-in CMD is
// exec form with the recipe's declared port; at launch time the container
// command is overridden with the resolved port, so no shell expansion of
// PORT ever happens.
func Render(r domain.Recipe) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	cmd, err := json.Marshal(r.ServerCommand(r.Port))
	if err != nil {
		return "", fmt.Errorf("failed to encode default command: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, templateData{Recipe: r, DefaultCommand: string(cmd)}); err != nil {
		return "", fmt.Errorf("failed to render dockerfile: %w", err)
	}
	return sb.String(), nil
}
