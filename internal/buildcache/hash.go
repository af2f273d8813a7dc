// Package buildcache makes the dependency-layer cache an explicit,
// content-addressed mechanism instead of an implicit layer-ordering trick.
//
// The dependency-install stage is keyed by the manifest hash, the copy stage
// by the source-tree hash, and the step sequence itself by the recipe hash.
// A build is reusable only when all three match.
package buildcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/devrim/slipway/internal/core/domain"
	"github.com/devrim/slipway/internal/recipe"
)

// Key identifies one build's complete input set.
type Key struct {
	Manifest string
	Source   string
	Recipe   string
}

// writeField writes a length-prefixed field so that adjacent fields can
// never be confused for one another regardless of their content.
func writeField(h hash.Hash, data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	h.Write(prefix[:])
	h.Write(data)
}

// ManifestHash hashes the dependency manifest's exact bytes.
func ManifestHash(content []byte) string {
	h := sha256.New()
	writeField(h, content)
	return hex.EncodeToString(h.Sum(nil))
}

// RecipeHash hashes the build recipe so that a change to the base image,
// package list, entry point or declared port forces a rebuild.
func RecipeHash(r domain.Recipe) string {
	encoded, _ := json.Marshal(r)
	h := sha256.New()
	writeField(h, encoded)
	return hex.EncodeToString(h.Sum(nil))
}

// SourceTreeHash hashes the application source tree: every regular file's
// slash-separated relative path and content, in the lexical order WalkDir
// guarantees. Version-control metadata is excluded, as is the rendered
// build file itself.
func SourceTreeHash(root string) (string, error) {
	h := sha256.New()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == recipe.ContextFileName {
			return nil
		}

		writeField(h, []byte(rel))

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		content, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		writeField(h, content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash source tree: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
