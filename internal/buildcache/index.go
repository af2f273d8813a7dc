package buildcache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Index maps build input keys to previously built image IDs. It is the
// durable half of the cache; whether the image still exists in the daemon
// is the builder's problem to verify.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) the cache index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS builds (
			manifest_hash TEXT NOT NULL,
			source_hash   TEXT NOT NULL,
			recipe_hash   TEXT NOT NULL,
			image_id      TEXT NOT NULL,
			image_name    TEXT NOT NULL,
			created_at    DATETIME NOT NULL,
			PRIMARY KEY (manifest_hash, source_hash, recipe_hash)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache index: %w", err)
	}

	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Lookup returns the image ID recorded for the key, if any.
func (ix *Index) Lookup(k Key) (string, bool, error) {
	var imageID string
	err := ix.db.QueryRow(`
		SELECT image_id FROM builds
		WHERE manifest_hash = ? AND source_hash = ? AND recipe_hash = ?
	`, k.Manifest, k.Source, k.Recipe).Scan(&imageID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache index: %w", err)
	}
	return imageID, true, nil
}

// Record stores the image built for the key, replacing any earlier entry.
func (ix *Index) Record(k Key, imageID, imageName string) error {
	_, err := ix.db.Exec(`
		INSERT OR REPLACE INTO builds
			(manifest_hash, source_hash, recipe_hash, image_id, image_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, k.Manifest, k.Source, k.Recipe, imageID, imageName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}
	return nil
}

// Forget drops the entry for a key. Used when a recorded image has been
// removed from the daemon behind our back.
func (ix *Index) Forget(k Key) error {
	_, err := ix.db.Exec(`
		DELETE FROM builds
		WHERE manifest_hash = ? AND source_hash = ? AND recipe_hash = ?
	`, k.Manifest, k.Source, k.Recipe)
	return err
}
