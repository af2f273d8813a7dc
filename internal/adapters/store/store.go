// Package store persists deployment records in sqlite so that listing and
// stopping survive a restart of slipway itself.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/devrim/slipway/internal/core/domain"
)

// Store implements ports.DeploymentStore on sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the deployment database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open deployment store: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS deployments (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			image        TEXT NOT NULL,
			container_id TEXT NOT NULL,
			port         INTEGER NOT NULL,
			state        TEXT NOT NULL,
			created_at   TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize deployment store: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveDeployment(ctx context.Context, d domain.Deployment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (id, name, image, container_id, port, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Name, d.Image, d.ContainerID, d.Port, d.State, d.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}
	return nil
}

func (s *Store) GetDeployment(ctx context.Context, id string) (domain.Deployment, error) {
	var d domain.Deployment
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, image, container_id, port, state, created_at
		FROM deployments WHERE id = ?
	`, id).Scan(&d.ID, &d.Name, &d.Image, &d.ContainerID, &d.Port, &d.State, &createdAt)
	if err == sql.ErrNoRows {
		return d, fmt.Errorf("deployment %s not found", id)
	}
	if err != nil {
		return d, fmt.Errorf("failed to get deployment: %w", err)
	}
	d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return d, fmt.Errorf("failed to parse deployment timestamp: %w", err)
	}
	return d, nil
}

func (s *Store) ListDeployments(ctx context.Context) ([]domain.Deployment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, image, container_id, port, state, created_at
		FROM deployments ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var result []domain.Deployment
	for rows.Next() {
		var d domain.Deployment
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Name, &d.Image, &d.ContainerID, &d.Port, &d.State, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse deployment timestamp: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) MarkStopped(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deployments SET state = 'stopped' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark deployment stopped: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("deployment %s not found", id)
	}
	return nil
}
