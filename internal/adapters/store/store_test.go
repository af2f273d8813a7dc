package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devrim/slipway/internal/core/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "deployments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDeployment(id string) domain.Deployment {
	return domain.Deployment{
		ID:          id,
		Name:        "slipway-" + id,
		Image:       "myapp:latest",
		ContainerID: "cafe" + id,
		Port:        10000,
		State:       "running",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save then get round-trips", func(t *testing.T) {
		s := openTestStore(t)
		d := testDeployment("d1")
		require.NoError(t, s.SaveDeployment(ctx, d))

		got, err := s.GetDeployment(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, d.Name, got.Name)
		assert.Equal(t, d.Image, got.Image)
		assert.Equal(t, d.ContainerID, got.ContainerID)
		assert.Equal(t, d.Port, got.Port)
		assert.Equal(t, "running", got.State)
	})

	t.Run("get unknown deployment fails", func(t *testing.T) {
		s := openTestStore(t)
		_, err := s.GetDeployment(ctx, "missing")
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("list returns saved deployments", func(t *testing.T) {
		s := openTestStore(t)
		require.NoError(t, s.SaveDeployment(ctx, testDeployment("d1")))
		require.NoError(t, s.SaveDeployment(ctx, testDeployment("d2")))

		all, err := s.ListDeployments(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("mark stopped updates state", func(t *testing.T) {
		s := openTestStore(t)
		require.NoError(t, s.SaveDeployment(ctx, testDeployment("d1")))
		require.NoError(t, s.MarkStopped(ctx, "d1"))

		got, err := s.GetDeployment(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, "stopped", got.State)
	})

	t.Run("mark stopped on unknown deployment fails", func(t *testing.T) {
		s := openTestStore(t)
		assert.ErrorContains(t, s.MarkStopped(ctx, "missing"), "not found")
	})
}
