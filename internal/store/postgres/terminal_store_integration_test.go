//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/faceterm/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*TerminalStore, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString: fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
	})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, pool))
	// second run is a no-op
	require.NoError(t, RunMigrations(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return NewTerminalStore(pool), cleanup
}

func TestIntegration_TerminalStore(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	t.Run("add and list", func(t *testing.T) {
		require.NoError(t, st.Add(ctx, "abcd", "1461173"))
		require.NoError(t, st.Add(ctx, "abcd", "1461174"))
		require.NoError(t, st.Add(ctx, "efgh", "2000001"))

		list, err := st.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		require.Equal(t, "1461173", list[0].TerminalID)
		require.Equal(t, "1461174", list[1].TerminalID)
		require.Equal(t, "efgh", list[2].OrgID)
	})

	t.Run("terminal belongs to one organization", func(t *testing.T) {
		err := st.Add(ctx, "efgh", "1461173")
		require.ErrorIs(t, err, store.ErrTerminalAlreadyExists)
	})

	t.Run("replace keeps order", func(t *testing.T) {
		require.NoError(t, st.Replace(ctx, "abcd", "1461173", "1461175"))
		require.ErrorIs(t, st.Replace(ctx, "abcd", "1461173", "1461176"), store.ErrTerminalNotFound)
		require.ErrorIs(t, st.Replace(ctx, "abcd", "1461174", "2000001"), store.ErrTerminalAlreadyExists)

		list, err := st.List(ctx)
		require.NoError(t, err)
		require.Equal(t, "1461175", list[0].TerminalID)
		require.Equal(t, "1461174", list[1].TerminalID)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, st.Remove(ctx, "efgh", "2000001"))
		require.ErrorIs(t, st.Remove(ctx, "efgh", "2000001"), store.ErrTerminalNotFound)

		list, err := st.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
	})
}
