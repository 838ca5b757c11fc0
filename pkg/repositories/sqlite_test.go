package repositories

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/lockstep/pkg/repositories/models"
)

func newSQLite(t *testing.T) Repository {
	t.Helper()
	ctx := context.Background()
	repo, err := NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "lockstep.db"), Migrations("sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close(ctx) })
	return repo
}

func exerciseRepository(t *testing.T, repo Repository) {
	ctx := context.Background()
	id := uuid.NewString()

	_, err := repo.GetSession(ctx, "missing", 1)
	assert.True(t, IsNotFound(err))

	session := &models.Session{ID: id, PlayerID: 2, Role: "follower"}
	require.NoError(t, repo.CreateSession(ctx, session))
	assert.NotZero(t, session.CreatedAt)
	// reconnecting with the same id is not an error
	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: id, PlayerID: 2, Role: "follower"}))

	got, err := repo.GetSession(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	for _, seg := range []*models.Segment{
		{SessionID: id, PlayerID: 2, FirstTick: 11, LastTick: 20, Archive: []byte("b")},
		{SessionID: id, PlayerID: 2, FirstTick: 1, LastTick: 10, Archive: []byte("a")},
		{SessionID: id, PlayerID: 3, FirstTick: 1, LastTick: 5, Archive: []byte("other")},
	} {
		require.NoError(t, repo.SaveSegment(ctx, seg))
	}

	segments, err := repo.ListSegments(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, uint64(1), segments[0].FirstTick)
	assert.Equal(t, uint64(10), segments[0].LastTick)
	assert.Equal(t, []byte("a"), segments[0].Archive)
	assert.Equal(t, uint64(11), segments[1].FirstTick)

	segments, err = repo.ListSegments(ctx, "none", 2)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestSQLiteRepository(t *testing.T) {
	exerciseRepository(t, newSQLite(t))
}

func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("LOCKSTEP_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("LOCKSTEP_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, url, Migrations("postgres"))
	require.NoError(t, err)
	defer repo.Close(ctx)

	exerciseRepository(t, repo)
}

func TestMigrations_Bundled(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres"} {
		_, err := os.Stat(filepath.Join("migrations", driver, "001_replay.sql"))
		assert.NoError(t, err, driver)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Close(ctx))

	_, err = Open(ctx, "mysql://localhost/db")
	assert.ErrorContains(t, err, "unsupported database scheme")

	_, err = Open(ctx, "sqlite://")
	assert.Error(t, err)
}
