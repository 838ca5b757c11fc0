package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbodonnell/lockstep/pkg/replay"
	"github.com/cbodonnell/lockstep/pkg/repositories"
	"github.com/cbodonnell/lockstep/pkg/repositories/models"
	"github.com/cbodonnell/lockstep/pkg/types"
)

func execute(args ...string) (string, error) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func record(t *testing.T, path string, batches []types.Batch) {
	t.Helper()
	ctx := context.Background()
	repo, err := repositories.NewSQLiteRepository(ctx, path, repositories.Migrations("sqlite"))
	require.NoError(t, err)
	defer repo.Close(ctx)

	require.NoError(t, repo.CreateSession(ctx, &models.Session{ID: "s", PlayerID: 1, Role: "leader"}))
	archive, err := replay.EncodeArchive(batches)
	require.NoError(t, err)
	require.NoError(t, repo.SaveSegment(ctx, &models.Segment{
		SessionID: "s",
		PlayerID:  1,
		FirstTick: batches[0].Tick,
		LastTick:  batches[len(batches)-1].Tick,
		Archive:   archive,
	}))
}

func TestReplayCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	record(t, path, []types.Batch{
		{Tick: 1, Commands: []types.Command{{PlayerID: 1, Sequence: 1}}},
		{Tick: 2},
	})

	out, err := execute("replay", "--database-url", "sqlite://"+path, "--session", "s", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "tick=1 commands=[1:1]\ntick=2 commands=[]\n", out)

	_, err = execute("replay", "--database-url", "sqlite://"+path, "--session", "missing")
	assert.True(t, repositories.IsNotFound(err))
}

func TestReplayCommand_Gap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.db")
	record(t, path, []types.Batch{{Tick: 1}, {Tick: 3}})

	_, err := execute("replay", "--database-url", "sqlite://"+path, "--session", "s")
	assert.ErrorContains(t, err, "not continuous")
}

func TestRootCommand_Flags(t *testing.T) {
	_, err := execute("replay", "--session", "s", "--database-url", "", "--log-level", "loud")
	assert.ErrorContains(t, err, "log level")

	_, err = execute("replay", "--session", "s", "--database-url", "")
	assert.ErrorContains(t, err, "database-url")

	_, err = execute("follower")
	assert.ErrorContains(t, err, "leader")

	_, err = execute("leader", "--transport", "udp")
	assert.ErrorContains(t, err, "transport")

	_, err = execute("leader", "--auth", "static")
	assert.ErrorContains(t, err, "--token")
}
