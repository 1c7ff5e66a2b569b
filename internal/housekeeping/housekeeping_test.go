package housekeeping

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/launcher"
	"github.com/agora-project/agorad/internal/registry"
	"github.com/agora-project/agorad/internal/storage/filetree"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*registry.Registry, *launcher.Launcher) {
	t.Helper()
	st, err := filetree.New(t.TempDir())
	require.NoError(t, err)
	lnch := launcher.New(t.TempDir(), t.TempDir())
	return registry.New(st, lnch, nil), lnch
}

func TestSweepOrphansRemovesUnknownWorkspaces(t *testing.T) {
	reg, lnch := newTestRegistry(t)

	known := aid.AID{Application: "app", Version: "1", Block: "main"}
	reg.GetOrCreate(known)

	root := lnch.WorkspaceRoot()
	knownDir := filepath.Join(root, "doe-plugin", known.String())
	orphanDir := filepath.Join(root, "doe-plugin", "orphan^1^main")
	require.NoError(t, os.MkdirAll(knownDir, 0o755))
	require.NoError(t, os.MkdirAll(orphanDir, 0o755))

	hk := New(reg, lnch)
	hk.sweepOrphans()

	_, err := os.Stat(knownDir)
	require.NoError(t, err)
	_, err = os.Stat(orphanDir)
	require.True(t, os.IsNotExist(err))
}

func TestSweepOrphansToleratesMissingWorkspaceRoot(t *testing.T) {
	reg, lnch := newTestRegistry(t)
	require.NoError(t, os.RemoveAll(lnch.WorkspaceRoot()))

	hk := New(reg, lnch)
	require.NotPanics(t, hk.sweepOrphans)
}

func TestStartAndStopRunsWithoutPanicking(t *testing.T) {
	reg, lnch := newTestRegistry(t)
	hk := New(reg, lnch)

	hk.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	hk.Stop()
}

func TestLogStatsToleratesEmptyRegistry(t *testing.T) {
	reg, lnch := newTestRegistry(t)
	hk := New(reg, lnch)
	require.NotPanics(t, hk.logStats)
}
