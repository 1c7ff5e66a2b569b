package launcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakePlugin(t *testing.T, pluginRoot, name, script string) {
	t.Helper()
	dir := filepath.Join(pluginRoot, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.sh"), []byte(script), 0o755))
}

func TestValidateRejectsMissingPlugin(t *testing.T) {
	pluginRoot := t.TempDir()
	l := New(pluginRoot, t.TempDir())
	assert.Error(t, l.Validate("missing"))
}

func TestValidateRejectsNonExecutable(t *testing.T) {
	pluginRoot := t.TempDir()
	dir := filepath.Join(pluginRoot, "noexec")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.sh"), []byte("#!/bin/sh\n"), 0o644))
	l := New(pluginRoot, t.TempDir())
	assert.Error(t, l.Validate("noexec"))
}

func TestLaunchCreatesIsolatedWorkspaceAndWaits(t *testing.T) {
	pluginRoot := t.TempDir()
	writeFakePlugin(t, pluginRoot, "echoer", "#!/bin/sh\necho hello\n")
	workspaceRoot := t.TempDir()
	l := New(pluginRoot, workspaceRoot)

	id := aid.AID{Application: "app", Version: "1", Block: "main"}
	inv, err := l.Launch(context.Background(), "echoer", id, map[string]string{"FOO": "bar"})
	require.NoError(t, err)
	require.NoError(t, inv.Wait())
	assert.Greater(t, inv.Pid(), 0)

	_, err = os.Stat(filepath.Join(inv.Workspace, "plugin.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(inv.Workspace, "plugin_config.env"))
	assert.NoError(t, err)

	require.NoError(t, l.ClearWorkspace(inv.Workspace))
	_, err = os.Stat(inv.Workspace)
	assert.True(t, os.IsNotExist(err))
}

func TestLaunchReusesWorkspaceAcrossCalls(t *testing.T) {
	pluginRoot := t.TempDir()
	writeFakePlugin(t, pluginRoot, "echoer", "#!/bin/sh\necho hello\n")
	l := New(pluginRoot, t.TempDir())
	id := aid.AID{Application: "app", Version: "1", Block: "main"}

	first, err := l.Launch(context.Background(), "echoer", id, nil)
	require.NoError(t, err)
	require.NoError(t, first.Wait())

	second, err := l.Launch(context.Background(), "echoer", id, nil)
	require.NoError(t, err)
	require.NoError(t, second.Wait())

	assert.Equal(t, first.Workspace, second.Workspace)
	assert.Len(t, l.Workspaces(), 1)
}

func TestWorkspacesArePairwiseDistinct(t *testing.T) {
	pluginRoot := t.TempDir()
	writeFakePlugin(t, pluginRoot, "doe", "#!/bin/sh\ntrue\n")
	writeFakePlugin(t, pluginRoot, "cluster", "#!/bin/sh\ntrue\n")
	l := New(pluginRoot, t.TempDir())
	id := aid.AID{Application: "app", Version: "1", Block: "main"}

	a, err := l.Launch(context.Background(), "doe", id, nil)
	require.NoError(t, err)
	require.NoError(t, a.Wait())
	b, err := l.Launch(context.Background(), "cluster", id, nil)
	require.NoError(t, err)
	require.NoError(t, b.Wait())

	assert.NotEqual(t, a.Workspace, b.Workspace)
}

func TestCleanupRemovesEveryWorkspace(t *testing.T) {
	pluginRoot := t.TempDir()
	writeFakePlugin(t, pluginRoot, "doe", "#!/bin/sh\ntrue\n")
	l := New(pluginRoot, t.TempDir())
	id := aid.AID{Application: "app", Version: "1", Block: "main"}

	inv, err := l.Launch(context.Background(), "doe", id, nil)
	require.NoError(t, err)
	require.NoError(t, inv.Wait())

	require.NoError(t, l.Cleanup())
	_, err = os.Stat(inv.Workspace)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, l.Workspaces())
}
