package registry

import (
	"context"
	"testing"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/handler"
	"github.com/agora-project/agorad/internal/launcher"
	"github.com/agora-project/agorad/internal/model"
	"github.com/agora-project/agorad/internal/storage/filetree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	st, err := filetree.New(t.TempDir())
	require.NoError(t, err)
	lnch := launcher.New(t.TempDir(), t.TempDir())
	r := New(st, lnch, nil)

	id := aid.AID{Application: "app", Version: "1", Block: "main"}
	h1 := r.GetOrCreate(id)
	h2 := r.GetOrCreate(id)
	assert.Same(t, h1, h2)
	assert.Equal(t, 1, r.Len())
}

func TestRecoverPopulatesFromStorage(t *testing.T) {
	dir := t.TempDir()
	st, err := filetree.New(dir)
	require.NoError(t, err)
	id := aid.AID{Application: "app", Version: "1", Block: "main"}
	ctx := context.Background()
	require.NoError(t, st.StoreDescription(ctx, id, model.Description{
		Knobs:   []model.Knob{{Name: "threads", Values: []string{"1"}}},
		Metrics: []model.Metric{{Name: "latency"}},
	}))

	st2, err := filetree.New(dir)
	require.NoError(t, err)
	lnch := launcher.New(t.TempDir(), t.TempDir())
	r := New(st2, lnch, nil)
	require.NoError(t, r.Recover(ctx))

	h, ok := r.Get(id)
	require.True(t, ok)
	assert.True(t, h.State().Has(handler.WithInformation))
	assert.Equal(t, 1, r.Len())
}

func TestEraseDropsHandlerAndStorage(t *testing.T) {
	st, err := filetree.New(t.TempDir())
	require.NoError(t, err)
	lnch := launcher.New(t.TempDir(), t.TempDir())
	r := New(st, lnch, nil)
	id := aid.AID{Application: "app", Version: "1", Block: "main"}
	r.GetOrCreate(id)

	ctx := context.Background()
	require.NoError(t, r.Erase(ctx, id))
	_, ok := r.Get(id)
	assert.False(t, ok)
}

func TestShutdownCleansLauncherWorkspaces(t *testing.T) {
	st, err := filetree.New(t.TempDir())
	require.NoError(t, err)
	lnch := launcher.New(t.TempDir(), t.TempDir())
	r := New(st, lnch, nil)
	r.GetOrCreate(aid.AID{Application: "app", Version: "1", Block: "main"})
	r.Shutdown()
	assert.Empty(t, lnch.Workspaces())
}
