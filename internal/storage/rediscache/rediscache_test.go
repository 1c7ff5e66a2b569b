package rediscache

import (
	"context"
	"testing"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/model"
	"github.com/agora-project/agorad/internal/storage/filetree"
	"github.com/stretchr/testify/require"
)

func TestDisabledCacheDelegatesStraightThrough(t *testing.T) {
	backend, err := filetree.New(t.TempDir())
	require.NoError(t, err)
	defer backend.Close()

	c := New(Config{Enabled: false}, backend)
	ctx := context.Background()
	id := aid.AID{Application: "app", Version: "1", Block: "main"}

	desc := model.Description{
		Knobs:   []model.Knob{{Name: "threads", Values: []string{"1", "2"}}},
		Metrics: []model.Metric{{Name: "latency", Type: "double"}},
		Policy:  model.Policy{RequiredObservationsPer: 1},
	}
	require.NoError(t, c.StoreDescription(ctx, id, desc))

	got, ok, err := c.LoadDescription(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, desc.Knobs, got.Knobs)
}

func TestUnreachableRedisFallsBackToDisabled(t *testing.T) {
	backend, err := filetree.New(t.TempDir())
	require.NoError(t, err)
	defer backend.Close()

	c := New(Config{Enabled: true, Addr: "127.0.0.1:1"}, backend)
	require.Nil(t, c.client)

	require.NoError(t, c.Close())
}
