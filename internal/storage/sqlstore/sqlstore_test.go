package sqlstore

import (
	"context"
	"testing"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testAID() aid.AID {
	return aid.AID{Application: "blackscholes", Version: "1", Block: "main"}
}

func TestDescriptionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadDescription(ctx, testAID())
	require.NoError(t, err)
	assert.False(t, ok)

	d := model.Description{Knobs: []model.Knob{{Name: "threads"}}, Policy: model.Policy{RequiredObservationsPer: 2}}
	require.NoError(t, s.StoreDescription(ctx, testAID(), d))

	got, ok, err := s.LoadDescription(ctx, testAID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d, got)

	// Upsert overwrites rather than duplicating.
	d.Policy.RequiredObservationsPer = 5
	require.NoError(t, s.StoreDescription(ctx, testAID(), d))
	got, _, err = s.LoadDescription(ctx, testAID())
	require.NoError(t, err)
	assert.Equal(t, 5, got.Policy.RequiredObservationsPer)
}

func TestDoEReplacesWholeSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreDoE(ctx, testAID(), map[string]int{"a": 1, "b": 2}))
	require.NoError(t, s.StoreDoE(ctx, testAID(), map[string]int{"a": 0}))

	got, ok, err := s.LoadDoE(ctx, testAID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"a": 0}, got)
}

func TestObservationsOrderedByTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendObservation(ctx, testAID(), model.Observation{ClientID: "second", Sec: 2}))
	require.NoError(t, s.AppendObservation(ctx, testAID(), model.Observation{ClientID: "first", Sec: 1}))

	got, err := s.LoadObservations(ctx, testAID())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ClientID)
	assert.Equal(t, "second", got[1].ClientID)
}

func TestApplicationsListsDistinctAIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.StoreDescription(ctx, testAID(), model.Description{}))

	apps, err := s.Applications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, testAID(), apps[0])
}
