// Package storage defines the durable-state contract every backend
// (file-tree or SQL) implements, keyed by application AID.
package storage

import (
	"context"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/model"
)

// Adapter is the storage contract the application handler depends on.
// Every method must be atomic with respect to concurrent calls for the
// same AID, and a value written by Store* must be visible to a
// subsequent Load* call, including across process restarts.
type Adapter interface {
	StoreDescription(ctx context.Context, id aid.AID, d model.Description) error
	LoadDescription(ctx context.Context, id aid.AID) (model.Description, bool, error)

	StoreDoE(ctx context.Context, id aid.AID, remaining map[string]int) error
	LoadDoE(ctx context.Context, id aid.AID) (map[string]int, bool, error)

	AppendObservation(ctx context.Context, id aid.AID, o model.Observation) error
	LoadObservations(ctx context.Context, id aid.AID) ([]model.Observation, error)

	StoreModel(ctx context.Context, id aid.AID, metric string, blob []byte) error
	LoadModel(ctx context.Context, id aid.AID, metric string) ([]byte, bool, error)

	// IsModelValid reports whether a model-building plugin has written
	// a usable model for (id, metric). The plugin alone decides
	// validity by what it writes; the core only asks whether something
	// is there.
	IsModelValid(ctx context.Context, id aid.AID, metric string) (bool, error)

	StoreCluster(ctx context.Context, id aid.AID, c model.Cluster) error
	LoadCluster(ctx context.Context, id aid.AID) (model.Cluster, bool, error)

	StorePrediction(ctx context.Context, id aid.AID, p model.Prediction) error
	LoadPrediction(ctx context.Context, id aid.AID) (model.Prediction, bool, error)

	// Erase removes every persisted entity for id. It is not part of
	// the normal per-application lifecycle (spec.md keeps a handler's
	// storage around across restarts so recovery can find it); it
	// exists for an operator-driven "forget this application" action.
	Erase(ctx context.Context, id aid.AID) error

	// Applications lists every AID the backend currently holds state
	// for, used by start_recovering to rebuild the registry on boot.
	Applications(ctx context.Context) ([]aid.AID, error)

	// SupportsConcurrency reports whether distinct AIDs can safely be
	// accessed concurrently by this backend instance. Both shipped
	// backends return true; the method exists so a future
	// single-file-handle backend can opt out without changing the
	// interface.
	SupportsConcurrency() bool

	Close() error
}
