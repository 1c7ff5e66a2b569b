// Package registry owns every application handler for the lifetime of
// the process: a process-wide map keyed by AID, created lazily the
// first time a welcome addresses a new application, and torn down
// as a whole at shutdown.
//
// Grounded on the teacher's plugins.Runtime, which keeps its loaded
// plugins in a map[string]*LoadedPlugin behind a sync.RWMutex;
// generalized here from plugin name to application AID, and with the
// single shared launcher.Launcher's global Cleanup wired into
// Shutdown instead of per-plugin unload.
package registry

import (
	"context"
	"sync"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/apperr"
	"github.com/agora-project/agorad/internal/handler"
	"github.com/agora-project/agorad/internal/launcher"
	"github.com/agora-project/agorad/internal/logger"
	"github.com/agora-project/agorad/internal/metrics"
	"github.com/agora-project/agorad/internal/storage"
	"github.com/agora-project/agorad/internal/transport"
	"github.com/rs/zerolog"
)

// Registry is the process-wide application handler table.
type Registry struct {
	mu       sync.RWMutex
	handlers map[aid.AID]*handler.Handler

	storage  storage.Adapter
	launcher *launcher.Launcher
	remote   *transport.Adapter
	log      *zerolog.Logger
}

// New creates an empty registry. Handlers are created lazily by
// GetOrCreate; call Recover to pre-populate the registry from every
// AID the storage backend already holds state for.
func New(st storage.Adapter, lnch *launcher.Launcher, remote *transport.Adapter) *Registry {
	return &Registry{
		handlers: make(map[aid.AID]*handler.Handler),
		storage:  st,
		launcher: lnch,
		remote:   remote,
		log:      logger.Registry(),
	}
}

// GetOrCreate returns the handler for id, creating and registering one
// (without touching storage) if none exists yet.
func (r *Registry) GetOrCreate(id aid.AID) *handler.Handler {
	r.mu.RLock()
	h, ok := r.handlers[id]
	r.mu.RUnlock()
	if ok {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handlers[id]; ok {
		return h
	}
	h = handler.New(id, r.storage, r.launcher, r.remote)
	r.handlers[id] = h
	metrics.HandlersActive.Set(float64(len(r.handlers)))
	return h
}

// Get returns the handler for id if one has been registered, without
// creating it.
func (r *Registry) Get(id aid.AID) (*handler.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// Len reports the number of applications currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// AIDs returns every AID currently registered.
func (r *Registry) AIDs() []aid.AID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]aid.AID, 0, len(r.handlers))
	for id := range r.handlers {
		out = append(out, id)
	}
	return out
}

// Recover rebuilds the registry from every application the storage
// backend already holds state for, running each handler's own
// recovery load. It is the registry-wide half of spec.md's
// start_recovering sweep, invoked once at process startup.
func (r *Registry) Recover(ctx context.Context) error {
	ids, err := r.storage.Applications(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "list applications for recovery", err)
	}
	for _, id := range ids {
		h := r.GetOrCreate(id)
		if err := h.StartRecovering(ctx); err != nil {
			r.log.Warn().Str("aid", id.String()).Err(err).Msg("failed to recover application")
			continue
		}
		r.log.Info().Str("aid", id.String()).Str("state", h.State().String()).Msg("recovered application")
	}
	return nil
}

// Shutdown tears down every handler and releases every plugin
// workspace the shared launcher owns. It does not erase any
// application's persisted storage: that remains on disk for the next
// process's recovery sweep.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for _, h := range r.handlers {
		h.Shutdown()
	}
	r.mu.Unlock()

	if r.launcher != nil {
		if err := r.launcher.Cleanup(); err != nil {
			r.log.Warn().Err(err).Msg("failed to clean up plugin workspaces at shutdown")
		}
	}
}

// Erase permanently removes id's persisted storage and drops its
// in-memory handler, if any. This is an operator-maintenance action,
// never invoked as part of normal message processing or shutdown.
func (r *Registry) Erase(ctx context.Context, id aid.AID) error {
	if err := r.storage.Erase(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindStorage, "erase application", err)
	}
	r.mu.Lock()
	delete(r.handlers, id)
	metrics.HandlersActive.Set(float64(len(r.handlers)))
	r.mu.Unlock()
	return nil
}
