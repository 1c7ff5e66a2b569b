// Package handler implements the per-application state machine: the
// single place that owns an AID's DoE cursor, triggers plugin launches
// to build clusters/models/predictions, and answers client messages.
//
// Grounded on the teacher's plugins.Runtime: a locked, long-lived
// struct supervising external work, generalized from in-process plugin
// hooks to out-of-process launcher invocations driving the
// DoE/cluster/model/prediction state machine. As in Runtime, the
// handler drops its own lock around anything that can block for a
// while (waiting on a plugin, a bulk storage call) and re-validates
// what it assumed on reacquire, so one slow client never stalls every
// other client of the same application.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/apperr"
	"github.com/agora-project/agorad/internal/doe"
	"github.com/agora-project/agorad/internal/launcher"
	"github.com/agora-project/agorad/internal/logger"
	"github.com/agora-project/agorad/internal/message"
	"github.com/agora-project/agorad/internal/metrics"
	"github.com/agora-project/agorad/internal/model"
	"github.com/agora-project/agorad/internal/storage"
	"github.com/agora-project/agorad/internal/transport"
	"github.com/rs/zerolog"
)

// Handler owns all mutable state for one AID.
type Handler struct {
	id AID

	mu            sync.Mutex
	state         State
	activeClients map[string]struct{}
	description   model.Description
	doe           *doe.DoE
	cluster       model.Cluster
	prediction    model.Prediction
	sentThisRound int

	storage  storage.Adapter
	launcher *launcher.Launcher
	remote   *transport.Adapter
	log      *zerolog.Logger
}

// AID is a local alias kept for readability; handler.Handler always
// addresses exactly one aid.AID.
type AID = aid.AID

// New creates a handler for id. It does not touch storage; callers
// that are recovering state after a restart call LoadFromStorage
// afterwards.
func New(id AID, st storage.Adapter, lnch *launcher.Launcher, remote *transport.Adapter) *Handler {
	return &Handler{
		id:            id,
		state:         Clueless,
		activeClients: make(map[string]struct{}),
		storage:       st,
		launcher:      lnch,
		remote:        remote,
		log:           logger.Handler(),
	}
}

// State returns a snapshot of the handler's current state bitmask.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ActiveClients reports how many clients are currently registered.
func (h *Handler) ActiveClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.activeClients)
}

// LoadFromStorage is the per-handler half of spec.md §4.6's
// start_recovering(): it loads whatever storage already holds for this
// AID and, only where the recovered artefacts can't stand on their
// own, launches the plugins needed to produce something usable,
// mirroring application_handler.cpp's start_recovering()/start_doe()
// pair. Used both at registry boot (once per AID already on disk) and
// from WelcomeClient the first time a handler sees a description.
//
// A recovered prediction wins outright (broadcast, done). Failing
// that, valid models (and, if features are enabled, a valid cluster)
// are enough to retry just the prediction plugin. Failing that, an
// already-exhausted-or-missing DoE falls through to rebuildDoE, which
// launches Policy.DoEPlugin and lands the handler in Exploring on
// success or Undefined if the plugin produces nothing — the only way
// a cold start reaches UNDEFINED (Scenario S6).
func (h *Handler) LoadFromStorage(ctx context.Context) error {
	id := h.id
	h.mu.Lock()
	h.state = h.state.Set(Recovering)
	h.mu.Unlock()

	desc, hasDesc, err := h.storage.LoadDescription(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "recover description", err)
	}
	if !hasDesc {
		h.mu.Lock()
		h.state = h.state.Clear(Recovering)
		h.mu.Unlock()
		return nil
	}

	h.mu.Lock()
	h.description = desc
	h.state = h.state.Set(WithInformation).Clear(Clueless)
	h.mu.Unlock()

	remaining, hasDoE, err := h.storage.LoadDoE(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "recover doe", err)
	}
	var recovered *doe.DoE
	if hasDoE && len(remaining) > 0 {
		recovered = doe.Restore(remaining)
	}

	prediction, hasPrediction, err := h.storage.LoadPrediction(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "recover prediction", err)
	}
	if hasPrediction && len(prediction.Rows) > 0 {
		h.mu.Lock()
		h.prediction = prediction
		h.state = h.state.Set(WithPrediction).Clear(Recovering)
		h.mu.Unlock()
		return h.broadcastPrediction(ctx)
	}

	var cluster model.Cluster
	clusterOK := !desc.FeaturesEnabled()
	if desc.FeaturesEnabled() {
		cluster, _, err = h.storage.LoadCluster(ctx, id)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "recover cluster", err)
		}
		clusterOK = len(cluster.Centroids) > 0
	}
	modelsOK := true
	for _, m := range desc.Metrics {
		ok, err := h.storage.IsModelValid(ctx, id, m.Name)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "check model validity", err)
		}
		if !ok {
			modelsOK = false
			break
		}
	}

	if modelsOK && clusterOK {
		h.mu.Lock()
		h.state = h.state.Set(WithModel)
		if desc.FeaturesEnabled() {
			h.cluster = cluster
			h.state = h.state.Set(WithCluster)
		}
		h.state = h.state.Set(BuildingPrediction)
		h.mu.Unlock()

		p, ok := h.launchAndReadPrediction(ctx)
		h.mu.Lock()
		h.state = h.state.Clear(BuildingPrediction)
		h.mu.Unlock()
		if ok {
			if err := h.storage.StorePrediction(ctx, id, p); err != nil {
				return apperr.Wrap(apperr.KindStorage, "persist recovered prediction", err)
			}
			h.mu.Lock()
			h.prediction = p
			h.state = h.state.Set(WithPrediction).Clear(Recovering)
			h.mu.Unlock()
			return h.broadcastPrediction(ctx)
		}
	}

	if recovered != nil && !recovered.Done() {
		h.mu.Lock()
		h.doe = recovered
		h.state = h.state.Set(WithDoE).Set(Exploring).Clear(Recovering)
		h.mu.Unlock()
		return nil
	}

	h.mu.Lock()
	h.state = h.state.Clear(Recovering)
	h.mu.Unlock()
	return h.rebuildDoE(ctx)
}

// WelcomeClient registers a new client for this AID. If this is the
// first client ever seen (no description on file) and it supplies
// one, the handler transitions Clueless -> WithInformation, builds the
// initial DoE, and starts exploring. Either way, it then answers the
// client according to the current state, per the welcome response
// table: a pending configuration while Exploring, the stored
// prediction while WithPrediction, an abort while Undefined, and
// nothing while a build is in flight or recovery is underway.
func (h *Handler) WelcomeClient(ctx context.Context, clientID string, desc *model.Description) error {
	h.mu.Lock()
	h.activeClients[clientID] = struct{}{}
	needsDescription := h.state.Has(Clueless) && desc != nil
	if needsDescription {
		h.description = *desc
		h.state = h.state.Set(WithInformation).Clear(Clueless)
	}
	snapshot := h.description
	h.mu.Unlock()

	if needsDescription {
		if err := h.storage.StoreDescription(ctx, h.id, snapshot); err != nil {
			return apperr.Wrap(apperr.KindStorage, "persist description", err)
		}
		// Nothing else is on disk for this AID yet, so StartRecovering
		// falls straight through to rebuildDoE: the DoE is always
		// produced by launching Policy.DoEPlugin, never invented
		// in-process. A plugin that yields nothing lands the handler in
		// Undefined instead of ever having a DoE at all.
		if err := h.StartRecovering(ctx); err != nil {
			return err
		}
	}

	return h.respondToWelcome(clientID)
}

// respondToWelcome sends clientID whatever this handler currently owes
// a newly (re)connected client, per state.
func (h *Handler) respondToWelcome(clientID string) error {
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()

	switch {
	case state.Has(Undefined):
		return h.sendAbort(clientID)
	case state.Has(WithPrediction):
		return h.sendPredictionTo(clientID)
	case state.Has(Exploring):
		_, err := h.sendNextConfiguration(clientID)
		return err
	default:
		// Recovering, or a build is in flight: the client waits.
		return nil
	}
}

// buildingMask is the set of flags that mean "a plugin pipeline is in
// flight for this AID"; bye_client must not reset state out from under
// a build that is still running.
const buildingMask = BuildingDoE | BuildingCluster | BuildingModel | BuildingPrediction

// ByeClient deregisters a client, whether the disconnect arrives as an
// explicit bye or is synthesised by the transport from a broker-level
// disconnect notification; both are idempotent on a client ID that is
// no longer registered. When the last client leaves and no build is in
// flight, the handler resets to Clueless and drops its in-RAM DoE,
// cluster, and prediction; the description stays in memory and the
// shared launcher is untouched. The next welcome that carries a
// description replaces it and runs recovery again.
func (h *Handler) ByeClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.activeClients, clientID)
	if len(h.activeClients) != 0 || h.state.Any(buildingMask) {
		return
	}
	h.state = Clueless
	h.doe = nil
	h.cluster = model.Cluster{}
	h.prediction = model.Prediction{}
	h.sentThisRound = 0
}

// ProcessObservation records one operating point and advances the DoE
// cursor. If this observation exhausts the DoE, it drops the lock and
// drives the handler through cluster/model/prediction construction;
// otherwise it pushes the next configuration to every active client,
// honoring the per-iteration cap the block's policy declares.
func (h *Handler) ProcessObservation(ctx context.Context, o model.Observation) error {
	h.mu.Lock()
	if !h.state.Has(Exploring) {
		h.mu.Unlock()
		return apperr.New(apperr.KindParse, fmt.Sprintf("late observation for %s dropped: not exploring", h.id))
	}
	if h.doe == nil {
		h.mu.Unlock()
		return apperr.New(apperr.KindParse, fmt.Sprintf("observation for %s received before a DoE exists", h.id))
	}
	config := map[string]string{}
	for k, v := range o.Point.Knobs {
		config[k] = v
	}
	h.doe.Record(config)
	doeDone := h.doe.Done()
	maxPerRound := h.description.Policy.NumConfigurationsPerIteration
	continueExploring := !doeDone && (maxPerRound <= 0 || h.sentThisRound < maxPerRound)
	snapshot := h.doe.Snapshot()
	h.mu.Unlock()

	if err := h.storage.AppendObservation(ctx, h.id, o); err != nil {
		return apperr.Wrap(apperr.KindStorage, "append observation", err)
	}
	if err := h.storage.StoreDoE(ctx, h.id, snapshot); err != nil {
		return apperr.Wrap(apperr.KindStorage, "persist doe", err)
	}

	// The DoE still having unexplored configurations is necessary but
	// not sufficient to keep exploring this round: once the block's
	// policy cap on configurations-sent-per-iteration is reached, the
	// iteration boundary begins regardless of what's left in the DoE.
	if continueExploring {
		return h.broadcastNextConfiguration(ctx)
	}

	h.mu.Lock()
	h.state = h.state.Set(BuildingModel).Clear(Exploring)
	if h.description.FeaturesEnabled() {
		h.state = h.state.Set(BuildingCluster)
	}
	h.mu.Unlock()

	return h.runModelPipeline(ctx)
}

// broadcastNextConfiguration sends every currently active client the
// next configuration the DoE still needs observations for, unless the
// block's policy has already capped this iteration's dispatch count.
func (h *Handler) broadcastNextConfiguration(ctx context.Context) error {
	h.mu.Lock()
	maxPerRound := h.description.Policy.NumConfigurationsPerIteration
	if maxPerRound > 0 && h.sentThisRound >= maxPerRound {
		h.mu.Unlock()
		return nil
	}
	cfg, ok := h.doe.Next()
	if !ok {
		h.mu.Unlock()
		return nil
	}
	h.sentThisRound++
	payload, err := model.EncodeExplore(h.description, cfg)
	clients := make([]string, 0, len(h.activeClients))
	for c := range h.activeClients {
		clients = append(clients, c)
	}
	idStr := h.id.String()
	h.mu.Unlock()
	if err != nil {
		return apperr.Wrap(apperr.KindParse, "encode explore payload", err)
	}
	if h.remote == nil {
		return nil
	}
	for _, cid := range clients {
		if pubErr := h.remote.Publish(message.Topic(idStr, cid, message.KindExplore), payload); pubErr != nil {
			return apperr.Wrap(apperr.KindTransport, "publish explore configuration", pubErr)
		}
	}
	return nil
}

// sendNextConfiguration sends a single client the next configuration
// the DoE still needs observations for, used to answer a welcome
// arriving mid-exploration.
func (h *Handler) sendNextConfiguration(clientID string) (bool, error) {
	h.mu.Lock()
	if h.doe == nil {
		h.mu.Unlock()
		return false, nil
	}
	cfg, ok := h.doe.Next()
	if !ok {
		h.mu.Unlock()
		return false, nil
	}
	payload, err := model.EncodeExplore(h.description, cfg)
	idStr := h.id.String()
	h.mu.Unlock()
	if err != nil {
		return false, apperr.Wrap(apperr.KindParse, "encode explore payload", err)
	}
	if h.remote == nil {
		return true, nil
	}
	if pubErr := h.remote.Publish(message.Topic(idStr, clientID, message.KindExplore), payload); pubErr != nil {
		return false, apperr.Wrap(apperr.KindTransport, "publish explore configuration", pubErr)
	}
	return true, nil
}

func (h *Handler) sendAbort(clientID string) error {
	if h.remote == nil {
		return nil
	}
	h.mu.Lock()
	idStr := h.id.String()
	h.mu.Unlock()
	return h.remote.Publish(message.Topic(idStr, clientID, message.KindAbort), "{}")
}

func (h *Handler) sendPredictionTo(clientID string) error {
	h.mu.Lock()
	p := h.prediction
	idStr := h.id.String()
	h.mu.Unlock()
	payload, err := model.EncodePrediction(p)
	if err != nil {
		return apperr.Wrap(apperr.KindParse, "encode prediction payload", err)
	}
	if h.remote == nil {
		return nil
	}
	return h.remote.Publish(message.Topic(idStr, clientID, message.KindPrediction), payload)
}

// broadcastPrediction publishes the stored prediction on the AID-wide
// topic every client of this block is implicitly subscribed to,
// regardless of which client triggered the build that produced it.
func (h *Handler) broadcastPrediction(ctx context.Context) error {
	h.mu.Lock()
	p := h.prediction
	idStr := h.id.String()
	h.mu.Unlock()
	payload, err := model.EncodePrediction(p)
	if err != nil {
		return apperr.Wrap(apperr.KindParse, "encode prediction payload", err)
	}
	if h.remote == nil {
		return nil
	}
	return h.remote.Publish(message.BroadcastTopic(idStr, message.KindPrediction), payload)
}

// runModelPipeline launches one plugin invocation per distinct
// modelling plugin the description references, plus the clustering
// plugin when features are enabled, waits for all of them, and
// persists whatever output they produced. On success it proceeds to
// runPrediction; on failure it falls back to rebuilding the DoE so
// exploration can resume instead of leaving the handler stuck.
func (h *Handler) runModelPipeline(ctx context.Context) error {
	h.mu.Lock()
	id := h.id
	desc := h.description
	h.mu.Unlock()

	type job struct {
		plugin  string
		metrics []string
		isCluster bool
	}
	byPlugin := map[string][]string{}
	for _, m := range desc.Metrics {
		if m.ModelPlugin == "" {
			continue
		}
		byPlugin[m.ModelPlugin] = append(byPlugin[m.ModelPlugin], m.Name)
	}
	var jobs []job
	for plugin, metrics := range byPlugin {
		jobs = append(jobs, job{plugin: plugin, metrics: metrics})
	}
	if desc.FeaturesEnabled() && desc.Policy.ClusteringPlugin != "" {
		jobs = append(jobs, job{plugin: desc.Policy.ClusteringPlugin, isCluster: true})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(jobs))
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			env := map[string]string{"AGORA_AID": id.String()}
			if !j.isCluster {
				env["AGORA_METRICS"] = joinComma(j.metrics)
			}
			inv, err := h.launcher.Launch(ctx, j.plugin, id, env)
			if err != nil {
				errs[i] = err
				return
			}
			waitErr := inv.Wait()
			if waitErr != nil {
				metrics.PluginInvocationsTotal.WithLabelValues(j.plugin, "error").Inc()
				errs[i] = apperr.Wrap(apperr.KindPlugin, fmt.Sprintf("plugin %q exited with an error", j.plugin), waitErr)
				return
			}
			metrics.PluginInvocationsTotal.WithLabelValues(j.plugin, "ok").Inc()
			if j.isCluster {
				var c model.Cluster
				if err := readJSONOutput(inv.Workspace, &c); err != nil {
					errs[i] = err
					return
				}
				errs[i] = h.storage.StoreCluster(ctx, id, c)
				return
			}
			for _, metric := range j.metrics {
				blob, err := readBlobOutput(inv.Workspace, metric)
				if err != nil {
					errs[i] = err
					return
				}
				if err := h.storage.StoreModel(ctx, id, metric, blob); err != nil {
					errs[i] = err
					return
				}
			}
		}(i, j)
	}
	wg.Wait()

	var firstErr error
	for _, e := range errs {
		if e != nil && firstErr == nil {
			firstErr = e
		}
	}

	allValid := true
	for _, m := range desc.Metrics {
		ok, err := h.storage.IsModelValid(ctx, id, m.Name)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "check model validity", err)
		}
		if !ok {
			allValid = false
		}
	}
	clusterOK := true
	if desc.FeaturesEnabled() {
		c, hasCluster, err := h.storage.LoadCluster(ctx, id)
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, "load cluster", err)
		}
		clusterOK = hasCluster && len(c.Centroids) > 0
		if clusterOK {
			h.mu.Lock()
			h.cluster = c
			h.mu.Unlock()
		}
	}

	h.mu.Lock()
	h.state = h.state.Clear(BuildingModel).Clear(BuildingCluster)
	if allValid && clusterOK {
		h.state = h.state.Set(WithModel)
		if desc.FeaturesEnabled() {
			h.state = h.state.Set(WithCluster)
		}
	}
	h.mu.Unlock()

	if firstErr != nil {
		h.log.Warn().Str("aid", id.String()).Err(firstErr).Msg("model pipeline had at least one failing plugin")
	}

	if !allValid || !clusterOK {
		return h.rebuildDoE(ctx)
	}

	h.mu.Lock()
	h.state = h.state.Set(BuildingPrediction)
	h.mu.Unlock()
	return h.runPrediction(ctx)
}

// runPrediction launches the prediction-synthesis plugin and, on
// success, stores and broadcasts the resulting table.
func (h *Handler) runPrediction(ctx context.Context) error {
	p, ok := h.launchAndReadPrediction(ctx)

	h.mu.Lock()
	id := h.id
	h.state = h.state.Clear(BuildingPrediction)
	h.mu.Unlock()

	if !ok {
		return h.rebuildDoE(ctx)
	}
	if err := h.storage.StorePrediction(ctx, id, p); err != nil {
		return apperr.Wrap(apperr.KindStorage, "persist prediction", err)
	}

	h.mu.Lock()
	h.prediction = p
	h.state = h.state.Set(WithPrediction)
	h.mu.Unlock()

	return h.broadcastPrediction(ctx)
}

// launchAndReadPrediction launches the description's prediction plugin
// and reads back its output.json, reporting ok=false for every way
// that can fail to produce a usable prediction: no plugin configured,
// a launch or wait error, or a well-formed-but-empty result. Shared by
// runPrediction's normal iteration-boundary path and LoadFromStorage's
// recovery path, so both retry a prediction the same way.
func (h *Handler) launchAndReadPrediction(ctx context.Context) (model.Prediction, bool) {
	h.mu.Lock()
	id := h.id
	plugin := h.description.Policy.PredictionPlugin
	h.mu.Unlock()

	if plugin == "" {
		return model.Prediction{}, false
	}

	inv, err := h.launcher.Launch(ctx, plugin, id, map[string]string{"AGORA_AID": id.String()})
	if err != nil {
		h.log.Warn().Str("aid", id.String()).Err(err).Msg("failed to launch prediction plugin")
		return model.Prediction{}, false
	}
	waitErr := inv.Wait()
	if waitErr != nil {
		metrics.PluginInvocationsTotal.WithLabelValues(plugin, "error").Inc()
		h.log.Warn().Str("aid", id.String()).Err(waitErr).Msg("prediction plugin failed")
		return model.Prediction{}, false
	}
	metrics.PluginInvocationsTotal.WithLabelValues(plugin, "ok").Inc()

	var p model.Prediction
	if err := readJSONOutput(inv.Workspace, &p); err != nil || len(p.Rows) == 0 {
		return model.Prediction{}, false
	}
	return p, true
}

// rebuildDoE relaunches the DoE plugin when model or prediction
// construction failed, so exploration can resume instead of stranding
// the handler. If the plugin itself produces no usable configuration
// list, the handler gives up on this iteration and goes Undefined.
func (h *Handler) rebuildDoE(ctx context.Context) error {
	h.mu.Lock()
	id := h.id
	plugin := h.description.Policy.DoEPlugin
	requiredObs := h.description.RequiredObservationsPer()
	h.state = h.state.Set(BuildingDoE)
	h.mu.Unlock()

	var configs []map[string]string
	if plugin != "" {
		inv, err := h.launcher.Launch(ctx, plugin, id, map[string]string{"AGORA_AID": id.String()})
		if err == nil {
			waitErr := inv.Wait()
			if waitErr == nil {
				metrics.PluginInvocationsTotal.WithLabelValues(plugin, "ok").Inc()
				_ = readJSONOutput(inv.Workspace, &configs)
			} else {
				metrics.PluginInvocationsTotal.WithLabelValues(plugin, "error").Inc()
			}
		}
	}

	h.mu.Lock()
	h.state = h.state.Clear(BuildingDoE)
	if len(configs) == 0 {
		h.state = h.state.Set(Undefined)
		h.mu.Unlock()
		return nil
	}
	newDoE := doe.New(configs, requiredObs)
	h.doe = newDoE
	h.sentThisRound = 0
	h.state = h.state.Set(WithDoE).Set(Exploring).Clear(Undefined)
	h.mu.Unlock()

	if err := h.storage.StoreDoE(ctx, id, newDoE.Snapshot()); err != nil {
		return apperr.Wrap(apperr.KindStorage, "persist rebuilt doe", err)
	}

	h.mu.Lock()
	clients := make([]string, 0, len(h.activeClients))
	for c := range h.activeClients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, cid := range clients {
		if _, err := h.sendNextConfiguration(cid); err != nil {
			return err
		}
	}
	return nil
}

// StartRecovering drives the Recovering->steady-state transition after
// an unclean shutdown: it is the per-handler half of the registry-wide
// recovery sweep, invoked once per AID found already on disk.
func (h *Handler) StartRecovering(ctx context.Context) error {
	return h.LoadFromStorage(ctx)
}

// Shutdown marks every client gone. It leaves the in-memory DoE,
// cluster and prediction as they are, and it does not delete persisted
// storage, which remains available for the next process's recovery
// sweep.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeClients = make(map[string]struct{})
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// readJSONOutput decodes workspace/output.json into v, the convention
// every DoE/clustering/prediction plugin writes its structured result
// to.
func readJSONOutput(workspace string, v interface{}) error {
	raw, err := os.ReadFile(filepath.Join(workspace, "output.json"))
	if err != nil {
		return apperr.Wrap(apperr.KindPlugin, "read plugin output", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Wrap(apperr.KindPlugin, "decode plugin output", err)
	}
	return nil
}

// readBlobOutput reads the opaque model blob a modelling plugin wrote
// for one metric, conventionally named "model_<metric>.bin" in its
// workspace.
func readBlobOutput(workspace, metric string) ([]byte, error) {
	blob, err := os.ReadFile(filepath.Join(workspace, "model_"+metric+".bin"))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPlugin, "read model output", err)
	}
	return blob, nil
}
