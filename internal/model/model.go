// Package model holds the plain data types exchanged between the
// application handler, the storage adapter, and the wire codec.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agora-project/agorad/internal/aid"
)

// Knob is one parameter the plugin can set before running.
type Knob struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// Feature is one environment/input characteristic observed, not set.
type Feature struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// Metric is one measured quantity, optionally predicted. ModelPlugin
// names the plugin that both trains this metric's model and, later,
// scores it during the prediction phase; Distribution marks a metric
// predicted as a (mean, std) pair instead of a bare scalar.
type Metric struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	ModelPlugin  string `json:"prediction_plugin"`
	Distribution bool   `json:"distribution,omitempty"`
}

// Policy is the autotuner configuration a block's welcome payload
// carries under its "agora" field: which plugins build the DoE and
// cluster, which plugin synthesises the final per-configuration
// prediction table once every metric has a valid model, how many
// configurations may be pushed to a client per exploration iteration,
// and a bag of plugin-opaque parameters passed through verbatim to
// every launched plugin's environment.
type Policy struct {
	DoEPlugin                     string            `json:"doe_plugin"`
	ClusteringPlugin              string            `json:"clustering_plugin"`
	PredictionPlugin              string            `json:"prediction_plugin"`
	NumConfigurationsPerIteration int               `json:"num_configurations_per_iteration"`
	RequiredObservationsPer       int               `json:"required_observations_per_configuration"`
	Params                        map[string]string `json:"parameters,omitempty"`
}

// Description is the static, once-per-AID application knowledge
// announced by the first client of a block.
type Description struct {
	ID       aid.AID   `json:"-"`
	Knobs    []Knob    `json:"knobs"`
	Features []Feature `json:"features,omitempty"`
	Metrics  []Metric  `json:"metrics"`
	Policy   Policy    `json:"agora"`
}

// RequiredObservationsPer is the number of observations the DoE must
// collect per configuration before it is considered explored. It is a
// thin accessor over Policy, kept so callers that only care about DoE
// construction don't need to know the field lives under "agora" on
// the wire.
func (d Description) RequiredObservationsPer() int {
	if d.Policy.RequiredObservationsPer <= 0 {
		return 1
	}
	return d.Policy.RequiredObservationsPer
}

// FeaturesEnabled reports whether this block declares any input
// features; when it does not, clustering is skipped entirely and
// every "features disabled" vacuous-truth clause in the FSM applies.
func (d Description) FeaturesEnabled() bool {
	return len(d.Features) > 0
}

// ModelPlugins returns the distinct plugin names referenced by the
// description's metrics, in first-seen order, used to build one
// launcher invocation per distinct plugin rather than one per metric.
func (d Description) ModelPlugins() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range d.Metrics {
		if m.ModelPlugin == "" || seen[m.ModelPlugin] {
			continue
		}
		seen[m.ModelPlugin] = true
		out = append(out, m.ModelPlugin)
	}
	return out
}

// Validate checks the invariants spec.md §3 lists for a parsed
// description: at least one knob, at least one metric, every domain
// non-empty, and (when want is non-zero) that the description's own AID
// matches the AID the welcome message was addressed to.
func (d Description) Validate(want aid.AID) error {
	if !want.Empty() && d.ID != want {
		return fmt.Errorf("model: description AID %s does not match welcome AID %s", d.ID, want)
	}
	if len(d.Knobs) == 0 {
		return fmt.Errorf("model: description has no knobs")
	}
	if len(d.Metrics) == 0 {
		return fmt.Errorf("model: description has no metrics")
	}
	for _, k := range d.Knobs {
		if len(k.Values) == 0 {
			return fmt.Errorf("model: knob %q has an empty domain", k.Name)
		}
	}
	for _, f := range d.Features {
		if len(f.Values) == 0 {
			return fmt.Errorf("model: feature %q has an empty domain", f.Name)
		}
	}
	return nil
}

// sortedKnobNames returns the names of d's knobs in ascending order,
// the order Configuration.Fingerprint lists them in.
func (d Description) sortedKnobNames() []string {
	names := make([]string, 0, len(d.Knobs))
	for _, k := range d.Knobs {
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return names
}

// Configuration is one knob-name -> value assignment.
type Configuration map[string]string

// Fingerprint returns the canonical, name-sorted encoding of c, used
// as the DoE map key and as the configuration_t of the original design.
func (c Configuration) Fingerprint() string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+"="+c[n])
	}
	return strings.Join(parts, ",")
}

// OperatingPoint is a full observation row: the configuration applied,
// the features in effect, and the metrics measured.
type OperatingPoint struct {
	Knobs    map[string]string `json:"knobs"`
	Features map[string]string `json:"features"`
	Metrics  map[string]string `json:"metrics"`
}

// Observation is one operating point tagged with the client and the
// timestamp it was measured at.
type Observation struct {
	ClientID string         `json:"client_id"`
	Sec      int64          `json:"timestamp_sec"`
	Nsec     int64          `json:"timestamp_nsec"`
	Point    OperatingPoint `json:"point"`
}

// Cluster is the set of centroids the model builder has identified
// over the feature space, each a partial operating point.
type Cluster struct {
	Centroids []map[string]string `json:"centroids"`
}

// PredictionRow is one candidate configuration together with its
// predicted metric values. Metrics declared as a distribution carry a
// "mean,std" encoded value; scalar metrics carry a bare value.
type PredictionRow struct {
	Knobs    map[string]string `json:"knobs"`
	Features map[string]string `json:"features,omitempty"`
	Metrics  map[string]string `json:"metrics"`
}

// Prediction is the full set of predicted rows for one cluster.
type Prediction struct {
	Rows []PredictionRow `json:"rows"`
}
