// Package doe implements the design-of-experiments cursor: an ordered
// mapping from configuration fingerprint to remaining-observations
// counter, with a round-robin Next() cursor.
//
// It mirrors the fingerprint->counter map and next_configuration
// iterator of the original design, generalized from a single
// full-factorial generator to any caller-supplied configuration list.
package doe

import (
	"strings"
	"sync"
)

// DoE tracks, per configuration, how many more observations are still
// required before that configuration is considered explored.
type DoE struct {
	mu       sync.Mutex
	order    []string // fingerprints, insertion order
	remain   map[string]int
	configs  map[string]map[string]string
	cursor   int
}

// New builds a DoE where every configuration in configs starts out
// needing requiredObservations more samples.
func New(configs []map[string]string, requiredObservations int) *DoE {
	d := &DoE{
		remain:  make(map[string]int, len(configs)),
		configs: make(map[string]map[string]string, len(configs)),
	}
	for _, c := range configs {
		fp := fingerprint(c)
		if _, seen := d.remain[fp]; seen {
			continue
		}
		d.order = append(d.order, fp)
		d.remain[fp] = requiredObservations
		d.configs[fp] = c
	}
	return d
}

func fingerprint(c map[string]string) string {
	// Local copy of model.Configuration.Fingerprint to avoid an import
	// cycle; doe is a lower-level package than model's consumers.
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sortStrings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k + "=" + c[k]
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Len reports the number of distinct configurations tracked.
func (d *DoE) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Done reports whether every configuration has reached zero remaining
// observations.
func (d *DoE) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, fp := range d.order {
		if d.remain[fp] > 0 {
			return false
		}
	}
	return true
}

// Next returns the next configuration still requiring observations,
// advancing the round-robin cursor past it. It returns ok=false once
// every configuration is exhausted.
func (d *DoE) Next() (config map[string]string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.order) == 0 {
		return nil, false
	}
	for i := 0; i < len(d.order); i++ {
		idx := (d.cursor + i) % len(d.order)
		fp := d.order[idx]
		if d.remain[fp] > 0 {
			d.cursor = (idx + 1) % len(d.order)
			return d.configs[fp], true
		}
	}
	return nil, false
}

// Record decrements the remaining-observations counter for the
// configuration matching point, if any is still tracked. It is a
// no-op for a configuration DoE never generated (e.g. replayed after
// a description change).
func (d *DoE) Record(config map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fp := fingerprint(config)
	if n, ok := d.remain[fp]; ok && n > 0 {
		d.remain[fp] = n - 1
	}
}

// Restore rebuilds a DoE purely from a previously-persisted
// fingerprint->remaining map, recovering each configuration's knob
// values by parsing its own fingerprint string rather than
// recomputing a configuration list some other way. Storage never
// persists anything but the fingerprint->counter map (the knob values
// only ever existed in whatever plugin produced the live DoE, which
// need not have been a full-factorial expansion), so the fingerprint
// is the only source of truth recovery has for what a configuration
// actually was.
func Restore(remaining map[string]int) *DoE {
	d := &DoE{
		remain:  make(map[string]int, len(remaining)),
		configs: make(map[string]map[string]string, len(remaining)),
	}
	for fp, n := range remaining {
		d.order = append(d.order, fp)
		d.remain[fp] = n
		d.configs[fp] = parseFingerprint(fp)
	}
	sortStrings(d.order)
	return d
}

// parseFingerprint reverses fingerprint: splits a "name=value,..."
// string back into the config map it was built from. fingerprint
// writes names and values verbatim, without escaping, so the round
// trip holds only while no knob name contains '=' or ',' and no value
// contains ','.
func parseFingerprint(fp string) map[string]string {
	cfg := map[string]string{}
	if fp == "" {
		return cfg
	}
	for _, pair := range strings.Split(fp, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		cfg[k] = v
	}
	return cfg
}

// Snapshot returns the fingerprint->remaining map for persistence.
func (d *DoE) Snapshot() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int, len(d.remain))
	for k, v := range d.remain {
		out[k] = v
	}
	return out
}
