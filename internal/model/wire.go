// This file implements the JSON wire codec spec.md §6 describes: the
// welcome payload parser (which selects the one block matching the
// AID a client welcomed on) and the operating-point encoder used for
// both explore and prediction payloads. The encoder runs a
// deterministic post-processing pass over a generic JSON encoding,
// per Design Notes §9, rather than hand-rolling a second printer:
// a numeric-looking string value loses its wrapping quotes and any
// embedded newline is stripped, so the wire schema for explore/
// prediction payloads matches observation payloads byte-for-byte on
// the fields both share.
package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agora-project/agorad/internal/aid"
)

// welcomeBlock is one entry of the welcome payload's "blocks" array.
type welcomeBlock struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Block    string    `json:"block_name"`
	Knobs    []Knob    `json:"knobs"`
	Features []Feature `json:"features"`
	Metrics  []Metric  `json:"metrics"`
	Policy   Policy    `json:"agora"`
}

// welcomePayload is the top-level welcome JSON object: an application
// name/version plus every block that application declares. Only the
// block matching the AID the client welcomed on is retained.
type welcomePayload struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Blocks  []welcomeBlock `json:"blocks"`
}

// ParseWelcome decodes a welcome payload and returns the Description
// for the single block matching want. Unknown JSON fields are
// ignored (encoding/json's default); a missing required field or no
// matching block is a parse error, causing the caller to drop the
// welcome per spec.md §6.
func ParseWelcome(raw []byte, want aid.AID) (Description, error) {
	var payload welcomePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Description{}, fmt.Errorf("model: malformed welcome payload: %w", err)
	}
	if payload.Name == "" || payload.Version == "" || len(payload.Blocks) == 0 {
		return Description{}, fmt.Errorf("model: welcome payload is missing name, version, or blocks")
	}
	for _, b := range payload.Blocks {
		id := aid.AID{Application: payload.Name, Version: payload.Version, Block: b.Block}
		if id != want {
			continue
		}
		if len(b.Knobs) == 0 || len(b.Metrics) == 0 {
			return Description{}, fmt.Errorf("model: block %s has no knobs or no metrics", id)
		}
		d := Description{ID: id, Knobs: b.Knobs, Features: b.Features, Metrics: b.Metrics, Policy: b.Policy}
		return d, d.Validate(want)
	}
	return Description{}, fmt.Errorf("model: welcome payload has no block matching %s", want)
}

// ParseObservationPayload decodes an observation message body of the
// form "<sec> <ns> <json-op>", where the JSON is a single-element
// operating-points list.
func ParseObservationPayload(payload string) (sec, nsec int64, point OperatingPoint, err error) {
	fields := strings.SplitN(strings.TrimSpace(payload), " ", 3)
	if len(fields) != 3 {
		return 0, 0, OperatingPoint{}, fmt.Errorf("model: observation payload %q is not \"sec ns json\"", payload)
	}
	sec, err = strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, OperatingPoint{}, fmt.Errorf("model: observation seconds field invalid: %w", err)
	}
	nsec, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, OperatingPoint{}, fmt.Errorf("model: observation nanoseconds field invalid: %w", err)
	}
	var points []OperatingPoint
	if err := json.Unmarshal([]byte(fields[2]), &points); err != nil {
		return 0, 0, OperatingPoint{}, fmt.Errorf("model: observation operating point invalid: %w", err)
	}
	if len(points) != 1 {
		return 0, 0, OperatingPoint{}, fmt.Errorf("model: observation payload must carry exactly one operating point, got %d", len(points))
	}
	return sec, nsec, points[0], nil
}

// sentinelMetrics fills in every declared metric with the wire
// sentinel value (9999, or "9999,0" for a distribution metric) used
// on outbound explore/prediction payloads purely to keep the schema
// identical to an observation, per spec.md §6.
func sentinelMetrics(metrics []Metric) map[string]string {
	out := make(map[string]string, len(metrics))
	for _, m := range metrics {
		if m.Distribution {
			out[m.Name] = "9999,0"
		} else {
			out[m.Name] = "9999"
		}
	}
	return out
}

func sentinelFeatures(features []Feature) map[string]string {
	if len(features) == 0 {
		return nil
	}
	out := make(map[string]string, len(features))
	for _, f := range features {
		out[f.Name] = "9999"
	}
	return out
}

// EncodeExplore builds the single-entry operating-points JSON payload
// for an explore message: the target configuration with every
// feature/metric field present but sentinel-valued.
func EncodeExplore(d Description, config map[string]string) (string, error) {
	point := OperatingPoint{Knobs: config, Features: sentinelFeatures(d.Features), Metrics: sentinelMetrics(d.Metrics)}
	return encodeOperatingPoints([]OperatingPoint{point})
}

// EncodePrediction builds the operating-points JSON payload for a
// prediction message: one entry per predicted configuration.
func EncodePrediction(p Prediction) (string, error) {
	points := make([]OperatingPoint, len(p.Rows))
	for i, row := range p.Rows {
		points[i] = OperatingPoint{Knobs: row.Knobs, Features: row.Features, Metrics: row.Metrics}
	}
	return encodeOperatingPoints(points)
}

// numericLiteral matches a quoted number sitting in JSON *value*
// position: the quote must be followed by a delimiter that can only
// follow a value (",", "}", or "]"), never ":", so an object key that
// happens to look numeric is left alone.
var numericLiteral = regexp.MustCompile(`"(-?[0-9]+(?:\.[0-9]+)?)"([,}\]])`)

// encodeOperatingPoints marshals points with the standard JSON
// printer, then normalises it per Design Notes §9: numeric-looking
// string values lose their wrapping quotes (so "1" becomes 1, matching
// the original schema's bare-numeric knob/metric values) and any
// trailing newline the printer appended is removed.
func encodeOperatingPoints(points []OperatingPoint) (string, error) {
	raw, err := json.Marshal(points)
	if err != nil {
		return "", err
	}
	normalized := numericLiteral.ReplaceAll(raw, []byte("$1$2"))
	normalized = []byte(strings.ReplaceAll(string(normalized), "\n", ""))
	return string(normalized), nil
}
