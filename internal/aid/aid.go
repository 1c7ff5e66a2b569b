// Package aid identifies a managed application instance.
package aid

import (
	"fmt"
	"strings"
)

// Separator between the three fields of an AID on the wire and in topics.
const Separator = "^"

// AID names one running instance of one version of one application.
type AID struct {
	Application string
	Version     string
	Block       string
}

// String renders the AID in its canonical "application^version^block" form.
func (a AID) String() string {
	return strings.Join([]string{a.Application, a.Version, a.Block}, Separator)
}

// Parse decodes an AID from its canonical string form.
func Parse(s string) (AID, error) {
	parts := strings.Split(s, Separator)
	if len(parts) != 3 {
		return AID{}, fmt.Errorf("aid: %q does not have three %q-separated fields", s, Separator)
	}
	for _, p := range parts {
		if p == "" {
			return AID{}, fmt.Errorf("aid: %q has an empty field", s)
		}
	}
	return AID{Application: parts[0], Version: parts[1], Block: parts[2]}, nil
}

// Empty reports whether a is the zero AID.
func (a AID) Empty() bool {
	return a.Application == "" && a.Version == "" && a.Block == ""
}
