package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintIsOrderIndependent(t *testing.T) {
	a := Configuration{"threads": "4", "block_size": "64"}
	b := Configuration{"block_size": "64", "threads": "4"}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintDiffersOnValue(t *testing.T) {
	a := Configuration{"threads": "4"}
	b := Configuration{"threads": "8"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestSortedKnobNames(t *testing.T) {
	d := Description{Knobs: []Knob{{Name: "z"}, {Name: "a"}, {Name: "m"}}}
	assert.Equal(t, []string{"a", "m", "z"}, d.sortedKnobNames())
}
