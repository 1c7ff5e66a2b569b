package doe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configs() []map[string]string {
	return []map[string]string{
		{"threads": "1"},
		{"threads": "2"},
		{"threads": "4"},
	}
}

func TestNextWrapsAround(t *testing.T) {
	d := New(configs(), 2)
	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		c, ok := d.Next()
		require.True(t, ok)
		d.Record(c)
		seen[c["threads"]]++
	}
	assert.True(t, d.Done())
	for _, n := range seen {
		assert.Equal(t, 2, n)
	}
}

func TestNextExhausted(t *testing.T) {
	d := New(configs(), 0)
	assert.True(t, d.Done())
	_, ok := d.Next()
	assert.False(t, ok)
}

func TestRecordIgnoresUnknownConfiguration(t *testing.T) {
	d := New(configs(), 1)
	d.Record(map[string]string{"threads": "999"})
	assert.False(t, d.Done())
}

func TestRestoreReconstructsConfigsFromFingerprintsAlone(t *testing.T) {
	// A non-full-factorial DoE, as an external DoE plugin might return:
	// two knobs, but only three of the four possible combinations were
	// ever generated. Restore must recover exactly these three
	// configurations from the persisted fingerprints, with no outside
	// configuration list to consult.
	remaining := map[string]int{
		"mode=fast,threads=1": 0,
		"mode=fast,threads=2": 1,
		"mode=slow,threads=1": 2,
	}

	d := Restore(remaining)

	assert.Equal(t, 3, d.Len())
	assert.False(t, d.Done())

	seen := map[string]int{}
	for {
		c, ok := d.Next()
		if !ok {
			break
		}
		key := c["mode"] + "/" + c["threads"]
		seen[key]++
		if seen[key] > 3 {
			t.Fatalf("Next() looping without Record advancing remaining for %s", key)
		}
		d.Record(c)
	}
	assert.True(t, d.Done())
	assert.Equal(t, 1, seen["fast/2"])
	assert.Equal(t, 2, seen["slow/1"])
}

func TestRestoreEmptyRemainingIsDone(t *testing.T) {
	d := Restore(map[string]int{})
	assert.True(t, d.Done())
	_, ok := d.Next()
	assert.False(t, ok)
}
