package aid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	a, err := Parse("blackscholes^2.1^main")
	require.NoError(t, err)
	assert.Equal(t, AID{Application: "blackscholes", Version: "2.1", Block: "main"}, a)
	assert.Equal(t, "blackscholes^2.1^main", a.String())
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{"", "onlyone", "a^b", "a^b^c^d", "^b^c", "a^^c"}
	for _, c := range cases {
		_, err := Parse(c)
		assert.Errorf(t, err, "expected error parsing %q", c)
	}
}

func TestEmpty(t *testing.T) {
	assert.True(t, AID{}.Empty())
	assert.False(t, AID{Application: "a", Version: "v", Block: "b"}.Empty())
}
