package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAcceptsWellFormed(t *testing.T) {
	m := Message{Topic: Topic("app^1.0^main", "client-1", KindObservation), Payload: `{"ok":true}`}
	out, err := Sanitize(m)
	require.NoError(t, err)
	assert.Equal(t, m, out)
}

func TestSanitizeRejectsBadTopicButStillEnqueueable(t *testing.T) {
	m := Message{Topic: "margot/app;rm -rf/c1/observation", Payload: "x"}
	out, err := Sanitize(m)
	require.Error(t, err)
	assert.Equal(t, ErrorTopic, out.Topic)
}

func TestSanitizeRejectsControlCharsInPayload(t *testing.T) {
	m := Message{Topic: Topic("a^1^b", "c1", KindKia), Payload: "bad\x00byte"}
	_, err := Sanitize(m)
	assert.Error(t, err)
}

func TestParseRoundTrip(t *testing.T) {
	topic := Topic("blackscholes^2^main", "client-7", KindExplore)
	p, err := Parse(topic)
	require.NoError(t, err)
	assert.Equal(t, "blackscholes^2^main", p.AIDString)
	assert.Equal(t, "client-7", p.ClientID)
	assert.Equal(t, KindExplore, p.Kind)
}

func TestParseBroadcastPredictionHasNoClientID(t *testing.T) {
	topic := BroadcastTopic("blackscholes^2^main", KindPrediction)
	p, err := Parse(topic)
	require.NoError(t, err)
	assert.Equal(t, "blackscholes^2^main", p.AIDString)
	assert.Empty(t, p.ClientID)
	assert.Equal(t, KindPrediction, p.Kind)
}

func TestParseSystemTopic(t *testing.T) {
	p, err := Parse(SystemTopic)
	require.NoError(t, err)
	assert.Equal(t, KindSystem, p.Kind)
	assert.Empty(t, p.AIDString)
	assert.Empty(t, p.ClientID)
}

func TestParseRejectsErrorTopic(t *testing.T) {
	_, err := Parse(ErrorTopic)
	assert.Error(t, err)
}
