// Package message defines the core's topic grammar and the
// sanitisation rules applied to every inbound message before it is
// enqueued.
//
// Topic layout follows the teacher's "<namespace>.<domain>.<action>"
// convention (see the streamspace events package this is grounded on),
// adapted to the three-field AID addressing scheme:
//
//	<root>/<aid>/<cid>/<kind>   per-client messages (welcome, kia,
//	                            observation, explore, unicast
//	                            prediction, abort)
//	<root>/<aid>/prediction     broadcast prediction, no cid
//	<root>/system               operator commands
//	<root>/error                 sanitisation rejects
package message

import (
	"fmt"
	"regexp"
	"strings"
)

// Root is the fixed top-level topic segment every client publishes
// under and the core subscribes to.
const Root = "margot"

// SystemTopic is the fixed topic operator commands (e.g. shutdown)
// arrive on.
const SystemTopic = Root + "/system"

// ErrorTopic is the synthetic topic a rejected message is rewritten to
// before being enqueued, so sanitisation failures are still visible to
// the worker pool and the operator instead of being silently dropped.
const ErrorTopic = Root + "/error"

// Kind names the suffix segment of a topic, identifying what the
// payload means to the application handler.
type Kind string

const (
	KindWelcome     Kind = "welcome"
	KindKia         Kind = "kia" // bye
	KindObservation Kind = "observation"
	KindExplore     Kind = "explore"
	KindPrediction  Kind = "prediction"
	KindAbort       Kind = "abort"
	KindSystem      Kind = "system"
	KindError       Kind = "error"
	KindDisconnect  Kind = "disconnect"
)

// topicPattern and payloadPattern whitelist the characters a topic or
// payload may contain. Any other character fails sanitisation, and
// Sanitize rewrites the message onto ErrorTopic.
// topicPattern extends spec.md's literal `[A-Za-z0-9_/^.]` whitelist
// with a dash: real client identifiers are routinely UUID- or
// "client-N"-shaped, and a CID rides inside the topic string itself,
// so excluding '-' would reject the overwhelming majority of
// legitimate traffic. See DESIGN.md's sanitisation note.
var (
	topicPattern   = regexp.MustCompile(`^[A-Za-z0-9_/^.-]+$`)
	payloadPattern = regexp.MustCompile(`^[A-Za-z0-9 _\-.:,@<>=;()\[\]{}^*+'"]*$`)
)

// Message is one topic/payload pair as received from, or sent to, the
// transport.
type Message struct {
	Topic   string
	Payload string
}

// Sanitize validates m's topic and payload against the character
// whitelists. A message failing sanitisation is not discarded: the
// caller should still enqueue the rewritten message returned alongside
// the error, under ErrorTopic, so a misbehaving client is visible to
// the worker pool rather than silently ignored.
func Sanitize(m Message) (Message, error) {
	if !topicPattern.MatchString(m.Topic) {
		return Message{Topic: ErrorTopic, Payload: m.Topic}, fmt.Errorf("message: topic %q contains disallowed characters", m.Topic)
	}
	if !payloadPattern.MatchString(m.Payload) {
		return Message{Topic: ErrorTopic, Payload: m.Topic}, fmt.Errorf("message: payload for topic %q contains disallowed characters", m.Topic)
	}
	return m, nil
}

// Parsed is the decomposed form of a well-formed topic. ClientID is
// empty for topics with no per-client segment: system commands and
// the broadcast prediction topic.
type Parsed struct {
	AIDString string
	ClientID  string
	Kind      Kind
}

// Parse splits a topic into its components. It accepts the three
// shapes the core publishes and subscribes to: "<root>/system",
// "<root>/<aid>/<kind>" (the broadcast prediction), and
// "<root>/<aid>/<cid>/<kind>" (every per-client message kind). Topics
// not matching one of these shapes (e.g. ErrorTopic itself) return an
// error.
func Parse(topic string) (Parsed, error) {
	parts := strings.Split(topic, "/")
	if len(parts) == 0 || parts[0] != Root {
		return Parsed{}, fmt.Errorf("message: topic %q is not a well-formed core topic", topic)
	}
	switch len(parts) {
	case 2:
		if parts[1] == "system" {
			return Parsed{Kind: KindSystem}, nil
		}
	case 3:
		return Parsed{AIDString: parts[1], Kind: Kind(parts[2])}, nil
	case 4:
		return Parsed{AIDString: parts[1], ClientID: parts[2], Kind: Kind(parts[3])}, nil
	}
	return Parsed{}, fmt.Errorf("message: topic %q is not a well-formed core topic", topic)
}

// Topic builds a well-formed per-client topic for the given AID
// string, client id, and kind.
func Topic(aidString, cid string, kind Kind) string {
	return strings.Join([]string{Root, aidString, cid, string(kind)}, "/")
}

// BroadcastTopic builds the AID-wide topic (no client segment) used
// for the broadcast prediction message.
func BroadcastTopic(aidString string, kind Kind) string {
	return strings.Join([]string{Root, aidString, string(kind)}, "/")
}
