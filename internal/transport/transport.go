// Package transport wires the core's inbox to NATS. It mirrors the
// teacher's event subscriber's connection lifecycle (reconnect
// options, graceful "disabled" fallback when no URL is configured)
// generalized from a small fixed set of subjects to a single
// wildcard subscription feeding one shared inbox, and adds publish
// for the handler's outbound messages. Broker disconnects, reconnects
// and errors are only logged: the adapter publishes no bye and
// enqueues no message for them.
package transport

import (
	"time"

	"github.com/agora-project/agorad/internal/logger"
	"github.com/agora-project/agorad/internal/message"
	"github.com/agora-project/agorad/internal/queue"
	"github.com/nats-io/nats.go"
)

// Config configures the connection to the message broker.
type Config struct {
	URL      string
	User     string
	Password string
}

// Adapter is the remote pub/sub adapter. A zero-value URL produces a
// disabled adapter: Start becomes a no-op and Publish silently drops,
// matching the teacher's "NATS unavailable" degradation rather than
// failing the whole process.
type Adapter struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	enabled bool
	inbox   *queue.Queue
}

// New connects to the broker described by cfg; Start then subscribes so
// that every message under message.Root is pushed onto inbox. If cfg.URL is
// empty or the connection fails, New returns a disabled adapter and a
// nil error: the core logs a warning and keeps running without a
// transport, the same tolerance the teacher's subscriber shows.
func New(cfg Config, inbox *queue.Queue) (*Adapter, error) {
	log := logger.Transport()
	if cfg.URL == "" {
		log.Warn().Msg("transport URL not configured, running without a remote adapter")
		return &Adapter{enabled: false, inbox: inbox}, nil
	}

	opts := []nats.Option{
		nats.Name("agorad"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("transport disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("transport reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Warn().Err(err).Msg("transport error")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Warn().Msg("transport connection closed")
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.URL).Msg("failed to connect to transport, running without one")
		return &Adapter{enabled: false, inbox: inbox}, nil
	}
	log.Info().Str("url", conn.ConnectedUrl()).Msg("transport connected")

	return &Adapter{conn: conn, enabled: true, inbox: inbox}, nil
}

// Enabled reports whether the adapter is actually connected.
func (a *Adapter) Enabled() bool {
	return a.enabled
}

// Start subscribes to every client topic and feeds sanitised messages
// to the inbox. Messages that fail sanitisation are still enqueued,
// rewritten onto message.ErrorTopic, so they remain visible to the
// worker pool instead of being silently dropped.
func (a *Adapter) Start() error {
	if !a.enabled {
		return nil
	}
	wildcard := message.Root + ".>"
	sub, err := a.conn.Subscribe(wildcard, func(msg *nats.Msg) {
		m, err := message.Sanitize(message.Message{Topic: natsToTopic(msg.Subject), Payload: string(msg.Data)})
		if err != nil {
			logger.Transport().Warn().Err(err).Str("subject", msg.Subject).Msg("rejected message")
		}
		if enqueueErr := a.inbox.Enqueue(m); enqueueErr != nil {
			logger.Transport().Warn().Err(enqueueErr).Msg("failed to enqueue inbound message")
		}
	})
	if err != nil {
		return err
	}
	a.sub = sub
	return nil
}

// Publish sends a core-originated message (typically a configuration
// push) out to the named AID topic.
func (a *Adapter) Publish(topic, payload string) error {
	if !a.enabled {
		return nil
	}
	return a.conn.Publish(topicToNATS(topic), []byte(payload))
}

// Close unsubscribes, drains, and closes the connection. It is safe to
// call on a disabled adapter.
func (a *Adapter) Close() {
	if !a.enabled {
		return
	}
	if a.sub != nil {
		_ = a.sub.Unsubscribe()
	}
	_ = a.conn.Drain()
	a.conn.Close()
}

// natsToTopic and topicToNATS translate between the core's "/"
// separated topic grammar and NATS's "." subject grammar.
func natsToTopic(subject string) string {
	return dotsToSlashes(subject)
}

func topicToNATS(topic string) string {
	return slashesToDots(topic)
}

func dotsToSlashes(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c == '.' {
			out[i] = '/'
		}
	}
	return string(out)
}

func slashesToDots(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c == '/' {
			out[i] = '.'
		}
	}
	return string(out)
}
