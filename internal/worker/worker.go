// Package worker runs a fixed-size pool of goroutines draining the
// shared inbox and dispatching each message to the application
// handler its topic addresses.
//
// Grounded on docker-controller/pkg/events/subscriber.go's
// subject-to-handler dispatch table, adapted from that package's
// one-goroutine-per-subscription callback style to a pull-based pool
// of a caller-chosen size: spec.md requires the dispatch concurrency
// decoupled from however many goroutines NATS itself spins up for
// delivery, so every subscription feeds one shared queue.Queue and a
// fixed number of workers drain it.
package worker

import (
	"context"
	"sync"

	"github.com/agora-project/agorad/internal/aid"
	"github.com/agora-project/agorad/internal/logger"
	"github.com/agora-project/agorad/internal/message"
	"github.com/agora-project/agorad/internal/metrics"
	"github.com/agora-project/agorad/internal/model"
	"github.com/agora-project/agorad/internal/queue"
	"github.com/agora-project/agorad/internal/registry"
	"github.com/agora-project/agorad/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pool drains inbox with a fixed number of goroutines, dispatching
// each message by its parsed topic kind.
type Pool struct {
	inbox  *queue.Queue
	reg    *registry.Registry
	remote *transport.Adapter
	size   int
	log    *zerolog.Logger
	wg     sync.WaitGroup
}

// New creates a pool of size workers, 1 if size is non-positive.
func New(inbox *queue.Queue, reg *registry.Registry, remote *transport.Adapter, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{inbox: inbox, reg: reg, remote: remote, size: size, log: logger.Worker()}
}

// Start launches the pool's workers. Each runs until inbox is
// terminated.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Wait blocks until every worker has exited (the inbox was
// terminated and drained).
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		m, err := p.inbox.Dequeue()
		if err == queue.ErrTerminated {
			return
		}
		p.dispatch(ctx, m)
	}
}

// dispatch parses m's topic and routes it to the handler it
// addresses. Dispatch errors are logged, not propagated: one
// malformed or rejected message must never stall the pool.
func (p *Pool) dispatch(ctx context.Context, m message.Message) {
	metrics.InboxDepth.Set(float64(p.inbox.Len()))

	correlationID := uuid.NewString()
	log := p.log.With().Str("correlation_id", correlationID).Str("topic", m.Topic).Logger()

	if m.Topic == message.ErrorTopic {
		log.Warn().Str("payload", m.Payload).Msg("dropped a message that failed sanitisation")
		return
	}

	parsed, err := message.Parse(m.Topic)
	if err != nil {
		log.Warn().Err(err).Msg("dropped an unparseable topic")
		return
	}

	if parsed.Kind == message.KindSystem {
		p.handleSystem(m.Payload, &log)
		return
	}

	id, err := aid.Parse(parsed.AIDString)
	if err != nil {
		log.Warn().Err(err).Msg("dropped a message with an unparseable AID")
		return
	}

	switch parsed.Kind {
	case message.KindWelcome:
		p.handleWelcome(ctx, id, parsed.ClientID, m.Payload, &log)
	case message.KindKia, message.KindDisconnect:
		if h, ok := p.reg.Get(id); ok {
			h.ByeClient(parsed.ClientID)
		}
	case message.KindObservation:
		p.handleObservation(ctx, id, parsed.ClientID, m.Payload, &log)
	default:
		log.Warn().Str("kind", string(parsed.Kind)).Msg("dropped a message of an unexpected kind")
	}
}

func (p *Pool) handleSystem(payload string, log *zerolog.Logger) {
	if payload != "shutdown" {
		log.Warn().Str("payload", payload).Msg("ignored unrecognised system command")
		return
	}
	log.Info().Msg("received remote shutdown command")
	if p.remote != nil {
		p.remote.Close()
	}
	p.inbox.Terminate()
}

func (p *Pool) handleWelcome(ctx context.Context, id aid.AID, clientID, payload string, log *zerolog.Logger) {
	var desc *model.Description
	if payload != "" {
		d, err := model.ParseWelcome([]byte(payload), id)
		if err != nil {
			log.Warn().Err(err).Str("aid", id.String()).Msg("welcome payload did not parse, registering client without a description")
		} else {
			desc = &d
		}
	}
	h := p.reg.GetOrCreate(id)
	if err := h.WelcomeClient(ctx, clientID, desc); err != nil {
		log.Warn().Err(err).Str("aid", id.String()).Msg("failed to process welcome")
	}
}

func (p *Pool) handleObservation(ctx context.Context, id aid.AID, clientID, payload string, log *zerolog.Logger) {
	sec, nsec, point, err := model.ParseObservationPayload(payload)
	if err != nil {
		log.Warn().Err(err).Str("aid", id.String()).Msg("dropped an unparseable observation")
		return
	}
	h, ok := p.reg.Get(id)
	if !ok {
		log.Warn().Str("aid", id.String()).Msg("observation for an application with no welcome on record")
		return
	}
	obs := model.Observation{ClientID: clientID, Sec: sec, Nsec: nsec, Point: point}
	if err := h.ProcessObservation(ctx, obs); err != nil {
		log.Warn().Err(err).Str("aid", id.String()).Msg("failed to process observation")
		return
	}
	metrics.ObservationsTotal.Inc()
}
