package orchestrator

import (
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/logger"
)

// requestBind asks for the overlay once, repeated calls while a bind
// is in flight or the overlay is bound do nothing.
func (o *Orchestrator) requestBind() {
	if o.conn != Unbound {
		return
	}
	o.attempt++
	o.conn = BindRequested
	o.deps.Metrics.BindAttempt()
	o.log.Debug().Int(logger.AttemptField, o.attempt).Msg("Binding the overlay")
	go o.bind(o.attempt)
}

// bind dials the overlay and watches the connection until it ends.
func (o *Orchestrator) bind(attempt int) {
	peer, err := o.deps.Binder.Bind(o.ctx)
	if err != nil {
		o.post(bindFailedEvent{attempt: attempt, err: err})
		return
	}
	if !o.post(readyEvent{attempt: attempt, peer: peer}) {
		_ = peer.Close()
		return
	}
	select {
	case <-peer.Done():
		o.post(lostEvent{attempt: attempt})
	case <-o.done:
	}
}

func (o *Orchestrator) onReady(e readyEvent) {
	if e.attempt != o.attempt || o.conn != BindRequested {
		o.log.Debug().Int(logger.AttemptField, e.attempt).Msg("Dropping a stale overlay")
		_ = e.peer.Close()
		return
	}
	o.conn = Bound
	o.peer = e.peer
	o.failures = 0
	o.log.Info().Int(logger.AttemptField, e.attempt).Msg("Overlay is connected")
	o.register()
}

func (o *Orchestrator) onBindFailed(e bindFailedEvent) {
	if e.attempt != o.attempt || o.conn != BindRequested {
		return
	}
	o.conn = Unbound
	o.failures++
	o.log.Warn().Err(e.err).Int(logger.AttemptField, e.attempt).Msg("Couldn't bind the overlay")
	if o.failures >= o.opts.BindAttempts {
		o.log.Error().Msgf("Overlay is unreachable after %v attempts", o.failures)
		o.teardown(ReasonBindFailed)
		return
	}
	attempt := o.attempt
	time.AfterFunc(o.opts.RetryDelay, func() { o.post(retryEvent{attempt: attempt}) })
}

// onLost ends the orchestrator when the overlay goes away. No overlay
// means no user-visible game mode, so there is nothing to keep.
func (o *Orchestrator) onLost(e lostEvent) {
	if e.attempt != o.attempt || o.conn != Bound {
		return
	}
	o.log.Warn().Msg("Overlay connection is lost")
	o.conn = Unbound
	_ = o.peer.Close()
	o.peer = nil
	o.teardown(ReasonPeerLost)
}
