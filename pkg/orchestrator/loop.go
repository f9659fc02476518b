package orchestrator

import (
	"errors"
	"fmt"

	"github.com/chaldeaprjkt/gamespace/pkg/calls"
	"github.com/chaldeaprjkt/gamespace/pkg/games"
	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/chaldeaprjkt/gamespace/pkg/overlay"
)

type event any

type (
	deliverEvent struct {
		cmd        *Command
		flags      int
		startCount int
		reply      chan Disposition
	}
	readyEvent struct {
		attempt int
		peer    overlay.Peer
	}
	bindFailedEvent struct {
		attempt int
		err     error
	}
	lostEvent  struct{ attempt int }
	retryEvent struct{ attempt int }
	callEvent  struct{ state calls.State }
)

func (o *Orchestrator) loop() {
	defer close(o.done)
	for o.state != Destroyed {
		o.handle(<-o.events)
		o.publish()
	}
	o.log.Debug().Str("reason", o.reason).Msg("Destroyed")
}

func (o *Orchestrator) handle(ev event) {
	switch e := ev.(type) {
	case deliverEvent:
		e.reply <- o.onCommand(e)
	case readyEvent:
		o.onReady(e)
	case bindFailedEvent:
		o.onBindFailed(e)
	case lostEvent:
		o.onLost(e)
	case retryEvent:
		if e.attempt == o.attempt && o.conn == Unbound {
			o.requestBind()
		}
	case callEvent:
		if o.conn == Bound {
			if err := o.peer.OnCallState(string(e.state)); err != nil {
				o.log.Warn().Err(err).Msg("Couldn't send the call state")
			}
		}
	default:
		o.log.Warn().Msgf("unhandled event %T", ev)
	}
}

func (o *Orchestrator) onCommand(e deliverEvent) Disposition {
	if e.cmd == nil && e.flags == 0 && e.startCount > 1 {
		return o.recoverFromDeath()
	}
	if e.cmd == nil {
		return NotSticky
	}

	o.pending = e.cmd
	switch e.cmd.Action {
	case ActionStart:
		o.start()
	case ActionStop:
		o.stopped = true
		o.teardown(ReasonStop)
	default:
		o.log.Warn().Msgf("unknown action %q", e.cmd.Action)
	}
	return NotSticky
}

// start runs the registration right away when the overlay is bound,
// otherwise it waits for the overlay.
func (o *Orchestrator) start() {
	if o.conn == Bound {
		if cur, ok := o.deps.Sessions.Current(); ok && o.pending != nil && cur.App == o.pending.App {
			o.log.Info().Str(logger.AppField, cur.App).Msg("Game is already active, restarting the session")
		}
		o.register()
		return
	}
	o.state = Starting
	o.requestBind()
}

// register runs the registration sequence once the overlay is ready.
// Any failure here ends the orchestrator, it never stays half-active.
func (o *Orchestrator) register() {
	if o.conn != Bound {
		o.log.Warn().Msg("Overlay is not connected, retrying the connection")
		o.requestBind()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Msgf("Error during the session registration: %v", r)
			o.teardown(ReasonFailure)
		}
	}()

	if err := o.registration(); err != nil {
		reason := ReasonFailure
		if errors.Is(err, ErrNoPendingCommand) || errors.Is(err, ErrNoApp) {
			reason = ReasonProtocol
		}
		o.log.Error().Err(err).Msg("Session registration has failed, stopping")
		o.teardown(reason)
	}
}

func (o *Orchestrator) registration() error {
	cmd := o.pending
	o.pending = nil
	if cmd == nil {
		return ErrNoPendingCommand
	}
	app := cmd.App
	if app == "" {
		return ErrNoApp
	}

	if _, ok := o.deps.Sessions.Unregister(); ok {
		o.deps.Metrics.SessionUnregistered()
	}
	s := o.deps.Sessions.Register(app)
	log := o.log.Extend(o.log.With().Str(logger.AppField, app).Str(logger.SessionField, s.Short()))

	o.selector.SetActiveGame(app)
	o.selector.Select(s.Id, app, games.PreferredMode(o.deps.Games, app))

	if err := o.peer.OnGameStart(app); err != nil {
		return fmt.Errorf("overlay game start: %w", err)
	}

	stayAwake, lockGesture := games.Preferences(o.deps.Games, app, o.deps.Defaults)
	if err := o.deps.Screen.SetStayAwake(stayAwake); err != nil {
		log.Warn().Err(err).Msg("Couldn't set stay awake")
	}
	if err := o.deps.Screen.SetLockGesture(lockGesture); err != nil {
		log.Warn().Err(err).Msg("Couldn't set gesture lock")
	}

	o.deps.Calls.Start()

	o.state = Active
	o.deps.Metrics.SessionRegistered()
	log.Info().Msg("Game session started")
	return nil
}

// teardown releases everything in order: the overlay, the session,
// the mode authority, the presentation controller and the call watcher.
func (o *Orchestrator) teardown(reason string) {
	if o.state == Destroyed {
		return
	}
	o.state = Stopping

	if o.conn == Bound && o.peer != nil {
		if err := o.peer.OnGameLeave(); err != nil {
			o.log.Warn().Err(err).Msg("Couldn't notify the overlay")
		}
		_ = o.peer.Close()
	}
	o.peer = nil
	o.conn = Unbound
	// in-flight binds are stale from now on
	o.attempt++
	o.cancel()

	if s, ok := o.deps.Sessions.Unregister(); ok {
		o.deps.Metrics.SessionUnregistered()
		o.log.Info().Str(logger.AppField, s.App).Msg("Game session ended")
	}
	o.selector.Unbind()
	o.deps.Screen.Unbind()
	o.deps.Calls.Stop()

	o.pending = nil
	o.running = false
	o.reason = reason
	o.state = Destroyed
	o.deps.Metrics.Teardown(reason)
}
