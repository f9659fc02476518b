// Package orchestrator owns the lifecycle of a game session.
//
// An Orchestrator binds the overlay, registers the session of a single game,
// requests its preferred performance mode and applies the presentation toggles.
// All the commands and the overlay connection signals are events on a single
// queue handled by one goroutine, so the state is never shared. Only the mode
// selection runs on its own goroutine.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/calls"
	"github.com/chaldeaprjkt/gamespace/pkg/foreground"
	"github.com/chaldeaprjkt/gamespace/pkg/games"
	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/chaldeaprjkt/gamespace/pkg/modes"
	"github.com/chaldeaprjkt/gamespace/pkg/monitoring"
	"github.com/chaldeaprjkt/gamespace/pkg/overlay"
	"github.com/chaldeaprjkt/gamespace/pkg/presentation"
	"github.com/chaldeaprjkt/gamespace/pkg/session"
)

// Registry keeps the single game session.
type Registry interface {
	Register(app string) session.Session
	Unregister() (session.Session, bool)
	Current() (session.Session, bool)
	IsCurrent(id string) bool
}

// Deps are the collaborators of an orchestrator.
type Deps struct {
	Games     games.Store
	Defaults  games.Game
	Authority modes.Authority
	Screen    presentation.Controller
	Oracle    foreground.Oracle
	Calls     calls.Watcher
	Binder    overlay.Binder
	Sessions  Registry
	Metrics   *monitoring.Metrics
}

type Options struct {
	// RetryDelay is the pause between overlay bind attempts.
	RetryDelay time.Duration
	// BindAttempts is how many failed binds in a row end the orchestrator.
	BindAttempts int
	// ModeTimeout bounds a single mode selection, 0 means no timeout.
	ModeTimeout time.Duration
}

type Orchestrator struct {
	deps     Deps
	opts     Options
	log      *logger.Logger
	selector *modes.Selector

	ctx    context.Context
	cancel context.CancelFunc

	events      chan event
	done        chan struct{}
	initOnce    atomic.Bool
	initialized atomic.Bool

	// owned by the loop goroutine
	state    State
	conn     ConnState
	peer     overlay.Peer
	attempt  int
	failures int
	pending  *Command
	running  bool
	stopped  bool
	reason   string

	mu     sync.RWMutex
	status Status
}

func New(deps Deps, opts Options, log *logger.Logger) *Orchestrator {
	if deps.Sessions == nil {
		deps.Sessions = &session.Registry{}
	}
	if deps.Screen == nil {
		deps.Screen = noScreen{}
	}
	if deps.Calls == nil {
		deps.Calls = noCalls{}
	}
	if opts.BindAttempts <= 0 {
		opts.BindAttempts = 1
	}
	log = log.Component("orch")
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		deps:     deps,
		opts:     opts,
		log:      log,
		selector: modes.NewSelector(deps.Sessions, opts.ModeTimeout, log, deps.Metrics),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan event),
		done:     make(chan struct{}),
	}
	o.publish()
	return o
}

// Init acquires the collaborators and starts the command loop.
// The presentation controller is optional, the mode authority is not.
func (o *Orchestrator) Init() error {
	if !o.initOnce.CompareAndSwap(false, true) {
		return ErrInitialized
	}
	if o.deps.Binder == nil {
		return o.abort(ErrNoBinder)
	}
	o.state = Initializing
	if err := o.deps.Screen.Bind(); err != nil {
		o.log.Error().Err(err).Msg("Error binding the presentation controller, no wake and gesture control")
	}
	if err := o.selector.Bind(o.deps.Authority); err != nil {
		o.deps.Screen.Unbind()
		return o.abort(err)
	}
	o.running = true
	o.state = Ready
	o.publish()
	o.initialized.Store(true)
	go o.loop()
	o.log.Debug().Msg("Ready")
	return nil
}

func (o *Orchestrator) abort(err error) error {
	o.state = Destroyed
	o.reason = ReasonInit
	o.cancel()
	o.publish()
	close(o.done)
	return err
}

// Deliver hands a command to the orchestrator and returns the redelivery disposition.
// A nil command with zero flags and the start count > 1 is the redelivery of
// a restarted orchestrator that has to find its game on its own.
func (o *Orchestrator) Deliver(cmd *Command, flags, startCount int) Disposition {
	if !o.initialized.Load() {
		o.log.Warn().Msg("Orchestrator is not properly initialized")
		return NotSticky
	}
	reply := make(chan Disposition, 1)
	if !o.post(deliverEvent{cmd: cmd, flags: flags, startCount: startCount, reply: reply}) {
		o.log.Warn().Msg("Orchestrator is not running")
		return NotSticky
	}
	return <-reply
}

// Start requests a session for the app.
func (o *Orchestrator) Start(app string) Disposition { return o.Deliver(StartCommand(app), 0, 1) }

// Stop requests the teardown.
func (o *Orchestrator) Stop() { o.Deliver(StopCommand(), 0, 1) }

// OnCallState forwards call state changes to the overlay.
func (o *Orchestrator) OnCallState(s calls.State) { o.post(callEvent{state: s}) }

// Done is closed once the orchestrator is destroyed.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// Status returns the last known snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// Selector returns the mode selector, its active game is shown by the overlay.
func (o *Orchestrator) Selector() *modes.Selector { return o.selector }

func (o *Orchestrator) publish() {
	s := Status{
		State:      o.state,
		Connection: o.conn,
		Running:    o.running,
		Stopped:    o.stopped,
		Reason:     o.reason,
	}
	if cur, ok := o.deps.Sessions.Current(); ok {
		s.App, s.SessionId = cur.App, cur.Id
	}
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// post puts an event into the queue, false means the orchestrator is gone.
func (o *Orchestrator) post(ev event) bool {
	select {
	case o.events <- ev:
		return true
	case <-o.done:
		return false
	}
}

type noScreen struct{}

func (noScreen) Bind() error               { return presentation.ErrNotBound }
func (noScreen) Unbind()                   {}
func (noScreen) SetStayAwake(bool) error   { return presentation.ErrNotBound }
func (noScreen) SetLockGesture(bool) error { return presentation.ErrNotBound }

type noCalls struct{}

func (noCalls) Start() {}
func (noCalls) Stop()  {}
