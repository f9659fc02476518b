package calls

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/logger"
)

type State string

const (
	Idle    State = "idle"
	Ringing State = "ringing"
	OffHook State = "offhook"
)

// Watcher is started and stopped alongside a game session.
type Watcher interface {
	Start()
	Stop()
}

// Source reports the current call state.
type Source interface {
	CallState() State
}

// File reads the call state from a file, anything unknown is idle.
type File string

func (f File) CallState() State {
	if f == "" {
		return Idle
	}
	b, err := os.ReadFile(string(f))
	if err != nil {
		return Idle
	}
	switch s := State(strings.ToLower(strings.TrimSpace(string(b)))); s {
	case Ringing, OffHook:
		return s
	}
	return Idle
}

// Listener polls a call-state source and reports the changes.
type Listener struct {
	src      Source
	period   time.Duration
	onChange func(State)
	log      *logger.Logger

	mu   sync.Mutex
	t    *time.Ticker
	done chan struct{}
	last State
}

func NewListener(src Source, period time.Duration, onChange func(State), log *logger.Logger) *Listener {
	if period <= 0 {
		period = time.Second
	}
	return &Listener{src: src, period: period, onChange: onChange, log: log, last: Idle}
}

// OnChange replaces the change callback, it should be set before Start.
func (l *Listener) OnChange(fn func(State)) { l.mu.Lock(); l.onChange = fn; l.mu.Unlock() }

// Start begins polling, it's a no-op when already started.
func (l *Listener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}
	l.t = time.NewTicker(l.period)
	l.done = make(chan struct{})
	l.last = Idle
	go l.run(l.t, l.done)
	l.log.Debug().Msg("Call listener started")
}

func (l *Listener) run(t *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-t.C:
			l.poll()
		case <-done:
			return
		}
	}
}

func (l *Listener) poll() {
	state := l.src.CallState()
	l.mu.Lock()
	if state == l.last || l.done == nil {
		l.mu.Unlock()
		return
	}
	l.last = state
	fn := l.onChange
	l.mu.Unlock()

	l.log.Info().Msgf("Call state: %v", state)
	if fn != nil {
		fn(state)
	}
}

// Stop ends polling, it's a no-op when not started.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		return
	}
	l.t.Stop()
	close(l.done)
	l.done = nil
	l.log.Debug().Msg("Call listener stopped")
}
