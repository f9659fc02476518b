// Package host supervises the single orchestrator of the daemon.
//
// The host owns the only handle to the running orchestrator, so starting
// and stopping are idempotent messages to that handle. It restarts an
// orchestrator that died with a sticky disposition and keeps a journal
// for the next daemon to recover the game after a crash.
package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/api"
	"github.com/chaldeaprjkt/gamespace/pkg/config"
	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/chaldeaprjkt/gamespace/pkg/monitoring"
	"github.com/chaldeaprjkt/gamespace/pkg/orchestrator"
)

var ErrClosed = errors.New("host is closed")

// Instance is a single-use orchestrator.
type Instance interface {
	Init() error
	Deliver(cmd *orchestrator.Command, flags, startCount int) orchestrator.Disposition
	Done() <-chan struct{}
	Status() orchestrator.Status
}

// Factory makes a fresh orchestrator for every run.
type Factory func() (Instance, error)

type Host struct {
	conf    config.Host
	factory Factory
	journal *Journal
	log     *logger.Logger
	metrics *monitoring.Metrics

	mu         sync.Mutex
	cur        Instance
	startCount int
	app        string
	sticky     bool
	restarts   int
	since      time.Time
	closed     bool
	timer      *time.Timer
	gen        int
}

func New(conf config.Host, factory Factory, journal *Journal, log *logger.Logger, metrics *monitoring.Metrics) *Host {
	if journal == nil {
		journal = NewJournal("")
	}
	return &Host{conf: conf, factory: factory, journal: journal, log: log.Component("host"), metrics: metrics}
}

// RequestStart starts an orchestrator for the app.
// It's a no-op returning false when one is already running.
func (h *Host) RequestStart(app string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false, ErrClosed
	}
	if h.cur != nil {
		h.log.Debug().Str(logger.AppField, app).Msg("Orchestrator is already running")
		return false, nil
	}
	h.cancelRestart()
	h.restarts = 0
	inst, err := h.launch()
	if err != nil {
		return false, err
	}
	h.startCount = 1
	h.sticky = inst.Deliver(orchestrator.StartCommand(app), 0, h.startCount) == orchestrator.Sticky
	h.remember(app)
	return true, nil
}

// RequestStop stops the running orchestrator.
// It's a no-op returning false when there is none.
func (h *Host) RequestStop() bool {
	h.mu.Lock()
	if h.cancelRestart() {
		// the restart is dropped, nothing left to recover
		_ = h.journal.Clear()
	}
	inst := h.cur
	h.mu.Unlock()
	if inst == nil {
		return false
	}
	inst.Deliver(orchestrator.StopCommand(), 0, 1)
	return true
}

// Recover redelivers an empty command when the journal shows
// that an orchestrator was running when the last daemon died.
func (h *Host) Recover() bool {
	rec, err := h.journal.Load()
	if err != nil {
		h.log.Error().Err(err).Msg("Couldn't read the journal")
		return false
	}
	if !rec.Running {
		return false
	}
	h.log.Info().Str(logger.AppField, rec.App).Msgf("Previous orchestrator has died, recovering (%v)", rec.StartCount)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.cur != nil {
		return false
	}
	h.app = rec.App
	return h.redeliver(rec.StartCount + 1)
}

// Status returns the snapshot of the running orchestrator.
func (h *Host) Status() api.StatusResponse {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cur == nil {
		return api.StatusResponse{Restarts: h.restarts}
	}
	st := h.cur.Status()
	return api.StatusResponse{
		Running:    true,
		State:      st.State.String(),
		Connection: st.Connection.String(),
		App:        st.App,
		SessionId:  st.SessionId,
		StartCount: h.startCount,
		Restarts:   h.restarts,
		Since:      h.since,
	}
}

// redeliver makes a new orchestrator that has to find its game itself.
// Must be called under the lock.
func (h *Host) redeliver(startCount int) bool {
	inst, err := h.launch()
	if err != nil {
		h.log.Error().Err(err).Msg("Couldn't restart the orchestrator")
		_ = h.journal.Clear()
		return false
	}
	h.startCount = startCount
	h.sticky = inst.Deliver(nil, 0, startCount) == orchestrator.Sticky
	if !h.sticky {
		// nothing to recover, the idle orchestrator goes away
		h.log.Info().Msg("Nothing to recover")
		inst.Deliver(orchestrator.StopCommand(), 0, startCount)
		return false
	}
	h.remember("")
	return true
}

// launch must be called under the lock.
func (h *Host) launch() (Instance, error) {
	inst, err := h.factory()
	if err != nil {
		return nil, err
	}
	if err = inst.Init(); err != nil {
		return nil, err
	}
	h.cur = inst
	h.since = time.Now()
	go h.watch(inst)
	return inst, nil
}

// remember keeps the last known app when the app is empty.
func (h *Host) remember(app string) {
	if app != "" {
		h.app = app
	}
	if err := h.journal.Save(Record{Running: true, App: h.app, StartCount: h.startCount}); err != nil {
		h.log.Warn().Err(err).Msg("Couldn't write the journal")
	}
}

func (h *Host) watch(inst Instance) {
	<-inst.Done()
	st := inst.Status()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cur != inst {
		return
	}
	h.cur = nil
	log := h.log.Extend(h.log.With().Str(logger.AppField, st.App).Str("reason", st.Reason))

	if st.Stopped || !h.sticky || h.closed {
		log.Debug().Msg("Orchestrator has finished")
		if err := h.journal.Clear(); err != nil {
			log.Warn().Err(err).Msg("Couldn't clear the journal")
		}
		return
	}
	if h.restarts >= h.conf.MaxRestarts {
		log.Error().Msgf("Orchestrator keeps dying, giving up after %v restarts", h.restarts)
		_ = h.journal.Clear()
		return
	}
	h.restarts++
	h.metrics.Restart()
	log.Warn().Msgf("Orchestrator has died, restart %v/%v in %v", h.restarts, h.conf.MaxRestarts, h.conf.RestartDelay)
	next, gen := h.startCount+1, h.gen
	h.timer = time.AfterFunc(h.conf.RestartDelay, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if gen != h.gen {
			return
		}
		h.timer = nil
		if h.closed || h.cur != nil {
			return
		}
		h.redeliver(next)
	})
}

// cancelRestart must be called under the lock.
func (h *Host) cancelRestart() bool {
	h.gen++
	if h.timer == nil {
		return false
	}
	h.timer.Stop()
	h.timer = nil
	return true
}

// Run recovers the game of the previous daemon, if any.
func (h *Host) Run() { go h.Recover() }

// Shutdown stops the running orchestrator and waits for it.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.cancelRestart()
	inst := h.cur
	h.mu.Unlock()
	if inst == nil {
		return nil
	}
	inst.Deliver(orchestrator.StopCommand(), 0, 1)
	select {
	case <-inst.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) String() string { return "host" }
