package modes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/chaldeaprjkt/gamespace/pkg/monitoring"
)

var ErrNoAuthority = errors.New("no mode authority")

// Gate tells whether a session is still the current one.
type Gate interface {
	IsCurrent(sid string) bool
}

// Selector requests the preferred mode of a game on a background goroutine.
// The command loop never waits for it, results for sessions that have ended
// in the meantime are dropped.
type Selector struct {
	gate    Gate
	timeout time.Duration
	log     *logger.Logger
	metrics *monitoring.Metrics

	mu        sync.Mutex
	authority Authority
	active    string

	wg sync.WaitGroup
}

func NewSelector(gate Gate, timeout time.Duration, log *logger.Logger, metrics *monitoring.Metrics) *Selector {
	return &Selector{gate: gate, timeout: timeout, log: log, metrics: metrics}
}

// Bind attaches the authority handle.
func (s *Selector) Bind(a Authority) error {
	if a == nil {
		return ErrNoAuthority
	}
	s.mu.Lock()
	s.authority = a
	s.mu.Unlock()
	return nil
}

// Unbind releases the authority handle, in-flight requests won't activate anything.
func (s *Selector) Unbind() {
	s.mu.Lock()
	s.authority = nil
	s.active = ""
	s.mu.Unlock()
}

func (s *Selector) handle() Authority {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authority
}

// SetActiveGame marks the app that owns the mode controls.
func (s *Selector) SetActiveGame(app string) { s.mu.Lock(); s.active = app; s.mu.Unlock() }

func (s *Selector) ActiveGame() string { s.mu.Lock(); defer s.mu.Unlock(); return s.active }

// Select asks the authority for the modes of the app and activates
// the preferred one only if it's among them.
func (s *Selector) Select(sid, app string, preferred Mode) {
	a := s.handle()
	if a == nil {
		s.log.Debug().Str(logger.AppField, app).Msg("mode selection skipped, unbound")
		s.metrics.ModeSelection("unbound")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.metrics.ModeSelection(s.run(a, sid, app, preferred))
	}()
}

func (s *Selector) run(a Authority, sid, app string, preferred Mode) string {
	log := s.log.Extend(s.log.With().Str(logger.AppField, app).Str(logger.SessionField, sid))

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	available, err := a.AvailableModes(ctx, app)
	if err != nil {
		log.Debug().Err(err).Msg("couldn't get available modes")
		return "failed"
	}
	if !contains(available, preferred) {
		log.Debug().Msgf("mode %v is not available %v", preferred, available)
		return "unavailable"
	}
	if !s.gate.IsCurrent(sid) || s.handle() == nil {
		log.Debug().Msg("mode selection is stale, dropped")
		return "stale"
	}
	if err = a.Activate(ctx, app, preferred); err != nil {
		log.Debug().Err(err).Msgf("couldn't activate mode %v", preferred)
		return "failed"
	}
	log.Info().Msgf("mode %v", preferred)
	return "activated"
}

// Wait blocks until all the issued selections are done.
func (s *Selector) Wait() { s.wg.Wait() }
