package modes

import (
	"context"
	"errors"
	"sync"
)

var ErrNoMode = errors.New("mode is not available")

// Authority enumerates and activates device performance modes per app.
// Calls may be slow.
type Authority interface {
	AvailableModes(ctx context.Context, app string) ([]Mode, error)
	Activate(ctx context.Context, app string, mode Mode) error
}

// Static is an in-memory authority that reports the same modes for every app.
type Static struct {
	modes []Mode

	mu     sync.Mutex
	active map[string]Mode
}

func NewStatic(modes ...Mode) *Static {
	return &Static{modes: modes, active: make(map[string]Mode)}
}

func (s *Static) AvailableModes(context.Context, string) ([]Mode, error) {
	return append([]Mode(nil), s.modes...), nil
}

func (s *Static) Activate(_ context.Context, app string, mode Mode) error {
	if !contains(s.modes, mode) {
		return ErrNoMode
	}
	s.mu.Lock()
	s.active[app] = mode
	s.mu.Unlock()
	return nil
}

// Active returns the last activated mode of the app.
func (s *Static) Active(app string) (Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.active[app]
	return m, ok
}
