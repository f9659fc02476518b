package calls

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call")
	assert.Equal(t, Idle, File(path).CallState())

	require.NoError(t, os.WriteFile(path, []byte("RINGING\n"), 0644))
	assert.Equal(t, Ringing, File(path).CallState())

	require.NoError(t, os.WriteFile(path, []byte("whatever"), 0644))
	assert.Equal(t, Idle, File(path).CallState())
}

type source struct {
	mu sync.Mutex
	s  State
}

func (s *source) CallState() State { s.mu.Lock(); defer s.mu.Unlock(); return s.s }
func (s *source) set(v State)      { s.mu.Lock(); s.s = v; s.mu.Unlock() }

func TestListener(t *testing.T) {
	src := &source{s: Idle}
	var mu sync.Mutex
	var got []State

	l := NewListener(src, 5*time.Millisecond, func(s State) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}, logger.Nop())

	l.Stop()
	l.Start()
	l.Start()

	src.set(Ringing)
	assert.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(got) == 1 }, time.Second, time.Millisecond)
	src.set(Idle)
	assert.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(got) == 2 }, time.Second, time.Millisecond)

	l.Stop()
	l.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Ringing, Idle}, got)
}
