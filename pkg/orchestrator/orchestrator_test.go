package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/calls"
	"github.com/chaldeaprjkt/gamespace/pkg/foreground"
	"github.com/chaldeaprjkt/gamespace/pkg/games"
	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/chaldeaprjkt/gamespace/pkg/modes"
	"github.com/chaldeaprjkt/gamespace/pkg/overlay"
	"github.com/chaldeaprjkt/gamespace/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	gameApp  = "com.example.racer"
	otherApp = "com.example.puzzle"
	waitFor  = 2 * time.Second
	tick     = 5 * time.Millisecond
)

type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(s string) { j.mu.Lock(); j.calls = append(j.calls, s); j.mu.Unlock() }

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

func (j *journal) count(s string) (n int) {
	for _, c := range j.list() {
		if c == s {
			n++
		}
	}
	return
}

func (j *journal) has(s string) bool { return j.count(s) > 0 }

type fakePeer struct {
	j        *journal
	startErr error
	done     chan struct{}
	once     sync.Once
}

func (p *fakePeer) OnGameStart(app string) error {
	p.j.add("peer.start:" + app)
	return p.startErr
}
func (p *fakePeer) OnGameLeave() error             { p.j.add("peer.leave"); return nil }
func (p *fakePeer) OnCallState(state string) error { p.j.add("peer.call:" + state); return nil }
func (p *fakePeer) Done() <-chan struct{}          { return p.done }
func (p *fakePeer) Close() error                   { p.j.add("peer.close"); p.lose(); return nil }
func (p *fakePeer) lose()                          { p.once.Do(func() { close(p.done) }) }

type fakeBinder struct {
	j        *journal
	fail     int
	startErr error
	gate     chan struct{}
	// stubborn binds ignore the cancellation and finish once the gate opens
	stubborn bool

	mu       sync.Mutex
	attempts int
	peers    []*fakePeer
}

func (b *fakeBinder) Bind(ctx context.Context) (overlay.Peer, error) {
	b.mu.Lock()
	b.attempts++
	n := b.attempts
	b.mu.Unlock()
	if b.gate != nil {
		cancelled := ctx.Done()
		if b.stubborn {
			cancelled = nil
		}
		select {
		case <-b.gate:
		case <-cancelled:
			return nil, ctx.Err()
		}
	}
	if n <= b.fail {
		return nil, errors.New("no overlay")
	}
	p := &fakePeer{j: b.j, startErr: b.startErr, done: make(chan struct{})}
	b.mu.Lock()
	b.peers = append(b.peers, p)
	b.mu.Unlock()
	return p, nil
}

func (b *fakeBinder) Attempts() int { b.mu.Lock(); defer b.mu.Unlock(); return b.attempts }

func (b *fakeBinder) last() *fakePeer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.peers) == 0 {
		return nil
	}
	return b.peers[len(b.peers)-1]
}

type recordingRegistry struct {
	*session.Registry
	j *journal
}

func (r recordingRegistry) Register(app string) session.Session {
	r.j.add("session.register:" + app)
	return r.Registry.Register(app)
}

func (r recordingRegistry) Unregister() (session.Session, bool) {
	r.j.add("session.unregister")
	return r.Registry.Unregister()
}

type fakeScreen struct {
	j       *journal
	bindErr error
	panics  bool
}

func (s *fakeScreen) Bind() error { s.j.add("screen.bind"); return s.bindErr }
func (s *fakeScreen) Unbind()     { s.j.add("screen.unbind") }
func (s *fakeScreen) SetStayAwake(on bool) error {
	if s.panics {
		panic("screen is gone")
	}
	if on {
		s.j.add("screen.awake")
	}
	return nil
}
func (s *fakeScreen) SetLockGesture(on bool) error {
	if on {
		s.j.add("screen.gesture")
	}
	return nil
}

type fakeCalls struct{ j *journal }

func (c fakeCalls) Start() { c.j.add("calls.start") }
func (c fakeCalls) Stop()  { c.j.add("calls.stop") }

type fixture struct {
	o         *Orchestrator
	j         *journal
	binder    *fakeBinder
	screen    *fakeScreen
	authority *modes.Static
	sessions  *session.Registry
	foreApp   string
}

func newFixture(t *testing.T, options ...func(*fixture, *Deps, *Options)) *fixture {
	t.Helper()
	j := &journal{}
	f := &fixture{
		j:         j,
		binder:    &fakeBinder{j: j},
		screen:    &fakeScreen{j: j},
		authority: modes.NewStatic(modes.Standard, modes.Performance, modes.Battery),
		sessions:  &session.Registry{},
	}
	deps := Deps{
		Games: games.Static(
			games.Game{Package: gameApp, Mode: modes.Performance, StayAwake: true, LockGesture: true},
			games.Game{Package: otherApp, Mode: modes.Battery},
		),
		Authority: f.authority,
		Screen:    f.screen,
		Oracle:    foreground.Func(func() (string, bool) { return f.foreApp, f.foreApp != "" }),
		Calls:     fakeCalls{j: j},
		Binder:    f.binder,
		Sessions:  recordingRegistry{Registry: f.sessions, j: j},
	}
	opts := Options{RetryDelay: time.Millisecond, BindAttempts: 3}
	for _, fn := range options {
		fn(f, &deps, &opts)
	}
	f.o = New(deps, opts, logger.Nop())
	t.Cleanup(func() {
		if f.o.initialized.Load() {
			f.o.Stop()
			<-f.o.Done()
		}
		f.o.Selector().Wait()
	})
	return f
}

func (f *fixture) init(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, f.o.Init())
	return f
}

func (f *fixture) waitActive(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return f.o.Status().State == Active }, waitFor, tick)
}

func (f *fixture) waitDone(t *testing.T) Status {
	t.Helper()
	select {
	case <-f.o.Done():
	case <-time.After(waitFor):
		t.Fatalf("orchestrator is still alive: %+v", f.o.Status())
	}
	return f.o.Status()
}

func TestStartRegistersSession(t *testing.T) {
	f := newFixture(t).init(t)

	assert.Equal(t, NotSticky, f.o.Start(gameApp))
	f.waitActive(t)

	cur, ok := f.sessions.Current()
	require.True(t, ok)
	assert.Equal(t, gameApp, cur.App)

	st := f.o.Status()
	assert.Equal(t, Bound, st.Connection)
	assert.Equal(t, gameApp, st.App)
	assert.Equal(t, cur.Id, st.SessionId)

	assert.Equal(t, 1, f.j.count("peer.start:"+gameApp))
	assert.True(t, f.j.has("screen.awake"))
	assert.True(t, f.j.has("screen.gesture"))
	assert.True(t, f.j.has("calls.start"))
	assert.Equal(t, gameApp, f.o.Selector().ActiveGame())

	f.o.Selector().Wait()
	mode, ok := f.authority.Active(gameApp)
	assert.True(t, ok)
	assert.Equal(t, modes.Performance, mode)
}

func TestStopLeavesNoSession(t *testing.T) {
	f := newFixture(t).init(t)

	f.o.Start(gameApp)
	f.waitActive(t)
	f.o.Stop()
	st := f.waitDone(t)

	_, ok := f.sessions.Current()
	assert.False(t, ok)
	assert.Equal(t, Destroyed, st.State)
	assert.Equal(t, ReasonStop, st.Reason)
	assert.True(t, st.Stopped)
	assert.False(t, st.Running)
	assert.Empty(t, st.App)
	assert.Empty(t, f.o.Selector().ActiveGame())

	calls := f.j.list()
	require.GreaterOrEqual(t, len(calls), 5)
	assert.Equal(t,
		[]string{"peer.leave", "peer.close", "session.unregister", "screen.unbind", "calls.stop"},
		calls[len(calls)-5:],
	)
}

func TestStopTwice(t *testing.T) {
	f := newFixture(t).init(t)

	f.o.Start(gameApp)
	f.waitActive(t)
	f.o.Stop()
	f.waitDone(t)
	f.o.Stop()

	assert.Equal(t, 1, f.j.count("peer.leave"))
	assert.Equal(t, 1, f.j.count("calls.stop"))
}

func TestStopWithoutSession(t *testing.T) {
	f := newFixture(t).init(t)

	f.o.Stop()
	st := f.waitDone(t)

	assert.Equal(t, ReasonStop, st.Reason)
	assert.Zero(t, f.binder.Attempts())
	assert.False(t, f.j.has("peer.leave"))
	assert.True(t, f.j.has("calls.stop"))
	assert.True(t, f.j.has("screen.unbind"))
}

func TestDoubleStartKeepsOneSession(t *testing.T) {
	f := newFixture(t).init(t)

	f.o.Start(gameApp)
	f.waitActive(t)
	first, _ := f.sessions.Current()

	f.o.Start(gameApp)
	second, ok := f.sessions.Current()
	require.True(t, ok)

	assert.NotEqual(t, first.Id, second.Id)
	assert.Equal(t, gameApp, second.App)
	assert.Equal(t, 2, f.j.count("session.register:"+gameApp))
	// one notification per registration
	assert.Equal(t, 2, f.j.count("peer.start:"+gameApp))
	assert.Equal(t, 1, f.binder.Attempts())
	assert.Equal(t, Active, f.o.Status().State)
}

func TestStartWhileBindingIsNoExtraBind(t *testing.T) {
	f := newFixture(t, func(f *fixture, _ *Deps, _ *Options) {
		f.binder.gate = make(chan struct{})
	}).init(t)

	f.o.Start(gameApp)
	require.Eventually(t, func() bool { return f.binder.Attempts() == 1 }, waitFor, tick)
	assert.Equal(t, BindRequested, f.o.Status().Connection)
	assert.Equal(t, Starting, f.o.Status().State)

	f.o.Start(otherApp)
	close(f.binder.gate)
	f.waitActive(t)

	assert.Equal(t, 1, f.binder.Attempts())
	cur, _ := f.sessions.Current()
	assert.Equal(t, otherApp, cur.App)
	assert.False(t, f.j.has("peer.start:"+gameApp))
	assert.Equal(t, 1, f.j.count("peer.start:"+otherApp))
}

func TestStopWhileBinding(t *testing.T) {
	f := newFixture(t, func(f *fixture, _ *Deps, _ *Options) {
		f.binder.gate = make(chan struct{})
		f.binder.stubborn = true
	}).init(t)

	f.o.Start(gameApp)
	require.Eventually(t, func() bool { return f.binder.Attempts() == 1 }, waitFor, tick)
	f.o.Stop()
	st := f.waitDone(t)
	assert.Equal(t, ReasonStop, st.Reason)

	// the overlay shows up after the stop
	close(f.binder.gate)
	require.Eventually(t, func() bool { return f.j.has("peer.close") }, waitFor, tick)

	_, ok := f.sessions.Current()
	assert.False(t, ok)
	assert.False(t, f.j.has("peer.start:"+gameApp))
	assert.False(t, f.j.has("session.register:"+gameApp))
	assert.False(t, f.j.has("calls.start"))
	assert.Equal(t, 1, f.binder.Attempts())
}

func TestReadyWithoutCommand(t *testing.T) {
	f := newFixture(t)
	o := f.o
	// drive the loop handlers by hand, the loop goroutine isn't running
	o.running = true
	o.state = Starting
	o.conn, o.attempt = BindRequested, 1
	peer := &fakePeer{j: f.j, done: make(chan struct{})}

	o.onReady(readyEvent{attempt: o.attempt, peer: peer})

	assert.Equal(t, Destroyed, o.state)
	assert.Equal(t, ReasonProtocol, o.reason)
	for _, c := range f.j.list() {
		assert.False(t, strings.HasPrefix(c, "session.register:"), c)
	}
	assert.True(t, f.j.has("peer.leave"))
	assert.True(t, f.j.has("peer.close"))
	assert.True(t, f.j.has("calls.stop"))
}

func TestRecoveryKnownGame(t *testing.T) {
	f := newFixture(t).init(t)
	f.foreApp = gameApp

	assert.Equal(t, Sticky, f.o.Deliver(nil, 0, 2))
	f.waitActive(t)

	cur, ok := f.sessions.Current()
	require.True(t, ok)
	assert.Equal(t, gameApp, cur.App)
	assert.Equal(t, 1, f.j.count("peer.start:"+gameApp))
}

func TestRecoveryNotGame(t *testing.T) {
	tests := []struct {
		name string
		app  string
	}{
		{name: "unknown app", app: "com.example.browser"},
		{name: "no foreground"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t).init(t)
			f.foreApp = test.app

			assert.Equal(t, NotSticky, f.o.Deliver(nil, 0, 2))
			assert.Zero(t, f.binder.Attempts())
			assert.Equal(t, Ready, f.o.Status().State)
			_, ok := f.sessions.Current()
			assert.False(t, ok)
		})
	}
}

func TestEmptyCommandIsNotRecovery(t *testing.T) {
	f := newFixture(t).init(t)
	f.foreApp = gameApp

	assert.Equal(t, NotSticky, f.o.Deliver(nil, 0, 1))
	assert.Equal(t, NotSticky, f.o.Deliver(nil, 1, 2))
	assert.Zero(t, f.binder.Attempts())
}

func TestModeNotActivatedWhenUnavailable(t *testing.T) {
	f := newFixture(t, func(f *fixture, d *Deps, _ *Options) {
		f.authority = modes.NewStatic(modes.Standard, modes.Battery)
		d.Authority = f.authority
	}).init(t)

	f.o.Start(gameApp)
	f.waitActive(t)
	f.o.Selector().Wait()

	_, ok := f.authority.Active(gameApp)
	assert.False(t, ok)
}

func TestUnknownGameGetsDefaults(t *testing.T) {
	f := newFixture(t, func(_ *fixture, d *Deps, _ *Options) {
		d.Defaults = games.Game{StayAwake: true}
	}).init(t)

	f.o.Start("com.example.unknown")
	f.waitActive(t)
	f.o.Selector().Wait()

	assert.True(t, f.j.has("screen.awake"))
	assert.False(t, f.j.has("screen.gesture"))
	mode, ok := f.authority.Active("com.example.unknown")
	assert.True(t, ok)
	assert.Equal(t, modes.DefaultPreferred, mode)
}

func TestPeerLostTearsDown(t *testing.T) {
	f := newFixture(t).init(t)

	f.o.Start(gameApp)
	f.waitActive(t)
	f.binder.last().lose()
	st := f.waitDone(t)

	assert.Equal(t, ReasonPeerLost, st.Reason)
	assert.False(t, st.Stopped)
	assert.False(t, f.j.has("peer.leave"))
	_, ok := f.sessions.Current()
	assert.False(t, ok)
	assert.True(t, f.j.has("calls.stop"))
}

func TestBindRetries(t *testing.T) {
	f := newFixture(t, func(f *fixture, _ *Deps, _ *Options) {
		f.binder.fail = 2
	}).init(t)

	f.o.Start(gameApp)
	f.waitActive(t)

	assert.Equal(t, 3, f.binder.Attempts())
	assert.Equal(t, 1, f.j.count("peer.start:"+gameApp))
}

func TestBindGivesUp(t *testing.T) {
	f := newFixture(t, func(f *fixture, _ *Deps, o *Options) {
		f.binder.fail = 100
		o.BindAttempts = 2
	}).init(t)

	f.o.Start(gameApp)
	st := f.waitDone(t)

	assert.Equal(t, ReasonBindFailed, st.Reason)
	assert.Equal(t, 2, f.binder.Attempts())
	_, ok := f.sessions.Current()
	assert.False(t, ok)
}

func TestRegistrationFailures(t *testing.T) {
	tests := []struct {
		name   string
		app    string
		setup  func(f *fixture)
		reason string
	}{
		{name: "no app", reason: ReasonProtocol},
		{
			name:   "overlay refuses",
			app:    gameApp,
			setup:  func(f *fixture) { f.binder.startErr = overlay.ErrClosed },
			reason: ReasonFailure,
		},
		{
			name:   "panic",
			app:    gameApp,
			setup:  func(f *fixture) { f.screen.panics = true },
			reason: ReasonFailure,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t, func(f *fixture, _ *Deps, _ *Options) {
				if test.setup != nil {
					test.setup(f)
				}
			}).init(t)

			f.o.Start(test.app)
			st := f.waitDone(t)

			assert.Equal(t, test.reason, st.Reason)
			_, ok := f.sessions.Current()
			assert.False(t, ok)
			assert.True(t, f.j.has("calls.stop"))
		})
	}
}

func TestCallStateForwarded(t *testing.T) {
	f := newFixture(t).init(t)

	// no overlay yet, dropped
	f.o.OnCallState(calls.Ringing)

	f.o.Start(gameApp)
	f.waitActive(t)
	f.o.OnCallState(calls.OffHook)

	require.Eventually(t, func() bool { return f.j.has("peer.call:offhook") }, waitFor, tick)
	assert.False(t, f.j.has("peer.call:ringing"))
}

func TestInit(t *testing.T) {
	t.Run("no binder", func(t *testing.T) {
		f := newFixture(t, func(_ *fixture, d *Deps, _ *Options) { d.Binder = nil })
		assert.ErrorIs(t, f.o.Init(), ErrNoBinder)
		f.waitDone(t)
	})
	t.Run("no authority", func(t *testing.T) {
		f := newFixture(t, func(_ *fixture, d *Deps, _ *Options) { d.Authority = nil })
		assert.ErrorIs(t, f.o.Init(), modes.ErrNoAuthority)
		st := f.waitDone(t)
		assert.Equal(t, ReasonInit, st.Reason)
		assert.True(t, f.j.has("screen.unbind"))
	})
	t.Run("degraded without screen", func(t *testing.T) {
		f := newFixture(t, func(f *fixture, _ *Deps, _ *Options) {
			f.screen.bindErr = errors.New("no nodes")
		})
		require.NoError(t, f.o.Init())
		assert.Equal(t, Ready, f.o.Status().State)
	})
	t.Run("twice", func(t *testing.T) {
		f := newFixture(t).init(t)
		assert.ErrorIs(t, f.o.Init(), ErrInitialized)
	})
	t.Run("deliver before init", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, NotSticky, f.o.Start(gameApp))
		assert.Zero(t, f.binder.Attempts())
	})
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "bind_requested", BindRequested.String())
	assert.Equal(t, "sticky", Sticky.String())
	assert.True(t, strings.HasPrefix(State(42).String(), "state("))
}
