// Package daemon assembles the gamespace services from the config.
package daemon

import (
	"context"
	"fmt"

	"github.com/chaldeaprjkt/gamespace/pkg/calls"
	"github.com/chaldeaprjkt/gamespace/pkg/config"
	"github.com/chaldeaprjkt/gamespace/pkg/foreground"
	"github.com/chaldeaprjkt/gamespace/pkg/games"
	"github.com/chaldeaprjkt/gamespace/pkg/host"
	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/chaldeaprjkt/gamespace/pkg/modes"
	"github.com/chaldeaprjkt/gamespace/pkg/monitoring"
	"github.com/chaldeaprjkt/gamespace/pkg/network/httpx"
	"github.com/chaldeaprjkt/gamespace/pkg/orchestrator"
	"github.com/chaldeaprjkt/gamespace/pkg/overlay"
	"github.com/chaldeaprjkt/gamespace/pkg/presentation"
	"github.com/chaldeaprjkt/gamespace/pkg/service"
	"github.com/chaldeaprjkt/gamespace/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

type Daemon struct {
	Host     *host.Host
	Control  *httpx.Server
	Library  *games.Library
	services service.Group
}

func New(conf config.Config, log *logger.Logger) (*Daemon, error) {
	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	library := games.NewLibrary(conf.Games, log)
	if err := library.Load(); err != nil {
		return nil, fmt.Errorf("games: %w", err)
	}

	authority, err := NewAuthority(conf.Modes)
	if err != nil {
		return nil, err
	}

	binder := overlay.NewBinder(conf.Overlay.Address, log)
	sessions := &session.Registry{}
	factory := func() (host.Instance, error) {
		listener := calls.NewListener(calls.File(conf.Calls.Path), conf.Calls.PollPeriod, nil, log.Component("calls"))
		o := orchestrator.New(orchestrator.Deps{
			Games:     library,
			Defaults:  library.Defaults(),
			Authority: authority,
			Screen:    presentation.NewNodes(conf.Presentation.StayAwakeNode, conf.Presentation.LockGestureNode),
			Oracle:    foreground.File(conf.Foreground.Path),
			Calls:     listener,
			Binder:    binder,
			Sessions:  sessions,
			Metrics:   metrics,
		}, orchestrator.Options{
			RetryDelay:   conf.Overlay.RetryDelay,
			BindAttempts: conf.Overlay.BindAttempts,
			ModeTimeout:  conf.Modes.Timeout,
		}, log)
		listener.OnChange(o.OnCallState)
		return o, nil
	}

	h := host.New(conf.Host, factory, host.NewJournal(conf.Host.JournalPath), log, metrics)
	control, err := host.NewControlServer(conf.Control, h, log)
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}

	d := &Daemon{Host: h, Control: control, Library: library}
	d.services.Add(library, h, control)
	if conf.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Monitoring, registry, log)
		if err != nil {
			return nil, fmt.Errorf("monitoring: %w", err)
		}
		d.services.Add(mon)
	}
	return d, nil
}

// NewAuthority picks the mode authority from the config.
func NewAuthority(conf config.Modes) (modes.Authority, error) {
	switch conf.Provider {
	case "", "static":
		list := modes.ParseList(conf.Static)
		if len(list) == 0 {
			list = []modes.Mode{modes.DefaultPreferred}
		}
		return modes.NewStatic(list...), nil
	case "http":
		if conf.Address == "" {
			return nil, fmt.Errorf("modes: no address for the http provider")
		}
		return modes.NewHTTPAuthority(conf.Address, conf.Timeout), nil
	}
	return nil, fmt.Errorf("modes: unknown provider %q", conf.Provider)
}

func (d *Daemon) Run() { d.services.Start() }

func (d *Daemon) Shutdown(ctx context.Context) error { return d.services.Shutdown(ctx) }
