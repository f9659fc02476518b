package orchestrator

import (
	"github.com/chaldeaprjkt/gamespace/pkg/games"
	"github.com/chaldeaprjkt/gamespace/pkg/logger"
)

// recoverFromDeath restarts the session of the game that is still in the
// foreground after the orchestrator was killed and restarted.
func (o *Orchestrator) recoverFromDeath() Disposition {
	if o.deps.Oracle == nil {
		o.deps.Metrics.Recovery("no_foreground")
		return NotSticky
	}
	app, ok := o.deps.Oracle.CurrentForegroundApp()
	if !ok || app == "" {
		o.log.Info().Msg("Nothing in the foreground, not recovering")
		o.deps.Metrics.Recovery("no_foreground")
		return NotSticky
	}
	if _, known := games.Find(o.deps.Games, app); !known {
		o.log.Info().Str(logger.AppField, app).Msg("Foreground app is not a game, not recovering")
		o.deps.Metrics.Recovery("unknown_app")
		return NotSticky
	}
	o.log.Info().Str(logger.AppField, app).Msg("Recovering the game session")
	o.deps.Metrics.Recovery("started")
	o.pending = StartCommand(app)
	o.start()
	return Sticky
}
