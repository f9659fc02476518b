package games

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/chaldeaprjkt/gamespace/pkg/config"
	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/chaldeaprjkt/gamespace/pkg/modes"
	"github.com/chaldeaprjkt/gamespace/pkg/os"
	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
)

// Game is a known game with its session preferences.
type Game struct {
	Package     string
	Mode        modes.Mode
	StayAwake   bool
	LockGesture bool
}

// Store exposes the known games, read-only.
type Store interface {
	KnownGames() []Game
}

// Find looks up a game by its package id.
func Find(s Store, pkg string) (Game, bool) {
	for _, g := range s.KnownGames() {
		if g.Package == pkg {
			return g, true
		}
	}
	return Game{}, false
}

// PreferredMode returns the mode of the game or the default one.
func PreferredMode(s Store, pkg string) modes.Mode {
	if g, ok := Find(s, pkg); ok && g.Mode != modes.Unsupported {
		return g.Mode
	}
	return modes.DefaultPreferred
}

// Preferences returns the presentation toggles for the app,
// unknown apps get the store defaults.
func Preferences(s Store, pkg string, defaults Game) (stayAwake, lockGesture bool) {
	if g, ok := Find(s, pkg); ok {
		return g.StayAwake, g.LockGesture
	}
	return defaults.StayAwake, defaults.LockGesture
}

type file struct {
	Games []struct {
		Package     string `yaml:"package"`
		Mode        string `yaml:"mode"`
		StayAwake   *bool  `yaml:"stayAwake"`
		LockGesture *bool  `yaml:"lockGesture"`
	} `yaml:"games"`
}

// Library is a Store backed by a YAML file:
//
//	games:
//	  - package: com.example.game
//	    mode: performance
//	    stayAwake: true
type Library struct {
	conf config.Games
	log  *logger.Logger

	mu    sync.RWMutex
	games []Game

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewLibrary(conf config.Games, log *logger.Logger) *Library {
	return &Library{conf: conf, log: log, done: make(chan struct{})}
}

// Static makes a library with a fixed list, mostly for tests.
func Static(games ...Game) *Library {
	return &Library{games: games, log: logger.Nop(), done: make(chan struct{})}
}

func (lib *Library) KnownGames() []Game {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return append([]Game(nil), lib.games...)
}

// Defaults returns the store-wide preferences.
func (lib *Library) Defaults() Game {
	return Game{Mode: modes.DefaultPreferred, StayAwake: lib.conf.StayAwake, LockGesture: lib.conf.LockGesture}
}

// Load reads the games file, a missing file means no games.
func (lib *Library) Load() error {
	data, err := os.ReadFile(lib.conf.Path)
	if err != nil {
		if os.Exists(lib.conf.Path) {
			return fmt.Errorf("games: %w", err)
		}
		lib.log.Warn().Str("path", lib.conf.Path).Msg("No games list")
		lib.set(nil)
		return nil
	}
	games, err := lib.parse(data)
	if err != nil {
		return fmt.Errorf("games: %w", err)
	}
	lib.set(games)
	lib.log.Info().Msgf("Games loaded: %d", len(games))
	return nil
}

func (lib *Library) parse(data []byte) ([]Game, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	games := make([]Game, 0, len(f.Games))
	seen := make(map[string]struct{}, len(f.Games))
	for _, g := range f.Games {
		if g.Package == "" {
			continue
		}
		if _, ok := seen[g.Package]; ok {
			lib.log.Warn().Str(logger.AppField, g.Package).Msg("Duplicate game, skipped")
			continue
		}
		seen[g.Package] = struct{}{}

		game := Game{Package: g.Package, Mode: modes.DefaultPreferred,
			StayAwake: lib.conf.StayAwake, LockGesture: lib.conf.LockGesture}
		if g.Mode != "" {
			m, err := modes.Parse(g.Mode)
			if err != nil {
				lib.log.Warn().Err(err).Str(logger.AppField, g.Package).Msg("Bad game mode, using the default")
			} else {
				game.Mode = m
			}
		}
		if g.StayAwake != nil {
			game.StayAwake = *g.StayAwake
		}
		if g.LockGesture != nil {
			game.LockGesture = *g.LockGesture
		}
		games = append(games, game)
	}
	return games, nil
}

func (lib *Library) set(games []Game) {
	lib.mu.Lock()
	lib.games = games
	lib.mu.Unlock()
}

// Run starts watching the games file if enabled.
func (lib *Library) Run() {
	if !lib.conf.Watch || lib.conf.Path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		lib.log.Error().Err(err).Msg("Games watcher has failed")
		return
	}
	// editors replace files, so the dir is watched
	dir := filepath.Dir(lib.conf.Path)
	if err = watcher.Add(dir); err != nil {
		lib.log.Error().Err(err).Str("dir", dir).Msg("Games watch error")
		_ = watcher.Close()
		return
	}
	lib.watcher = watcher
	go lib.watch()
}

func (lib *Library) watch() {
	name := filepath.Clean(lib.conf.Path)
	for {
		select {
		case event, ok := <-lib.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := lib.Load(); err != nil {
				lib.log.Error().Err(err).Msg("Games reload has failed")
			}
		case err, ok := <-lib.watcher.Errors:
			if !ok {
				return
			}
			lib.log.Warn().Err(err).Msg("Games watch error")
		case <-lib.done:
			return
		}
	}
}

func (lib *Library) Shutdown(context.Context) error {
	select {
	case <-lib.done:
		return nil
	default:
		close(lib.done)
	}
	if lib.watcher != nil {
		return lib.watcher.Close()
	}
	return nil
}

func (lib *Library) String() string { return "games::" + lib.conf.Path }
