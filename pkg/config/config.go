package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/os"
	flag "github.com/spf13/pflag"
)

type Config struct {
	Debug        bool
	Host         Host
	Control      Control
	Games        Games
	Modes        Modes
	Overlay      Overlay
	Presentation Presentation
	Foreground   Foreground
	Calls        Calls
	Monitoring   Monitoring
}

type Host struct {
	LockPath        string        `default:"{user}/.gamespace/gamespace.lock"`
	JournalPath     string        `default:"{user}/.gamespace/session.json"`
	RestartDelay    time.Duration `default:"1s"`
	MaxRestarts     int           `default:"3"`
	ShutdownTimeout time.Duration `default:"5s"`
}

type Control struct {
	Address string `default:"127.0.0.1:9310"`
}

// Games is the known games list source.
type Games struct {
	Path  string `default:"{user}/.gamespace/games.yaml"`
	Watch bool
	// store-wide defaults, a game may override them
	StayAwake   bool
	LockGesture bool
}

type Modes struct {
	// Provider is either static or http.
	Provider string `default:"static"`
	Address  string
	Timeout  time.Duration
	// Static lists modes supported by every app for the static provider.
	Static []string
}

type Overlay struct {
	Address      string        `default:"ws://127.0.0.1:9311/overlay"`
	RetryDelay   time.Duration `default:"2s"`
	BindAttempts int           `default:"5"`
}

type Presentation struct {
	StayAwakeNode   string
	LockGestureNode string
}

type Foreground struct {
	Path string
}

type Calls struct {
	Path       string
	PollPeriod time.Duration `default:"1s"`
}

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool `fig:"metric_enabled"`
	ProfilingEnabled bool `fig:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

// allows custom config path
var configPath string

// NewConfig loads the configuration file and applies all the special tags.
func NewConfig() (conf Config, err error) {
	if err = LoadConfig(&conf, configPath); err != nil {
		return conf, err
	}
	if err = conf.expandSpecialTags(); err != nil {
		return conf, err
	}
	return conf, nil
}

// PreParse reads the config path flag before the config is loaded.
// Other flags are ignored at this stage.
func PreParse(args []string) {
	fs := flag.NewFlagSet("pre", flag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	fs.StringVarP(&configPath, "conf", "c", configPath, "Set custom configuration file path")
	_ = fs.Parse(args)
}

// WithFlags binds runtime flags with the default values set to the current config params.
// Don't forget to call Parse on the set.
func (c *Config) WithFlags(fs *flag.FlagSet) *Config {
	fs.StringVarP(&configPath, "conf", "c", configPath, "Set custom configuration file path")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logs")
	fs.StringVar(&c.Control.Address, "address", c.Control.Address, "Control API address (host:port)")
	fs.StringVar(&c.Overlay.Address, "overlay", c.Overlay.Address, "Overlay websocket URL")
	fs.StringVar(&c.Games.Path, "games", c.Games.Path, "Known games list file")
	fs.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
	return c
}

// expandSpecialTags replaces all the special tags in the config.
func (c *Config) expandSpecialTags() error {
	tag := "{user}"
	for _, dir := range []*string{&c.Host.LockPath, &c.Host.JournalPath, &c.Games.Path} {
		if *dir == "" || !strings.Contains(*dir, tag) {
			continue
		}
		home, err := os.GetUserHome()
		if err != nil {
			return fmt.Errorf("couldn't read user home directory: %w", err)
		}
		*dir = filepath.FromSlash(strings.ReplaceAll(*dir, tag, home))
	}
	return nil
}
