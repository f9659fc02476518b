package config

import (
	"os"
	"path/filepath"

	"github.com/kkyr/fig"
)

const (
	EnvPrefix = "GAMESPACE"
	FileName  = "config.yaml"
)

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom path to the configuration file,
// otherwise the file is looked up in the current dir, ./configs and ~/.gamespace.
// Reads and puts environment variables with the prefix GAMESPACE_.
// Params from the config should be in uppercase separated with _.
func LoadConfig(config any, path string) error {
	name := FileName
	var dirs []string
	if path != "" {
		name = filepath.Base(path)
		dirs = append(dirs, filepath.Dir(path))
	} else {
		dirs = append(dirs, ".", "configs", "../../configs")
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, ".gamespace"))
		}
	}
	return fig.Load(config, fig.File(name), fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
}
