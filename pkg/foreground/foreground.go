package foreground

import (
	"os"
	"strings"
)

// Oracle reports the package id of the currently focused app.
type Oracle interface {
	CurrentForegroundApp() (string, bool)
}

// Func adapts a function to the Oracle.
type Func func() (string, bool)

func (f Func) CurrentForegroundApp() (string, bool) { return f() }

// File is an oracle that reads the package id of the focused app from a file
// the window manager keeps up to date.
type File string

func (f File) CurrentForegroundApp() (string, bool) {
	if f == "" {
		return "", false
	}
	b, err := os.ReadFile(string(f))
	if err != nil {
		return "", false
	}
	app := strings.TrimSpace(string(b))
	return app, app != ""
}
