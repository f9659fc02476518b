package modes

import (
	"fmt"
	"strings"
)

// Mode is a device performance mode that can be requested for an app.
type Mode int

const (
	Unsupported Mode = iota
	Standard
	Performance
	Battery
	Custom
)

// DefaultPreferred is used for the apps without a preferred mode.
const DefaultPreferred = Standard

var names = map[Mode]string{
	Unsupported: "unsupported",
	Standard:    "standard",
	Performance: "performance",
	Battery:     "battery",
	Custom:      "custom",
}

func (m Mode) String() string {
	if n, ok := names[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Parse converts a mode name, case-insensitive.
func Parse(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, n := range names {
		if n == s {
			return m, nil
		}
	}
	return Unsupported, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseList converts mode names skipping unknown ones.
func ParseList(list []string) (out []Mode) {
	for _, s := range list {
		if m, err := Parse(s); err == nil {
			out = append(out, m)
		}
	}
	return
}

func contains(list []Mode, m Mode) bool {
	for _, x := range list {
		if x == m {
			return true
		}
	}
	return false
}
