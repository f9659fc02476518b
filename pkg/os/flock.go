package os

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("already locked by another process")

// Flock is an exclusive file lock that marks a single named instance.
type Flock struct {
	f *flock.Flock
}

func NewFileLock(path string) (*Flock, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "gamespace.lock")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, err
	}
	return &Flock{f: flock.New(path)}, nil
}

// TryLock takes the lock without waiting, ErrLocked means
// some other process holds it.
func (f *Flock) TryLock() error {
	ok, err := f.f.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

func (f *Flock) Lock() error    { return f.f.Lock() }
func (f *Flock) Unlock() error  { return f.f.Unlock() }
func (f *Flock) Path() string   { return f.f.Path() }
func (f *Flock) IsLocked() bool { return f.f.Locked() }
