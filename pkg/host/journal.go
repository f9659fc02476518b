package host

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/os"
	"github.com/goccy/go-json"
)

// Record is the last known state of the orchestrator.
// It outlives the daemon so a new daemon knows there was a game to recover.
type Record struct {
	Running    bool      `json:"running"`
	App        string    `json:"app,omitempty"`
	StartCount int       `json:"start_count"`
	Updated    time.Time `json:"updated"`
}

// Journal keeps a single record in a file.
// An empty path keeps it in memory only.
type Journal struct {
	path string

	mu  sync.Mutex
	mem Record
}

func NewJournal(path string) *Journal { return &Journal{path: path} }

func (j *Journal) Load() (Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.path == "" {
		return j.mem, nil
	}
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, nil
		}
		return Record{}, err
	}
	var r Record
	if err = json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("journal %v: %w", j.path, err)
	}
	return r, nil
}

func (j *Journal) Save(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	r.Updated = time.Now()
	if j.path == "" {
		j.mem = r
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err = os.CheckCreateDir(filepath.Dir(j.path)); err != nil {
		return err
	}
	tmp := j.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, j.path)
}

func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.mem = Record{}
	if j.path == "" {
		return nil
	}
	return os.Remove(j.path)
}
