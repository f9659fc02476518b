// Package presentation toggles the screen wake lock and
// the navigation gesture lock during a game session.
package presentation

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

var ErrNotBound = errors.New("presentation controller is not bound")

type Controller interface {
	Bind() error
	Unbind()
	SetStayAwake(on bool) error
	SetLockGesture(on bool) error
}

// Nodes is a controller that writes 1 or 0 into two control files
// (sysfs-like nodes owned by the display stack).
// An empty node path disables that toggle.
type Nodes struct {
	stayAwake   string
	lockGesture string

	mu    sync.Mutex
	bound bool
	state struct{ stayAwake, lockGesture bool }
}

func NewNodes(stayAwake, lockGesture string) *Nodes {
	return &Nodes{stayAwake: stayAwake, lockGesture: lockGesture}
}

// Bind checks that the nodes are writable.
func (n *Nodes) Bind() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stayAwake == "" && n.lockGesture == "" {
		return errors.New("no presentation nodes")
	}
	for _, node := range []string{n.stayAwake, n.lockGesture} {
		if node == "" {
			continue
		}
		f, err := os.OpenFile(node, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("presentation bind: %w", err)
		}
		_ = f.Close()
	}
	n.bound = true
	return nil
}

// Unbind reverts both toggles and releases the controller.
func (n *Nodes) Unbind() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.bound {
		return
	}
	_ = n.write(n.stayAwake, false)
	_ = n.write(n.lockGesture, false)
	n.state.stayAwake, n.state.lockGesture = false, false
	n.bound = false
}

func (n *Nodes) SetStayAwake(on bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.bound {
		return ErrNotBound
	}
	if err := n.write(n.stayAwake, on); err != nil {
		return err
	}
	n.state.stayAwake = on
	return nil
}

func (n *Nodes) SetLockGesture(on bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.bound {
		return ErrNotBound
	}
	if err := n.write(n.lockGesture, on); err != nil {
		return err
	}
	n.state.lockGesture = on
	return nil
}

// State returns the last applied toggles.
func (n *Nodes) State() (stayAwake, lockGesture bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.stayAwake, n.state.lockGesture
}

func (n *Nodes) write(node string, on bool) error {
	if node == "" {
		return nil
	}
	v := []byte("0")
	if on {
		v = []byte("1")
	}
	return os.WriteFile(node, v, 0)
}
