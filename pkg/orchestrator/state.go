package orchestrator

import "fmt"

// State is the lifecycle state of an orchestrator.
type State int

const (
	Created State = iota
	Initializing
	Ready
	Starting
	Active
	Stopping
	Destroyed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ConnState is the state of the overlay connection.
type ConnState int

const (
	Unbound ConnState = iota
	BindRequested
	Bound
)

func (c ConnState) String() string {
	switch c {
	case Unbound:
		return "unbound"
	case BindRequested:
		return "bind_requested"
	case Bound:
		return "bound"
	}
	return fmt.Sprintf("conn(%d)", int(c))
}

// Disposition tells the host what to do with the last command
// if the orchestrator dies.
type Disposition int

const (
	// NotSticky means don't redeliver.
	NotSticky Disposition = iota
	// Sticky means restart and redeliver an empty command.
	Sticky
)

func (d Disposition) String() string {
	if d == Sticky {
		return "sticky"
	}
	return "not_sticky"
}

type Action string

const (
	ActionStart Action = "game_start"
	ActionStop  Action = "game_stop"
)

// Command is a start or stop instruction.
// A nil *Command stands for a redelivery with an empty intent.
type Command struct {
	Action Action
	App    string
}

func StartCommand(app string) *Command { return &Command{Action: ActionStart, App: app} }
func StopCommand() *Command            { return &Command{Action: ActionStop} }

// Status is a snapshot of the orchestrator.
type Status struct {
	State      State
	Connection ConnState
	App        string
	SessionId  string
	Running    bool
	// Stopped is set when the orchestrator was stopped with a command.
	Stopped bool
	// Reason of the teardown.
	Reason string
}

// Teardown reasons.
const (
	ReasonStop       = "stop"
	ReasonPeerLost   = "peer_lost"
	ReasonBindFailed = "bind_failed"
	ReasonProtocol   = "protocol"
	ReasonFailure    = "failure"
	ReasonInit       = "init"
)
