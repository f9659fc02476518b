package orchestrator

import "errors"

var (
	ErrNoPendingCommand = errors.New("overlay is ready with no pending command")
	ErrNoApp            = errors.New("app package name is missing in the command")
	ErrNoBinder         = errors.New("no overlay binder")
	ErrInitialized      = errors.New("orchestrator is already initialized")
)
