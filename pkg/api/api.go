// Package api defines the control API of the gamespace daemon.
//
// Every call is plain HTTP with JSON-encoded bodies:
//
//	POST /v1/session/start  {"app":"com.example.racer"}  -> 202 or 409
//	POST /v1/session/stop                                -> 202 or 409
//	GET  /v1/session                                     -> 200 {"running":true,"state":"active",...}
//
// 202 means the command was accepted, 409 means it was a no-op
// (a session is already running or there is nothing to stop).
package api

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const (
	Version = "/v1"

	SessionPath = "/session"
	StartPath   = SessionPath + "/start"
	StopPath    = SessionPath + "/stop"
)

type (
	StartRequest struct {
		App string `json:"app"`
	}
	// Response is the reply to a command.
	Response struct {
		Accepted bool   `json:"accepted"`
		Error    string `json:"error,omitempty"`
	}
	// StatusResponse is a snapshot of the running orchestrator, if any.
	StatusResponse struct {
		Running    bool      `json:"running"`
		State      string    `json:"state,omitempty"`
		Connection string    `json:"connection,omitempty"`
		App        string    `json:"app,omitempty"`
		SessionId  string    `json:"sid,omitempty"`
		StartCount int       `json:"start_count,omitempty"`
		Restarts   int       `json:"restarts,omitempty"`
		Since      time.Time `json:"since,omitempty"`
	}
)

var (
	ErrMalformed = fmt.Errorf("malformed")
	ErrNoApp     = fmt.Errorf("no app")
)

func (r StartRequest) Validate() error {
	if r.App == "" {
		return ErrNoApp
	}
	return nil
}

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

func UnwrapChecked[T any](bytes []byte, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	v := Unwrap[T](bytes)
	if v == nil {
		return nil, ErrMalformed
	}
	return v, nil
}

func Wrap(v any) ([]byte, error) { return json.Marshal(v) }
