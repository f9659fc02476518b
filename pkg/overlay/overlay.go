package overlay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 10 * 1024
	writeWait      = 10 * time.Second
)

// Message types of the overlay protocol.
const (
	GameStart = "game_start"
	GameLeave = "game_leave"
	CallState = "call_state"
)

var ErrClosed = errors.New("overlay connection closed")

// Message is a single overlay protocol frame.
type Message struct {
	T     string `json:"t"`
	App   string `json:"app,omitempty"`
	State string `json:"state,omitempty"`
}

// Peer is a bound overlay.
type Peer interface {
	OnGameStart(app string) error
	OnGameLeave() error
	OnCallState(state string) error
	// Done is closed when the connection is gone for any reason.
	Done() <-chan struct{}
	Close() error
}

// Binder makes overlay connections.
type Binder interface {
	Bind(ctx context.Context) (Peer, error)
}

// WSBinder binds an overlay that serves a websocket endpoint.
type WSBinder struct {
	address string
	dialer  *websocket.Dialer
	log     *logger.Logger
}

func NewBinder(address string, log *logger.Logger) *WSBinder {
	return &WSBinder{
		address: address,
		dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		log:     log,
	}
}

func (b *WSBinder) Bind(ctx context.Context) (Peer, error) {
	conn, _, err := b.dialer.DialContext(ctx, b.address, nil)
	if err != nil {
		return nil, err
	}
	return newConnection(conn, b.log), nil
}

// Connection is a websocket overlay peer.
// Writes are serialized, reads are drained on their own goroutine.
type Connection struct {
	sock *websocket.Conn
	log  *logger.Logger

	mu     sync.Mutex
	done   chan struct{}
	closed sync.Once
}

func newConnection(sock *websocket.Conn, log *logger.Logger) *Connection {
	c := &Connection{sock: sock, log: log, done: make(chan struct{})}
	sock.SetReadLimit(maxMessageSize)
	go c.reader()
	return c
}

func (c *Connection) reader() {
	defer c.shut()
	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("Overlay connection lost")
			}
			return
		}
		var m Message
		if err = json.Unmarshal(data, &m); err != nil {
			c.log.Warn().Err(err).Msg("Malformed overlay message")
			continue
		}
		c.log.Debug().Msgf("← %v", m.T)
	}
}

func (c *Connection) shut() {
	c.closed.Do(func() {
		_ = c.sock.Close()
		close(c.done)
	})
}

func (c *Connection) send(m Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err = c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	c.log.Debug().Msgf("→ %v", m.T)
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

func (c *Connection) OnGameStart(app string) error { return c.send(Message{T: GameStart, App: app}) }
func (c *Connection) OnGameLeave() error           { return c.send(Message{T: GameLeave}) }
func (c *Connection) OnCallState(state string) error {
	return c.send(Message{T: CallState, State: state})
}
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close unbinds the overlay.
func (c *Connection) Close() error {
	c.mu.Lock()
	_ = c.sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.mu.Unlock()
	c.shut()
	return nil
}
