package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/chaldeaprjkt/gamespace/pkg/logger"
)

type Server struct {
	http.Server

	listener net.Listener
	log      *logger.Logger
}

type (
	Mux struct {
		*http.ServeMux
		prefix string
	}
	Handler        = http.Handler
	HandlerFunc    = http.HandlerFunc
	ResponseWriter = http.ResponseWriter
	Request        = http.Request
)

// NewServeMux allocates and returns a new ServeMux.
func NewServeMux(prefix string) *Mux {
	return &Mux{ServeMux: http.NewServeMux(), prefix: prefix}
}

func (m *Mux) Handle(pattern string, handler Handler) *Mux {
	m.ServeMux.Handle(m.prefix+pattern, handler)
	return m
}

func (m *Mux) HandleFunc(pattern string, handler func(ResponseWriter, *Request)) *Mux {
	m.ServeMux.HandleFunc(m.prefix+pattern, handler)
	return m
}

// NewServer makes a server that listens on the address right away,
// so the actual address is known before Run (useful with :0).
func NewServer(address string, handler func(*Server) Handler, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Default()
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	server := &Server{
		Server: http.Server{
			Addr:              listener.Addr().String(),
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
		log:      log,
	}
	server.Handler = handler(server)
	return server, nil
}

func (s *Server) Run() { go s.run() }

func (s *Server) run() {
	s.log.Debug().Msgf("Starting http server on %s", s.Addr)
	if err := s.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error().Err(err).Msg("http server has failed")
		return
	}
	s.log.Debug().Msg("http server was closed")
}

func (s *Server) Shutdown(ctx context.Context) error { return s.Server.Shutdown(ctx) }

func (s *Server) String() string { return "http://" + s.Addr }
