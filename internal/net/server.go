package net

import (
	"net"
	"sync/atomic"

	"github.com/simworld/server/internal/config"
	"go.uber.org/zap"
)

// Server accepts control connections and starts a Session for each.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	sessions *SessionStore
	dispatch Dispatcher
	greeting func(*Session) []byte
	maxConns int
	opts     SessionOptions
	log      *zap.Logger
	closeCh  chan struct{}
}

func NewServer(cfg config.NetworkConfig, d Dispatcher, sessions *SessionStore, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.BindAddress)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = NewSessionStore()
	}
	s := &Server{
		listener: ln,
		sessions: sessions,
		dispatch: d,
		maxConns: cfg.MaxConns,
		opts: SessionOptions{
			OutQueueSize:     cfg.OutQueueSize,
			PacketsPerSecond: cfg.PacketsPerSecond,
			ReadTimeout:      cfg.ReadTimeout,
			WriteTimeout:     cfg.WriteTimeout,
		},
		log:     log,
		closeCh: make(chan struct{}),
	}
	return s, nil
}

// SetGreeting sets the packet sent to every new session before any request
// is read. Call before AcceptLoop.
func (s *Server) SetGreeting(fn func(*Session) []byte) {
	s.greeting = fn
}

// AcceptLoop runs in its own goroutine until Shutdown.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		if s.maxConns > 0 && s.sessions.Count() >= s.maxConns {
			s.log.Warn("connection limit reached, refusing", zap.String("ip", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.opts, s.log)
		s.sessions.Add(sess)
		s.log.Info("control client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

		var greeting []byte
		if s.greeting != nil {
			greeting = s.greeting(sess)
		}
		sess.Start(greeting, s.dispatch, s.sessionClosed)
	}
}

func (s *Server) sessionClosed(sess *Session) {
	s.sessions.Remove(sess.ID)
	s.log.Info("control client disconnected", zap.Uint64("session", sess.ID))
}

// Sessions returns the live session set.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Shutdown stops accepting new connections and closes every session.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
	for _, sess := range s.sessions.All() {
		sess.Close()
	}
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
