package net

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simworld/server/internal/net/packet"
	"go.uber.org/zap"
)

// Dispatcher routes one inbound payload to its handler.
type Dispatcher interface {
	Dispatch(sess any, state packet.SessionState, data []byte) error
}

// Session represents a single control connection. Its reader goroutine
// dispatches requests directly; handlers only touch thread-safe services
// (mutation queue, plugin queries, physics settings). Its writer goroutine
// drains OutQueue.
type Session struct {
	ID   uint64
	conn net.Conn

	state atomic.Int32 // packet.SessionState stored as int32

	OutQueue chan []byte // writer goroutine reads from here

	IP string

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	onClose   func(*Session)

	readTimeout  time.Duration
	writeTimeout time.Duration

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktPerSec  int   // max packets/sec (0 = unlimited)
	pktCount   int   // packets received this second
	pktResetAt int64 // unix second of last counter reset

	log *zap.Logger
}

// SessionOptions carries the per-connection limits from the network config.
type SessionOptions struct {
	OutQueueSize     int
	PacketsPerSecond int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

func NewSession(conn net.Conn, id uint64, opts SessionOptions, log *zap.Logger) *Session {
	if opts.OutQueueSize <= 0 {
		opts.OutQueueSize = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	s := &Session{
		ID:           id,
		conn:         conn,
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		closeCh:      make(chan struct{}),
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		pktPerSec:    opts.PacketsPerSecond,
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(packet.StateHandshake))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Log returns the session-scoped logger.
func (s *Session) Log() *zap.Logger { return s.log }

// Start queues the greeting and launches the reader and writer goroutines.
// onClose runs once when the session closes.
func (s *Session) Start(greeting []byte, d Dispatcher, onClose func(*Session)) {
	s.onClose = onClose
	if len(greeting) > 0 {
		s.Send(greeting)
	}
	go s.readLoop(d)
	go s.writeLoop()
}

// Send queues a packet for the writer goroutine. Safe from any goroutine.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("output queue full, dropping slow client")
		s.Close()
	}
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop runs in its own goroutine. It reads frames from the TCP connection
// and dispatches each one before reading the next, so one session's requests
// reach the mutation queue in the order they were sent.
func (s *Session) readLoop(d Dispatcher) {
	defer s.Close()

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if s.overRate() {
			s.log.Warn("packet rate exceeded, disconnecting", zap.Int("pps", s.pktCount))
			return
		}

		if err := d.Dispatch(s, s.State(), payload); err != nil {
			s.log.Debug("dispatch error", zap.Error(err))
		}
	}
}

func (s *Session) overRate() bool {
	if s.pktPerSec <= 0 {
		return false
	}
	now := time.Now().Unix()
	if now != s.pktResetAt {
		s.pktCount = 0
		s.pktResetAt = now
	}
	s.pktCount++
	return s.pktCount > s.pktPerSec
}

// writeLoop runs in its own goroutine. It reads packets from OutQueue and
// writes them as framed data to the TCP connection.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOnePacket(data) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// writeOnePacket writes one framed packet. Returns true on success.
func (s *Session) writeOnePacket(data []byte) bool {
	if len(data) > 0 {
		s.log.Debug("TX",
			zap.String("op", fmt.Sprintf("0x%02X(%d)", data[0], data[0])),
			zap.Int("len", len(data)),
		)
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := WriteFrame(s.conn, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
