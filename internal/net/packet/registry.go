package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrEmptyPacket is returned for a frame with no opcode byte.
	ErrEmptyPacket = errors.New("empty packet")
	// ErrStateNotAllowed is returned when an opcode arrives in a session
	// state its handler was not registered for, such as C_FACTORY before
	// C_AUTH succeeded.
	ErrStateNotAllowed = errors.New("opcode not allowed in session state")
	// ErrHandlerPanic is returned when a handler panicked on a packet.
	ErrHandlerPanic = errors.New("handler panic")
)

// SessionState is where a control session is in its lifecycle. A session
// starts in Handshake and moves to Authenticated after C_AUTH, or starts
// there directly when the server has no password. Mutations, plugin queries
// and physics requests are only routed in Authenticated.
type SessionState int

const (
	StateHandshake     SessionState = iota // greeted, waiting for C_AUTH
	StateAuthenticated                     // may send control requests
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateAuthenticated:
		return "Authenticated"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc handles one control packet. sess is the *net.Session that
// received it, passed untyped since net imports this package.
type HandlerFunc func(sess any, r *Reader)

type route struct {
	fn     HandlerFunc
	states map[SessionState]bool
}

// Registry routes control opcodes to handlers, gated by session state.
// Register everything before the server accepts; Dispatch is then
// read-only and safe from every session's reader goroutine.
type Registry struct {
	routes map[byte]*route
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		routes: make(map[byte]*route),
		log:    log,
	}
}

// Register routes opcode to fn for sessions in one of states.
func (reg *Registry) Register(opcode byte, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.routes[opcode] = &route{fn: fn, states: allowed}
}

// Dispatch runs the handler for the opcode in data[0]. Unknown opcodes are
// logged and dropped.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyPacket
	}
	opcode := data[0]

	rt, ok := reg.routes[opcode]
	if !ok {
		reg.log.Debug("unknown control opcode", zap.Uint8("opcode", opcode), zap.Stringer("state", state))
		return nil
	}
	if !rt.states[state] {
		reg.log.Warn("control opcode refused",
			zap.Uint8("opcode", opcode),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("opcode %d in %s: %w", opcode, state, ErrStateNotAllowed)
	}

	reg.log.Debug("control packet",
		zap.Uint8("opcode", opcode),
		zap.Int("size", len(data)),
		zap.Stringer("state", state),
	)
	return reg.call(rt.fn, sess, NewReader(data), opcode)
}

// call runs fn, turning a panic into ErrHandlerPanic so a malformed request
// only costs its own session.
func (reg *Registry) call(fn HandlerFunc, sess any, r *Reader, opcode byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("control handler panic",
				zap.Uint8("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("opcode %d: %v: %w", opcode, rec, ErrHandlerPanic)
		}
	}()
	fn(sess, r)
	return nil
}
