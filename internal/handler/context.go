package handler

import (
	"github.com/simworld/server/internal/config"
	"github.com/simworld/server/internal/introspect"
	"github.com/simworld/server/internal/mutation"
	"github.com/simworld/server/internal/net"
	"github.com/simworld/server/internal/net/packet"
	"github.com/simworld/server/internal/physics"
	"go.uber.org/zap"
)

// Enqueuer accepts mutations for the next drain.
type Enqueuer interface {
	Enqueue(m mutation.Mutation) (uint64, error)
}

// Deps holds shared dependencies injected into all packet handlers. Every
// one of them is safe to call from a session's reader goroutine.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Queue    Enqueuer
	Plugins  *introspect.Service
	Physics  *physics.Settings
	Sessions *net.SessionStore
	World    string // active world name, sent in the greeting
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	// Handshake phase
	reg.Register(packet.C_AUTH,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleAuth(sess.(*net.Session), r, deps)
		},
	)

	// Authenticated phase
	authStates := []packet.SessionState{packet.StateAuthenticated}

	reg.Register(packet.C_FACTORY, authStates,
		func(sess any, r *packet.Reader) {
			HandleFactory(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_DELETE, authStates,
		func(sess any, r *packet.Reader) {
			HandleDelete(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_PLUGIN_INFO, authStates,
		func(sess any, r *packet.Reader) {
			HandlePluginInfo(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_PHYSICS, authStates,
		func(sess any, r *packet.Reader) {
			HandlePhysics(sess.(*net.Session), r, deps)
		},
	)

	// Quit is accepted in any live state
	reg.Register(packet.C_QUIT,
		[]packet.SessionState{packet.StateHandshake, packet.StateAuthenticated},
		func(sess any, r *packet.Reader) {
			HandleQuit(sess.(*net.Session), r, deps)
		},
	)
}
