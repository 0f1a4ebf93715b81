package handler

import (
	"github.com/simworld/server/internal/net"
	"github.com/simworld/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleQuit processes C_QUIT. Mutations the session already queued still
// apply; only the connection goes away.
func HandleQuit(sess *net.Session, _ *packet.Reader, deps *Deps) {
	deps.Log.Info("control client quit", zap.Uint64("session", sess.ID), zap.String("ip", sess.IP))
	sess.Close()
}
