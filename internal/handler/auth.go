package handler

import (
	"github.com/simworld/server/internal/net"
	"github.com/simworld/server/internal/net/packet"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Greeting builds the S_HELLO packet sent to every new session. A session
// starts authenticated when no password hash is configured.
func Greeting(deps *Deps) func(*net.Session) []byte {
	return func(sess *net.Session) []byte {
		required := authRequired(deps)
		if !required {
			sess.SetState(packet.StateAuthenticated)
		}
		w := packet.NewWriterWithOpcode(packet.S_HELLO)
		w.WriteS(deps.Config.Server.Name)
		w.WriteS(deps.World)
		w.WriteBool(required)
		return w.Bytes()
	}
}

func authRequired(deps *Deps) bool {
	return deps.Config.Network.AuthHash != ""
}

// HandleAuth processes C_AUTH.
// Format: [opcode][password\0]
func HandleAuth(sess *net.Session, r *packet.Reader, deps *Deps) {
	password := r.ReadS()

	ok := !authRequired(deps) ||
		bcrypt.CompareHashAndPassword([]byte(deps.Config.Network.AuthHash), []byte(password)) == nil

	w := packet.NewWriterWithOpcode(packet.S_AUTH)
	w.WriteBool(ok)
	sess.Send(w.Bytes())

	if !ok {
		deps.Log.Warn("control auth failed", zap.Uint64("session", sess.ID), zap.String("ip", sess.IP))
		sess.Close()
		return
	}
	sess.SetState(packet.StateAuthenticated)
	deps.Log.Info("control client authenticated", zap.Uint64("session", sess.ID), zap.String("ip", sess.IP))
}
