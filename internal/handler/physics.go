package handler

import (
	"github.com/simworld/server/internal/net"
	"github.com/simworld/server/internal/net/packet"
	"github.com/simworld/server/internal/physics"
	"go.uber.org/zap"
)

// HandlePhysics processes C_PHYSICS. Each param is applied in order; the ack
// lists the rejected names and the full current parameter set, so an empty
// request works as a read.
// Format: [opcode][D req][C count]{param}
func HandlePhysics(sess *net.Session, r *packet.Reader, deps *Deps) {
	req := r.ReadD()
	params, err := physics.ReadParams(r)
	if err != nil {
		deps.Log.Debug("bad physics request", zap.Uint64("session", sess.ID), zap.Error(err))
		params = nil
	}

	rejected := deps.Physics.Apply(params)

	w := packet.NewWriterWithOpcode(packet.S_PHYSICS_ACK)
	w.WriteD(req)
	w.WriteH(uint16(len(rejected)))
	for _, name := range rejected {
		w.WriteS(name)
	}
	physics.WriteParams(w, deps.Physics.All())
	sess.Send(w.Bytes())
}
