package handler

import (
	"errors"
	"fmt"

	"github.com/simworld/server/internal/data"
	"github.com/simworld/server/internal/mutation"
	"github.com/simworld/server/internal/net"
	"github.com/simworld/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleFactory processes C_FACTORY: spawn a model, or edit one when an edit
// name is given. The descriptor is parsed here, outside any world lock; the
// ack only confirms the mutation was queued. Drain failures arrive later as
// S_MUTATION_REJECTED.
// Format: [opcode][D req][blob descriptor][edit name\0][requested name\0][C allow renaming]
func HandleFactory(sess *net.Session, r *packet.Reader, deps *Deps) {
	req := r.ReadD()
	raw := r.ReadBlob()
	editName := r.ReadS()
	requested := r.ReadS()
	allowRenaming := r.ReadBool()
	if err := r.Err(); err != nil {
		sendAck(sess, packet.S_FACTORY_ACK, req, 0, fmt.Errorf("factory: %w", err))
		return
	}

	desc, err := data.ParseModel(raw)
	if err != nil {
		sendAck(sess, packet.S_FACTORY_ACK, req, 0, err)
		return
	}

	var m mutation.Mutation
	if editName != "" {
		m = mutation.Edit(editName, desc)
	} else {
		m = mutation.Spawn(desc, requested, allowRenaming)
	}
	m.Origin = sess.ID

	seq, err := deps.Queue.Enqueue(m)
	if err != nil {
		deps.Log.Warn("factory request refused",
			zap.Uint64("session", sess.ID),
			zap.String("kind", m.Kind.String()),
			zap.Error(err),
		)
	}
	sendAck(sess, packet.S_FACTORY_ACK, req, seq, err)
}

// HandleDelete processes C_DELETE.
// Format: [opcode][D req][name\0]
func HandleDelete(sess *net.Session, r *packet.Reader, deps *Deps) {
	req := r.ReadD()
	name := r.ReadS()
	if name == "" {
		sendAck(sess, packet.S_DELETE_ACK, req, 0, errors.New("delete: empty model name"))
		return
	}

	m := mutation.Delete(name)
	m.Origin = sess.ID
	seq, err := deps.Queue.Enqueue(m)
	if err != nil {
		deps.Log.Warn("delete request refused", zap.Uint64("session", sess.ID), zap.String("name", name), zap.Error(err))
	}
	sendAck(sess, packet.S_DELETE_ACK, req, seq, err)
}

// sendAck writes [D req][C ok][Q seq][S error].
func sendAck(sess *net.Session, opcode byte, req int32, seq uint64, err error) {
	w := packet.NewWriterWithOpcode(opcode)
	w.WriteD(req)
	w.WriteBool(err == nil)
	w.WriteQ(seq)
	if err != nil {
		w.WriteS(err.Error())
	} else {
		w.WriteS("")
	}
	sess.Send(w.Bytes())
}
