package handler

import (
	"github.com/simworld/server/internal/core/event"
	"github.com/simworld/server/internal/net/packet"
)

// SubscribeRejections tells the originating session about every mutation a
// drain dropped. Runs on the stepping goroutine; Send never blocks.
func SubscribeRejections(bus *event.Bus, deps *Deps) {
	event.Subscribe(bus, func(e event.MutationRejected) {
		if e.Origin == 0 {
			return
		}
		sess := deps.Sessions.Get(e.Origin)
		if sess == nil {
			return
		}
		reason := ""
		if e.Err != nil {
			reason = e.Err.Error()
		}
		w := packet.NewWriterWithOpcode(packet.S_MUTATION_REJECTED)
		w.WriteQ(e.Seq)
		w.WriteC(byte(e.Kind))
		w.WriteS(e.Name)
		w.WriteS(reason)
		sess.Send(w.Bytes())
	})
}
