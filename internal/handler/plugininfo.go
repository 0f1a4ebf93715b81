package handler

import (
	"math"

	"github.com/simworld/server/internal/introspect"
	"github.com/simworld/server/internal/net"
	"github.com/simworld/server/internal/net/packet"
	"go.uber.org/zap"
)

// pluginInfoHeader is opcode, request id, success, truncated and count.
const pluginInfoHeader = 1 + 4 + 1 + 1 + 2

// HandlePluginInfo processes C_PLUGIN_INFO.
// Format: [opcode][D req][uri\0]
//
// A reply that would not fit in one frame is sent again without config
// blobs, and if the names alone still overflow, with as many entries as fit.
// Either way the truncated flag is set.
func HandlePluginInfo(sess *net.Session, r *packet.Reader, deps *Deps) {
	req := r.ReadD()
	uri := r.ReadS()

	plugins, ok := deps.Plugins.Query(uri)

	w, truncated := writePluginInfo(req, ok, plugins, true)
	if truncated {
		w, _ = writePluginInfo(req, ok, plugins, false)
		deps.Log.Warn("plugin info reply truncated",
			zap.Uint64("session", sess.ID),
			zap.String("uri", uri),
			zap.Int("plugins", len(plugins)),
		)
	}
	sess.Send(w.Bytes())
}

// writePluginInfo builds S_PLUGIN_INFO:
// [D req][C ok][C truncated][H count]{[S name][C scope][S filename][blob config]}
func writePluginInfo(req int32, ok bool, plugins []introspect.PluginInfo, withConfig bool) (*packet.Writer, bool) {
	body := packet.NewWriter()
	n := 0
	truncated := !withConfig
	for _, p := range plugins {
		e := packet.NewWriter()
		e.WriteS(p.Name)
		e.WriteC(byte(p.Scope))
		e.WriteS(p.Filename)
		if withConfig {
			e.WriteBlob(p.Config)
		} else {
			e.WriteBlob(nil)
		}
		if n == math.MaxUint16 || pluginInfoHeader+body.Len()+e.Len() > packet.MaxPayload {
			truncated = true
			break
		}
		body.WriteBytes(e.Bytes())
		n++
	}

	w := packet.NewWriterWithOpcode(packet.S_PLUGIN_INFO)
	w.WriteD(req)
	w.WriteBool(ok)
	w.WriteBool(truncated)
	w.WriteH(uint16(n))
	w.WriteBytes(body.Bytes())
	return w, truncated
}
