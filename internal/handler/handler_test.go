package handler

import (
	"bytes"
	"math"
	gonet "net"
	"testing"
	"time"

	"github.com/simworld/server/internal/config"
	"github.com/simworld/server/internal/core/event"
	"github.com/simworld/server/internal/data"
	"github.com/simworld/server/internal/introspect"
	"github.com/simworld/server/internal/mutation"
	"github.com/simworld/server/internal/net"
	"github.com/simworld/server/internal/net/packet"
	"github.com/simworld/server/internal/physics"
	"github.com/simworld/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	deps  *Deps
	queue *mutation.Queue
	store *world.Store
	srv   *net.Server
	bus   *event.Bus
}

func newFixture(t *testing.T, authHash string) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := world.NewStore(log)
	require.NoError(t, store.Open(&data.WorldDescriptor{
		Name:    "default",
		Plugins: []data.PluginDescriptor{{Name: "wind", Filename: "libWind.so"}},
		Models: []data.ModelDescriptor{{
			Name:    "submarine",
			Links:   []data.LinkDescriptor{{Name: "body", Mass: 10}},
			Plugins: []data.PluginDescriptor{{Name: "submarine_propeller_3", Filename: "libThruster.so", Config: []byte("thrust: 4\n")}},
		}},
	}))

	cfg := config.Default()
	cfg.Network.BindAddress = "127.0.0.1:0"
	cfg.Network.AuthHash = authHash

	queue := mutation.NewQueue(0)
	sessions := net.NewSessionStore()
	deps := &Deps{
		Config:   cfg,
		Log:      log,
		Queue:    queue,
		Plugins:  introspect.NewService(store, log),
		Physics:  physics.NewSettings("null", physics.Values{MaxStepSize: 0.001, RealTimeUpdateRate: 1000}, log),
		Sessions: sessions,
		World:    "default",
	}
	reg := packet.NewRegistry(log)
	RegisterAll(reg, deps)

	srv, err := net.NewServer(cfg.Network, reg, sessions, log)
	require.NoError(t, err)
	srv.SetGreeting(Greeting(deps))
	go srv.AcceptLoop()
	t.Cleanup(srv.Shutdown)

	bus := event.NewBus()
	SubscribeRejections(bus, deps)
	return &fixture{deps: deps, queue: queue, store: store, srv: srv, bus: bus}
}

type client struct {
	t    *testing.T
	conn gonet.Conn
}

func (f *fixture) dial(t *testing.T) (*client, *packet.Reader) {
	t.Helper()
	conn, err := gonet.Dial("tcp", f.srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(3 * time.Second))
	c := &client{t: t, conn: conn}
	return c, c.recv(packet.S_HELLO)
}

func (c *client) send(w *packet.Writer) {
	c.t.Helper()
	require.NoError(c.t, net.WriteFrame(c.conn, w.Bytes()))
}

func (c *client) recv(opcode byte) *packet.Reader {
	c.t.Helper()
	payload, err := net.ReadFrame(c.conn)
	require.NoError(c.t, err)
	r := packet.NewReader(payload)
	require.Equal(c.t, opcode, r.Opcode())
	return r
}

func TestGreetingWithoutAuth(t *testing.T) {
	f := newFixture(t, "")
	_, hello := f.dial(t)
	assert.Equal(t, "simworld", hello.ReadS())
	assert.Equal(t, "default", hello.ReadS())
	assert.False(t, hello.ReadBool())
}

func TestAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	f := newFixture(t, string(hash))

	c, hello := f.dial(t)
	hello.ReadS()
	hello.ReadS()
	assert.True(t, hello.ReadBool())

	w := packet.NewWriterWithOpcode(packet.C_AUTH)
	w.WriteS("hunter2")
	c.send(w)
	assert.True(t, c.recv(packet.S_AUTH).ReadBool())

	q := packet.NewWriterWithOpcode(packet.C_PLUGIN_INFO)
	q.WriteD(1)
	q.WriteS("data://world/default/plugin/")
	c.send(q)
	r := c.recv(packet.S_PLUGIN_INFO)
	assert.Equal(t, int32(1), r.ReadD())
	assert.True(t, r.ReadBool())
}

func TestAuthWrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	f := newFixture(t, string(hash))

	c, _ := f.dial(t)
	w := packet.NewWriterWithOpcode(packet.C_AUTH)
	w.WriteS("wrong")
	c.send(w)

	// either a negative S_AUTH or a closed connection
	payload, err := net.ReadFrame(c.conn)
	if err == nil {
		r := packet.NewReader(payload)
		assert.Equal(t, packet.S_AUTH, r.Opcode())
		assert.False(t, r.ReadBool())
	}
	assert.Equal(t, 0, f.queue.Len())
}

func TestFactorySpawnAndEdit(t *testing.T) {
	f := newFixture(t, "")
	c, _ := f.dial(t)

	desc := []byte("name: box\nlinks:\n  - name: link_1\n    mass: 1.0\n")
	w := packet.NewWriterWithOpcode(packet.C_FACTORY)
	w.WriteD(7)
	w.WriteBlob(desc)
	w.WriteS("")
	w.WriteS("new_model")
	w.WriteBool(true)
	c.send(w)

	ack := c.recv(packet.S_FACTORY_ACK)
	assert.Equal(t, int32(7), ack.ReadD())
	assert.True(t, ack.ReadBool())
	assert.Equal(t, uint64(1), ack.ReadQ())

	edit := packet.NewWriterWithOpcode(packet.C_FACTORY)
	edit.WriteD(8)
	edit.WriteBlob([]byte("name: box\nlinks:\n  - name: link_1\n    mass: 2.0\n"))
	edit.WriteS("new_model")
	edit.WriteS("")
	edit.WriteBool(false)
	c.send(edit)
	ack = c.recv(packet.S_FACTORY_ACK)
	assert.Equal(t, int32(8), ack.ReadD())
	assert.True(t, ack.ReadBool())

	require.NoError(t, f.queue.DrainInto(f.store, nil))
	m, ok := f.store.Find("new_model")
	require.True(t, ok)
	link, ok := m.Link("link_1")
	require.True(t, ok)
	assert.Equal(t, 2.0, link.Mass)
}

func TestFactoryBadDescriptor(t *testing.T) {
	f := newFixture(t, "")
	c, _ := f.dial(t)

	w := packet.NewWriterWithOpcode(packet.C_FACTORY)
	w.WriteD(3)
	w.WriteBlob([]byte("links: [{name: a}, {name: a}]\n"))
	w.WriteS("")
	w.WriteS("dup")
	w.WriteBool(true)
	c.send(w)

	ack := c.recv(packet.S_FACTORY_ACK)
	assert.Equal(t, int32(3), ack.ReadD())
	assert.False(t, ack.ReadBool())
	ack.ReadQ()
	assert.Contains(t, ack.ReadS(), "duplicate link")
	assert.Equal(t, 0, f.queue.Len())
}

func TestDeleteAndRejectionNotice(t *testing.T) {
	f := newFixture(t, "")
	c, _ := f.dial(t)

	w := packet.NewWriterWithOpcode(packet.C_DELETE)
	w.WriteD(1)
	w.WriteS("submarine")
	c.send(w)
	ack := c.recv(packet.S_DELETE_ACK)
	assert.Equal(t, int32(1), ack.ReadD())
	assert.True(t, ack.ReadBool())

	e := packet.NewWriterWithOpcode(packet.C_FACTORY)
	e.WriteD(2)
	e.WriteBlob([]byte("name: x\n"))
	e.WriteS("submarine")
	e.WriteS("")
	e.WriteBool(false)
	c.send(e)
	c.recv(packet.S_FACTORY_ACK)

	require.NoError(t, f.queue.DrainInto(f.store, func(o mutation.Outcome) { event.EmitOutcome(f.bus, o) }))
	f.bus.SwapBuffers()
	f.bus.DispatchAll()

	assert.Equal(t, 0, f.store.Count())
	rej := c.recv(packet.S_MUTATION_REJECTED)
	assert.Equal(t, uint64(2), rej.ReadQ())
	assert.Equal(t, byte(mutation.KindEdit), rej.ReadC())
	assert.Equal(t, "submarine", rej.ReadS())
	assert.Contains(t, rej.ReadS(), "not found")
}

func TestPluginInfoRequests(t *testing.T) {
	f := newFixture(t, "")
	c, _ := f.dial(t)

	q := packet.NewWriterWithOpcode(packet.C_PLUGIN_INFO)
	q.WriteD(5)
	q.WriteS("data://world/default/model/submarine/plugin/submarine_propeller_3")
	c.send(q)
	r := c.recv(packet.S_PLUGIN_INFO)
	assert.Equal(t, int32(5), r.ReadD())
	assert.True(t, r.ReadBool())
	assert.False(t, r.ReadBool(), "not truncated")
	require.Equal(t, uint16(1), r.ReadH())
	assert.Equal(t, "submarine_propeller_3", r.ReadS())
	assert.Equal(t, byte(world.ScopeModel), r.ReadC())
	assert.Equal(t, "libThruster.so", r.ReadS())
	assert.Equal(t, []byte("thrust: 4\n"), r.ReadBlob())

	bad := packet.NewWriterWithOpcode(packet.C_PLUGIN_INFO)
	bad.WriteD(6)
	bad.WriteS("tell me about your plugins")
	c.send(bad)
	r = c.recv(packet.S_PLUGIN_INFO)
	assert.Equal(t, int32(6), r.ReadD())
	assert.False(t, r.ReadBool())
	assert.False(t, r.ReadBool())
	assert.Equal(t, uint16(0), r.ReadH())
}

func TestPluginInfoOversizedListing(t *testing.T) {
	f := newFixture(t, "")
	big := &data.ModelDescriptor{Name: "big", Links: []data.LinkDescriptor{{Name: "body", Mass: 1}}}
	for _, name := range []string{"a", "b", "c", "d"} {
		big.Plugins = append(big.Plugins, data.PluginDescriptor{
			Name:     name,
			Filename: "libBig.so",
			Config:   bytes.Repeat([]byte("x"), 20000),
		})
	}
	_, err := f.store.Insert(big, "big")
	require.NoError(t, err)

	c, _ := f.dial(t)
	q := packet.NewWriterWithOpcode(packet.C_PLUGIN_INFO)
	q.WriteD(1)
	q.WriteS("data://world/default/model/big/plugin/")
	c.send(q)

	r := c.recv(packet.S_PLUGIN_INFO)
	assert.Equal(t, int32(1), r.ReadD())
	assert.True(t, r.ReadBool())
	assert.True(t, r.ReadBool(), "truncated")
	require.Equal(t, uint16(4), r.ReadH())
	for _, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, name, r.ReadS())
		r.ReadC()
		assert.Equal(t, "libBig.so", r.ReadS())
		assert.Empty(t, r.ReadBlob())
	}
	require.NoError(t, r.Err())

	// the session survives the large reply
	q = packet.NewWriterWithOpcode(packet.C_PLUGIN_INFO)
	q.WriteD(2)
	q.WriteS("data://world/default/plugin/wind")
	c.send(q)
	r = c.recv(packet.S_PLUGIN_INFO)
	assert.Equal(t, int32(2), r.ReadD())
	assert.True(t, r.ReadBool())
}

func TestWritePluginInfoCapsEntries(t *testing.T) {
	plugins := make([]introspect.PluginInfo, 70000)
	for i := range plugins {
		plugins[i] = introspect.PluginInfo{Name: "p", Scope: world.ScopeModel}
	}
	w, truncated := writePluginInfo(1, true, plugins, false)
	assert.True(t, truncated)
	assert.LessOrEqual(t, w.Len(), packet.MaxPayload)

	r := packet.NewReader(w.Bytes())
	r.ReadD()
	r.ReadBool()
	r.ReadBool()
	n := int(r.ReadH())
	assert.Greater(t, n, 0)
	assert.Less(t, n, len(plugins))
	assert.Equal(t, n*8, r.Remaining())
}

func TestPhysicsRequest(t *testing.T) {
	f := newFixture(t, "")
	c, _ := f.dial(t)

	w := packet.NewWriterWithOpcode(packet.C_PHYSICS)
	w.WriteD(9)
	require.NoError(t, physics.WriteParams(w, []physics.Param{
		physics.DoubleParam(physics.ParamMaxStepSize, 0.004),
		physics.StringParam(physics.ParamType, "ode"),
	}))
	c.send(w)

	r := c.recv(packet.S_PHYSICS_ACK)
	assert.Equal(t, int32(9), r.ReadD())
	require.Equal(t, uint16(1), r.ReadH())
	assert.Equal(t, physics.ParamType, r.ReadS())
	params, err := physics.ReadParams(r)
	require.NoError(t, err)
	require.Len(t, params, len(physics.Keys))
	assert.Equal(t, 0.004, f.deps.Physics.Values().MaxStepSize)
}

func TestPhysicsRequestWindAndNonFinite(t *testing.T) {
	f := newFixture(t, "")
	c, _ := f.dial(t)

	w := packet.NewWriterWithOpcode(packet.C_PHYSICS)
	w.WriteD(10)
	require.NoError(t, physics.WriteParams(w, []physics.Param{
		physics.VectorParam(physics.ParamWindLinearVelocity, physics.Vector3{4, 0, 0}),
		physics.DoubleParam(physics.ParamMaxStepSize, math.NaN()),
	}))
	c.send(w)

	r := c.recv(packet.S_PHYSICS_ACK)
	assert.Equal(t, int32(10), r.ReadD())
	require.Equal(t, uint16(1), r.ReadH())
	assert.Equal(t, physics.ParamMaxStepSize, r.ReadS())

	v := f.deps.Physics.Values()
	assert.Equal(t, physics.Vector3{4, 0, 0}, v.WindLinearVelocity)
	assert.Equal(t, 0.001, v.MaxStepSize)
}

func TestQuitCloses(t *testing.T) {
	f := newFixture(t, "")
	c, _ := f.dial(t)
	require.Eventually(t, func() bool { return f.deps.Sessions.Count() == 1 }, time.Second, 5*time.Millisecond)

	c.send(packet.NewWriterWithOpcode(packet.C_QUIT))
	require.Eventually(t, func() bool { return f.deps.Sessions.Count() == 0 }, time.Second, 5*time.Millisecond)
}
