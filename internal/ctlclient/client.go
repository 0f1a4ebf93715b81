// Package ctlclient speaks the control protocol from the client side.
package ctlclient

import (
	"errors"
	"fmt"
	gonet "net"
	"time"

	"github.com/simworld/server/internal/mutation"
	"github.com/simworld/server/internal/net"
	"github.com/simworld/server/internal/net/packet"
	"github.com/simworld/server/internal/physics"
	"github.com/simworld/server/internal/world"
)

// ErrAuthFailed is returned when the server rejects the password.
var ErrAuthFailed = errors.New("authentication failed")

// Hello is the server greeting.
type Hello struct {
	Server       string
	World        string
	AuthRequired bool
}

// Rejection is an S_MUTATION_REJECTED notice.
type Rejection struct {
	Seq    uint64
	Kind   mutation.Kind
	Name   string
	Reason string
}

// Plugin is one entry of a plugin-info answer.
type Plugin struct {
	Name     string
	Scope    world.Scope
	Filename string
	Config   []byte
}

// PluginList is a plugin-info answer. Found is false when the uri named
// nothing. Truncated means the server left out config blobs, and possibly
// trailing entries, to fit the reply in one frame.
type PluginList struct {
	Found     bool
	Truncated bool
	Plugins   []Plugin
}

// Client is a synchronous control connection. Not safe for concurrent use.
type Client struct {
	conn    gonet.Conn
	timeout time.Duration
	nextReq int32
	Hello   Hello

	// Rejections collects rejection notices that arrive while waiting for
	// other replies.
	Rejections []Rejection
}

// Dial connects and reads the greeting.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := gonet.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := &Client{conn: conn, timeout: timeout}
	r, err := c.expect(packet.S_HELLO)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.Hello = Hello{Server: r.ReadS(), World: r.ReadS(), AuthRequired: r.ReadBool()}
	return c, nil
}

func (c *Client) Close() error {
	_ = c.send(packet.NewWriterWithOpcode(packet.C_QUIT))
	return c.conn.Close()
}

// Auth sends the password. It is a no-op when the server needs none.
func (c *Client) Auth(password string) error {
	if !c.Hello.AuthRequired {
		return nil
	}
	w := packet.NewWriterWithOpcode(packet.C_AUTH)
	w.WriteS(password)
	if err := c.send(w); err != nil {
		return err
	}
	r, err := c.expect(packet.S_AUTH)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if !r.ReadBool() {
		return ErrAuthFailed
	}
	return nil
}

// Spawn queues a new model built from the YAML descriptor. It returns the
// mutation's sequence number.
func (c *Client) Spawn(descriptor []byte, name string, allowRenaming bool) (uint64, error) {
	return c.factory(descriptor, "", name, allowRenaming)
}

// Edit queues a subtree replacement for the live model target.
func (c *Client) Edit(target string, descriptor []byte) (uint64, error) {
	return c.factory(descriptor, target, "", false)
}

func (c *Client) factory(descriptor []byte, editName, name string, allowRenaming bool) (uint64, error) {
	req := c.req()
	w := packet.NewWriterWithOpcode(packet.C_FACTORY)
	w.WriteD(req)
	w.WriteBlob(descriptor)
	w.WriteS(editName)
	w.WriteS(name)
	w.WriteBool(allowRenaming)
	if err := c.send(w); err != nil {
		return 0, err
	}
	return c.ack(packet.S_FACTORY_ACK, req)
}

// Delete queues removal of the named model.
func (c *Client) Delete(name string) (uint64, error) {
	req := c.req()
	w := packet.NewWriterWithOpcode(packet.C_DELETE)
	w.WriteD(req)
	w.WriteS(name)
	if err := c.send(w); err != nil {
		return 0, err
	}
	return c.ack(packet.S_DELETE_ACK, req)
}

// Plugins asks for the plugins at uri.
func (c *Client) Plugins(uri string) (PluginList, error) {
	req := c.req()
	w := packet.NewWriterWithOpcode(packet.C_PLUGIN_INFO)
	w.WriteD(req)
	w.WriteS(uri)
	if err := c.send(w); err != nil {
		return PluginList{}, err
	}
	r, err := c.reply(packet.S_PLUGIN_INFO, req)
	if err != nil {
		return PluginList{}, err
	}
	list := PluginList{Found: r.ReadBool(), Truncated: r.ReadBool()}
	n := int(r.ReadH())
	list.Plugins = make([]Plugin, 0, n)
	for i := 0; i < n; i++ {
		list.Plugins = append(list.Plugins, Plugin{
			Name:     r.ReadS(),
			Scope:    world.Scope(r.ReadC()),
			Filename: r.ReadS(),
			Config:   r.ReadBlob(),
		})
	}
	if err := r.Err(); err != nil {
		return PluginList{}, err
	}
	return list, nil
}

// Physics applies params and returns the rejected names and the resulting
// parameter set. No params reads the current set.
func (c *Client) Physics(params ...physics.Param) (rejected []string, current []physics.Param, err error) {
	req := c.req()
	w := packet.NewWriterWithOpcode(packet.C_PHYSICS)
	w.WriteD(req)
	if err := physics.WriteParams(w, params); err != nil {
		return nil, nil, err
	}
	if err := c.send(w); err != nil {
		return nil, nil, err
	}
	r, err := c.reply(packet.S_PHYSICS_ACK, req)
	if err != nil {
		return nil, nil, err
	}
	n := int(r.ReadH())
	for i := 0; i < n; i++ {
		rejected = append(rejected, r.ReadS())
	}
	current, err = physics.ReadParams(r)
	return rejected, current, err
}

// WaitRejections reads for d and returns every rejection seen so far.
func (c *Client) WaitRejections(d time.Duration) []Rejection {
	c.conn.SetReadDeadline(time.Now().Add(d))
	for {
		payload, err := net.ReadFrame(c.conn)
		if err != nil {
			break
		}
		c.note(packet.NewReader(payload))
	}
	return c.Rejections
}

func (c *Client) req() int32 {
	c.nextReq++
	return c.nextReq
}

func (c *Client) send(w *packet.Writer) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return net.WriteFrame(c.conn, w.Bytes())
}

// expect reads until a packet with opcode arrives, noting rejections.
func (c *Client) expect(opcode byte) (*packet.Reader, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	for {
		payload, err := net.ReadFrame(c.conn)
		if err != nil {
			return nil, err
		}
		r := packet.NewReader(payload)
		if r.Opcode() == opcode {
			return r, nil
		}
		c.note(r)
	}
}

func (c *Client) reply(opcode byte, req int32) (*packet.Reader, error) {
	for {
		r, err := c.expect(opcode)
		if err != nil {
			return nil, err
		}
		if r.ReadD() == req {
			return r, nil
		}
	}
}

func (c *Client) ack(opcode byte, req int32) (uint64, error) {
	r, err := c.reply(opcode, req)
	if err != nil {
		return 0, err
	}
	ok := r.ReadBool()
	seq := r.ReadQ()
	msg := r.ReadS()
	if !ok {
		return 0, errors.New(msg)
	}
	return seq, nil
}

func (c *Client) note(r *packet.Reader) {
	if r.Opcode() != packet.S_MUTATION_REJECTED {
		return
	}
	c.Rejections = append(c.Rejections, Rejection{
		Seq:    r.ReadQ(),
		Kind:   mutation.Kind(r.ReadC()),
		Name:   r.ReadS(),
		Reason: r.ReadS(),
	})
}
