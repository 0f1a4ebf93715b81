package net

import (
	gonet "net"
	"testing"
	"time"

	"github.com/simworld/server/internal/config"
	"github.com/simworld/server/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// echo replies to every payload with the same bytes.
type echo struct{}

func (echo) Dispatch(sess any, _ packet.SessionState, data []byte) error {
	sess.(*Session).Send(data)
	return nil
}

func startServer(t *testing.T, cfg config.NetworkConfig) *Server {
	t.Helper()
	cfg.BindAddress = "127.0.0.1:0"
	srv, err := NewServer(cfg, echo{}, nil, zap.NewNop())
	require.NoError(t, err)
	srv.SetGreeting(func(*Session) []byte {
		w := packet.NewWriterWithOpcode(packet.S_HELLO)
		w.WriteS("test")
		return w.Bytes()
	})
	go srv.AcceptLoop()
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestServerGreetingAndEcho(t *testing.T) {
	srv := startServer(t, config.NetworkConfig{OutQueueSize: 8})

	conn, err := gonet.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	hello, err := ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, packet.S_HELLO, hello[0])

	require.NoError(t, WriteFrame(conn, []byte{packet.C_PLUGIN_INFO, 'x', 0}))
	got, err := ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, []byte{packet.C_PLUGIN_INFO, 'x', 0}, got)

	require.Eventually(t, func() bool { return srv.Sessions().Count() == 1 }, time.Second, 5*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return srv.Sessions().Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServerRateLimit(t *testing.T) {
	srv := startServer(t, config.NetworkConfig{OutQueueSize: 64, PacketsPerSecond: 2})

	conn, err := gonet.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	_, err = ReadFrame(conn)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_ = WriteFrame(conn, []byte{packet.C_QUIT})
	}
	// the server answers at most the allowed packets and then hangs up
	n := 0
	for {
		if _, err := ReadFrame(conn); err != nil {
			break
		}
		n++
	}
	assert.LessOrEqual(t, n, 2)
}

func TestServerMaxConns(t *testing.T) {
	srv := startServer(t, config.NetworkConfig{OutQueueSize: 8, MaxConns: 1})

	first, err := gonet.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer first.Close()
	first.SetDeadline(time.Now().Add(2 * time.Second))
	_, err = ReadFrame(first)
	require.NoError(t, err)

	second, err := gonet.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer second.Close()
	second.SetDeadline(time.Now().Add(2 * time.Second))
	_, err = ReadFrame(second)
	assert.Error(t, err, "second connection is refused")
}
