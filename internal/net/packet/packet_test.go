package packet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriterReaderFields(t *testing.T) {
	w := NewWriterWithOpcode(C_FACTORY)
	w.WriteD(-7)
	w.WriteBlob([]byte("name: box\n"))
	w.WriteS("box")
	w.WriteS("")
	w.WriteBool(true)
	w.WriteH(513)
	w.WriteQ(1 << 40)
	w.WriteF(-9.8)

	r := NewReader(w.Bytes())
	assert.Equal(t, C_FACTORY, r.Opcode())
	assert.Equal(t, int32(-7), r.ReadD())
	assert.Equal(t, []byte("name: box\n"), r.ReadBlob())
	assert.Equal(t, "box", r.ReadS())
	assert.Equal(t, "", r.ReadS())
	assert.True(t, r.ReadBool())
	assert.Equal(t, uint16(513), r.ReadH())
	assert.Equal(t, uint64(1<<40), r.ReadQ())
	assert.Equal(t, -9.8, r.ReadF())
	assert.Equal(t, 0, r.Remaining())
	assert.NoError(t, r.Err())
}

func TestReaderShortPacket(t *testing.T) {
	r := NewReader([]byte{C_DELETE, 1, 2})
	assert.Equal(t, int32(0), r.ReadD())
	assert.True(t, errors.Is(r.Err(), ErrShortPacket))

	w := NewWriterWithOpcode(C_FACTORY)
	w.WriteD(100) // blob length larger than what follows
	w.WriteBytes([]byte("abc"))
	r = NewReader(w.Bytes())
	assert.Nil(t, r.ReadBlob())
	assert.Error(t, r.Err())
}

func TestReaderUnterminatedString(t *testing.T) {
	r := NewReader([]byte{C_PLUGIN_INFO, 'a', 'b'})
	assert.Equal(t, "ab", r.ReadS())
	assert.NoError(t, r.Err())
}

func TestRegistryStates(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var got []string
	reg.Register(C_AUTH, []SessionState{StateHandshake}, func(_ any, r *Reader) {
		got = append(got, r.ReadS())
	})
	reg.Register(C_QUIT, []SessionState{StateAuthenticated}, func(any, *Reader) {
		panic("boom")
	})

	w := NewWriterWithOpcode(C_AUTH)
	w.WriteS("secret")
	require.NoError(t, reg.Dispatch(nil, StateHandshake, w.Bytes()))
	assert.Equal(t, []string{"secret"}, got)

	assert.ErrorIs(t, reg.Dispatch(nil, StateAuthenticated, w.Bytes()), ErrStateNotAllowed)
	assert.NoError(t, reg.Dispatch(nil, StateHandshake, []byte{0xEE}), "unknown opcodes are ignored")
	assert.ErrorIs(t, reg.Dispatch(nil, StateHandshake, nil), ErrEmptyPacket)
	assert.ErrorIs(t, reg.Dispatch(nil, StateAuthenticated, []byte{C_QUIT}), ErrHandlerPanic)
}
