package physics

import (
	"errors"
	"testing"

	"github.com/simworld/server/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsOnTheWire(t *testing.T) {
	in := []Param{
		DoubleParam(ParamMaxStepSize, 0.002),
		IntParam("iters", 50),
		StringParam(ParamType, "lua"),
		BoolParam("enabled", true),
		VectorParam(ParamGravity, Vector3{0, 0, -1.62}),
	}
	w := packet.NewWriterWithOpcode(packet.C_PHYSICS)
	require.NoError(t, WriteParams(w, in))

	out, err := ReadParams(packet.NewReader(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWriteParamsTooMany(t *testing.T) {
	params := make([]Param, MaxParams+1)
	for i := range params {
		params[i] = BoolParam("p", true)
	}
	w := packet.NewWriterWithOpcode(packet.C_PHYSICS)
	err := WriteParams(w, params)
	assert.True(t, errors.Is(err, ErrTooManyParams))
	assert.Equal(t, 1, w.Len(), "only the opcode")

	require.NoError(t, WriteParams(w, params[:MaxParams]))
	out, err := ReadParams(packet.NewReader(w.Bytes()))
	require.NoError(t, err)
	assert.Len(t, out, MaxParams)
}

func TestReadParamUnknownKind(t *testing.T) {
	w := packet.NewWriterWithOpcode(packet.C_PHYSICS)
	w.WriteS("x")
	w.WriteC(42)
	_, err := ReadParam(packet.NewReader(w.Bytes()))
	assert.True(t, errors.Is(err, ErrParamKind))
}

func TestReadParamTruncated(t *testing.T) {
	w := packet.NewWriterWithOpcode(packet.C_PHYSICS)
	w.WriteS(ParamGravity)
	w.WriteC(byte(KindVector))
	w.WriteF(1)
	_, err := ReadParam(packet.NewReader(w.Bytes()))
	assert.True(t, errors.Is(err, packet.ErrShortPacket))
}

func TestSettingsAll(t *testing.T) {
	s := newSettings()
	all := s.All()
	require.Len(t, all, len(Keys))
	assert.Equal(t, ParamType, all[0].Name)
}
