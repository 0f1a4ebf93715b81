package physics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSettings() *Settings {
	return NewSettings("null", Values{
		MaxStepSize:        0.001,
		RealTimeUpdateRate: 1000,
		RealTimeFactor:     1,
		Gravity:            Vector3{0, 0, -9.8},
	}, zap.NewNop())
}

func TestSetGetParam(t *testing.T) {
	s := newSettings()

	require.NoError(t, s.SetParam(DoubleParam(ParamMaxStepSize, 0.002)))
	require.NoError(t, s.SetParam(IntParam(ParamRealTimeUpdateRate, 500)))
	require.NoError(t, s.SetParam(VectorParam(ParamGravity, Vector3{0, 0, -1.62})))

	p, err := s.GetParam(ParamMaxStepSize)
	require.NoError(t, err)
	assert.Equal(t, 0.002, p.Double)

	p, err = s.GetParam(ParamGravity)
	require.NoError(t, err)
	assert.Equal(t, Vector3{0, 0, -1.62}, p.Vec)

	p, err = s.GetParam(ParamType)
	require.NoError(t, err)
	assert.Equal(t, "null", p.Str)

	assert.Equal(t, 2*time.Millisecond, s.UpdatePeriod())
	assert.Equal(t, 2*time.Millisecond, s.StepSize())
}

func TestSetParamFailures(t *testing.T) {
	s := newSettings()

	err := s.SetParam(StringParam(ParamType, "ode"))
	assert.True(t, errors.Is(err, ErrReadOnlyParam))

	err = s.SetParam(DoubleParam("friction", 1))
	assert.True(t, errors.Is(err, ErrUnknownParam))

	err = s.SetParam(BoolParam(ParamMaxStepSize, true))
	assert.True(t, errors.Is(err, ErrParamKind))

	err = s.SetParam(DoubleParam(ParamGravity, 1))
	assert.True(t, errors.Is(err, ErrParamKind))

	_, err = s.GetParam("friction")
	assert.True(t, errors.Is(err, ErrUnknownParam))

	assert.Equal(t, 0.001, s.Values().MaxStepSize)
}

func TestApplySkipsRejected(t *testing.T) {
	s := newSettings()

	rejected := s.Apply([]Param{
		DoubleParam(ParamRealTimeFactor, 2),
		StringParam(ParamType, "bullet"),
		VectorParam(ParamMagneticField, Vector3{1, 2, 3}),
	})
	assert.Equal(t, []string{ParamType}, rejected)
	v := s.Values()
	assert.Equal(t, 2.0, v.RealTimeFactor)
	assert.Equal(t, Vector3{1, 2, 3}, v.MagneticField)
}

func TestUpdatePeriodZeroRate(t *testing.T) {
	s := newSettings()
	require.NoError(t, s.SetParam(DoubleParam(ParamRealTimeUpdateRate, 0)))
	assert.Equal(t, time.Duration(0), s.UpdatePeriod())
}

func TestParamAccessors(t *testing.T) {
	v, err := IntParam("n", 3).AsDouble()
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = DoubleParam("d", 1).AsInt()
	assert.True(t, errors.Is(err, ErrParamKind))
	_, err = IntParam("i", 1).AsString()
	assert.True(t, errors.Is(err, ErrParamKind))
	_, err = StringParam("s", "x").AsBool()
	assert.True(t, errors.Is(err, ErrParamKind))

	b, err := BoolParam("b", true).AsBool()
	require.NoError(t, err)
	assert.True(t, b)
}

func TestSetParamRejectsNonFinite(t *testing.T) {
	s := newSettings()

	for _, p := range []Param{
		DoubleParam(ParamMaxStepSize, math.NaN()),
		DoubleParam(ParamMaxStepSize, math.Inf(1)),
		DoubleParam(ParamRealTimeUpdateRate, math.Inf(1)),
		DoubleParam(ParamRealTimeUpdateRate, math.NaN()),
		DoubleParam(ParamRealTimeFactor, math.Inf(-1)),
		DoubleParam(ParamRealTimeFactor, -1),
		VectorParam(ParamGravity, Vector3{0, 0, math.NaN()}),
		VectorParam(ParamWindLinearVelocity, Vector3{math.Inf(1), 0, 0}),
	} {
		err := s.SetParam(p)
		assert.True(t, errors.Is(err, ErrParamRange), p.String())
	}

	v := s.Values()
	assert.Equal(t, 0.001, v.MaxStepSize)
	assert.Equal(t, 1000.0, v.RealTimeUpdateRate)
	assert.Equal(t, 1.0, v.RealTimeFactor)
	assert.Equal(t, Vector3{0, 0, -9.8}, v.Gravity)
	assert.Equal(t, time.Millisecond, s.StepSize())
	assert.Equal(t, time.Millisecond, s.UpdatePeriod())
}

func TestWindLinearVelocity(t *testing.T) {
	s := newSettings()

	p, err := s.GetParam(ParamWindLinearVelocity)
	require.NoError(t, err)
	assert.Equal(t, Vector3{}, p.Vec)

	require.NoError(t, s.SetParam(VectorParam(ParamWindLinearVelocity, Vector3{3, 0, 0})))
	assert.Equal(t, Vector3{3, 0, 0}, s.Values().WindLinearVelocity)

	err = s.SetParam(DoubleParam(ParamWindLinearVelocity, 3))
	assert.True(t, errors.Is(err, ErrParamKind))

	names := make([]string, 0, len(Keys))
	for _, p := range s.All() {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, ParamWindLinearVelocity)
}
