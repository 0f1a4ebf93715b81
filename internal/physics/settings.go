package physics

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Parameter keys understood by SetParam and GetParam.
const (
	ParamType               = "type"
	ParamMaxStepSize        = "max_step_size"
	ParamRealTimeUpdateRate = "real_time_update_rate"
	ParamRealTimeFactor     = "real_time_factor"
	ParamGravity            = "gravity"
	ParamMagneticField      = "magnetic_field"
	ParamWindLinearVelocity = "wind_linear_velocity"
)

var (
	// ErrReadOnlyParam is returned when setting the engine type.
	ErrReadOnlyParam = errors.New("read-only parameter")
	// ErrUnknownParam is returned for keys the engine does not have.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrParamRange is returned for NaN, infinite or negative rates and steps.
	ErrParamRange = errors.New("parameter out of range")
)

// Values is a copy of the tunable physics parameters.
type Values struct {
	MaxStepSize        float64
	RealTimeUpdateRate float64
	RealTimeFactor     float64
	Gravity            Vector3
	MagneticField      Vector3
	// WindLinearVelocity is the world's uniform wind, in m/s.
	WindLinearVelocity Vector3
}

// Settings holds the engine's tunables. Control sessions write them while
// the stepping goroutine reads them, so access goes through mu.
type Settings struct {
	mu         sync.Mutex
	engineType string
	v          Values
	log        *zap.Logger
}

func NewSettings(engineType string, v Values, log *zap.Logger) *Settings {
	return &Settings{engineType: engineType, v: v, log: log}
}

// Values returns a copy of the current parameters.
func (s *Settings) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

// UpdatePeriod is the wall-clock time between steps; 0 means as fast as
// possible.
func (s *Settings) UpdatePeriod() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.v.RealTimeUpdateRate > 0 {
		return time.Duration(float64(time.Second) / s.v.RealTimeUpdateRate)
	}
	return 0
}

// StepSize is the simulated time covered by one step.
func (s *Settings) StepSize() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.v.MaxStepSize * float64(time.Second))
}

// SetParam sets one parameter by key.
func (s *Settings) SetParam(p Param) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p.Name {
	case ParamType:
		return fmt.Errorf("%s: cannot change engine type: %w", p.Name, ErrReadOnlyParam)
	case ParamMaxStepSize, ParamRealTimeUpdateRate, ParamRealTimeFactor:
		v, err := p.AsDouble()
		if err != nil {
			return err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s = %g: %w", p.Name, v, ErrParamRange)
		}
		switch p.Name {
		case ParamMaxStepSize:
			s.v.MaxStepSize = v
		case ParamRealTimeUpdateRate:
			s.v.RealTimeUpdateRate = v
		default:
			s.v.RealTimeFactor = v
		}
	case ParamGravity, ParamMagneticField, ParamWindLinearVelocity:
		v, err := p.AsVector()
		if err != nil {
			return err
		}
		for _, c := range v {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return fmt.Errorf("%s = %v: %w", p.Name, v, ErrParamRange)
			}
		}
		switch p.Name {
		case ParamGravity:
			s.v.Gravity = v
		case ParamMagneticField:
			s.v.MagneticField = v
		default:
			s.v.WindLinearVelocity = v
		}
	default:
		return fmt.Errorf("set %s in %s engine: %w", p.Name, s.engineType, ErrUnknownParam)
	}
	return nil
}

// GetParam reads one parameter by key.
func (s *Settings) GetParam(key string) (Param, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch key {
	case ParamType:
		return StringParam(key, s.engineType), nil
	case ParamMaxStepSize:
		return DoubleParam(key, s.v.MaxStepSize), nil
	case ParamRealTimeUpdateRate:
		return DoubleParam(key, s.v.RealTimeUpdateRate), nil
	case ParamRealTimeFactor:
		return DoubleParam(key, s.v.RealTimeFactor), nil
	case ParamGravity:
		return VectorParam(key, s.v.Gravity), nil
	case ParamMagneticField:
		return VectorParam(key, s.v.MagneticField), nil
	case ParamWindLinearVelocity:
		return VectorParam(key, s.v.WindLinearVelocity), nil
	}
	return Param{}, fmt.Errorf("get %s in %s engine: %w", key, s.engineType, ErrUnknownParam)
}

// Apply sets each param in order, logging and skipping the ones that fail.
// It returns the names that were rejected.
func (s *Settings) Apply(params []Param) []string {
	var rejected []string
	for _, p := range params {
		if err := s.SetParam(p); err != nil {
			s.log.Warn("physics param rejected", zap.String("param", p.String()), zap.Error(err))
			rejected = append(rejected, p.Name)
			continue
		}
		s.log.Info("physics param set", zap.String("param", p.String()))
	}
	return rejected
}

// Keys lists every parameter GetParam answers, in a stable order.
var Keys = []string{
	ParamType,
	ParamMaxStepSize,
	ParamRealTimeUpdateRate,
	ParamRealTimeFactor,
	ParamGravity,
	ParamMagneticField,
	ParamWindLinearVelocity,
}

// All returns the current value of every parameter.
func (s *Settings) All() []Param {
	out := make([]Param, 0, len(Keys))
	for _, k := range Keys {
		p, err := s.GetParam(k)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}
