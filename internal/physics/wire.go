package physics

import (
	"errors"
	"fmt"

	"github.com/simworld/server/internal/net/packet"
)

// MaxParams is the most params one list can carry; the count is one byte.
const MaxParams = 255

// ErrTooManyParams is returned by WriteParams for lists over MaxParams.
var ErrTooManyParams = errors.New("too many params")

// WriteParam encodes p as [S name][C kind][value]. Doubles are float64,
// ints int32, bools one byte, vectors three float64s.
func WriteParam(w *packet.Writer, p Param) {
	w.WriteS(p.Name)
	w.WriteC(byte(p.Kind))
	switch p.Kind {
	case KindDouble:
		w.WriteF(p.Double)
	case KindInt:
		w.WriteD(p.Int)
	case KindString:
		w.WriteS(p.Str)
	case KindBool:
		w.WriteBool(p.Bool)
	case KindVector:
		for _, c := range p.Vec {
			w.WriteF(c)
		}
	}
}

// ReadParam decodes one param written by WriteParam.
func ReadParam(r *packet.Reader) (Param, error) {
	p := Param{Name: r.ReadS(), Kind: ParamKind(r.ReadC())}
	switch p.Kind {
	case KindDouble:
		p.Double = r.ReadF()
	case KindInt:
		p.Int = r.ReadD()
	case KindString:
		p.Str = r.ReadS()
	case KindBool:
		p.Bool = r.ReadBool()
	case KindVector:
		for i := range p.Vec {
			p.Vec[i] = r.ReadF()
		}
	default:
		return Param{}, fmt.Errorf("param %q: unknown kind %d: %w", p.Name, byte(p.Kind), ErrParamKind)
	}
	if err := r.Err(); err != nil {
		return Param{}, fmt.Errorf("param %q: %w", p.Name, err)
	}
	return p, nil
}

// WriteParams encodes a count byte followed by each param. Nothing is
// written when the list is too long.
func WriteParams(w *packet.Writer, params []Param) error {
	if len(params) > MaxParams {
		return fmt.Errorf("%d params, max %d: %w", len(params), MaxParams, ErrTooManyParams)
	}
	w.WriteC(byte(len(params)))
	for _, p := range params {
		WriteParam(w, p)
	}
	return nil
}

// ReadParams decodes a list written by WriteParams.
func ReadParams(r *packet.Reader) ([]Param, error) {
	n := int(r.ReadC())
	out := make([]Param, 0, n)
	for i := 0; i < n; i++ {
		p, err := ReadParam(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
