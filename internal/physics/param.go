package physics

import (
	"errors"
	"fmt"
)

// Vector3 is an x/y/z triple.
type Vector3 [3]float64

// ParamKind tags which field of a Param holds its value.
type ParamKind byte

const (
	KindDouble ParamKind = iota + 1
	KindInt
	KindString
	KindBool
	KindVector
)

func (k ParamKind) String() string {
	switch k {
	case KindDouble:
		return "double"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindVector:
		return "vector"
	default:
		return fmt.Sprintf("ParamKind(%d)", byte(k))
	}
}

// Param is a named value of exactly one kind.
type Param struct {
	Name   string
	Kind   ParamKind
	Double float64
	Int    int32
	Str    string
	Bool   bool
	Vec    Vector3
}

func DoubleParam(name string, v float64) Param { return Param{Name: name, Kind: KindDouble, Double: v} }
func IntParam(name string, v int32) Param      { return Param{Name: name, Kind: KindInt, Int: v} }
func StringParam(name, v string) Param         { return Param{Name: name, Kind: KindString, Str: v} }
func BoolParam(name string, v bool) Param      { return Param{Name: name, Kind: KindBool, Bool: v} }
func VectorParam(name string, v Vector3) Param { return Param{Name: name, Kind: KindVector, Vec: v} }

// ErrParamKind is wrapped when a param holds the wrong kind for its key.
var ErrParamKind = errors.New("wrong parameter kind")

// AsDouble accepts double and int params; ints widen.
func (p Param) AsDouble() (float64, error) {
	switch p.Kind {
	case KindDouble:
		return p.Double, nil
	case KindInt:
		return float64(p.Int), nil
	}
	return 0, fmt.Errorf("%s: %s is not a double: %w", p.Name, p.Kind, ErrParamKind)
}

func (p Param) AsInt() (int32, error) {
	if p.Kind != KindInt {
		return 0, fmt.Errorf("%s: %s is not an int: %w", p.Name, p.Kind, ErrParamKind)
	}
	return p.Int, nil
}

func (p Param) AsString() (string, error) {
	if p.Kind != KindString {
		return "", fmt.Errorf("%s: %s is not a string: %w", p.Name, p.Kind, ErrParamKind)
	}
	return p.Str, nil
}

func (p Param) AsBool() (bool, error) {
	if p.Kind != KindBool {
		return false, fmt.Errorf("%s: %s is not a bool: %w", p.Name, p.Kind, ErrParamKind)
	}
	return p.Bool, nil
}

func (p Param) AsVector() (Vector3, error) {
	if p.Kind != KindVector {
		return Vector3{}, fmt.Errorf("%s: %s is not a vector: %w", p.Name, p.Kind, ErrParamKind)
	}
	return p.Vec, nil
}

func (p Param) String() string {
	switch p.Kind {
	case KindDouble:
		return fmt.Sprintf("%s=%g", p.Name, p.Double)
	case KindInt:
		return fmt.Sprintf("%s=%d", p.Name, p.Int)
	case KindString:
		return fmt.Sprintf("%s=%q", p.Name, p.Str)
	case KindBool:
		return fmt.Sprintf("%s=%t", p.Name, p.Bool)
	case KindVector:
		return fmt.Sprintf("%s=(%g %g %g)", p.Name, p.Vec[0], p.Vec[1], p.Vec[2])
	}
	return p.Name + "=?"
}
