package introspect

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidURI is returned for addresses that do not follow
// data://world/<world>[/model/<model>]/plugin[/<plugin>][/].
var ErrInvalidURI = errors.New("invalid introspection uri")

const scheme = "data://"

// URI is a syntactically valid introspection address. Nothing it names is
// checked for existence.
type URI struct {
	World  string
	Model  string // "" = world scope
	Plugin string // "" = list every plugin in scope
	// TrailingSlash records a final "/". It does not change what the
	// address selects.
	TrailingSlash bool
}

// Listing reports whether the address asks for every plugin in its scope.
func (u URI) Listing() bool { return u.Plugin == "" }

// HasModel reports whether the address is model-scoped.
func (u URI) HasModel() bool { return u.Model != "" }

func (u URI) String() string {
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("world/")
	b.WriteString(u.World)
	if u.Model != "" {
		b.WriteString("/model/")
		b.WriteString(u.Model)
	}
	b.WriteString("/plugin")
	if u.Plugin != "" {
		b.WriteString("/")
		b.WriteString(u.Plugin)
	}
	if u.TrailingSlash {
		b.WriteString("/")
	}
	return b.String()
}

// Resolve parses an introspection address.
func Resolve(raw string) (URI, error) {
	rest, ok := strings.CutPrefix(raw, scheme)
	if !ok {
		return URI{}, fmt.Errorf("%q: missing %s scheme: %w", raw, scheme, ErrInvalidURI)
	}

	var u URI
	segs := strings.Split(rest, "/")
	if n := len(segs); n > 1 && segs[n-1] == "" {
		u.TrailingSlash = true
		segs = segs[:n-1]
	}

	next := func() (string, bool) {
		if len(segs) == 0 {
			return "", false
		}
		s := segs[0]
		segs = segs[1:]
		return s, true
	}
	name := func(keyword string) (string, error) {
		s, ok := next()
		if !ok || s == "" {
			return "", fmt.Errorf("%q: %s name missing: %w", raw, keyword, ErrInvalidURI)
		}
		return s, nil
	}

	if kw, _ := next(); kw != "world" {
		return URI{}, fmt.Errorf("%q: expected world segment: %w", raw, ErrInvalidURI)
	}
	w, err := name("world")
	if err != nil {
		return URI{}, err
	}
	u.World = w

	kw, ok := next()
	if kw == "model" {
		m, err := name("model")
		if err != nil {
			return URI{}, err
		}
		u.Model = m
		kw, ok = next()
	}
	if !ok || kw != "plugin" {
		return URI{}, fmt.Errorf("%q: expected plugin segment: %w", raw, ErrInvalidURI)
	}

	if p, ok := next(); ok {
		if p == "" {
			return URI{}, fmt.Errorf("%q: empty plugin name: %w", raw, ErrInvalidURI)
		}
		u.Plugin = p
	}
	if len(segs) != 0 {
		return URI{}, fmt.Errorf("%q: unexpected segment %q: %w", raw, segs[0], ErrInvalidURI)
	}
	return u, nil
}
