package world

import "strconv"

// NameLookup reports whether a live model uses a name. Tx and View both
// implement it, so a name can be resolved inside a drain without re-entering
// the store lock.
type NameLookup interface {
	Has(name string) bool
}

// UniqueName returns candidate if no live model uses it, otherwise
// candidate_N for the smallest N >= 0 that is free.
func UniqueName(live NameLookup, candidate string) string {
	if !live.Has(candidate) {
		return candidate
	}
	for n := 0; ; n++ {
		name := candidate + "_" + strconv.Itoa(n)
		if !live.Has(name) {
			return name
		}
	}
}

// NameRegistry answers unique-name queries against a store. It keeps no
// counters of its own; every call reads the live tree.
type NameRegistry struct {
	store *Store
}

func NewNameRegistry(store *Store) *NameRegistry {
	return &NameRegistry{store: store}
}

// UniqueName resolves candidate under the shared lock. A closed world has no
// live models, so candidate comes back unchanged.
func (r *NameRegistry) UniqueName(candidate string) string {
	name := candidate
	_ = r.store.View(func(v *View) {
		name = v.UniqueName(candidate)
	})
	return name
}
