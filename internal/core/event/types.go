package event

import "github.com/simworld/server/internal/mutation"

// ModelSpawned: a spawn mutation created a model under Name.
type ModelSpawned struct {
	Seq       uint64
	Name      string
	Requested string
	Origin    uint64
}

// ModelEdited: an edit replaced Name's subtree.
type ModelEdited struct {
	Seq    uint64
	Name   string
	Origin uint64
}

// ModelDeleted: a delete removed Name.
type ModelDeleted struct {
	Seq    uint64
	Name   string
	Origin uint64
}

// MutationRejected: a mutation was dropped during a drain.
type MutationRejected struct {
	Seq    uint64
	Kind   mutation.Kind
	Name   string
	Origin uint64
	Err    error
}

// EmitOutcome turns a drain outcome into the matching event. Deletes of
// absent models emit nothing.
func EmitOutcome(b *Bus, o mutation.Outcome) {
	m := o.Mutation
	if !o.Applied {
		Emit(b, MutationRejected{Seq: m.Seq, Kind: m.Kind, Name: o.Name, Origin: m.Origin, Err: o.Err})
		return
	}
	switch m.Kind {
	case mutation.KindSpawn:
		requested := m.Name
		if requested == "" && m.Descriptor != nil {
			requested = m.Descriptor.Name
		}
		Emit(b, ModelSpawned{Seq: m.Seq, Name: o.Name, Requested: requested, Origin: m.Origin})
	case mutation.KindEdit:
		Emit(b, ModelEdited{Seq: m.Seq, Name: o.Name, Origin: m.Origin})
	case mutation.KindDelete:
		if !o.Noop {
			Emit(b, ModelDeleted{Seq: m.Seq, Name: o.Name, Origin: m.Origin})
		}
	}
}
