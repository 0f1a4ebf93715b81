package event

import (
	"errors"
	"testing"

	"github.com/simworld/server/internal/mutation"
	"github.com/simworld/server/internal/world"
	"github.com/stretchr/testify/assert"
)

func TestBusDeliversAfterSwap(t *testing.T) {
	b := NewBus()
	var got []string
	Subscribe(b, func(e ModelSpawned) { got = append(got, e.Name) })

	Emit(b, ModelSpawned{Name: "a"})
	Emit(b, ModelSpawned{Name: "b"})
	assert.Equal(t, 2, b.Pending())

	b.DispatchAll()
	assert.Empty(t, got)

	b.SwapBuffers()
	assert.Equal(t, 0, b.Pending())
	b.DispatchAll()
	assert.Equal(t, []string{"a", "b"}, got)

	// front is replaced on the next swap, not redelivered
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestBusTypesAreSeparate(t *testing.T) {
	b := NewBus()
	spawned, rejected := 0, 0
	Subscribe(b, func(ModelSpawned) { spawned++ })
	Subscribe(b, func(MutationRejected) { rejected++ })

	Emit(b, MutationRejected{Name: "x"})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 0, spawned)
	assert.Equal(t, 1, rejected)
}

func TestEmitOutcome(t *testing.T) {
	b := NewBus()
	var events []any
	Subscribe(b, func(e ModelSpawned) { events = append(events, e) })
	Subscribe(b, func(e ModelEdited) { events = append(events, e) })
	Subscribe(b, func(e ModelDeleted) { events = append(events, e) })
	Subscribe(b, func(e MutationRejected) { events = append(events, e) })

	spawn := mutation.Spawn(nil, "box", true)
	spawn.Seq = 1
	EmitOutcome(b, mutation.Outcome{Mutation: spawn, Name: "box_0", Applied: true})

	del := mutation.Delete("ghost")
	del.Seq = 2
	EmitOutcome(b, mutation.Outcome{Mutation: del, Name: "ghost", Applied: true, Noop: true})

	edit := mutation.Edit("nope", nil)
	edit.Seq = 3
	EmitOutcome(b, mutation.Outcome{Mutation: edit, Name: "nope", Err: world.ErrNotFound})

	b.SwapBuffers()
	b.DispatchAll()

	assert.Len(t, events, 2)
	var sawSpawn, sawReject bool
	for _, e := range events {
		switch ev := e.(type) {
		case ModelSpawned:
			sawSpawn = true
			assert.Equal(t, "box_0", ev.Name)
			assert.Equal(t, "box", ev.Requested)
		case MutationRejected:
			sawReject = true
			assert.True(t, errors.Is(ev.Err, world.ErrNotFound))
			assert.Equal(t, mutation.KindEdit, ev.Kind)
		}
	}
	assert.True(t, sawSpawn)
	assert.True(t, sawReject)
}
