package physics

import "github.com/simworld/server/internal/world"

// Engine advances a body snapshot by one step. Implementations own nothing
// in the store; they receive a copy and return the copy to write back.
type Engine interface {
	Type() string
	Step(bodies []world.BodyState, dt float64, v Values) ([]world.BodyState, error)
}

// Null leaves every body where it is.
type Null struct{}

func (Null) Type() string { return "null" }

func (Null) Step(bodies []world.BodyState, _ float64, _ Values) ([]world.BodyState, error) {
	return bodies, nil
}
