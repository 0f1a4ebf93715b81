package system

import (
	"time"

	coresys "github.com/simworld/server/internal/core/system"
	"github.com/simworld/server/internal/physics"
	"github.com/simworld/server/internal/world"
	"go.uber.org/zap"
)

// PhysicsSystem runs the physics engine on a snapshot of every body.
// The engine runs without the store lock held: the snapshot is taken under
// the shared lock and the result written back under the exclusive lock.
// Only the stepping goroutine mutates the store, so nothing can change
// between the two.
type PhysicsSystem struct {
	store    *world.Store
	engine   physics.Engine
	settings *physics.Settings
	log      *zap.Logger
}

func NewPhysicsSystem(store *world.Store, engine physics.Engine, settings *physics.Settings, log *zap.Logger) *PhysicsSystem {
	return &PhysicsSystem{store: store, engine: engine, settings: settings, log: log}
}

func (s *PhysicsSystem) Phase() coresys.Phase { return coresys.PhasePhysics }

func (s *PhysicsSystem) Update(_ time.Duration) {
	var snap []world.BodyState
	if err := s.store.View(func(v *world.View) {
		snap = v.Bodies()
	}); err != nil || len(snap) == 0 {
		return
	}

	values := s.settings.Values()
	out, err := s.engine.Step(snap, values.MaxStepSize, values)
	if err != nil {
		s.log.Warn("physics step failed", zap.String("engine", s.engine.Type()), zap.Error(err))
		return
	}

	_ = s.store.Update(func(tx *world.Tx) error {
		tx.ApplyBodies(out)
		return nil
	})
}
