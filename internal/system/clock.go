package system

import (
	"time"

	coresys "github.com/simworld/server/internal/core/system"
	"github.com/simworld/server/internal/physics"
	"github.com/simworld/server/internal/world"
)

// ClockSystem advances the world clock by one step size.
type ClockSystem struct {
	clock    *world.Clock
	settings *physics.Settings
}

func NewClockSystem(clock *world.Clock, settings *physics.Settings) *ClockSystem {
	return &ClockSystem{clock: clock, settings: settings}
}

func (s *ClockSystem) Phase() coresys.Phase { return coresys.PhasePostStep }

func (s *ClockSystem) Update(_ time.Duration) {
	s.clock.Advance(s.settings.StepSize())
}
