package system

import (
	"time"

	"github.com/simworld/server/internal/core/event"
	coresys "github.com/simworld/server/internal/core/system"
)

// EventSystem delivers the events emitted by this step's drain.
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
