package system

import "time"

// Phase orders systems within one step. The mutation drain runs before
// every phase and is not a system.
type Phase int

const (
	PhaseEvents   Phase = iota // 0: deliver events emitted by the drain
	PhasePhysics               // 1: physics step on a body snapshot
	PhasePostStep              // 2: clock advance
	PhasePersist               // 3: hand snapshots to the background writer
	PhaseCleanup               // 4: destroy entities marked this step
)

func (p Phase) String() string {
	switch p {
	case PhaseEvents:
		return "events"
	case PhasePhysics:
		return "physics"
	case PhasePostStep:
		return "post-step"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is one unit of per-step work.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
