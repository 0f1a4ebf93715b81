package world

import (
	"sync/atomic"
	"time"
)

// Clock is the simulation clock owned by a world. Only the stepping goroutine
// advances it; anyone may read it.
type Clock struct {
	iterations atomic.Uint64
	simTime    atomic.Int64 // nanoseconds
}

// Advance records one completed step of the given size.
func (c *Clock) Advance(step time.Duration) {
	c.iterations.Add(1)
	c.simTime.Add(int64(step))
}

func (c *Clock) Iterations() uint64     { return c.iterations.Load() }
func (c *Clock) SimTime() time.Duration { return time.Duration(c.simTime.Load()) }
