package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/simworld/server/internal/core/event"
	coresys "github.com/simworld/server/internal/core/system"
	"github.com/simworld/server/internal/introspect"
	"github.com/simworld/server/internal/mutation"
	"github.com/simworld/server/internal/physics"
	"github.com/simworld/server/internal/world"
	"go.uber.org/zap"
)

// State is the controller's position in the step cycle.
type State int32

const (
	StateIdle State = iota
	StateStepping
	StateDrainingMutations
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStepping:
		return "stepping"
	case StateDrainingMutations:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options wires a Controller. Store must already be open.
type Options struct {
	Store    *world.Store
	Queue    *mutation.Queue
	Bus      *event.Bus
	Runner   *coresys.Runner
	Settings *physics.Settings
	Plugins  *introspect.Service
	MinTick  time.Duration // tick floor when the update rate is 0
	RunID    uuid.UUID     // generated when zero
	Log      *zap.Logger
}

// Controller drives the fixed-step loop. Every step drains the mutation
// queue first, then runs the registered systems (events, physics, post-step,
// persistence, cleanup). Step must only be called from one goroutine at a
// time; Enqueue and Query are safe from any goroutine.
type Controller struct {
	store    *world.Store
	queue    *mutation.Queue
	bus      *event.Bus
	runner   *coresys.Runner
	settings *physics.Settings
	plugins  *introspect.Service
	minTick  time.Duration
	runID    uuid.UUID
	log      *zap.Logger

	state     atomic.Int32
	stepMu    sync.Mutex
	closeOnce sync.Once
}

func New(o Options) *Controller {
	if o.MinTick <= 0 {
		o.MinTick = time.Millisecond
	}
	if o.RunID == uuid.Nil {
		o.RunID = uuid.New()
	}
	if o.Plugins == nil {
		o.Plugins = introspect.NewService(o.Store, o.Log)
	}
	c := &Controller{
		store:    o.Store,
		queue:    o.Queue,
		bus:      o.Bus,
		runner:   o.Runner,
		settings: o.Settings,
		plugins:  o.Plugins,
		minTick:  o.MinTick,
		runID:    o.RunID,
		log:      o.Log,
	}
	return c
}

// RunID identifies this server run in snapshots and the journal.
func (c *Controller) RunID() uuid.UUID { return c.runID }

func (c *Controller) State() State { return State(c.state.Load()) }

// Enqueue hands a mutation to the next step's drain.
func (c *Controller) Enqueue(m mutation.Mutation) (uint64, error) {
	if c.State() == StateClosed {
		return 0, world.ErrWorldClosed
	}
	return c.queue.Enqueue(m)
}

// Query answers a plugin introspection request.
func (c *Controller) Query(uri string) ([]introspect.PluginInfo, bool) {
	return c.plugins.Query(uri)
}

// Step runs one simulation step: drain, then systems. It returns
// ErrWorldClosed once the controller is closed.
func (c *Controller) Step() error {
	c.stepMu.Lock()
	defer c.stepMu.Unlock()

	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateDrainingMutations)) {
		return world.ErrWorldClosed
	}

	err := c.queue.DrainInto(c.store, c.report)
	if err != nil {
		c.state.CompareAndSwap(int32(StateDrainingMutations), int32(StateIdle))
		if errors.Is(err, world.ErrWorldClosed) {
			return err
		}
		return fmt.Errorf("step: %w", err)
	}

	if !c.state.CompareAndSwap(int32(StateDrainingMutations), int32(StateStepping)) {
		return world.ErrWorldClosed
	}
	c.runner.Tick(c.settings.StepSize())
	c.state.CompareAndSwap(int32(StateStepping), int32(StateIdle))
	return nil
}

func (c *Controller) report(o mutation.Outcome) {
	event.EmitOutcome(c.bus, o)
	m := o.Mutation
	if !o.Applied {
		c.log.Info("mutation rejected",
			zap.Uint64("seq", m.Seq),
			zap.String("kind", m.Kind.String()),
			zap.String("name", o.Name),
			zap.Uint64("origin", m.Origin),
			zap.Error(o.Err),
		)
		return
	}
	c.log.Debug("mutation applied",
		zap.Uint64("seq", m.Seq),
		zap.String("kind", m.Kind.String()),
		zap.String("name", o.Name),
		zap.Bool("noop", o.Noop),
	)
}

// Run steps the world at the physics update period until ctx is done or the
// controller is closed. A rate of 0 steps at the configured tick floor.
func (c *Controller) Run(ctx context.Context) error {
	period := c.period()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	c.log.Info("step loop started", zap.Duration("period", period))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Step(); err != nil {
				if errors.Is(err, world.ErrWorldClosed) {
					return nil
				}
				c.log.Error("step failed", zap.Error(err))
			}
			// physics parameters may change the rate between steps
			if p := c.period(); p != period {
				period = p
				ticker.Reset(period)
				c.log.Info("step period changed", zap.Duration("period", period))
			}
		}
	}
}

func (c *Controller) period() time.Duration {
	p := c.settings.UpdatePeriod()
	if p < c.minTick {
		return c.minTick
	}
	return p
}

// Close shuts the world down. Later Enqueue calls fail with ErrWorldClosed,
// queries return false and Step stops. A step in progress finishes first.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.queue.Close()
		c.stepMu.Lock()
		c.state.Store(int32(StateClosed))
		c.stepMu.Unlock()
		c.store.Close()
		c.log.Info("world controller closed")
	})
}
