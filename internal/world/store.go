package world

import (
	"fmt"
	"sync"

	"github.com/simworld/server/internal/core/ecs"
	"github.com/simworld/server/internal/data"
	"go.uber.org/zap"
)

// Body is the moving state of one link, owned by the store's component store
// and updated by the physics step.
type Body struct {
	Pose       data.Pose
	LinearVel  [3]float64
	AngularVel [3]float64
}

// BodyState is one entry of the snapshot handed to the physics engine.
type BodyState struct {
	ID     ecs.EntityID
	Model  string
	Link   string
	Mass   float64
	Static bool
	Body
}

// Store owns the entity tree of the active world.
//
// Lock discipline: mu guards the world, the name index, the entity pool and
// every component store. Mutations run inside Update (exclusive), queries
// inside View (shared). sync.RWMutex blocks new readers once a writer is
// waiting, so a drain is never starved by a stream of queries. Nothing else
// may be locked while calling into the store from outside; the store takes
// no other lock while holding mu.
type Store struct {
	mu     sync.RWMutex
	world  *World
	ents   *ecs.Entities
	bodies *ecs.Store[Body]
	closed bool
	log    *zap.Logger
}

func NewStore(log *zap.Logger) *Store {
	s := &Store{
		ents:   ecs.NewEntities(),
		bodies: ecs.NewStore[Body](),
		log:    log,
	}
	s.ents.Register(s.bodies)
	return s
}

// Open loads a world description into the store. A store opens once.
func (s *Store) Open(desc *data.WorldDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrWorldClosed
	}
	if s.world != nil {
		return fmt.Errorf("world %s already open", s.world.Name)
	}
	w := newWorld(desc)
	s.world = w
	tx := &Tx{s: s}
	for i := range desc.Models {
		md := &desc.Models[i]
		if _, err := tx.Insert(md, md.Name); err != nil {
			s.world = nil
			return fmt.Errorf("open world %s: %w", desc.Name, err)
		}
	}
	s.log.Info("world opened",
		zap.String("world", w.Name),
		zap.Int("models", len(w.models)),
		zap.Int("plugins", len(w.plugins)),
	)
	return nil
}

// Close shuts the world down. Later Update calls fail with ErrWorldClosed and
// View reports the world as closed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.world != nil {
		s.log.Info("world closed", zap.String("world", s.world.Name))
	}
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Update runs fn with the exclusive lock held. fn's changes are visible to
// readers only after it returns.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.world == nil {
		return ErrWorldClosed
	}
	return fn(&Tx{s: s})
}

// View runs fn with the shared lock held.
func (s *Store) View(fn func(v *View)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.world == nil {
		return ErrWorldClosed
	}
	fn(&View{s: s})
	return nil
}

// Insert adds a model built from desc under name.
func (s *Store) Insert(desc *data.ModelDescriptor, name string) (Model, error) {
	var out Model
	err := s.Update(func(tx *Tx) error {
		m, err := tx.Insert(desc, name)
		if err != nil {
			return err
		}
		out = m.clone()
		return nil
	})
	return out, err
}

// Remove detaches the named model; absent names are a no-op.
func (s *Store) Remove(name string) (bool, error) {
	var removed bool
	err := s.Update(func(tx *Tx) error {
		removed = tx.Remove(name)
		return nil
	})
	return removed, err
}

// ReplaceSubtree swaps the named model's links and plugins for desc's.
func (s *Store) ReplaceSubtree(name string, desc *data.ModelDescriptor) (Model, error) {
	var out Model
	err := s.Update(func(tx *Tx) error {
		m, err := tx.ReplaceSubtree(name, desc)
		if err != nil {
			return err
		}
		out = m.clone()
		return nil
	})
	return out, err
}

// Find returns a copy of the named live model.
func (s *Store) Find(name string) (Model, bool) {
	var (
		out Model
		ok  bool
	)
	_ = s.View(func(v *View) {
		out, ok = v.Find(name)
	})
	return out, ok
}

// Count returns the number of live models; 0 once closed.
func (s *Store) Count() int {
	n := 0
	_ = s.View(func(v *View) {
		n = v.Count()
	})
	return n
}

// WorldName returns the active world's name, or "" when not open.
func (s *Store) WorldName() string {
	name := ""
	_ = s.View(func(v *View) {
		name = v.WorldName()
	})
	return name
}

// Clock returns the active world's clock, or nil when not open.
func (s *Store) Clock() *Clock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.world == nil {
		return nil
	}
	return s.world.Clock
}

// Tx is the write handle passed to Update. It must not escape fn.
type Tx struct {
	s *Store
}

func (tx *Tx) Has(name string) bool {
	_, ok := tx.s.world.byName[name]
	return ok
}

func (tx *Tx) Count() int { return len(tx.s.world.models) }

// Find returns the live model itself; callers inside the transaction may
// read it but must change it only through Tx methods.
func (tx *Tx) Find(name string) (*Model, bool) {
	m, ok := tx.s.world.byName[name]
	return m, ok
}

// UniqueName resolves candidate against the models visible in this
// transaction, including ones inserted earlier in it.
func (tx *Tx) UniqueName(candidate string) string {
	return UniqueName(tx, candidate)
}

// Insert creates a model from desc named name. It fails with
// ErrDuplicateName when name is taken.
func (tx *Tx) Insert(desc *data.ModelDescriptor, name string) (*Model, error) {
	if name == "" {
		return nil, fmt.Errorf("insert: empty model name: %w", data.ErrInvalidDescriptor)
	}
	if tx.Has(name) {
		return nil, fmt.Errorf("insert %s: %w", name, ErrDuplicateName)
	}
	m := &Model{
		ID:     tx.s.ents.Create(),
		Name:   name,
		Static: desc.Static,
	}
	tx.buildSubtree(m, desc)
	w := tx.s.world
	w.models = append(w.models, m)
	w.byName[name] = m
	return m, nil
}

// Remove detaches the named model and marks it and its links for
// destruction. It reports whether a model was removed.
func (tx *Tx) Remove(name string) bool {
	m := tx.s.world.detach(name)
	if m == nil {
		return false
	}
	tx.markSubtree(m)
	tx.s.ents.MarkForDestruction(m.ID)
	return true
}

// ReplaceSubtree replaces links and plugins in place. The model keeps its ID
// and name; the descriptor's own name is ignored.
func (tx *Tx) ReplaceSubtree(name string, desc *data.ModelDescriptor) (*Model, error) {
	m, ok := tx.s.world.byName[name]
	if !ok {
		return nil, fmt.Errorf("replace %s: %w", name, ErrNotFound)
	}
	tx.markSubtree(m)
	m.Static = desc.Static
	tx.buildSubtree(m, desc)
	m.Generation++
	return m, nil
}

// ApplyBodies writes a physics result back. Entries whose link has been
// destroyed or whose model is static are skipped. Returns the number applied.
func (tx *Tx) ApplyBodies(states []BodyState) int {
	n := 0
	for i := range states {
		st := &states[i]
		if st.Static {
			continue
		}
		b, ok := tx.s.bodies.Get(st.ID)
		if !ok {
			continue
		}
		*b = st.Body
		n++
	}
	return n
}

// FlushDestroyed frees everything marked by Remove and ReplaceSubtree.
func (tx *Tx) FlushDestroyed() int {
	return tx.s.ents.FlushDestroyQueue()
}

// PendingDestruction returns how many IDs await FlushDestroyed.
func (tx *Tx) PendingDestruction() int {
	return tx.s.ents.PendingDestruction()
}

func (tx *Tx) buildSubtree(m *Model, desc *data.ModelDescriptor) {
	m.Links = make([]Link, 0, len(desc.Links))
	for _, ld := range desc.Links {
		id := tx.s.ents.Create()
		m.Links = append(m.Links, Link{ID: id, Name: ld.Name, Mass: ld.Mass, Pose: ld.Pose})
		tx.s.bodies.Set(id, &Body{Pose: ld.Pose})
	}
	m.Plugins = pluginsFrom(desc.Plugins, ScopeModel)
}

func (tx *Tx) markSubtree(m *Model) {
	for _, l := range m.Links {
		tx.s.ents.MarkForDestruction(l.ID)
	}
}

// View is the read handle passed to View. It must not escape fn.
type View struct {
	s *Store
}

func (v *View) WorldName() string { return v.s.world.Name }

func (v *View) Has(name string) bool {
	_, ok := v.s.world.byName[name]
	return ok
}

func (v *View) Count() int { return len(v.s.world.models) }

// Find returns a copy of the named model.
func (v *View) Find(name string) (Model, bool) {
	m, ok := v.s.world.byName[name]
	if !ok {
		return Model{}, false
	}
	return m.clone(), true
}

// ModelNames returns live model names in insertion order.
func (v *View) ModelNames() []string {
	out := make([]string, 0, len(v.s.world.models))
	for _, m := range v.s.world.models {
		out = append(out, m.Name)
	}
	return out
}

// Models returns copies of every live model in insertion order.
func (v *View) Models() []Model {
	out := make([]Model, 0, len(v.s.world.models))
	for _, m := range v.s.world.models {
		out = append(out, m.clone())
	}
	return out
}

// WorldPlugins returns the world-level plugins in attachment order.
func (v *View) WorldPlugins() []Plugin {
	return append([]Plugin(nil), v.s.world.plugins...)
}

// WorldPlugin returns the named world-level plugin.
func (v *View) WorldPlugin(name string) (Plugin, bool) {
	return findPlugin(v.s.world.plugins, name)
}

// Body returns the live state of a link.
func (v *View) Body(id ecs.EntityID) (Body, bool) {
	b, ok := v.s.bodies.Get(id)
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// Bodies snapshots every link in model order, then link order, so the
// physics step always sees the same ordering for the same tree.
func (v *View) Bodies() []BodyState {
	out := make([]BodyState, 0, v.s.bodies.Len())
	for _, m := range v.s.world.models {
		for _, l := range m.Links {
			b, ok := v.s.bodies.Get(l.ID)
			if !ok {
				continue
			}
			out = append(out, BodyState{
				ID:     l.ID,
				Model:  m.Name,
				Link:   l.Name,
				Mass:   l.Mass,
				Static: m.Static,
				Body:   *b,
			})
		}
	}
	return out
}

func (v *View) UniqueName(candidate string) string {
	return UniqueName(v, candidate)
}
