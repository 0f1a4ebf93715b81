package world

import (
	"github.com/simworld/server/internal/core/ecs"
	"github.com/simworld/server/internal/data"
)

// Scope says whether a plugin is attached to the world or to a model.
type Scope int

const (
	ScopeWorld Scope = iota
	ScopeModel
)

func (s Scope) String() string {
	if s == ScopeModel {
		return "model"
	}
	return "world"
}

// Plugin is an attached behavior plugin. Config is opaque.
type Plugin struct {
	Name     string
	Scope    Scope
	Filename string
	Config   []byte
}

// Link is one rigid body of a model. Pose is the pose it was spawned or
// edited with; the moving state lives in the store's body components.
type Link struct {
	ID   ecs.EntityID
	Name string
	Mass float64
	Pose data.Pose
}

// Model is a live simulated entity. ID and Name survive edits; Generation
// counts applied edits.
type Model struct {
	ID         ecs.EntityID
	Name       string
	Static     bool
	Generation uint64
	Links      []Link
	Plugins    []Plugin
}

// Link returns the named link.
func (m *Model) Link(name string) (Link, bool) {
	for _, l := range m.Links {
		if l.Name == name {
			return l, true
		}
	}
	return Link{}, false
}

// Plugin returns the named plugin.
func (m *Model) Plugin(name string) (Plugin, bool) {
	return findPlugin(m.Plugins, name)
}

func (m *Model) clone() Model {
	c := *m
	c.Links = append([]Link(nil), m.Links...)
	c.Plugins = append([]Plugin(nil), m.Plugins...)
	return c
}

func findPlugin(list []Plugin, name string) (Plugin, bool) {
	for _, p := range list {
		if p.Name == name {
			return p, true
		}
	}
	return Plugin{}, false
}

func pluginsFrom(desc []data.PluginDescriptor, scope Scope) []Plugin {
	out := make([]Plugin, 0, len(desc))
	for _, p := range desc {
		out = append(out, Plugin{
			Name:     p.Name,
			Scope:    scope,
			Filename: p.Filename,
			Config:   p.Config,
		})
	}
	return out
}

// World is the root container: ordered models, world-level plugins, clock.
type World struct {
	Name    string
	Clock   *Clock
	plugins []Plugin
	models  []*Model
	byName  map[string]*Model
}

func newWorld(desc *data.WorldDescriptor) *World {
	return &World{
		Name:    desc.Name,
		Clock:   &Clock{},
		plugins: pluginsFrom(desc.Plugins, ScopeWorld),
		models:  make([]*Model, 0, len(desc.Models)),
		byName:  make(map[string]*Model, len(desc.Models)),
	}
}

func (w *World) detach(name string) *Model {
	m, ok := w.byName[name]
	if !ok {
		return nil
	}
	delete(w.byName, name)
	for i, cur := range w.models {
		if cur == m {
			w.models = append(w.models[:i], w.models[i+1:]...)
			break
		}
	}
	return m
}

// Descriptor rebuilds a descriptor for the model's current subtree.
func (m *Model) Descriptor() *data.ModelDescriptor {
	d := &data.ModelDescriptor{
		Name:    m.Name,
		Static:  m.Static,
		Links:   make([]data.LinkDescriptor, 0, len(m.Links)),
		Plugins: make([]data.PluginDescriptor, 0, len(m.Plugins)),
	}
	for _, l := range m.Links {
		d.Links = append(d.Links, data.LinkDescriptor{Name: l.Name, Mass: l.Mass, Pose: l.Pose})
	}
	for _, p := range m.Plugins {
		d.Plugins = append(d.Plugins, data.PluginDescriptor{Name: p.Name, Filename: p.Filename, Config: p.Config})
	}
	return d
}
