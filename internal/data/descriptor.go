package data

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDescriptor is returned when a descriptor parses but cannot
// describe a model (no name, duplicate link names).
var ErrInvalidDescriptor = errors.New("invalid descriptor")

// Pose is a position plus roll/pitch/yaw in radians.
type Pose struct {
	Position [3]float64 `yaml:"position"`
	Rotation [3]float64 `yaml:"rotation"`
}

// LinkDescriptor describes one rigid body of a model.
type LinkDescriptor struct {
	Name string  `yaml:"name"`
	Mass float64 `yaml:"mass"`
	Pose Pose    `yaml:"pose"`
}

// PluginDescriptor names a behavior plugin and carries its configuration
// verbatim. Config is never interpreted here.
type PluginDescriptor struct {
	Name     string
	Filename string
	Config   []byte
}

// ModelDescriptor is the in-memory form of a model description.
type ModelDescriptor struct {
	Name    string
	Static  bool
	Links   []LinkDescriptor
	Plugins []PluginDescriptor
}

// WorldDescriptor is the in-memory form of a world file.
type WorldDescriptor struct {
	Name    string
	Plugins []PluginDescriptor
	Models  []ModelDescriptor
}

type pluginYAML struct {
	Name     string    `yaml:"name"`
	Filename string    `yaml:"filename"`
	Config   yaml.Node `yaml:"config,omitempty"`
}

type modelYAML struct {
	Name    string           `yaml:"name"`
	Static  bool             `yaml:"static,omitempty"`
	Links   []LinkDescriptor `yaml:"links"`
	Plugins []pluginYAML     `yaml:"plugins,omitempty"`
}

type worldYAML struct {
	World struct {
		Name    string       `yaml:"name"`
		Plugins []pluginYAML `yaml:"plugins"`
		Models  []modelYAML  `yaml:"models"`
	} `yaml:"world"`
}

// ParseModel builds a model descriptor from a YAML document.
func ParseModel(raw []byte) (*ModelDescriptor, error) {
	var m modelYAML
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	return convertModel(m)
}

// ParseWorld builds a world descriptor from a YAML document.
func ParseWorld(raw []byte) (*WorldDescriptor, error) {
	var f worldYAML
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse world: %w", err)
	}
	if f.World.Name == "" {
		return nil, fmt.Errorf("world has no name: %w", ErrInvalidDescriptor)
	}
	w := &WorldDescriptor{Name: f.World.Name}
	plugins, err := convertPlugins(f.World.Plugins)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", w.Name, err)
	}
	w.Plugins = plugins
	for _, m := range f.World.Models {
		md, err := convertModel(m)
		if err != nil {
			return nil, fmt.Errorf("world %s: %w", w.Name, err)
		}
		w.Models = append(w.Models, *md)
	}
	return w, nil
}

// LoadWorldFile reads and parses a world file.
func LoadWorldFile(path string) (*WorldDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world file: %w", err)
	}
	return ParseWorld(raw)
}

// Marshal renders the descriptor back to YAML.
func (m *ModelDescriptor) Marshal() ([]byte, error) {
	out := modelYAML{
		Name:   m.Name,
		Static: m.Static,
		Links:  m.Links,
	}
	for _, p := range m.Plugins {
		py := pluginYAML{Name: p.Name, Filename: p.Filename}
		if len(p.Config) > 0 {
			if err := yaml.Unmarshal(p.Config, &py.Config); err != nil {
				return nil, fmt.Errorf("plugin %s config: %w", p.Name, err)
			}
			// Unmarshal into a Node yields a document node; keep its body.
			if py.Config.Kind == yaml.DocumentNode && len(py.Config.Content) == 1 {
				py.Config = *py.Config.Content[0]
			}
		}
		out.Plugins = append(out.Plugins, py)
	}
	return yaml.Marshal(&out)
}

func convertModel(m modelYAML) (*ModelDescriptor, error) {
	md := &ModelDescriptor{
		Name:   m.Name,
		Static: m.Static,
		Links:  make([]LinkDescriptor, 0, len(m.Links)),
	}
	seen := make(map[string]bool, len(m.Links))
	for i, l := range m.Links {
		if l.Name == "" {
			l.Name = fmt.Sprintf("link_%d", i+1)
		}
		if seen[l.Name] {
			return nil, fmt.Errorf("model %s: duplicate link %s: %w", m.Name, l.Name, ErrInvalidDescriptor)
		}
		seen[l.Name] = true
		md.Links = append(md.Links, l)
	}
	plugins, err := convertPlugins(m.Plugins)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", m.Name, err)
	}
	md.Plugins = plugins
	return md, nil
}

func convertPlugins(in []pluginYAML) ([]PluginDescriptor, error) {
	out := make([]PluginDescriptor, 0, len(in))
	for _, p := range in {
		if p.Name == "" {
			return nil, fmt.Errorf("plugin without name (filename %q): %w", p.Filename, ErrInvalidDescriptor)
		}
		pd := PluginDescriptor{Name: p.Name, Filename: p.Filename}
		if p.Config.Kind != 0 {
			raw, err := yaml.Marshal(&p.Config)
			if err != nil {
				return nil, fmt.Errorf("plugin %s config: %w", p.Name, err)
			}
			pd.Config = raw
		}
		out = append(out, pd)
	}
	return out, nil
}
