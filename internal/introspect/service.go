package introspect

import (
	"github.com/simworld/server/internal/world"
	"go.uber.org/zap"
)

// PluginInfo describes one attached plugin in a query answer.
type PluginInfo struct {
	Name     string
	Scope    world.Scope
	Filename string
	Config   []byte
}

// Service answers plugin introspection queries against the live store.
// It holds no copy of the tree; each query reads it under the shared lock.
type Service struct {
	store *world.Store
	log   *zap.Logger
}

func NewService(store *world.Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Query resolves uri and returns the plugins it selects. success is false
// for malformed addresses, a world other than the active one, a missing
// model or a missing named plugin, and after shutdown. A listing of an
// empty scope succeeds with no entries.
func (s *Service) Query(uri string) (plugins []PluginInfo, success bool) {
	u, err := Resolve(uri)
	if err != nil {
		s.log.Debug("plugin info: bad uri", zap.String("uri", uri), zap.Error(err))
		return nil, false
	}

	err = s.store.View(func(v *world.View) {
		if u.World != v.WorldName() {
			return
		}
		var scope []world.Plugin
		if u.HasModel() {
			m, ok := v.Find(u.Model)
			if !ok {
				return
			}
			scope = m.Plugins
		} else {
			scope = v.WorldPlugins()
		}

		if !u.Listing() {
			for _, p := range scope {
				if p.Name == u.Plugin {
					plugins = []PluginInfo{toInfo(p)}
					success = true
					return
				}
			}
			return
		}
		plugins = make([]PluginInfo, 0, len(scope))
		for _, p := range scope {
			plugins = append(plugins, toInfo(p))
		}
		success = true
	})
	if err != nil {
		return nil, false
	}
	if !success {
		s.log.Debug("plugin info: nothing at uri", zap.String("uri", uri))
		return nil, false
	}
	return plugins, true
}

func toInfo(p world.Plugin) PluginInfo {
	return PluginInfo{Name: p.Name, Scope: p.Scope, Filename: p.Filename, Config: p.Config}
}
