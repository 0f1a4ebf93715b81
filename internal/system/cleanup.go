package system

import (
	"time"

	coresys "github.com/simworld/server/internal/core/system"
	"github.com/simworld/server/internal/world"
	"go.uber.org/zap"
)

// CleanupSystem frees the entities that deletes and edits marked this step.
type CleanupSystem struct {
	store *world.Store
	log   *zap.Logger
}

func NewCleanupSystem(store *world.Store, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{store: store, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	_ = s.store.Update(func(tx *world.Tx) error {
		if n := tx.FlushDestroyed(); n > 0 {
			s.log.Debug("entities destroyed", zap.Int("count", n))
		}
		return nil
	})
}
