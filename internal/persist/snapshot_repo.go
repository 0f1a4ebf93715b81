package persist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ModelRow is the saved form of one live model.
type ModelRow struct {
	Name       string
	EntityID   uint64
	Generation uint64
	Static     bool
	LinkCount  int
	Plugins    []string
	Descriptor []byte // YAML
}

// Snapshot is the full set of live models of a world at one iteration.
type Snapshot struct {
	World     string
	Iteration uint64
	Models    []ModelRow
}

type SnapshotRepo struct {
	db    *DB
	runID uuid.UUID
}

func NewSnapshotRepo(db *DB, runID uuid.UUID) *SnapshotRepo {
	return &SnapshotRepo{db: db, runID: runID}
}

// Save replaces the stored models of snap.World with snap.Models in one
// transaction, so a reader never sees a mix of two snapshots.
func (r *SnapshotRepo) Save(ctx context.Context, snap Snapshot) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM model_snapshots WHERE world = $1`, snap.World); err != nil {
		return fmt.Errorf("snapshot clear: %w", err)
	}
	for _, m := range snap.Models {
		plugins := m.Plugins
		if plugins == nil {
			plugins = []string{}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO model_snapshots
			   (world, name, run_id, entity_id, generation, static, link_count, plugins, descriptor, iteration)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			snap.World, m.Name, r.runID, int64(m.EntityID), int64(m.Generation), m.Static,
			m.LinkCount, plugins, string(m.Descriptor), int64(snap.Iteration),
		); err != nil {
			return fmt.Errorf("snapshot insert %s: %w", m.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// Count returns how many models are stored for world.
func (r *SnapshotRepo) Count(ctx context.Context, world string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM model_snapshots WHERE world = $1`, world,
	).Scan(&n)
	return n, err
}
