package persist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// JournalEntry records one drained mutation, applied or rejected.
type JournalEntry struct {
	World   string
	Seq     uint64
	Kind    string // "spawn", "edit", "delete"
	Name    string
	Origin  uint64
	Applied bool
	Reason  string
}

type JournalRepo struct {
	db    *DB
	runID uuid.UUID
}

func NewJournalRepo(db *DB, runID uuid.UUID) *JournalRepo {
	return &JournalRepo{db: db, runID: runID}
}

// Append queues every entry in one pgx batch. The batch goes out in a single
// round trip and runs as one implicit transaction, so either all entries of
// a drain are stored or none are.
func (r *JournalRepo) Append(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, e := range entries {
		b.Queue(
			`INSERT INTO mutation_journal (run_id, world, seq, kind, name, origin, applied, reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.runID, e.World, int64(e.Seq), e.Kind, e.Name, int64(e.Origin), e.Applied, e.Reason,
		)
	}

	br := r.db.Pool.SendBatch(ctx, b)
	for _, e := range entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("journal insert seq %d: %w", e.Seq, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("journal batch: %w", err)
	}
	return nil
}
