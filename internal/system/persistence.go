package system

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/simworld/server/internal/core/event"
	coresys "github.com/simworld/server/internal/core/system"
	"github.com/simworld/server/internal/mutation"
	"github.com/simworld/server/internal/persist"
	"github.com/simworld/server/internal/world"
	"go.uber.org/zap"
)

// SnapshotSaver stores the set of live models.
type SnapshotSaver interface {
	Save(ctx context.Context, snap persist.Snapshot) error
}

// JournalAppender stores drained mutation outcomes.
type JournalAppender interface {
	Append(ctx context.Context, entries []persist.JournalEntry) error
}

type persistJob struct {
	snap    persist.Snapshot
	journal []persist.JournalEntry
}

// PersistenceSystem snapshots the live models every interval steps and
// records every drained mutation. Capturing happens on the stepping
// goroutine under the shared lock; database writes happen on a background
// writer so the step never waits on I/O. If the writer is still busy the
// snapshot is skipped and the journal carried to the next attempt.
// Phase 3 (Persist).
type PersistenceSystem struct {
	store     *world.Store
	snapshots SnapshotSaver
	journal   JournalAppender
	worldName string
	log       *zap.Logger
	interval  int
	tickCount int
	pending   []persist.JournalEntry // stepping goroutine only

	work     chan persistJob
	started  bool
	stopOnce sync.Once
	done     chan struct{}
}

func NewPersistenceSystem(store *world.Store, bus *event.Bus, snapshots SnapshotSaver, journal JournalAppender, intervalTicks int, log *zap.Logger) *PersistenceSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	s := &PersistenceSystem{
		store:     store,
		snapshots: snapshots,
		journal:   journal,
		worldName: store.WorldName(),
		log:       log,
		interval:  intervalTicks,
		work:      make(chan persistJob, 1),
		done:      make(chan struct{}),
	}
	event.Subscribe(bus, func(e event.ModelSpawned) {
		s.record(e.Seq, mutation.KindSpawn, e.Name, e.Origin, true, "")
	})
	event.Subscribe(bus, func(e event.ModelEdited) {
		s.record(e.Seq, mutation.KindEdit, e.Name, e.Origin, true, "")
	})
	event.Subscribe(bus, func(e event.ModelDeleted) {
		s.record(e.Seq, mutation.KindDelete, e.Name, e.Origin, true, "")
	})
	event.Subscribe(bus, func(e event.MutationRejected) {
		reason := ""
		if e.Err != nil {
			reason = e.Err.Error()
		}
		s.record(e.Seq, e.Kind, e.Name, e.Origin, false, reason)
	})
	return s
}

func (s *PersistenceSystem) record(seq uint64, kind mutation.Kind, name string, origin uint64, applied bool, reason string) {
	s.pending = append(s.pending, persist.JournalEntry{
		World:   s.worldName,
		Seq:     seq,
		Kind:    kind.String(),
		Name:    name,
		Origin:  origin,
		Applied: applied,
		Reason:  reason,
	})
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

// Start launches the background writer.
func (s *PersistenceSystem) Start() {
	s.started = true
	go s.writeLoop()
}

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0

	job, ok := s.capture()
	if !ok {
		return
	}
	select {
	case s.work <- job:
		s.pending = nil
	default:
		s.log.Warn("persistence writer busy, snapshot skipped",
			zap.Int("journal_pending", len(s.pending)),
		)
	}
}

func (s *PersistenceSystem) capture() (persistJob, bool) {
	job := persistJob{journal: s.pending}
	err := s.store.View(func(v *world.View) {
		models := v.Models()
		job.snap = persist.Snapshot{
			World:  v.WorldName(),
			Models: make([]persist.ModelRow, 0, len(models)),
		}
		for i := range models {
			m := &models[i]
			desc, err := m.Descriptor().Marshal()
			if err != nil {
				s.log.Warn("snapshot: descriptor encode failed", zap.String("model", m.Name), zap.Error(err))
				continue
			}
			plugins := make([]string, 0, len(m.Plugins))
			for _, p := range m.Plugins {
				plugins = append(plugins, p.Name)
			}
			job.snap.Models = append(job.snap.Models, persist.ModelRow{
				Name:       m.Name,
				EntityID:   uint64(m.ID),
				Generation: m.Generation,
				Static:     m.Static,
				LinkCount:  len(m.Links),
				Plugins:    plugins,
				Descriptor: desc,
			})
		}
	})
	if err != nil {
		return persistJob{}, false
	}
	if c := s.store.Clock(); c != nil {
		job.snap.Iteration = c.Iterations()
	}
	return job, true
}

func (s *PersistenceSystem) writeLoop() {
	defer close(s.done)
	for job := range s.work {
		s.write(job)
	}
}

func (s *PersistenceSystem) write(job persistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// events of different kinds are dispatched by type, not by sequence
	sort.SliceStable(job.journal, func(i, j int) bool { return job.journal[i].Seq < job.journal[j].Seq })
	if err := s.journal.Append(ctx, job.journal); err != nil {
		s.log.Error("mutation journal write failed", zap.Int("entries", len(job.journal)), zap.Error(err))
	}
	if err := s.snapshots.Save(ctx, job.snap); err != nil {
		s.log.Error("model snapshot save failed", zap.String("world", job.snap.World), zap.Error(err))
		return
	}
	s.log.Debug("model snapshot saved",
		zap.String("world", job.snap.World),
		zap.Int("models", len(job.snap.Models)),
		zap.Uint64("iteration", job.snap.Iteration),
	)
}

// Stop waits for the writer to finish queued work, then saves a final
// snapshot synchronously. Call it after the stepping loop has stopped.
func (s *PersistenceSystem) Stop() {
	s.stopOnce.Do(func() {
		close(s.work)
		if s.started {
			<-s.done
		}
		if job, ok := s.captureFinal(); ok {
			s.write(job)
		}
	})
}

// captureFinal snapshots even a closed world by reading what it held last.
func (s *PersistenceSystem) captureFinal() (persistJob, bool) {
	job, ok := s.capture()
	if !ok {
		if len(s.pending) == 0 {
			return persistJob{}, false
		}
		// world already closed: only the journal is left to save
		if err := s.journal.Append(context.Background(), s.pending); err != nil {
			s.log.Error("mutation journal write failed", zap.Error(err))
		}
		s.pending = nil
		return persistJob{}, false
	}
	s.pending = nil
	return job, true
}
