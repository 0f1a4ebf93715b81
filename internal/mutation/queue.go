package mutation

import (
	"fmt"
	"sync"

	"github.com/simworld/server/internal/data"
	"github.com/simworld/server/internal/world"
)

// Queue buffers mutations from any goroutine until the stepping goroutine
// drains them. Enqueue holds mu only to append; DrainInto swaps the slice
// out under mu and applies it with mu released, so producers never wait on
// the store lock.
type Queue struct {
	mu      sync.Mutex
	pending []Mutation
	nextSeq uint64
	limit   int
	closed  bool
}

// NewQueue creates a queue that refuses new work once limit mutations are
// waiting. limit <= 0 means unbounded.
func NewQueue(limit int) *Queue {
	return &Queue{
		pending: make([]Mutation, 0, 64),
		limit:   limit,
	}
}

// Enqueue appends m and returns its sequence number.
func (q *Queue) Enqueue(m Mutation) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, world.ErrWorldClosed
	}
	if q.limit > 0 && len(q.pending) >= q.limit {
		return 0, world.ErrQueueFull
	}
	q.nextSeq++
	m.Seq = q.nextSeq
	q.pending = append(q.pending, m)
	return m.Seq, nil
}

// Len returns the number of mutations waiting for the next drain.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close makes every later Enqueue fail with ErrWorldClosed. Mutations still
// queued are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
}

func (q *Queue) take() []Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	batch := q.pending
	q.pending = make([]Mutation, 0, cap(batch))
	return batch
}

// DrainInto applies every queued mutation to store in sequence order inside
// one store update, calling report once per mutation after the update has
// committed. Mutations enqueued while the drain runs wait for the next one.
// A bad mutation is dropped and reported; it never fails the drain.
func (q *Queue) DrainInto(store *world.Store, report func(Outcome)) error {
	batch := q.take()
	if len(batch) == 0 {
		return nil
	}
	outcomes := make([]Outcome, 0, len(batch))
	err := store.Update(func(tx *world.Tx) error {
		for _, m := range batch {
			outcomes = append(outcomes, apply(tx, m))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("drain %d mutations: %w", len(batch), err)
	}
	if report != nil {
		for _, o := range outcomes {
			report(o)
		}
	}
	return nil
}

func apply(tx *world.Tx, m Mutation) Outcome {
	out := Outcome{Mutation: m, Name: m.Name}
	switch m.Kind {
	case KindSpawn:
		if m.Descriptor == nil {
			out.Err = fmt.Errorf("spawn: no descriptor: %w", data.ErrInvalidDescriptor)
			return out
		}
		name := m.Name
		if name == "" {
			name = m.Descriptor.Name
		}
		if name == "" {
			out.Err = fmt.Errorf("spawn: no model name: %w", data.ErrInvalidDescriptor)
			return out
		}
		if m.AllowRenaming {
			name = tx.UniqueName(name)
		}
		out.Name = name
		if _, err := tx.Insert(m.Descriptor, name); err != nil {
			out.Err = err
			return out
		}
	case KindEdit:
		if m.Descriptor == nil {
			out.Err = fmt.Errorf("edit %s: no descriptor: %w", m.Name, data.ErrInvalidDescriptor)
			return out
		}
		if _, err := tx.ReplaceSubtree(m.Name, m.Descriptor); err != nil {
			out.Err = err
			return out
		}
	case KindDelete:
		out.Noop = !tx.Remove(m.Name)
	default:
		out.Err = fmt.Errorf("unknown mutation kind %s", m.Kind)
		return out
	}
	out.Applied = true
	return out
}
