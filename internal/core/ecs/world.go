package ecs

// Entities owns the ID pool, the registered component stores, and the deferred
// destruction queue. Removing a model only marks its IDs; the cleanup phase at
// the end of the step flushes them, so a step never sees a half-destroyed
// subtree.
type Entities struct {
	pool         *EntityPool
	stores       []Removable
	destroyQueue []EntityID
}

func NewEntities() *Entities {
	return &Entities{
		pool:         NewEntityPool(),
		stores:       make([]Removable, 0, 4),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (e *Entities) Pool() *EntityPool { return e.pool }

// Register adds a component store that destruction must clear.
func (e *Entities) Register(store Removable) {
	e.stores = append(e.stores, store)
}

func (e *Entities) Create() EntityID {
	return e.pool.Create()
}

func (e *Entities) Alive(id EntityID) bool {
	return e.pool.Alive(id)
}

// MarkForDestruction queues IDs for the next flush.
func (e *Entities) MarkForDestruction(ids ...EntityID) {
	e.destroyQueue = append(e.destroyQueue, ids...)
}

// PendingDestruction returns the number of IDs waiting for a flush.
func (e *Entities) PendingDestruction() int {
	return len(e.destroyQueue)
}

// FlushDestroyQueue clears queued IDs from every store, frees them, and
// returns how many were flushed.
func (e *Entities) FlushDestroyQueue() int {
	n := len(e.destroyQueue)
	for _, id := range e.destroyQueue {
		for _, s := range e.stores {
			s.Remove(id)
		}
		e.pool.Destroy(id)
	}
	e.destroyQueue = e.destroyQueue[:0]
	return n
}
