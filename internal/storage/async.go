package storage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"prepcoach/internal/logging"
)

// Store wraps an Adapter with an asynchronous write queue. Managers
// mutate their in-memory state first and enqueue the persistence write;
// reads go straight to the adapter.
//
// Every queued write is tagged with the store's generation at enqueue
// time. Clear bumps the generation, so an older write still in flight
// when the user signs out is discarded instead of resurrecting cleared
// data.
//
// Write failures do not roll back the already-applied in-memory
// mutation; they are recorded (LastErr, audit log) and the copies are
// allowed to diverge until the next load.
type Store struct {
	adapter Adapter
	ops     chan writeOp
	gen     atomic.Uint64
	wg      sync.WaitGroup

	mu      sync.Mutex
	lastErr error

	closeOnce sync.Once
}

type opKind int

const (
	opSet opKind = iota
	opRemove
	opRemoveMany
	opBarrier
)

type writeOp struct {
	kind  opKind
	key   string
	value string
	keys  []string
	gen   uint64
	done  chan error
}

const writeQueueDepth = 64

// NewStore starts the background writer over the given adapter.
func NewStore(adapter Adapter) *Store {
	s := &Store{
		adapter: adapter,
		ops:     make(chan writeOp, writeQueueDepth),
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

func (s *Store) writer() {
	defer s.wg.Done()
	for op := range s.ops {
		s.apply(op)
	}
}

func (s *Store) apply(op writeOp) {
	if op.kind == opBarrier {
		op.done <- nil
		return
	}

	// Stale writes from before the last Clear are dropped.
	if current := s.gen.Load(); op.kind == opSet && op.gen < current {
		logging.StoreWarn("Dropping stale write for %s (generation %d < %d)", op.key, op.gen, current)
		logging.Audit().StoreDroppedWrite(op.key, op.gen, current)
		if op.done != nil {
			op.done <- nil
		}
		return
	}

	var err error
	switch op.kind {
	case opSet:
		err = s.adapter.Set(op.key, op.value)
	case opRemove:
		err = s.adapter.Remove(op.key)
	case opRemoveMany:
		err = s.adapter.RemoveMany(op.keys)
	}

	if err != nil {
		s.recordErr(op, err)
	}
	if op.done != nil {
		op.done <- err
	}
}

func (s *Store) recordErr(op writeOp, err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	name := op.key
	opName := "set"
	switch op.kind {
	case opRemove:
		opName = "remove"
	case opRemoveMany:
		opName = "remove_many"
		name = fmt.Sprintf("%d keys", len(op.keys))
	}
	logging.StoreError("Background %s failed for %s: %v", opName, name, err)
	logging.Audit().StoreFailure(opName, name, err)
}

// Get reads the current persisted value for key.
func (s *Store) Get(key string) (string, bool, error) {
	return s.adapter.Get(key)
}

// Set queues a background write of value under key.
func (s *Store) Set(key, value string) {
	s.ops <- writeOp{kind: opSet, key: key, value: value, gen: s.gen.Load()}
}

// SetSync writes value under key and waits for the result. Used on load
// paths that must persist before returning (e.g. the streak reset sweep).
func (s *Store) SetSync(key, value string) error {
	done := make(chan error, 1)
	s.ops <- writeOp{kind: opSet, key: key, value: value, gen: s.gen.Load(), done: done}
	return <-done
}

// Remove queues a background deletion of key.
func (s *Store) Remove(key string) {
	s.ops <- writeOp{kind: opRemove, key: key, gen: s.gen.Load()}
}

// Clear bumps the write generation and removes the given keys, waiting
// for the removal to land. Any Set queued before Clear is discarded when
// the writer reaches it.
func (s *Store) Clear(keys []string) error {
	gen := s.gen.Add(1)
	logging.StoreDebug("Clearing %d keys (generation now %d)", len(keys), gen)

	done := make(chan error, 1)
	s.ops <- writeOp{kind: opRemoveMany, keys: keys, gen: gen, done: done}
	return <-done
}

// Flush blocks until every queued write has been applied or dropped.
func (s *Store) Flush() {
	done := make(chan error, 1)
	s.ops <- writeOp{kind: opBarrier, done: done}
	<-done
}

// LastErr returns the most recent background write failure, if any.
func (s *Store) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close drains the queue, stops the writer, and closes the adapter.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.ops)
		s.wg.Wait()
	})
	return s.adapter.Close()
}
