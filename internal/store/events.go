package store

import (
	"sync"
	"sync/atomic"
)

// EventType represents the type of change that occurred to a task.
type EventType int

const (
	// EventCreated indicates a new task was created.
	EventCreated EventType = iota
	// EventUpdated indicates an existing task was modified.
	EventUpdated
	// EventDeleted indicates a task was deleted.
	EventDeleted
)

// String returns a human-readable representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// TaskEvent represents a committed change to a task.
type TaskEvent struct {
	Type   EventType
	Task   *Task // snapshot after the change; before it for deletions
	TaskID int64
}

type subscription struct {
	ch    chan TaskEvent
	queue *eventQueue // set for lossless subscriptions
	id    uint64
}

func (sub *subscription) close() {
	if sub.queue != nil {
		close(sub.queue.done)
		return
	}
	close(sub.ch)
}

// Subscribe registers for task change events.
// Callers should defer the returned unsubscribe function.
// Events are dropped while the subscriber's buffer is full.
func (s *Store) Subscribe() (<-chan TaskEvent, func()) {
	ch := make(chan TaskEvent, 64)
	return ch, s.register(&subscription{ch: ch})
}

// SubscribeAll is like Subscribe but never drops events. Writers are not
// blocked; undelivered events queue until the subscriber catches up.
func (s *Store) SubscribeAll() (<-chan TaskEvent, func()) {
	out := make(chan TaskEvent)
	q := &eventQueue{notify: make(chan struct{}, 1), done: make(chan struct{})}
	go q.run(out)
	return out, s.register(&subscription{queue: q})
}

func (s *Store) register(sub *subscription) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := atomic.AddUint64(&s.nextSubID, 1)
	sub.id = id
	s.subscribers[id] = sub

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subscribers[id]; ok {
			sub.close()
			delete(s.subscribers, id)
		}
	}
}

// publish sends an event to all subscribers without blocking.
// Slow lossy subscribers have events dropped.
func (s *Store) publish(ev TaskEvent) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, sub := range s.subscribers {
		if sub.queue != nil {
			sub.queue.push(ev)
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func (s *Store) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, sub := range s.subscribers {
		sub.close()
		delete(s.subscribers, id)
	}
}

// eventQueue is an unbounded FIFO drained into a channel by run.
type eventQueue struct {
	mu     sync.Mutex
	items  []TaskEvent
	notify chan struct{}
	done   chan struct{}
}

func (q *eventQueue) push(ev TaskEvent) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run(out chan<- TaskEvent) {
	defer close(out)
	for {
		q.mu.Lock()
		items := q.items
		q.items = nil
		q.mu.Unlock()

		for _, ev := range items {
			select {
			case out <- ev:
			case <-q.done:
				return
			}
		}

		select {
		case <-q.notify:
		case <-q.done:
			return
		}
	}
}
