package wire

import "sync"

// Queue is the msgid -> {queued payloads | waiter} demultiplexer described
// in spec.md §9: a producer that finds a waiter completes and removes it;
// otherwise the payload is appended to a FIFO list. A consumer pops the
// front of a queued list, or installs a waiter if nothing has arrived yet.
//
// This is the Go realization of the teacher's per-round
// map[round.Number]map[party.ID]*Message storage (pkg/protocol/handler.go),
// narrowed to one cooperative mutex guarding a single msgid-keyed map
// instead of round-keyed maps, since this protocol has no round concept —
// every msgid is an independent slot.
type Queue struct {
	mu       sync.Mutex
	pending  map[uint32][]uint32pack
	waiters  map[uint32]chan uint32pack
	closed   chan struct{}
	closeOne sync.Once
}

type uint32pack = []uint32

// NewQueue returns an empty demultiplexer.
func NewQueue() *Queue {
	return &Queue{
		pending: make(map[uint32][]uint32pack),
		waiters: make(map[uint32]chan uint32pack),
		closed:  make(chan struct{}),
	}
}

// Deliver is called by the receive loop when a frame for msgid arrives. If a
// reader is already waiting on msgid, it is woken directly; otherwise the
// payload is queued FIFO.
func (q *Queue) Deliver(msgid uint32, payload []uint32) {
	q.mu.Lock()
	if waiter, ok := q.waiters[msgid]; ok {
		delete(q.waiters, msgid)
		q.mu.Unlock()
		waiter <- payload
		return
	}
	q.pending[msgid] = append(q.pending[msgid], payload)
	q.mu.Unlock()
}

// Take returns the next payload queued for msgid, blocking until one
// arrives or done is closed (peer closure / cancellation).
func (q *Queue) Take(msgid uint32, done <-chan struct{}) ([]uint32, bool) {
	q.mu.Lock()
	if list, ok := q.pending[msgid]; ok && len(list) > 0 {
		payload := list[0]
		if len(list) == 1 {
			delete(q.pending, msgid)
		} else {
			q.pending[msgid] = list[1:]
		}
		q.mu.Unlock()
		return payload, true
	}
	waiter := make(chan uint32pack, 1)
	q.waiters[msgid] = waiter
	q.mu.Unlock()

	select {
	case payload := <-waiter:
		return payload, true
	case <-done:
		q.mu.Lock()
		delete(q.waiters, msgid)
		q.mu.Unlock()
		return nil, false
	case <-q.closed:
		q.mu.Lock()
		delete(q.waiters, msgid)
		q.mu.Unlock()
		return nil, false
	}
}

// Abandon drops every pending entry and wakes any blocked waiters with no
// payload; called when the owning channel is closed or cancelled (spec.md
// §5's "a caller cancelling a sub-protocol leaks any pending msgid entries").
// It is safe to call more than once.
func (q *Queue) Abandon() {
	q.closeOne.Do(func() { close(q.closed) })
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = make(map[uint32][]uint32pack)
}
