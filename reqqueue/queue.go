package reqqueue

import (
	"sync"
	"time"
)

// DuplicateMode controls TryEnqueue's behaviour when an item with the same
// key is already present in the queue.
type DuplicateMode int

const (
	// EnforceUnique rejects an enqueue whose key already has a pending item.
	EnforceUnique DuplicateMode = iota
	// AllowDuplicate always accepts the enqueue.
	AllowDuplicate
)

// Queue is a FIFO of *Message with per-key duplicate enforcement,
// guarded by a single mutex and a condition variable for blocking drain,
// per the contract in spec.md §4.2. It has no capacity limit: enqueue never
// fails because the queue is full.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []*Message
	counts   map[Key]int
	disposed bool
}

// NewQueue returns an empty, ready-to-use Queue.
func NewQueue() *Queue {
	q := &Queue{counts: make(map[Key]int)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// TryEnqueue appends item under mode's duplicate policy. Returns false
// without mutation if mode is EnforceUnique and item's key already has a
// pending entry, or if the queue has been disposed.
func (q *Queue) TryEnqueue(item *Message, mode DuplicateMode) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueueLocked(item, mode)
}

func (q *Queue) enqueueLocked(item *Message, mode DuplicateMode) bool {
	if q.disposed {
		return false
	}
	k := item.Key()
	if mode == EnforceUnique && q.counts[k] > 0 {
		return false
	}
	q.items = append(q.items, item)
	q.counts[k]++
	q.cond.Broadcast()
	return true
}

// TryEnqueueRange enqueues every item in items under a single critical
// section. accepted and skipped count successes and EnforceUnique
// rejections respectively; failures is always empty in this implementation
// since construction of a Message cannot itself fail after NewMessage
// returns, but the slot is kept for key-selector errors a future Message
// variant might introduce.
func (q *Queue) TryEnqueueRange(items []*Message, mode DuplicateMode) (accepted, skipped int, failures []error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range items {
		if q.enqueueLocked(item, mode) {
			accepted++
		} else {
			skipped++
		}
	}
	return accepted, skipped, nil
}

// TryDequeue removes and returns the head item, or false if the queue is
// empty or disposed.
func (q *Queue) TryDequeue() (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed || len(q.items) == 0 {
		return nil, false
	}
	return q.popLocked(), true
}

func (q *Queue) popLocked() *Message {
	item := q.items[0]
	q.items = q.items[1:]
	k := item.Key()
	q.counts[k]--
	if q.counts[k] <= 0 {
		delete(q.counts, k)
	}
	return item
}

// TryDequeueWait blocks until an item is available, timeout elapses, cancel
// fires, or the queue is disposed.
func (q *Queue) TryDequeueWait(timeout time.Duration, cancel <-chan struct{}) (*Message, bool) {
	item, ok := q.waitLocked(timeout, cancel, true)
	return item, ok
}

// TryPeek returns the head item without removing it.
func (q *Queue) TryPeek() (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed || len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// TryPeekWait blocks analogously to TryDequeueWait, without removing the
// item it returns.
func (q *Queue) TryPeekWait(timeout time.Duration, cancel <-chan struct{}) (*Message, bool) {
	return q.waitLocked(timeout, cancel, false)
}

func (q *Queue) waitLocked(timeout time.Duration, cancel <-chan struct{}, remove bool) (*Message, bool) {
	deadline := time.Now().Add(timeout)
	done := make(chan struct{})
	defer close(done)
	go func() {
		var timer <-chan time.Time
		if timeout > 0 {
			t := time.NewTimer(timeout)
			defer t.Stop()
			timer = t.C
		}
		select {
		case <-timer:
		case <-cancel:
		case <-done:
			return
		}
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.disposed {
			return nil, false
		}
		if len(q.items) > 0 {
			if remove {
				return q.popLocked(), true
			}
			return q.items[0], true
		}
		if !time.Now().Before(deadline) {
			return nil, false
		}
		select {
		case <-cancel:
			return nil, false
		default:
		}
		q.cond.Wait()
	}
}

// ContainsKey reports whether any pending item has key k.
func (q *Queue) ContainsKey(k Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[k] > 0
}

// PendingCountByKey returns the exact number of pending items with key k.
func (q *Queue) PendingCountByKey(k Key) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.counts[k]
}

// TryRemoveByKey removes and returns the first pending item with key k,
// preserving the relative order of the remaining items.
func (q *Queue) TryRemoveByKey(k Key) (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.Key() == k {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.counts[k]--
			if q.counts[k] <= 0 {
				delete(q.counts, k)
			}
			return item, true
		}
	}
	return nil, false
}

// RemoveAllByKey removes every pending item with key k and returns the
// count removed, preserving the relative order of the remaining items.
func (q *Queue) RemoveAllByKey(k Key) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0:0]
	removed := 0
	for _, item := range q.items {
		if item.Key() == k {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	delete(q.counts, k)
	return removed
}

// Snapshot returns a copy of the pending items in FIFO order.
func (q *Queue) Snapshot() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Message, len(q.items))
	copy(out, q.items)
	return out
}

// KeySnapshot returns a copy of the per-key pending counts.
func (q *Queue) KeySnapshot() map[Key]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[Key]int, len(q.counts))
	for k, v := range q.counts {
		out[k] = v
	}
	return out
}

// Clear drops every pending item without disposing the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.counts = make(map[Key]int)
	q.cond.Broadcast()
}

// TrimExcess releases any spare backing-array capacity accumulated by
// repeated enqueue/dequeue cycles.
func (q *Queue) TrimExcess() {
	q.mu.Lock()
	defer q.mu.Unlock()
	trimmed := make([]*Message, len(q.items))
	copy(trimmed, q.items)
	q.items = trimmed
}

// Dispose permanently disables the queue and wakes every blocked waiter.
func (q *Queue) Dispose() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.disposed = true
	q.items = nil
	q.counts = make(map[Key]int)
	q.cond.Broadcast()
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
