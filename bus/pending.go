package bus

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pendingRequest is one outstanding request/reply pair. It is owned by
// the pendingRegistry from register until resolution; resolving removes
// it from the registry immediately, so an entry is never left dangling.
//
// Resolution is exactly once: whichever of matching reply, deadline
// expiry, context cancellation, or bus shutdown fires first wins, and
// the losers see resolve/fail return false.
type pendingRequest struct {
	id       string
	deadline time.Time
	index    int // position in the deadline heap, -1 once popped

	// done is closed exactly once on resolution. payload and err are
	// written before the close and must only be read after <-done.
	done    chan struct{}
	payload Payload
	err     error
}

// pendingRegistry tracks outstanding requests by correlation id. All
// deadlines are enforced by a single timer goroutine over a min-heap,
// so disconnect teardown is one sweep rather than a cancellation of
// per-request timers.
type pendingRegistry struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
	heap    deadlineHeap
	wake    chan struct{}
	stopped bool
}

func newPendingRegistry() *pendingRegistry {
	r := &pendingRegistry{
		entries: make(map[string]*pendingRequest),
		wake:    make(chan struct{}, 1),
	}
	go r.expireLoop()
	return r
}

// register creates a pending request with a fresh correlation id and an
// absolute deadline of now+timeout.
func (r *pendingRegistry) register(timeout time.Duration) (*pendingRequest, error) {
	pr := &pendingRequest{
		id:       uuid.NewString(),
		deadline: time.Now().Add(timeout),
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.entries[pr.id] = pr
	heap.Push(&r.heap, pr)
	first := r.heap[0] == pr
	r.mu.Unlock()

	// The timer only needs a nudge when the new deadline is the
	// nearest one.
	if first {
		r.kick()
	}
	return pr, nil
}

// resolve fulfills a pending request with a reply payload. Returns
// false if the correlation id is unknown or already resolved; a late or
// duplicate reply is therefore dropped, never delivered twice.
func (r *pendingRegistry) resolve(id string, payload Payload) bool {
	r.mu.Lock()
	pr, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		pr.payload = payload
		close(pr.done)
	}
	r.mu.Unlock()
	return ok
}

// fail resolves a pending request with an error outcome. Same
// first-resolver-wins semantics as resolve.
func (r *pendingRegistry) fail(id string, err error) bool {
	r.mu.Lock()
	pr, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		pr.err = err
		close(pr.done)
	}
	r.mu.Unlock()
	return ok
}

// cancelAll resolves every still-pending entry with err, unblocking all
// waiters immediately. Invoked on disconnect.
func (r *pendingRegistry) cancelAll(err error) {
	r.mu.Lock()
	for id, pr := range r.entries {
		delete(r.entries, id)
		pr.err = err
		close(pr.done)
	}
	r.heap = r.heap[:0]
	r.mu.Unlock()
}

// close cancels all pending entries and stops the timer goroutine.
func (r *pendingRegistry) close() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()
	r.cancelAll(ErrClosed)
	r.kick()
}

func (r *pendingRegistry) kick() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// expireLoop is the single timer driving every deadline. It sleeps
// until the nearest deadline, times out everything due, and re-arms.
func (r *pendingRegistry) expireLoop() {
	for {
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}

		var wait time.Duration
		armed := false
		now := time.Now()
		for r.heap.Len() > 0 {
			next := r.heap[0]
			// Entries resolved out of order stay in the heap
			// until they surface here.
			if r.entries[next.id] != next {
				heap.Pop(&r.heap)
				continue
			}
			if next.deadline.After(now) {
				wait = next.deadline.Sub(now)
				armed = true
				break
			}
			heap.Pop(&r.heap)
			delete(r.entries, next.id)
			next.err = ErrTimeout
			close(next.done)
		}
		r.mu.Unlock()

		if armed {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-r.wake:
				timer.Stop()
			}
		} else {
			<-r.wake
		}
	}
}

// pendingCount reports outstanding requests; used by teardown checks.
func (r *pendingRegistry) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// deadlineHeap is a min-heap of pending requests ordered by deadline.
type deadlineHeap []*pendingRequest

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool {
	return h[i].deadline.Before(h[j].deadline)
}

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	pr := x.(*pendingRequest)
	pr.index = len(*h)
	*h = append(*h, pr)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	pr := old[n-1]
	old[n-1] = nil
	pr.index = -1
	*h = old[:n-1]
	return pr
}
