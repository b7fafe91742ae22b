package diesel

// Destroyer is a GPU resource that can be released.
type Destroyer interface {
	Destroy()
}

// DeletionQueue holds resources released by the application while the GPU
// may still read them. The queue is not thread-safe.
type DeletionQueue struct {
	items []Destroyer
}

// Push defers the destruction of d until the next Flush.
func (q *DeletionQueue) Push(d Destroyer) {
	q.items = append(q.items, d)
}

func (q *DeletionQueue) Len() int { return len(q.items) }

// Flush destroys the queued resources in release order and returns how
// many there were.
func (q *DeletionQueue) Flush() int {
	n := len(q.items)
	for i, d := range q.items {
		d.Destroy()
		q.items[i] = nil
	}
	q.items = q.items[:0]
	return n
}

// DeletionManager keeps one DeletionQueue per frame slot.
//
// A resource released before frame n is recorded may be referenced by the
// submissions of frames n-3 to n-1. It is queued on the slot of frame n-1,
// which is next reused by frame n+2. By then the Resets of frames n, n+1
// and n+2 have waited on the fences of frames n-3, n-2 and n-1.
type DeletionManager struct {
	queues [MaxFramesInFlight]DeletionQueue
}

// Defer queues d for destruction given the slot currently being recorded.
func (m *DeletionManager) Defer(current int, d Destroyer) {
	m.queues[previousSlot(current)].Push(d)
}

// Collect destroys the resources of slot after its Reset succeeded.
func (m *DeletionManager) Collect(slot int) int {
	return m.queues[slot].Flush()
}

// Pending returns the number of queued resources over all slots.
func (m *DeletionManager) Pending() int {
	n := 0
	for i := range m.queues {
		n += m.queues[i].Len()
	}
	return n
}

// CollectAll destroys every queued resource. The device must be idle.
func (m *DeletionManager) CollectAll() int {
	n := 0
	for i := range m.queues {
		n += m.queues[i].Flush()
	}
	return n
}

func previousSlot(current int) int {
	return (current + MaxFramesInFlight - 1) % MaxFramesInFlight
}
