package diesel

// Handle refers to a resource in an Arena. The zero Handle is never valid.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h was never assigned.
func (h Handle) IsZero() bool { return h.generation == 0 }

type slot[T any] struct {
	value      T
	generation uint32
	used       bool
}

// Arena stores resources behind generation-checked handles. Removing a
// resource bumps the generation of its slot, so handles to it go stale
// instead of reaching whatever reuses the slot.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var i uint32
	if n := len(a.free); n > 0 {
		i = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		i = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[i]
	if s.generation == 0 {
		s.generation = 1
	}
	s.value = v
	s.used = true
	a.count++
	return Handle{index: i, generation: s.generation}
}

// Get returns the resource of h, or false if h is stale.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if !a.valid(h) {
		var zero T
		return zero, false
	}
	return a.slots[h.index].value, true
}

// Remove takes the resource of h out of the arena.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	if !a.valid(h) {
		return zero, false
	}
	s := &a.slots[h.index]
	v := s.value
	s.value = zero
	s.used = false
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	a.free = append(a.free, h.index)
	a.count--
	return v, true
}

func (a *Arena[T]) valid(h Handle) bool {
	if h.generation == 0 || int(h.index) >= len(a.slots) {
		return false
	}
	s := a.slots[h.index]
	return s.used && s.generation == h.generation
}

func (a *Arena[T]) Len() int { return a.count }

// Each calls fn for every stored resource.
func (a *Arena[T]) Each(fn func(Handle, T)) {
	for i, s := range a.slots {
		if s.used {
			fn(Handle{index: uint32(i), generation: s.generation}, s.value)
		}
	}
}

// Clear removes every resource, invalidating all handles.
func (a *Arena[T]) Clear() {
	a.Each(func(h Handle, _ T) { a.Remove(h) })
}
