package db

// Handle identifies a slot in an Arena: the slot index in the low 32 bits
// and the slot generation in the high 32 bits. The zero Handle is never
// issued.
type Handle uint64

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) index() uint32 {
	return uint32(h)
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

type slot[T any] struct {
	generation uint32
	used       bool
	value      T
}

// Arena stores values behind generation-checked handles. Removing a value
// bumps its slot generation, so handles to it go stale instead of
// aliasing whatever reuses the slot. An Arena is not safe for concurrent
// use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{generation: 1})
	}

	s := &a.slots[index]
	s.used = true
	s.value = v
	a.count++
	return makeHandle(index, s.generation)
}

func (a *Arena[T]) lookup(h Handle) *slot[T] {
	index := h.index()
	if int(index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[index]
	if !s.used || s.generation != h.generation() {
		return nil
	}
	return s
}

// Get returns the value behind h, or false if h is stale.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if s := a.lookup(h); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Remove frees the slot behind h and returns its value, or false if h is
// stale.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	s := a.lookup(h)
	if s == nil {
		return zero, false
	}

	v := s.value
	s.value = zero
	s.used = false
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	a.free = append(a.free, h.index())
	a.count--
	return v, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	return a.count
}

// Clear removes every value; all outstanding handles go stale.
func (a *Arena[T]) Clear() {
	for i := range a.slots {
		if a.slots[i].used {
			a.Remove(makeHandle(uint32(i), a.slots[i].generation))
		}
	}
}
