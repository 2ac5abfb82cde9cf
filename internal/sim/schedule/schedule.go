// Package schedule implements random activation: every registered entity is
// stepped exactly once per tick, in a freshly shuffled order.
package schedule

// Shuffler is the subset of the run generator the scheduler needs.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Scheduler keeps entities in registration order so that the shuffle input
// (and therefore the activation order) depends only on the generator state.
//
// Entities added while a tick is running are parked until the tick ends.
// Entities removed while a tick is running are dropped immediately and
// skipped if they were still pending in the tick's snapshot.
type Scheduler[T any] struct {
	order   []uint64
	live    map[uint64]T
	pending []uint64

	inTick bool
	dirty  int
}

func New[T any]() *Scheduler[T] {
	return &Scheduler[T]{live: map[uint64]T{}}
}

// Add registers v under id. During a tick the entity becomes active from the
// next tick on.
func (s *Scheduler[T]) Add(id uint64, v T) {
	if _, ok := s.live[id]; ok {
		return
	}
	s.live[id] = v
	if s.inTick {
		s.pending = append(s.pending, id)
		return
	}
	s.order = append(s.order, id)
}

func (s *Scheduler[T]) Remove(id uint64) {
	if _, ok := s.live[id]; !ok {
		return
	}
	delete(s.live, id)
	s.dirty++
}

func (s *Scheduler[T]) Has(id uint64) bool {
	_, ok := s.live[id]
	return ok
}

func (s *Scheduler[T]) Get(id uint64) (T, bool) {
	v, ok := s.live[id]
	return v, ok
}

// Len counts registered entities, including those parked for the next tick.
func (s *Scheduler[T]) Len() int { return len(s.live) }

// Each visits registered entities in registration order (parked ones last).
func (s *Scheduler[T]) Each(fn func(id uint64, v T)) {
	for _, id := range s.order {
		if v, ok := s.live[id]; ok {
			fn(id, v)
		}
	}
	for _, id := range s.pending {
		if v, ok := s.live[id]; ok {
			fn(id, v)
		}
	}
}

// Step runs one tick. The first error aborts the tick; the remaining
// entities are not stepped and parked registrations are still merged.
func (s *Scheduler[T]) Step(r Shuffler, fn func(id uint64, v T) error) error {
	s.compact()
	snap := make([]uint64, len(s.order))
	copy(snap, s.order)
	r.Shuffle(len(snap), func(i, j int) { snap[i], snap[j] = snap[j], snap[i] })

	s.inTick = true
	defer s.endTick()

	for _, id := range snap {
		v, ok := s.live[id]
		if !ok {
			continue
		}
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler[T]) endTick() {
	s.inTick = false
	s.order = append(s.order, s.pending...)
	s.pending = s.pending[:0]
	s.compact()
}

func (s *Scheduler[T]) compact() {
	if s.dirty == 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.live[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
	s.dirty = 0
}
