package oscbridge

import "sync"

// controlSlot is the per-address value-and-ramp state of one registered
// control address. A slot of width N carries N element streams that share
// one pending buffer and one lock.
//
// Each element is a two-state machine: STEADY (previous == target) and
// RAMPING. A new value latched with interpolation enabled moves the
// element to RAMPING for exactly one block, starting from the last value
// it emitted; with interpolation disabled the element steps immediately.
// The block boundary returns it to STEADY.
//
// Locking: `mu` guards the pending values, dirty flags, the tombstone and
// the peek values. The network context holds it for one write, the render
// context for one latch at block start. The previous/target/last fields
// are owned by the render context and never locked.
type controlSlot struct {
	width int
	mul   float64
	add   float64

	mu    sync.Mutex
	dead  bool
	elems []slotElement
}

type slotElement struct {
	// guarded by the slot mutex
	pending float64
	dirty   bool
	peek    float64

	// owned by the render context
	previous float64
	target   float64
	last     float64
}

func newControlSlot(width int, mul, add float64) *controlSlot {
	return &controlSlot{
		width: width,
		mul:   mul,
		add:   add,
		elems: make([]slotElement, width),
	}
}

// store overwrites the pending target values. Last-writer-wins: values
// arriving between two block boundaries replace each other and only the
// most recent survives until the next latch. It reports whether the slot
// accepted the write and whether it replaced a value that was never
// sampled (a coalesced write).
func (s *controlSlot) store(values []float64) (stored, coalesced bool) {
	if len(values) != s.width {
		return false, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return false, false
	}
	coalesced = s.elems[0].dirty
	for i := range s.elems {
		s.elems[i].pending = values[i]
		s.elems[i].dirty = true
	}
	return true, coalesced
}

// kill tombstones the slot. Deliveries that still hold a stale table
// snapshot will find the tombstone and write nowhere.
func (s *controlSlot) kill() {
	s.mu.Lock()
	s.dead = true
	s.mu.Unlock()
}

// sampleElement fills dst with one block of element `i`, advancing the
// ramp by 1/len(dst) per sample. The increment is derived from the block
// it is given, so a changing block size changes the ramp slope, never its
// one-block span. Must be called once per block per element, from the
// render context only. It does not allocate and cannot fail.
func (s *controlSlot) sampleElement(i int, dst []float64, interp bool) {
	e := &s.elems[i]

	s.mu.Lock()
	if e.dirty {
		e.dirty = false
		if interp {
			e.previous = e.last
			e.target = e.pending
		} else {
			e.previous = e.pending
			e.target = e.pending
			e.last = e.pending
		}
	} else {
		// block boundary: RAMPING -> STEADY.
		e.previous = e.target
	}
	prev, tgt := e.previous, e.target
	e.peek = prev
	s.mu.Unlock()

	if len(dst) == 0 {
		return
	}

	if prev == tgt {
		v := tgt*s.mul + s.add
		for k := range dst {
			dst[k] = v
		}
		e.last = tgt
		return
	}

	inc := (tgt - prev) / float64(len(dst))
	v := prev
	for k := range dst {
		v += inc
		dst[k] = v*s.mul + s.add
	}
	e.last = tgt
}

// peekElement returns the block-start value of element `i` as of the last
// sampled block, with mul/add applied. It never mutates ramp state, so it
// is safe to call from any context for introspection.
func (s *controlSlot) peekElement(i int) float64 {
	s.mu.Lock()
	v := s.elems[i].peek
	s.mu.Unlock()
	return v*s.mul + s.add
}
