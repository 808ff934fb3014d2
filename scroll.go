package arbiter

// scrollNotch is the canonical number of raw scroll units per wheel detent.
const scrollNotch = 120.0

// scrollAccumulator coalesces fractional scroll deltas across one dispatch
// batch. Scroll events are never forwarded individually; the dispatcher
// flushes the accumulator exactly once per wake-up, after all other events.
type scrollAccumulator struct {
	x, y float64
}

// accumulate adds one scroll delta expressed in raw v120 units.
func (s *scrollAccumulator) accumulate(horizontal bool, v120 float64) {
	if horizontal {
		s.x += v120 / scrollNotch
	} else {
		s.y += v120 / scrollNotch
	}
}

// flush returns the accumulated totals and resets both axes. ok is false
// when there is nothing to emit.
func (s *scrollAccumulator) flush() (dx, dy float64, ok bool) {
	dx, dy = s.x, s.y
	s.x, s.y = 0, 0
	return dx, dy, dx != 0 || dy != 0
}
