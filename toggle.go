package arbiter

import (
	evdev "github.com/holoplot/go-evdev"
)

// keyCount covers every keycode up to and including KEY_MAX (0x2ff).
const keyCount = 0x2ff + 1

// heldKeySet is a fixed-size bitmap of every key this process has observed
// pressed. Mutated only by the grab toggle; read-only elsewhere.
type heldKeySet [keyCount / 64]uint64

func (h *heldKeySet) set(code evdev.EvCode, pressed bool) {
	if int(code) >= keyCount {
		return
	}
	word, bit := code/64, code%64
	if pressed {
		h[word] |= 1 << bit
	} else {
		h[word] &^= 1 << bit
	}
}

func (h *heldKeySet) held(code evdev.EvCode) bool {
	if int(code) >= keyCount {
		return false
	}
	return h[code/64]&(1<<(code%64)) != 0
}

func (h *heldKeySet) empty() bool {
	for _, w := range h {
		if w != 0 {
			return false
		}
	}
	return true
}

// grabToggle tracks held keys and arms a grab flip when the chord is held.
// The flip commits only once every observed key has been released, so the
// consumer never sees the chord keys stuck down across a grab transition.
//
// States: idle -> armed -> idle (commit). Re-pressing the chord while
// already armed does not double-commit.
type grabToggle struct {
	chord Chord
	held  heldKeySet
	armed bool
}

// observe records one key transition and reports whether the toggle commits
// on this event. Every keyboard event must pass through here, including
// events the policy filter later suppresses, or chord detection desyncs.
func (t *grabToggle) observe(code evdev.EvCode, pressed bool) (commit bool) {
	t.held.set(code, pressed)

	if t.held.held(t.chord.Modifier) && t.held.held(t.chord.Key) {
		t.armed = true
	}

	if t.armed && t.held.empty() {
		t.armed = false
		return true
	}
	return false
}
