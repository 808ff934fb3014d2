package arbiter

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
)

// recordSink captures the forwarded stream for assertions.
type recordSink struct {
	calls    []sinkCall
	notifies []InputKind
}

type sinkCall struct {
	what    string
	seq     uint32
	dx, dy  float64
	x, y    float64
	warp    bool
	code    evdev.EvCode
	pressed bool
}

func (r *recordSink) NotifyPhysicalInput(kind InputKind) { r.notifies = append(r.notifies, kind) }

func (r *recordSink) RelativeMotion(dx, dy float64, seq uint32) {
	r.calls = append(r.calls, sinkCall{what: "motion", seq: seq, dx: dx, dy: dy})
}

func (r *recordSink) AbsoluteMotion(x, y float64, seq uint32, warp bool) {
	r.calls = append(r.calls, sinkCall{what: "absolute", seq: seq, x: x, y: y, warp: warp})
}

func (r *recordSink) Button(code evdev.EvCode, pressed bool, seq uint32) {
	r.calls = append(r.calls, sinkCall{what: "button", seq: seq, code: code, pressed: pressed})
}

func (r *recordSink) Key(code evdev.EvCode, pressed bool, seq uint32) {
	r.calls = append(r.calls, sinkCall{what: "key", seq: seq, code: code, pressed: pressed})
}

func (r *recordSink) Scroll(dx, dy float64, seq uint32) {
	r.calls = append(r.calls, sinkCall{what: "scroll", seq: seq, dx: dx, dy: dy})
}

// assertSeqsStrictlyIncrease verifies the stamped sequence numbers have no
// gaps or repeats.
func assertSeqsStrictlyIncrease(t *testing.T, calls []sinkCall) {
	t.Helper()
	for i, c := range calls {
		if want := uint32(i + 1); c.seq != want {
			t.Fatalf("call %d (%s): seq = %d, want %d", i, c.what, c.seq, want)
		}
	}
}

// newBenchArbiter builds an arbiter without touching real devices; tests
// feed events straight into process().
func newBenchArbiter(sink Sink, explicit bool) *Arbiter {
	a := &Arbiter{
		log:      discardLogger(),
		sink:     sink,
		gate:     newAccessGate(discardLogger(), explicit, false),
		filter:   policyFilter{explicit: explicit},
		toggle:   grabToggle{chord: DefaultChord()},
		explicit: explicit,
		epollFd:  -1,
		devices:  make(map[int]*device),
	}
	a.gate.grab = func(fd int, grab bool) error { return nil }
	return a
}

func newSeatDevice(class deviceClass) *device {
	return &device{fd: -1, path: "/dev/input/event99", name: "test device", class: class}
}

func TestDispatchForwardsFrameMotionInOrder(t *testing.T) {
	sink := &recordSink{}
	a := newBenchArbiter(sink, false)
	mouse := newSeatDevice(classPointer)

	// One frame: combined REL_X/REL_Y, then a button press in its own frame.
	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_X, Value: 4})
	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_Y, Value: -2})
	a.process(mouse, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	a.process(mouse, rawEvent{Type: evdev.EV_KEY, Code: evdev.BTN_LEFT, Value: 1})
	a.process(mouse, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	a.flushScroll()

	if len(sink.calls) != 2 {
		t.Fatalf("got %d calls, want 2: %+v", len(sink.calls), sink.calls)
	}
	if sink.calls[0].what != "motion" || sink.calls[0].dx != 4 || sink.calls[0].dy != -2 {
		t.Fatalf("first call = %+v, want motion (4, -2)", sink.calls[0])
	}
	if sink.calls[1].what != "button" || sink.calls[1].code != evdev.BTN_LEFT || !sink.calls[1].pressed {
		t.Fatalf("second call = %+v, want BTN_LEFT press", sink.calls[1])
	}
	assertSeqsStrictlyIncrease(t, sink.calls)
}

func TestDispatchAbsoluteMotionIsTaggedAsWarp(t *testing.T) {
	sink := &recordSink{}
	a := newBenchArbiter(sink, false)
	tablet := newSeatDevice(classPointer)

	a.process(tablet, rawEvent{Type: evdev.EV_ABS, Code: evdev.ABS_X, Value: 640})
	a.process(tablet, rawEvent{Type: evdev.EV_ABS, Code: evdev.ABS_Y, Value: 480})
	a.process(tablet, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})

	if len(sink.calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(sink.calls))
	}
	c := sink.calls[0]
	if c.what != "absolute" || c.x != 640 || c.y != 480 || !c.warp {
		t.Fatalf("call = %+v, want absolute warp (640, 480)", c)
	}
}

func TestDispatchScrollIsCoalescedAndFlushedLast(t *testing.T) {
	sink := &recordSink{}
	a := newBenchArbiter(sink, false)
	mouse := newSeatDevice(classPointer)

	// Scroll arrives before the key, but the flush still comes last.
	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_WHEEL, Value: 1})
	a.process(mouse, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_WHEEL, Value: 1})
	a.process(mouse, rawEvent{Type: evdev.EV_KEY, Code: evdev.BTN_RIGHT, Value: 1})
	a.process(mouse, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	a.flushScroll()

	if len(sink.calls) != 2 {
		t.Fatalf("got %d calls, want 2: %+v", len(sink.calls), sink.calls)
	}
	if sink.calls[0].what != "button" {
		t.Fatalf("first call = %+v, want the button", sink.calls[0])
	}
	last := sink.calls[1]
	if last.what != "scroll" || last.dy != 2.0 || last.dx != 0 {
		t.Fatalf("last call = %+v, want scroll (0, 2.0)", last)
	}
	assertSeqsStrictlyIncrease(t, sink.calls)
}

func TestDispatchHiResWheelSuppressesClassicCode(t *testing.T) {
	sink := &recordSink{}
	a := newBenchArbiter(sink, false)
	mouse := newSeatDevice(classPointer)
	mouse.hiResWheel = true

	// The kernel emits both codes for one detent on hi-res devices.
	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_WHEEL, Value: 1})
	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_WHEEL_HI_RES, Value: 120})
	a.process(mouse, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	a.flushScroll()

	if len(sink.calls) != 1 || sink.calls[0].dy != 1.0 {
		t.Fatalf("calls = %+v, want one scroll of exactly one notch", sink.calls)
	}
}

func TestDispatchIgnoresKeyRepeats(t *testing.T) {
	sink := &recordSink{}
	a := newBenchArbiter(sink, false)
	kb := newSeatDevice(classKeyboard)

	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: 1})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: 2})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: 2})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: 0})

	if len(sink.calls) != 2 {
		t.Fatalf("got %d calls, want press and release only: %+v", len(sink.calls), sink.calls)
	}
}

func TestDispatchNotifiesPhysicalInputPerForwardedEvent(t *testing.T) {
	sink := &recordSink{}
	a := newBenchArbiter(sink, false)
	mouse := newSeatDevice(classPointer)
	kb := newSeatDevice(classKeyboard)

	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_X, Value: 1})
	a.process(mouse, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: 1})

	if len(sink.notifies) != 2 {
		t.Fatalf("got %d notifications, want 2", len(sink.notifies))
	}
	if sink.notifies[0] != KindPointer || sink.notifies[1] != KindKeyboard {
		t.Fatalf("notifications = %v", sink.notifies)
	}

	// Suppressed events must not notify.
	a.filter.pointerDisabled = true
	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_X, Value: 1})
	a.process(mouse, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	if len(sink.notifies) != 2 {
		t.Fatalf("suppressed motion still notified: %v", sink.notifies)
	}
}

func TestDispatchClassGateStillFeedsChord(t *testing.T) {
	sink := &recordSink{}
	a := newBenchArbiter(sink, true)
	a.filter.keyboardDisabled = true
	kb := newSeatDevice(classKeyboard)

	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTMETA, Value: 1})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_G, Value: 1})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_G, Value: 0})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTMETA, Value: 0})

	if !a.gate.grabbed {
		t.Fatalf("chord must still toggle the grab while the keyboard class is disabled")
	}
	if len(sink.calls) != 0 {
		t.Fatalf("class-gated keys must not be forwarded: %+v", sink.calls)
	}
}

func TestDispatchExplicitModeEndToEnd(t *testing.T) {
	sink := &recordSink{}
	a := newBenchArbiter(sink, true)

	rec := &grabRecorder{}
	a.gate.grab = rec.fn
	a.gate.registry[11] = "/dev/input/event11"
	a.gate.registry[12] = "/dev/input/event12"

	mouse := newSeatDevice(classPointer)
	kb := newSeatDevice(classKeyboard)

	// Not grabbed: pointer motion from the listed devices is suppressed.
	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_X, Value: 3})
	a.process(mouse, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	a.flushScroll()
	if len(sink.calls) != 0 {
		t.Fatalf("motion while not grabbed must be dropped: %+v", sink.calls)
	}

	// Chord press and release: the releases are forwarded (never gated),
	// the presses are not, and the commit flips the grab.
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTMETA, Value: 1})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_G, Value: 1})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_G, Value: 0})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTMETA, Value: 0})
	a.flushScroll()

	if !a.gate.grabbed {
		t.Fatalf("chord must set the grab")
	}

	grabs := map[int]bool{}
	for _, c := range rec.calls {
		grabs[c.fd] = c.grab
	}
	if !grabs[11] || !grabs[12] {
		t.Fatalf("both registered fds must be re-ioctl'd on commit, got %v", rec.calls)
	}

	if len(sink.calls) != 2 {
		t.Fatalf("expected the two key releases, got %+v", sink.calls)
	}
	for _, c := range sink.calls {
		if c.what != "key" || c.pressed {
			t.Fatalf("unexpected forwarded call %+v", c)
		}
	}

	// Grabbed now: the same motion is forwarded with increasing sequence.
	a.process(mouse, rawEvent{Type: evdev.EV_REL, Code: evdev.REL_X, Value: 3})
	a.process(mouse, rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
	a.flushScroll()

	if got := sink.calls[len(sink.calls)-1]; got.what != "motion" || got.dx != 3 {
		t.Fatalf("motion after grab = %+v", got)
	}
	assertSeqsStrictlyIncrease(t, sink.calls)

	// And the chord toggles back off.
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTMETA, Value: 1})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_G, Value: 1})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_G, Value: 0})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTMETA, Value: 0})
	if a.gate.grabbed {
		t.Fatalf("second chord must release the grab")
	}
}

func TestDispatchSeatModeChordIsInert(t *testing.T) {
	sink := &recordSink{}
	a := newBenchArbiter(sink, false)
	kb := newSeatDevice(classKeyboard)

	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTMETA, Value: 1})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_G, Value: 1})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_G, Value: 0})
	a.process(kb, rawEvent{Type: evdev.EV_KEY, Code: evdev.KEY_LEFTMETA, Value: 0})

	if a.gate.grabbed {
		t.Fatalf("the chord must not toggle anything in seat mode")
	}
	if len(sink.calls) != 4 {
		t.Fatalf("all four key events should be forwarded in seat mode, got %+v", sink.calls)
	}
}
