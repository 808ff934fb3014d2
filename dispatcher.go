package arbiter

import (
	"errors"
	"fmt"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

// Dispatch drains every raw event pending on the attached devices and
// forwards the resulting normalized events, in arrival order, to the sink.
// Scroll deltas are coalesced across the whole batch and flushed exactly
// once at the end, so the combined scroll event is always last.
//
// Call it whenever Fd() signals readable. All work happens synchronously
// inside the call.
func (a *Arbiter) Dispatch() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errors.New(ErrNotInitialized)
	}

	var ready [32]unix.EpollEvent
	for {
		n, err := unix.EpollWait(a.epollFd, ready[:], 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("epoll wait: %w", err)
		}
		if n == 0 {
			break
		}

		for i := 0; i < n; i++ {
			fd := int(ready[i].Fd)
			dev, ok := a.devices[fd]
			if !ok {
				continue
			}

			batch, err := dev.readBatch()
			for _, raw := range batch {
				a.process(dev, raw)
			}
			if err != nil {
				// Unplugged mid-stream. Explicit-mode membership is fixed,
				// but a dead fd must still be released and closed.
				a.log.Warn("device read failed, detaching", "path", dev.path, "error", err)
				a.detach(fd)
			}
		}

		if n < len(ready) {
			break
		}
	}

	a.flushScroll()
	return nil
}

// process routes one raw event. Keys and buttons are forwarded immediately;
// relative and absolute motion are collected per SYN_REPORT frame so one
// hardware report becomes one normalized event; scroll goes to the batch
// accumulator.
func (a *Arbiter) process(dev *device, raw rawEvent) {
	switch raw.Type {
	case evdev.EV_SYN:
		if raw.Code == evdev.SYN_REPORT {
			a.flushFrame(dev)
		}

	case evdev.EV_REL:
		switch raw.Code {
		case evdev.REL_X:
			dev.frame.dx += float64(raw.Value)
			dev.frame.hasRel = true
		case evdev.REL_Y:
			dev.frame.dy += float64(raw.Value)
			dev.frame.hasRel = true
		case evdev.REL_WHEEL:
			// Devices with a hi-res wheel report both codes; count only one.
			if !dev.hiResWheel {
				a.routeScroll(false, float64(raw.Value)*scrollNotch)
			}
		case evdev.REL_WHEEL_HI_RES:
			if dev.hiResWheel {
				a.routeScroll(false, float64(raw.Value))
			}
		case evdev.REL_HWHEEL:
			if !dev.hiResHWheel {
				a.routeScroll(true, float64(raw.Value)*scrollNotch)
			}
		case evdev.REL_HWHEEL_HI_RES:
			if dev.hiResHWheel {
				a.routeScroll(true, float64(raw.Value))
			}
		}

	case evdev.EV_ABS:
		switch raw.Code {
		case evdev.ABS_X:
			dev.frame.absX = float64(raw.Value)
			dev.frame.hasAbs = true
		case evdev.ABS_Y:
			dev.frame.absY = float64(raw.Value)
			dev.frame.hasAbs = true
		}

	case evdev.EV_KEY:
		// The BTN range belongs to pointers, everything else is a key.
		if raw.Code >= evdev.BTN_MISC && raw.Code < evdev.KEY_OK {
			a.handleButton(raw.Code, raw.Value)
		} else {
			a.handleKey(raw.Code, raw.Value)
		}
	}
}

// flushFrame emits the motion collected for one SYN_REPORT frame.
func (a *Arbiter) flushFrame(dev *device) {
	f := dev.frame
	dev.frame = frameState{}

	if !a.filter.allowPointer(a.gate.grabbed) {
		return
	}
	if f.hasRel {
		seq := a.nextSeq()
		a.forward(KindPointer, func(s Sink) { s.RelativeMotion(f.dx, f.dy, seq) })
	}
	if f.hasAbs {
		seq := a.nextSeq()
		a.forward(KindPointer, func(s Sink) { s.AbsoluteMotion(f.absX, f.absY, seq, true) })
	}
}

// routeScroll feeds one scroll delta (raw v120 units) into the batch
// accumulator, subject to the pointer gates. Nothing is forwarded here.
func (a *Arbiter) routeScroll(horizontal bool, v120 float64) {
	if !a.filter.allowPointer(a.gate.grabbed) {
		return
	}
	a.scroll.accumulate(horizontal, v120)
}

func (a *Arbiter) handleButton(code evdev.EvCode, value int32) {
	if value == 2 {
		return
	}
	if !a.filter.allowPointer(a.gate.grabbed) {
		return
	}
	seq := a.nextSeq()
	pressed := value == 1
	a.forward(KindPointer, func(s Sink) { s.Button(code, pressed, seq) })
}

// handleKey gives every key transition to the grab toggle first, so the
// held-key bitmap stays accurate even for events the filter suppresses,
// then forwards it when allowed. The filter sees the post-commit grab
// state: the release that completes the chord is forwarded under the new
// state, exactly like any other release.
func (a *Arbiter) handleKey(code evdev.EvCode, value int32) {
	if value == 2 {
		// Kernel auto-repeat, not a state transition.
		return
	}
	pressed := value == 1

	if a.explicit {
		if a.toggle.observe(code, pressed) {
			a.gate.setGrabbed(!a.gate.grabbed)
			a.log.Info("exclusive grab toggled", "grabbed", a.gate.grabbed)
		}
	}

	if !a.filter.allowKey(pressed, a.gate.grabbed) {
		return
	}
	seq := a.nextSeq()
	a.forward(KindKeyboard, func(s Sink) { s.Key(code, pressed, seq) })
}

// flushScroll emits at most one combined scroll event for the batch.
func (a *Arbiter) flushScroll() {
	dx, dy, ok := a.scroll.flush()
	if !ok {
		return
	}
	seq := a.nextSeq()
	a.forward(KindPointer, func(s Sink) { s.Scroll(dx, dy, seq) })
}

// nextSeq is incremented once per forwarded event; wrap is acceptable, the
// consumer treats it as an ordering hint only.
func (a *Arbiter) nextSeq() uint32 {
	a.seq++
	return a.seq
}

// forward notifies physical activity and then makes one forwarding call,
// holding the external lock (when configured) for exactly that call.
func (a *Arbiter) forward(kind InputKind, call func(Sink)) {
	a.sink.NotifyPhysicalInput(kind)
	if a.lock != nil {
		a.lock.Lock()
		defer a.lock.Unlock()
	}
	call(a.sink)
}
