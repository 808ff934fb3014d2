package arbiter

import (
	evdev "github.com/holoplot/go-evdev"
)

// InputKind tags a physical-activity notification with the class of hardware
// that produced it.
type InputKind uint8

const (
	KindPointer InputKind = iota
	KindKeyboard
)

func (k InputKind) String() string {
	switch k {
	case KindPointer:
		return "pointer"
	case KindKeyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// Sink receives the normalized event stream. Every per-class call carries a
// sequence number that is strictly increasing across the lifetime of the
// arbiter (uint32, wraps). When Options.ExternalLock is set, each call is
// made while holding that lock, one event per critical section.
//
// NotifyPhysicalInput is invoked outside the lock, once per forwarded event,
// so the consumer can drive idle/activity tracking.
type Sink interface {
	NotifyPhysicalInput(kind InputKind)
	RelativeMotion(dx, dy float64, seq uint32)
	AbsoluteMotion(x, y float64, seq uint32, warp bool)
	Button(code evdev.EvCode, pressed bool, seq uint32)
	Key(code evdev.EvCode, pressed bool, seq uint32)
	Scroll(dx, dy float64, seq uint32)
}

// Chord is the key pair that arms the exclusive-grab toggle: both keys held
// at once arms it, releasing every key commits it.
type Chord struct {
	Modifier evdev.EvCode
	Key      evdev.EvCode
}

// DefaultChord returns the Meta+G toggle chord.
func DefaultChord() Chord {
	return Chord{Modifier: evdev.KEY_LEFTMETA, Key: evdev.KEY_G}
}

// DeviceInfo describes one attached device node.
type DeviceInfo struct {
	Path     string
	Name     string
	Keyboard bool
	Pointer  bool
	Grabbed  bool
}
