package arbiter

import (
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

// deviceClass is the capability bitmask assigned when a device is attached.
type deviceClass uint8

const (
	classKeyboard deviceClass = 1 << iota
	classPointer
)

// rawEvent is one kernel input_event with the timestamp dropped; the
// dispatcher only cares about type, code and value.
type rawEvent struct {
	Type  evdev.EvType
	Code  evdev.EvCode
	Value int32
}

// inputEventSize is the wire size of struct input_event: a timeval followed
// by type (u16), code (u16) and value (s32).
var inputEventSize = int(unsafe.Sizeof(struct {
	Sec, Usec int64
	Type      uint16
	Code      uint16
	Value     int32
}{}))

// frameState collects the relative and absolute motion of the current
// SYN_REPORT frame so one hardware report becomes one normalized event.
type frameState struct {
	dx, dy     float64
	absX, absY float64
	hasRel     bool
	hasAbs     bool
}

type device struct {
	fd   int
	path string
	name string

	class       deviceClass
	hiResWheel  bool
	hiResHWheel bool

	frame frameState
	buf   []byte
}

// probeDevice identifies a device node before the gate opens it for
// streaming: open through the event library, query name and capabilities,
// close again. Classification is capability based; a node that advertises
// letter keys is a keyboard, one with relative/absolute axes or mouse
// buttons is a pointer. A single node can be both.
func probeDevice(path string) (name string, class deviceClass, hiResWheel, hiResHWheel bool, err error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return "", 0, false, false, fmt.Errorf("probe %s: %w", path, err)
	}
	defer func() { _ = dev.Close() }()

	name, _ = dev.Name()

	for _, t := range dev.CapableTypes() {
		switch t {
		case evdev.EV_REL, evdev.EV_ABS:
			class |= classPointer
		}
	}

	var hasA, hasZ bool
	for _, code := range dev.CapableEvents(evdev.EV_KEY) {
		switch {
		case code == evdev.KEY_A:
			hasA = true
		case code == evdev.KEY_Z:
			hasZ = true
		case code >= evdev.BTN_LEFT && code <= evdev.BTN_TASK:
			class |= classPointer
		}
	}
	if hasA && hasZ {
		class |= classKeyboard
	}

	for _, code := range dev.CapableEvents(evdev.EV_REL) {
		switch code {
		case evdev.REL_WHEEL_HI_RES:
			hiResWheel = true
		case evdev.REL_HWHEEL_HI_RES:
			hiResHWheel = true
		}
	}

	return name, class, hiResWheel, hiResHWheel, nil
}

// readBatch drains every event currently pending on the device fd. The fd
// is non-blocking; reading stops at EAGAIN. Events read before an error are
// still returned so nothing is lost when a device vanishes mid-batch.
func (d *device) readBatch() ([]rawEvent, error) {
	var out []rawEvent
	for {
		n, err := unix.Read(d.fd, d.buf)
		if err != nil {
			if err == unix.EAGAIN {
				return out, nil
			}
			if err == unix.EINTR {
				continue
			}
			return out, fmt.Errorf("read %s: %w", d.path, err)
		}
		if n == 0 {
			return out, io.EOF
		}

		for off := 0; off+inputEventSize <= n; off += inputEventSize {
			out = append(out, rawEvent{
				Type:  evdev.EvType(binary.LittleEndian.Uint16(d.buf[off+16:])),
				Code:  evdev.EvCode(binary.LittleEndian.Uint16(d.buf[off+18:])),
				Value: int32(binary.LittleEndian.Uint32(d.buf[off+20:])),
			})
		}
	}
}

func (d *device) info(grabbed bool) DeviceInfo {
	return DeviceInfo{
		Path:     d.path,
		Name:     d.name,
		Keyboard: d.class&classKeyboard != 0,
		Pointer:  d.class&classPointer != 0,
		Grabbed:  grabbed,
	}
}
