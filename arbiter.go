// Package arbiter owns exclusive access to a set of raw input devices
// (keyboards, pointers) and turns their heterogeneous event streams into one
// sequence-numbered, policy-filtered stream for a downstream consumer.
//
// The arbiter runs in one of two modes. With an explicit path list it owns a
// fixed set of device nodes and a Meta+G style chord toggles the kernel
// exclusive grab on all of them at once. With no paths it manages every
// device attached to a logical seat, following hotplug, and the grab toggle
// is inert because the seat is owned unconditionally.
//
// The caller polls Fd() and invokes Dispatch() on readiness; everything else
// happens synchronously inside that call.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
)

const defaultSeat = "seat0"

// Options configure a new Arbiter. Sink is the only required field.
type Options struct {
	// Paths selects explicit-device mode when non-empty: the device set is
	// fixed at these nodes and never changes afterwards. When empty the
	// arbiter manages the logical seat instead.
	Paths []string

	// Seat names the logical seat for seat mode. Empty means seat0.
	Seat string

	// DisablePointer and DisableKeyboard suppress all events of that class.
	// Keyboard events still feed chord detection while disabled.
	DisablePointer  bool
	DisableKeyboard bool

	// Chord arms the grab toggle in explicit mode. Zero value means
	// DefaultChord (Meta+G).
	Chord Chord

	// StartGrabbed opens explicit-mode devices with the exclusive grab
	// already applied.
	StartGrabbed bool

	// Sink receives the normalized event stream.
	Sink Sink

	// ExternalLock, when set, is acquired around every forwarding call to
	// Sink, one event per critical section.
	ExternalLock sync.Locker

	// Discovery overrides the seat-mode discovery collaborator. Nil means
	// libudev.
	Discovery Discovery

	Logger *slog.Logger
}

// Arbiter is the device context: it owns the attached devices, the epoll
// descriptor that multiplexes them, and all grab/filter/toggle state.
type Arbiter struct {
	mu sync.Mutex

	log  *slog.Logger
	sink Sink
	lock sync.Locker

	gate   *accessGate
	filter policyFilter
	toggle grabToggle
	scroll scrollAccumulator
	seq    uint32

	explicit bool
	epollFd  int
	devices  map[int]*device

	cancel context.CancelFunc
	closed bool
}

// New builds an arbiter and attaches its initial device set. In explicit
// mode initialization fails atomically when not a single path could be
// added; per-path failures are logged and skipped. In seat mode enumeration
// or watch failure is fatal.
func New(opts Options) (*Arbiter, error) {
	if opts.Sink == nil {
		return nil, errors.New(ErrNilSink)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	chord := opts.Chord
	if chord == (Chord{}) {
		chord = DefaultChord()
	}
	explicit := len(opts.Paths) > 0

	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}

	a := &Arbiter{
		log:      log,
		sink:     opts.Sink,
		lock:     opts.ExternalLock,
		gate:     newAccessGate(log, explicit, opts.StartGrabbed),
		filter:   policyFilter{pointerDisabled: opts.DisablePointer, keyboardDisabled: opts.DisableKeyboard, explicit: explicit},
		toggle:   grabToggle{chord: chord},
		explicit: explicit,
		epollFd:  epollFd,
		devices:  make(map[int]*device),
	}

	if explicit {
		added := 0
		for _, path := range opts.Paths {
			if err := a.attach(path); err != nil {
				a.log.Error("failed to add device", "path", path, "error", err)
				continue
			}
			added++
		}
		if added == 0 {
			a.teardown()
			return nil, errors.New(ErrNoDevicesAdded)
		}
		a.log.Info("explicit device context ready", "devices", added, "grabbed", a.gate.grabbed)
		return a, nil
	}

	seat := opts.Seat
	if seat == "" {
		seat = defaultSeat
	}
	disc := opts.Discovery
	if disc == nil {
		disc = NewUdevDiscovery()
	}

	paths, err := disc.Enumerate(seat)
	if err != nil {
		a.teardown()
		return nil, fmt.Errorf(ErrSeatUnavailable, seat, err)
	}
	for _, path := range paths {
		if err := a.attach(path); err != nil {
			a.log.Warn("failed to add seat device", "path", path, "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	hotplug, err := disc.Watch(ctx, seat)
	if err != nil {
		cancel()
		a.teardown()
		return nil, fmt.Errorf(ErrSeatUnavailable, seat, err)
	}
	a.cancel = cancel
	go a.watchSeat(hotplug)

	a.log.Info("seat device context ready", "seat", seat, "devices", len(a.devices))
	return a, nil
}

// Fd returns the single descriptor the caller multiplexes on, or -1 when
// the arbiter is closed. Readiness of any attached device is signaled here.
func (a *Arbiter) Fd() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return -1
	}
	return a.epollFd
}

// Grabbed reports whether the process currently holds (or is attempting to
// hold) the exclusive grab on every open device.
func (a *Arbiter) Grabbed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gate.grabbed
}

// SetPointerEnabled flips the pointer class gate at runtime.
func (a *Arbiter) SetPointerEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter.pointerDisabled = !enabled
}

// SetKeyboardEnabled flips the keyboard class gate at runtime. Chord
// detection keeps running while the class is disabled.
func (a *Arbiter) SetKeyboardEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter.keyboardDisabled = !enabled
}

// Devices returns a snapshot of the attached devices.
func (a *Arbiter) Devices() []DeviceInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]DeviceInfo, 0, len(a.devices))
	for _, dev := range a.devices {
		out = append(out, dev.info(a.gate.grabbed))
	}
	return out
}

// Close detaches every device, releasing any exclusive grabs, and closes
// the context descriptor. Safe to call more than once.
func (a *Arbiter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if a.cancel != nil {
		a.cancel()
	}
	for fd := range a.devices {
		a.detach(fd)
	}
	_ = unix.Close(a.epollFd)
	a.epollFd = -1
	return nil
}

// attach probes a device node, opens it through the gate and registers it
// with the context descriptor. Callers hold a.mu.
func (a *Arbiter) attach(path string) error {
	name, class, hiResWheel, hiResHWheel, err := probeDevice(path)
	if err != nil {
		return err
	}

	fd, err := a.gate.open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC)
	if err != nil {
		return err
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(a.epollFd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		a.gate.close(fd)
		return fmt.Errorf("epoll add %s: %w", path, err)
	}

	a.devices[fd] = &device{
		fd:          fd,
		path:        path,
		name:        name,
		class:       class,
		hiResWheel:  hiResWheel,
		hiResHWheel: hiResHWheel,
		buf:         make([]byte, inputEventSize*64),
	}
	a.log.Debug("device attached", "path", path, "name", name)
	return nil
}

// detach removes a device from the context descriptor and closes it through
// the gate. Callers hold a.mu.
func (a *Arbiter) detach(fd int) {
	dev, ok := a.devices[fd]
	if !ok {
		return
	}
	_ = unix.EpollCtl(a.epollFd, unix.EPOLL_CTL_DEL, fd, nil)
	a.gate.close(fd)
	delete(a.devices, fd)
	a.log.Debug("device detached", "path", dev.path)
}

// teardown aborts a partially built context. No live partial device set
// survives a failed init.
func (a *Arbiter) teardown() {
	for fd := range a.devices {
		a.detach(fd)
	}
	_ = unix.Close(a.epollFd)
	a.epollFd = -1
	a.closed = true
}

// watchSeat applies hotplug events from the discovery collaborator for as
// long as its channel stays open.
func (a *Arbiter) watchSeat(hotplug <-chan HotplugEvent) {
	for ev := range hotplug {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return
		}
		switch ev.Action {
		case DeviceAdded:
			if a.fdByPath(ev.Path) < 0 {
				if err := a.attach(ev.Path); err != nil {
					a.log.Warn("hotplug attach failed", "path", ev.Path, "error", err)
				}
			}
		case DeviceRemoved:
			if fd := a.fdByPath(ev.Path); fd >= 0 {
				a.detach(fd)
			}
		}
		a.mu.Unlock()
	}
}

// fdByPath finds the fd of an attached device, -1 when absent. Callers hold
// a.mu.
func (a *Arbiter) fdByPath(path string) int {
	for fd, dev := range a.devices {
		if dev.path == path {
			return fd
		}
	}
	return -1
}
