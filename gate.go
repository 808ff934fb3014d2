package arbiter

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// eviocgrabCode is the EVIOCGRAB ioctl request, _IOW('E', 0x90, int);
// x/sys/unix does not export it.
const eviocgrabCode = 0x40044590

// grabFunc applies (grab) or releases (!grab) the kernel exclusive-grab flag
// on a device fd. Swapped out in tests.
type grabFunc func(fd int, grab bool) error

func eviocgrab(fd int, grab bool) error {
	v := 0
	if grab {
		v = 1
	}
	return unix.IoctlSetInt(fd, eviocgrabCode, v)
}

// accessGate is the open/close capability handed to the device context. It
// owns the registry of fds opened through it, and the process-wide grabbed
// flag. The registry is the single source of truth for which fds need to be
// re-ioctl'd when the grabbed flag flips without an open/close cycle.
//
// Grab failures are soft everywhere: the device keeps working in shared,
// non-exclusive mode.
type accessGate struct {
	log      *slog.Logger
	explicit bool
	grabbed  bool
	registry map[int]string // fd -> device path
	grab     grabFunc
}

func newAccessGate(log *slog.Logger, explicit, startGrabbed bool) *accessGate {
	return &accessGate{
		log:      log,
		explicit: explicit,
		grabbed:  explicit && startGrabbed,
		registry: make(map[int]string),
		grab:     eviocgrab,
	}
}

// open opens a device node and registers the fd. In explicit-device mode
// with the grabbed flag up, the exclusive grab is attempted immediately.
func (g *accessGate) open(path string, flags int) (int, error) {
	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}

	if g.explicit && g.grabbed {
		if err := g.grab(fd, true); err != nil {
			// Keep the fd, it is still usable non-exclusively.
			g.log.Warn("failed to grab exclusive lock on device", "path", path, "error", err)
		}
	}

	g.registry[fd] = path
	return fd, nil
}

// close releases the grab if held, deregisters the fd and closes it. A
// second close of the same fd is a no-op at the registry level.
func (g *accessGate) close(fd int) {
	path, ok := g.registry[fd]
	if !ok {
		return
	}

	if g.grabbed {
		if err := g.grab(fd, false); err != nil {
			g.log.Debug("failed to release exclusive grab", "path", path, "error", err)
		}
	}

	delete(g.registry, fd)
	_ = unix.Close(fd)
}

// setGrabbed flips the process-wide grab state and reconciles every
// registered fd in the same synchronous step, best effort per fd.
func (g *accessGate) setGrabbed(grabbed bool) {
	g.grabbed = grabbed
	for fd, path := range g.registry {
		if err := g.grab(fd, grabbed); err != nil {
			g.log.Warn("failed to reconcile exclusive grab", "path", path, "grabbed", grabbed, "error", err)
		}
	}
}
