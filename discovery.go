package arbiter

import "context"

// HotplugAction says what happened to a device node on the watched seat.
type HotplugAction uint8

const (
	DeviceAdded HotplugAction = iota
	DeviceRemoved
)

// HotplugEvent reports one device node appearing on or disappearing from
// the seat.
type HotplugEvent struct {
	Action HotplugAction
	Path   string
}

// Discovery is the device-discovery collaborator consumed in seat mode. It
// resolves which device nodes belong to a logical seat and watches the seat
// for changes. The default implementation is backed by libudev; tests
// substitute a fake.
type Discovery interface {
	// Enumerate returns the event-node paths currently attached to seat.
	Enumerate(seat string) ([]string, error)
	// Watch streams hotplug events for seat until ctx is cancelled. The
	// returned channel is closed when the watch ends.
	Watch(ctx context.Context, seat string) (<-chan HotplugEvent, error)
}
