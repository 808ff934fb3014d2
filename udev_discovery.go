package arbiter

import (
	"context"
	"fmt"
	"strings"

	"github.com/jochenvg/go-udev"
)

// udevDiscovery resolves seat membership through libudev, the same seat
// assignment the rest of the login session uses. Input devices carry an
// ID_SEAT property; nodes without one belong to seat0.
type udevDiscovery struct {
	u udev.Udev
}

// NewUdevDiscovery returns the default seat-mode discovery collaborator.
func NewUdevDiscovery() Discovery {
	return &udevDiscovery{}
}

func (d *udevDiscovery) Enumerate(seat string) ([]string, error) {
	e := d.u.NewEnumerate()
	if err := e.AddMatchSubsystem("input"); err != nil {
		return nil, fmt.Errorf("udev match subsystem: %w", err)
	}

	devices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("udev enumerate: %w", err)
	}

	var paths []string
	for _, dev := range devices {
		node := dev.Devnode()
		if !isEventNode(node) || seatOf(dev) != seat {
			continue
		}
		paths = append(paths, node)
	}
	return paths, nil
}

func (d *udevDiscovery) Watch(ctx context.Context, seat string) (<-chan HotplugEvent, error) {
	m := d.u.NewMonitorFromNetlink("udev")
	if err := m.FilterAddMatchSubsystemDevtype("input", ""); err != nil {
		return nil, fmt.Errorf("udev monitor filter: %w", err)
	}

	devCh, err := m.DeviceChan(ctx)
	if err != nil {
		return nil, fmt.Errorf("udev monitor: %w", err)
	}

	out := make(chan HotplugEvent, 8)
	go func() {
		defer close(out)
		for dev := range devCh {
			node := dev.Devnode()
			if !isEventNode(node) {
				continue
			}
			switch dev.Action() {
			case "add":
				if seatOf(dev) != seat {
					continue
				}
				out <- HotplugEvent{Action: DeviceAdded, Path: node}
			case "remove":
				// Seat properties are gone by removal time; report by path.
				out <- HotplugEvent{Action: DeviceRemoved, Path: node}
			}
		}
	}()
	return out, nil
}

func seatOf(dev *udev.Device) string {
	if s := dev.PropertyValue("ID_SEAT"); s != "" {
		return s
	}
	return defaultSeat
}

func isEventNode(node string) bool {
	return strings.HasPrefix(node, "/dev/input/event")
}
