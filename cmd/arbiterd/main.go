// arbiterd arbitrates a set of input devices: it holds the kernel exclusive
// grab on them while toggled on, normalizes their events and logs the
// resulting stream. Useful standalone for debugging device selection and
// grab behavior before wiring a real consumer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	arbiter "github.com/veilbound/go-input-arbiter"
	"github.com/veilbound/go-input-arbiter/internal/config"
	"github.com/veilbound/go-input-arbiter/internal/logging"
)

type pathList []string

func (p *pathList) String() string     { return strings.Join(*p, ",") }
func (p *pathList) Set(v string) error { *p = append(*p, v); return nil }

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "arbiterd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to the TOML configuration file")
		seat       = flag.String("seat", "", "logical seat to manage (overrides config)")
		grab       = flag.Bool("grab", false, "start with the exclusive grab applied")
		devices    pathList
	)
	flag.Var(&devices, "device", "device node to arbitrate (repeatable; empty means seat mode)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if len(devices) > 0 {
		cfg.Devices.Paths = devices
	}
	if *seat != "" {
		cfg.Devices.Seat = *seat
	}
	if *grab {
		cfg.Devices.StartGrabbed = true
	}

	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	chord, err := cfg.Chord()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var stateMu sync.Mutex
	a, err := arbiter.New(arbiter.Options{
		Paths:           cfg.Devices.Paths,
		Seat:            cfg.Devices.Seat,
		DisablePointer:  cfg.Policy.DisablePointer,
		DisableKeyboard: cfg.Policy.DisableKeyboard,
		Chord:           chord,
		StartGrabbed:    cfg.Devices.StartGrabbed,
		Sink:            &logSink{log: log},
		ExternalLock:    &stateMu,
		Logger:          log,
	})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	for _, dev := range a.Devices() {
		log.Info("arbitrating device", "path", dev.Path, "name", dev.Name,
			"keyboard", dev.Keyboard, "pointer", dev.Pointer)
	}

	if *configPath != "" {
		err := config.Watch(ctx, *configPath, log, func(next config.Config) {
			a.SetPointerEnabled(!next.Policy.DisablePointer)
			a.SetKeyboardEnabled(!next.Policy.DisableKeyboard)
		})
		if err != nil {
			log.Warn("config watch unavailable", "error", err)
		}
	}

	fds := []unix.PollFd{{Fd: int32(a.Fd()), Events: unix.POLLIN}}
	for ctx.Err() == nil {
		n, err := unix.Poll(fds, 500)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			continue
		}
		if err := a.Dispatch(); err != nil {
			return err
		}
	}

	log.Info("shutting down, releasing devices")
	return nil
}
