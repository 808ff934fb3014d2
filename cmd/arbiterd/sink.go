package main

import (
	"log/slog"

	evdev "github.com/holoplot/go-evdev"

	arbiter "github.com/veilbound/go-input-arbiter"
)

// logSink prints the normalized stream. It stands in for a real consumer
// such as a compositor input pipeline.
type logSink struct {
	log *slog.Logger
}

func (s *logSink) NotifyPhysicalInput(kind arbiter.InputKind) {
	s.log.Debug("physical input", "kind", kind.String())
}

func (s *logSink) RelativeMotion(dx, dy float64, seq uint32) {
	s.log.Info("motion", "dx", dx, "dy", dy, "seq", seq)
}

func (s *logSink) AbsoluteMotion(x, y float64, seq uint32, warp bool) {
	s.log.Info("absolute motion", "x", x, "y", y, "warp", warp, "seq", seq)
}

func (s *logSink) Button(code evdev.EvCode, pressed bool, seq uint32) {
	s.log.Info("button", "code", evdev.CodeName(evdev.EV_KEY, code), "pressed", pressed, "seq", seq)
}

func (s *logSink) Key(code evdev.EvCode, pressed bool, seq uint32) {
	s.log.Info("key", "code", evdev.CodeName(evdev.EV_KEY, code), "pressed", pressed, "seq", seq)
}

func (s *logSink) Scroll(dx, dy float64, seq uint32) {
	s.log.Info("scroll", "dx", dx, "dy", dy, "seq", seq)
}
