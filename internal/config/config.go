// Package config loads the daemon configuration: which devices to arbitrate,
// which event classes to pass through, the grab toggle chord and logging.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	arbiter "github.com/veilbound/go-input-arbiter"
)

// Config captures the user-adjustable knobs for the arbitration daemon.
type Config struct {
	Devices DevicesConfig `toml:"devices"`
	Policy  PolicyConfig  `toml:"policy"`
	Hotkey  HotkeyConfig  `toml:"hotkey"`
	Log     LogConfig     `toml:"log"`
}

// DevicesConfig selects the device set. A non-empty Paths list means
// explicit mode; otherwise the configured seat is managed.
type DevicesConfig struct {
	Paths        []string `toml:"paths"`
	Seat         string   `toml:"seat"`
	StartGrabbed bool     `toml:"start_grabbed"`
}

// PolicyConfig holds the per-class gates.
type PolicyConfig struct {
	DisablePointer  bool `toml:"disable_pointer"`
	DisableKeyboard bool `toml:"disable_keyboard"`
}

// HotkeyConfig names the two keys of the grab toggle chord.
type HotkeyConfig struct {
	Modifier string `toml:"modifier"`
	Key      string `toml:"key"`
}

// LogConfig defines log verbosity and formatting.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the baseline configuration used when no file is supplied.
func Default() Config {
	return Config{
		Devices: DevicesConfig{Seat: "seat0"},
		Hotkey:  HotkeyConfig{Modifier: "KEY_LEFTMETA", Key: "KEY_G"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a TOML file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Chord resolves the configured hotkey names into a toggle chord.
func (c Config) Chord() (arbiter.Chord, error) {
	mod, err := KeyCodeFromName(c.Hotkey.Modifier)
	if err != nil {
		return arbiter.Chord{}, fmt.Errorf("hotkey modifier: %w", err)
	}
	key, err := KeyCodeFromName(c.Hotkey.Key)
	if err != nil {
		return arbiter.Chord{}, fmt.Errorf("hotkey key: %w", err)
	}
	return arbiter.Chord{Modifier: mod, Key: key}, nil
}
