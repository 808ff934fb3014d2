package config

import (
	"fmt"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// keyNameMap maps evdev key name strings to their numeric codes. Only keys
// that make sense in a toggle chord are listed.
var keyNameMap = map[string]evdev.EvCode{
	"KEY_ESC":        evdev.KEY_ESC,
	"KEY_TAB":        evdev.KEY_TAB,
	"KEY_SPACE":      evdev.KEY_SPACE,
	"KEY_LEFTCTRL":   evdev.KEY_LEFTCTRL,
	"KEY_RIGHTCTRL":  evdev.KEY_RIGHTCTRL,
	"KEY_LEFTSHIFT":  evdev.KEY_LEFTSHIFT,
	"KEY_RIGHTSHIFT": evdev.KEY_RIGHTSHIFT,
	"KEY_LEFTALT":    evdev.KEY_LEFTALT,
	"KEY_RIGHTALT":   evdev.KEY_RIGHTALT,
	"KEY_LEFTMETA":   evdev.KEY_LEFTMETA,
	"KEY_RIGHTMETA":  evdev.KEY_RIGHTMETA,
	"KEY_A":          evdev.KEY_A,
	"KEY_B":          evdev.KEY_B,
	"KEY_C":          evdev.KEY_C,
	"KEY_D":          evdev.KEY_D,
	"KEY_E":          evdev.KEY_E,
	"KEY_F":          evdev.KEY_F,
	"KEY_G":          evdev.KEY_G,
	"KEY_H":          evdev.KEY_H,
	"KEY_I":          evdev.KEY_I,
	"KEY_J":          evdev.KEY_J,
	"KEY_K":          evdev.KEY_K,
	"KEY_L":          evdev.KEY_L,
	"KEY_M":          evdev.KEY_M,
	"KEY_N":          evdev.KEY_N,
	"KEY_O":          evdev.KEY_O,
	"KEY_P":          evdev.KEY_P,
	"KEY_Q":          evdev.KEY_Q,
	"KEY_R":          evdev.KEY_R,
	"KEY_S":          evdev.KEY_S,
	"KEY_T":          evdev.KEY_T,
	"KEY_U":          evdev.KEY_U,
	"KEY_V":          evdev.KEY_V,
	"KEY_W":          evdev.KEY_W,
	"KEY_X":          evdev.KEY_X,
	"KEY_Y":          evdev.KEY_Y,
	"KEY_Z":          evdev.KEY_Z,
	"KEY_F1":         evdev.KEY_F1,
	"KEY_F2":         evdev.KEY_F2,
	"KEY_F3":         evdev.KEY_F3,
	"KEY_F4":         evdev.KEY_F4,
	"KEY_F5":         evdev.KEY_F5,
	"KEY_F6":         evdev.KEY_F6,
	"KEY_F7":         evdev.KEY_F7,
	"KEY_F8":         evdev.KEY_F8,
	"KEY_F9":         evdev.KEY_F9,
	"KEY_F10":        evdev.KEY_F10,
	"KEY_F11":        evdev.KEY_F11,
	"KEY_F12":        evdev.KEY_F12,
}

// KeyCodeFromName maps an evdev key name string to its numeric key code.
func KeyCodeFromName(name string) (evdev.EvCode, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(upper, "KEY_") {
		upper = "KEY_" + upper
	}
	code, ok := keyNameMap[upper]
	if !ok {
		return 0, fmt.Errorf("unknown key name: %s", name)
	}
	return code, nil
}
