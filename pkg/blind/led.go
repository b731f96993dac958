// Status LEDs
//
// The two LEDs are a derived display: their levels are a pure function
// of eventtime, mode and calibration state, recomputed every loop
// iteration with no debouncing. A committed boundary overlays a short
// fast-flash success window on both LEDs.
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"math"

	"blindctl/pkg/gpio"
)

// LED blink timing in seconds (half period: on for the value, off for
// the value).
const (
	ledSlowHalf = 0.25
	ledFastHalf = 0.05

	// successDuration is how long both LEDs fast-flash after a commit.
	successDuration = 1.2
)

// StatusLEDs drives the two status LEDs. LED A marks MIN calibration
// and remote mode, LED B marks MAX calibration.
type StatusLEDs struct {
	a, b gpio.OutputLine

	successUntil float64
}

// NewStatusLEDs builds the LED display over two output lines.
func NewStatusLEDs(a, b gpio.OutputLine) *StatusLEDs {
	return &StatusLEDs{a: a, b: b}
}

// Success starts the fast-flash success overlay.
func (sl *StatusLEDs) Success(eventtime float64) {
	sl.successUntil = eventtime + successDuration
}

// Update recomputes both LED levels for the current iteration.
func (sl *StatusLEDs) Update(eventtime float64, mode Mode, cal CalState) {
	if eventtime < sl.successUntil {
		fast := blinkPhase(eventtime, ledFastHalf)
		sl.a.Set(fast)
		sl.b.Set(fast)
		return
	}

	if mode == ModeRemote {
		sl.a.Set(true)
		sl.b.Set(false)
		return
	}

	slow := blinkPhase(eventtime, ledSlowHalf)
	if cal == CalibratingMin {
		sl.a.Set(slow)
		sl.b.Set(false)
	} else {
		sl.a.Set(false)
		sl.b.Set(slow)
	}
}

// Off turns both LEDs off. Called on shutdown.
func (sl *StatusLEDs) Off() {
	sl.a.Set(false)
	sl.b.Set(false)
}

// blinkPhase derives a square wave from eventtime with the given half
// period.
func blinkPhase(eventtime, half float64) bool {
	return math.Mod(eventtime, half*2) < half
}
