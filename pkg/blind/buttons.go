// Debounced button input
//
// Filters the raw up/down/mode lines into stable logical states. A raw
// change starts (or restarts) a per-button debounce window; the
// reported state follows only once the level has held for the full
// window. In remote mode the up/down buttons are masked off - they are
// calibration controls - while the mode switch always reports.
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"blindctl/pkg/gpio"
	"blindctl/pkg/log"
)

// debounceRecord tracks the debounce progress of one logical button.
type debounceRecord struct {
	lastRaw bool    // raw level at the previous poll
	stable  bool    // debounced logical state
	pending bool    // a raw change is waiting out the window
	since   float64 // eventtime the pending level was first seen
}

// InputReader polls the button lines and debounces them. It is safe to
// call Update many times per loop iteration; transitions are counted
// once per completed debounce window.
type InputReader struct {
	lines   map[Button]gpio.InputLine
	recs    map[Button]*debounceRecord
	window  float64
	lockout bool
	logger  *log.Logger
}

// NewInputReader builds a reader over the three input lines. The
// current raw levels prime the stable states, so a mode switch already
// flipped at power-on is honored without waiting out a window.
func NewInputReader(up, down, mode gpio.InputLine, window float64, logger *log.Logger) *InputReader {
	ir := &InputReader{
		lines: map[Button]gpio.InputLine{
			ButtonUp:   up,
			ButtonDown: down,
			ButtonMode: mode,
		},
		recs:   make(map[Button]*debounceRecord),
		window: window,
		logger: logger,
	}
	for b, line := range ir.lines {
		raw := line.Read()
		ir.recs[b] = &debounceRecord{lastRaw: raw, stable: raw}
	}
	return ir
}

// Update polls every line once and advances the debounce state.
func (ir *InputReader) Update(eventtime float64) {
	for b, line := range ir.lines {
		ir.debounce(b, line.Read(), eventtime)
	}
}

func (ir *InputReader) debounce(b Button, raw bool, eventtime float64) {
	rec := ir.recs[b]
	if raw != rec.lastRaw {
		rec.lastRaw = raw
		if raw == rec.stable {
			// Bounced back before the window elapsed.
			rec.pending = false
		} else {
			rec.pending = true
			rec.since = eventtime
		}
		return
	}
	if rec.pending && eventtime-rec.since >= ir.window {
		rec.stable = raw
		rec.pending = false
		ir.logger.WithFields(log.Fields{
			"button":  b.String(),
			"pressed": raw,
		}).Debug("button state changed")
	}
}

// SetLockout masks the up/down buttons while the actuator is under
// remote control. The mode switch is never masked.
func (ir *InputReader) SetLockout(enabled bool) {
	ir.lockout = enabled
}

// IsPressed reports the debounced state of a button. Up and down read
// false while the lockout is active.
func (ir *InputReader) IsPressed(b Button) bool {
	if ir.lockout && b != ButtonMode {
		return false
	}
	return ir.recs[b].stable
}

// Level reports the debounced state of a line regardless of lockout.
// Mode selection uses this so remote mode can still be exited.
func (ir *InputReader) Level(b Button) bool {
	return ir.recs[b].stable
}
