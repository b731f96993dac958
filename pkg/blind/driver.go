// Stepper driver
//
// Issues single step pulses with direction and timing over the step,
// direction, enable and sleep lines. The enable and sleep lines are
// idempotent, guarded by booleans, so the idle manager can call them
// every iteration. Pin polarities (enable active-low, sleep active-high
// = awake) are handled by pin inversion in config, not here.
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"time"

	"blindctl/pkg/gpio"
	"blindctl/pkg/log"
)

// Driver drives the stepper power stage and step generation. It owns
// the only writes to State.CurrentPos.
type Driver struct {
	state *State
	clock Clock
	attrs Attributes

	step    gpio.OutputLine
	dir     gpio.OutputLine
	enable  gpio.OutputLine
	sleep   gpio.OutputLine
	enabled bool
	awake   bool

	logger *log.Logger
}

// NewDriver builds a Driver over the four motor lines. The power stage
// starts disabled and asleep; the first step wakes and enables it.
func NewDriver(state *State, clock Clock, attrs Attributes, step, dir, enable, sleep gpio.OutputLine) *Driver {
	return &Driver{
		state:  state,
		clock:  clock,
		attrs:  attrs,
		step:   step,
		dir:    dir,
		enable: enable,
		sleep:  sleep,
		logger: log.GetLogger("driver"),
	}
}

// SingleStep emits one step pulse of the given width and moves
// CurrentPos by one unit. With ignoreLimits false a step past MaxPos
// (up) or MinPos (down) is a silent no-op returning false - a normal
// boundary condition, not an error. Every successful step wakes and
// enables the power stage, stamps LastMove, marks the position dirty
// and pushes the new raw position to the attribute collaborator.
func (d *Driver) SingleStep(up bool, ignoreLimits bool, pulse time.Duration) bool {
	s := d.state
	if !ignoreLimits {
		if up && s.CurrentPos >= s.MaxPos {
			return false
		}
		if !up && s.CurrentPos <= s.MinPos {
			return false
		}
	}

	d.Wake()
	d.Enable()
	d.dir.Set(up)

	d.step.Set(true)
	d.clock.Sleep(pulse)
	d.step.Set(false)
	d.clock.Sleep(pulse)

	if up {
		s.CurrentPos++
	} else {
		s.CurrentPos--
	}
	s.LastMove = d.clock.Monotonic()
	s.Saved = false

	d.attrs.SetActualLift(s.CurrentPos)
	return true
}

// Enable energizes the motor power stage.
func (d *Driver) Enable() {
	if d.enabled {
		return
	}
	d.enabled = true
	d.enable.Set(true)
}

// Disable releases the motor power stage. The driver may stay awake.
func (d *Driver) Disable() {
	if !d.enabled {
		return
	}
	d.enabled = false
	d.enable.Set(false)
	d.logger.Debug("motor stage disabled")
}

// Wake brings the driver out of low-power sleep.
func (d *Driver) Wake() {
	if d.awake {
		return
	}
	d.awake = true
	d.sleep.Set(true)
}

// Sleep puts the driver into low-power sleep.
func (d *Driver) Sleep() {
	if !d.awake {
		return
	}
	d.awake = false
	d.sleep.Set(false)
	d.logger.Debug("driver sleeping")
}

// Enabled reports whether the power stage is energized.
func (d *Driver) Enabled() bool {
	return d.enabled
}

// Awake reports whether the driver is out of low-power sleep.
func (d *Driver) Awake() bool {
	return d.awake
}
