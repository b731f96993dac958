// Calibration engine
//
// In calibration mode the buttons jog the motor and a timed combined
// hold commits the travel boundaries. A single held button issues a
// batch of steps per iteration with limits ignored, so the operator can
// overtravel past stale boundaries. Holding both buttons arms the hold
// timer; keeping both held for the full hold time commits the current
// position as the boundary being calibrated. Releasing either button
// first resets the timer without committing.
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"time"

	"blindctl/pkg/log"
)

// Signaler gives the operator feedback after a committed boundary.
type Signaler interface {
	Success(eventtime float64)
}

// Calibrator runs the boundary calibration state machine. CalState
// starts at CalibratingMin on every boot and toggles per commit; only
// the resulting positions are persisted, never the state itself.
type Calibrator struct {
	state  *State
	driver *Driver
	store  Store
	attrs  Attributes
	signal Signaler

	holdTime  float64 // seconds of combined hold to commit
	stepBatch int     // steps per iteration while one button is held
	pulse     time.Duration

	holdStart float64 // eventtime the combined hold began; 0 = not counting

	logger *log.Logger
}

// NewCalibrator builds a Calibrator with the given hold threshold,
// jog batch size and calibration pulse width.
func NewCalibrator(state *State, driver *Driver, store Store, attrs Attributes, signal Signaler, holdTime float64, stepBatch int, pulse time.Duration) *Calibrator {
	return &Calibrator{
		state:     state,
		driver:    driver,
		store:     store,
		attrs:     attrs,
		signal:    signal,
		holdTime:  holdTime,
		stepBatch: stepBatch,
		pulse:     pulse,
		logger:    log.GetLogger("calibration"),
	}
}

// Tick advances the calibration state machine one loop iteration.
// Both-pressed is checked first so a combined hold never also jogs the
// motor.
func (c *Calibrator) Tick(eventtime float64, upPressed, downPressed bool) {
	switch {
	case upPressed && downPressed:
		if c.holdStart == 0 {
			c.holdStart = eventtime
			return
		}
		if eventtime-c.holdStart >= c.holdTime {
			c.commit(eventtime)
			// Cleared on commit; a continuing hold re-arms next tick.
			c.holdStart = 0
		}
	case upPressed:
		c.holdStart = 0
		c.jog(true)
	case downPressed:
		c.holdStart = 0
		c.jog(false)
	default:
		c.holdStart = 0
	}
}

// Reset abandons an in-progress hold without committing. Called when
// the mode switch leaves calibration mode.
func (c *Calibrator) Reset() {
	c.holdStart = 0
}

// jog issues one batch of steps with limits ignored.
func (c *Calibrator) jog(up bool) {
	for i := 0; i < c.stepBatch; i++ {
		c.driver.SingleStep(up, true, c.pulse)
	}
}

// commit captures CurrentPos as the boundary being calibrated and
// persists it. While calibrating MAX the fresh candidate is compared
// against the saved MIN and the pair is swapped if needed, so the
// operator may calibrate the boundaries in either physical order. The
// comparison is pairwise only: recalibrating MIN again without visiting
// MAX never re-validates against the stored MAX.
func (c *Calibrator) commit(eventtime float64) {
	s := c.state
	switch s.CalState {
	case CalibratingMin:
		s.MinPos = s.CurrentPos
		if err := c.store.SaveMin(s.MinPos); err != nil {
			c.logger.WithError(err).Error("min boundary save failed")
		}
		s.CalState = CalibratingMax
		c.logger.WithField("min", s.MinPos).Info("min boundary committed")

	case CalibratingMax:
		swapped := s.CurrentPos < s.MinPos
		if swapped {
			s.MaxPos = s.MinPos
			s.MinPos = s.CurrentPos
		} else {
			s.MaxPos = s.CurrentPos
		}
		if err := c.store.SaveAll(s.MinPos, s.MaxPos, s.CurrentPos); err != nil {
			c.logger.WithError(err).Error("boundary save failed")
		} else {
			s.SavedPos = s.CurrentPos
			s.Saved = true
			s.LastSave = eventtime
		}
		c.attrs.SetLimits(s.MinPos, s.MaxPos)
		s.CalState = CalibratingMin
		c.logger.WithFields(log.Fields{
			"min": s.MinPos, "max": s.MaxPos, "swapped": swapped,
		}).Info("max boundary committed")
	}
	c.signal.Success(eventtime)
}
