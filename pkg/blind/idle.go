// Idle and power management
//
// Decouples motor power state and persistence cadence from motion
// events. A short idle interval releases the motor power stage; the
// long interval persists a dirty position (rate-limited to one write
// per save interval) and puts the driver into low-power sleep. Below
// the long interval the driver is kept awake even with the stage
// disabled, so a new motion command pays no wake latency per step.
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"blindctl/pkg/log"
)

// IdleManager watches LastMove and manages the power stage, the driver
// sleep state and position persistence. It only reads position state;
// boundaries stay owned by the calibration engine.
type IdleManager struct {
	state  *State
	driver *Driver
	store  Store

	motorIdleTimeout float64 // seconds idle before the stage is released
	sleepTimeout     float64 // seconds idle before sleep and save
	saveInterval     float64 // minimum seconds between position writes

	stageOff bool // the stage was already released this idle period

	logger *log.Logger
}

// NewIdleManager builds an IdleManager with the given intervals in
// seconds.
func NewIdleManager(state *State, driver *Driver, store Store, motorIdleTimeout, sleepTimeout, saveInterval float64) *IdleManager {
	return &IdleManager{
		state:            state,
		driver:           driver,
		store:            store,
		motorIdleTimeout: motorIdleTimeout,
		sleepTimeout:     sleepTimeout,
		saveInterval:     saveInterval,
		logger:           log.GetLogger("idle"),
	}
}

// Tick runs one idle check. Called every loop iteration.
func (im *IdleManager) Tick(eventtime float64) {
	s := im.state
	idle := eventtime - s.LastMove

	if idle > im.motorIdleTimeout {
		if !im.stageOff {
			im.stageOff = true
			im.driver.Disable()
		}
	} else {
		im.stageOff = false
	}

	if idle <= im.sleepTimeout {
		im.driver.Wake()
		return
	}

	if s.CurrentPos != s.SavedPos && eventtime-s.LastSave > im.saveInterval {
		// A failed save waits out the next interval, no retry loop.
		s.LastSave = eventtime
		if err := im.store.SavePosition(s.CurrentPos); err != nil {
			im.logger.WithError(err).Error("position save failed")
		} else {
			s.SavedPos = s.CurrentPos
			s.Saved = true
			im.logger.WithField("position", s.CurrentPos).Info("idle position saved")
		}
	}
	im.driver.Sleep()
}
