// Actuator tuning parameters
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"time"

	"blindctl/pkg/config"
)

// Params holds the actuator timings loaded from the [actuator] config
// section. Zero values are invalid; use DefaultParams or LoadParams.
type Params struct {
	DebounceWindow   float64       // seconds a raw level must hold to count
	HoldTime         float64       // seconds of combined hold to commit
	StepBatch        int           // steps per iteration while jogging
	CalibrationPulse time.Duration // slower pulse, more torque margin
	RemotePulse      time.Duration // faster pulse for remote motion
	MotorIdleTimeout float64       // seconds idle before the stage is released
	SleepTimeout     float64       // seconds idle before sleep and save
	SaveInterval     float64       // minimum seconds between position writes
	TickInterval     time.Duration // control loop period
}

// DefaultParams returns the device defaults.
func DefaultParams() Params {
	return Params{
		DebounceWindow:   0.070,
		HoldTime:         3.0,
		StepBatch:        5,
		CalibrationPulse: 1600 * time.Microsecond,
		RemotePulse:      800 * time.Microsecond,
		MotorIdleTimeout: 1.0,
		SleepTimeout:     300.0,
		SaveInterval:     300.0,
		TickInterval:     2 * time.Millisecond,
	}
}

// LoadParams reads the [actuator] section, falling back to the device
// defaults per option. A nil section returns the defaults unchanged.
func LoadParams(sec *config.Section) (Params, error) {
	p := DefaultParams()
	if sec == nil {
		return p, nil
	}

	zero := 0.0
	positive := config.FloatBounds{Above: &zero}
	var err error

	if p.DebounceWindow, err = sec.GetFloatWithBounds("debounce_window", positive, p.DebounceWindow); err != nil {
		return p, err
	}
	if p.HoldTime, err = sec.GetFloatWithBounds("hold_time", positive, p.HoldTime); err != nil {
		return p, err
	}
	minBatch := 1
	if p.StepBatch, err = sec.GetIntWithBounds("step_batch", &minBatch, nil, p.StepBatch); err != nil {
		return p, err
	}
	if p.CalibrationPulse, err = getPulse(sec, "calibration_pulse", p.CalibrationPulse); err != nil {
		return p, err
	}
	if p.RemotePulse, err = getPulse(sec, "remote_pulse", p.RemotePulse); err != nil {
		return p, err
	}
	if p.MotorIdleTimeout, err = sec.GetFloatWithBounds("motor_idle_timeout", positive, p.MotorIdleTimeout); err != nil {
		return p, err
	}
	if p.SleepTimeout, err = sec.GetFloatWithBounds("sleep_timeout", positive, p.SleepTimeout); err != nil {
		return p, err
	}
	if p.SaveInterval, err = sec.GetFloatWithBounds("save_interval", positive, p.SaveInterval); err != nil {
		return p, err
	}
	if p.TickInterval, err = getPulse(sec, "tick_interval", p.TickInterval); err != nil {
		return p, err
	}
	return p, nil
}

// getPulse reads a duration option given in seconds.
func getPulse(sec *config.Section, option string, fallback time.Duration) (time.Duration, error) {
	zero := 0.0
	v, err := sec.GetFloatWithBounds(option, config.FloatBounds{Above: &zero}, fallback.Seconds())
	if err != nil {
		return 0, err
	}
	return time.Duration(v * float64(time.Second)), nil
}
