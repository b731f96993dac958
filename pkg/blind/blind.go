// Blind actuator core
//
// Shared types for the motion, calibration, position and power
// components: the actuator state record, logical inputs, operation
// reporting and the collaborator interfaces the core drives.
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"time"
)

// Mode selects which half of the state machine owns the actuator.
type Mode string

const (
	// ModeCalibration hands the motor to the buttons.
	ModeCalibration Mode = "calibration"
	// ModeRemote hands the motor to the smart-home collaborator.
	ModeRemote Mode = "remote"
)

// CalState tracks which boundary the next combined-hold commit captures.
type CalState string

const (
	CalibratingMin CalState = "calibrating_min"
	CalibratingMax CalState = "calibrating_max"
)

// Operation is the motion state reported to the remote collaborator.
type Operation string

const (
	OpOpening Operation = "opening"
	OpClosing Operation = "closing"
	OpStopped Operation = "stopped"
)

// Button identifies a logical input line.
type Button int

const (
	ButtonUp Button = iota
	ButtonDown
	ButtonMode
)

// String returns the button name used in logs and status maps.
func (b Button) String() string {
	switch b {
	case ButtonUp:
		return "up"
	case ButtonDown:
		return "down"
	case ButtonMode:
		return "mode"
	}
	return "unknown"
}

// State is the single actuator state record. It is owned by the control
// loop goroutine; components receive it by pointer and never retain
// copies. MinPos <= CurrentPos <= MaxPos holds once calibrated but may
// be violated mid-calibration before boundaries are committed.
type State struct {
	MinPos     uint16
	MaxPos     uint16
	CurrentPos uint16

	CalState CalState

	LastMove float64 // eventtime of the last successful step
	SavedPos uint16  // last position written to the store
	LastSave float64 // eventtime of the last position save
	Saved    bool    // CurrentPos matches the store
}

// NewState builds the in-memory actuator state from a loaded store
// record. The loaded position counts as saved.
func NewState(minPos, maxPos, current uint16) *State {
	return &State{
		MinPos:     minPos,
		MaxPos:     maxPos,
		CurrentPos: current,
		CalState:   CalibratingMin,
		SavedPos:   current,
		Saved:      true,
	}
}

// GetStatus reports the actuator state for diagnostics.
func (s *State) GetStatus() map[string]any {
	return map[string]any{
		"min_pos":     s.MinPos,
		"max_pos":     s.MaxPos,
		"current_pos": s.CurrentPos,
		"percent":     PercentFromRaw(s.CurrentPos, s.MinPos, s.MaxPos),
		"cal_state":   string(s.CalState),
		"saved":       s.Saved,
	}
}

// Clock abstracts monotonic time and blocking delays so tests can run
// motion without real sleeps.
type Clock interface {
	// Monotonic returns seconds since an arbitrary fixed point.
	Monotonic() float64
	// Sleep blocks the calling goroutine for the given duration.
	Sleep(d time.Duration)
}

type systemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock backed by the runtime monotonic clock.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Monotonic() float64 {
	return time.Since(c.start).Seconds()
}

func (c *systemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Attributes is the remote-control collaborator. The smart-home side
// writes requested lift values into it; the core polls those each
// iteration and pushes actual position and operation updates back as
// side effects of stepping.
type Attributes interface {
	// RequestedLift returns the most recent requested position.
	RequestedLift() (raw uint16, percent uint8)
	SetActualLift(raw uint16)
	SetActualLiftPercent(percent uint8)
	SetOperation(op Operation)
	// SetLimits publishes the calibrated travel range.
	SetLimits(minPos, maxPos uint16)
}

// Store persists position state across power cycles. Save failures are
// logged by the caller and abandoned for that cycle; the next save
// window retries naturally.
type Store interface {
	SaveMin(v uint16) error
	SaveMax(v uint16) error
	SavePosition(v uint16) error
	SaveAll(minPos, maxPos, current uint16) error
}

// PercentFromRaw converts a raw step position to its percentage of the
// calibrated travel range, rounding half up. Positions outside the
// range clamp to 0 or 100; a zero-width range reports 0.
func PercentFromRaw(raw, minPos, maxPos uint16) uint8 {
	if maxPos <= minPos || raw <= minPos {
		return 0
	}
	if raw >= maxPos {
		return 100
	}
	span := uint32(maxPos - minPos)
	off := uint32(raw - minPos)
	return uint8((off*200 + span) / (span * 2))
}

// TargetFromPercent remaps a requested percentage into the calibrated
// range, rounding half up. Values above 100 clamp to 100, so the
// computed target always lands inside [minPos, maxPos].
func TargetFromPercent(percent uint8, minPos, maxPos uint16) uint16 {
	if maxPos <= minPos {
		return minPos
	}
	if percent > 100 {
		percent = 100
	}
	span := uint32(maxPos - minPos)
	return minPos + uint16((uint32(percent)*span+50)/100)
}
