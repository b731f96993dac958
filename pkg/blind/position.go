// Remote position controller
//
// In remote-control mode the smart-home collaborator owns the motor:
// each loop iteration polls the requested lift position and, when it
// changes, drives the motor to the remapped target in one blocking
// stepping loop. Motion is deliberately not preemptible - buttons and
// the mode switch are not observed mid-move, and there is no
// cancellation or timeout. Motion duration is bounded by the remaining
// steps times the pulse width.
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"time"

	"blindctl/pkg/log"
)

// PositionController maps requested percentages into the calibrated
// range and steps the motor to the target.
type PositionController struct {
	state  *State
	driver *Driver
	attrs  Attributes
	pulse  time.Duration

	// lastHandled is the idempotence key: a request whose raw value
	// matches it has already been driven and is ignored.
	lastHandled uint16

	logger *log.Logger
}

// NewPositionController builds a controller stepping at the remote
// pulse width. The idempotence key primes to the loaded position so a
// request left over from before the restart does not replay.
func NewPositionController(state *State, driver *Driver, attrs Attributes, pulse time.Duration) *PositionController {
	return &PositionController{
		state:       state,
		driver:      driver,
		attrs:       attrs,
		pulse:       pulse,
		lastHandled: state.CurrentPos,
		logger:      log.GetLogger("position"),
	}
}

// Prime absorbs the pending requested position without driving to it.
// Called on entering remote mode so a request issued while calibrating
// is not replayed.
func (pc *PositionController) Prime() {
	pc.lastHandled, _ = pc.attrs.RequestedLift()
}

// Tick polls the requested lift position and drives to it when it has
// changed. The stepping loop blocks until the target is reached.
func (pc *PositionController) Tick(eventtime float64) {
	reqRaw, reqPercent := pc.attrs.RequestedLift()
	if reqRaw == pc.lastHandled {
		return
	}
	pc.lastHandled = reqRaw

	s := pc.state
	// Remapping into [MinPos, MaxPos] clamps an out-of-range percent;
	// no error path.
	target := TargetFromPercent(reqPercent, s.MinPos, s.MaxPos)

	up := target > s.CurrentPos
	op := OpClosing
	if up {
		op = OpOpening
	}
	pc.attrs.SetOperation(op)
	pc.logger.WithFields(log.Fields{
		"percent": reqPercent, "target": target, "from": s.CurrentPos, "operation": string(op),
	}).Info("moving to requested position")

	// The target is already bounded, so per-step limit checks are
	// skipped. Equal target runs zero iterations.
	for s.CurrentPos != target {
		pc.driver.SingleStep(up, true, pc.pulse)
		pc.attrs.SetActualLiftPercent(PercentFromRaw(s.CurrentPos, s.MinPos, s.MaxPos))
	}

	pc.attrs.SetOperation(OpStopped)
	pc.attrs.SetActualLift(s.CurrentPos)
	pc.attrs.SetActualLiftPercent(PercentFromRaw(s.CurrentPos, s.MinPos, s.MaxPos))
}
