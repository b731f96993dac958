// Control loop
//
// A single cooperative loop polls mode, buttons and the requested
// remote position each iteration and dispatches to the calibration or
// position handler, then runs the idle manager and refreshes the LEDs.
// All actuator state is touched only from this goroutine, so the core
// needs no locking. A remote move blocks the loop until the target is
// reached; button and mode changes are not observed mid-move.
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"context"
	"time"

	"blindctl/pkg/gpio"
	"blindctl/pkg/log"
)

// LoopConfig wires the collaborators and pins into a control loop.
type LoopConfig struct {
	Params Params
	State  *State
	Clock  Clock
	Store  Store
	Attrs  Attributes

	// Inputs: two momentary buttons and the mode switch (logical true
	// selects remote mode).
	Up, Down, ModeSwitch gpio.InputLine

	// Motor lines.
	Step, Dir, Enable, SleepPin gpio.OutputLine

	// Status LEDs.
	LedA, LedB gpio.OutputLine
}

// Loop owns the actuator state machine and its single goroutine.
type Loop struct {
	params Params
	state  *State
	clock  Clock
	store  Store
	attrs  Attributes

	inputs *InputReader
	driver *Driver
	cal    *Calibrator
	pos    *PositionController
	idle   *IdleManager
	leds   *StatusLEDs

	mode Mode

	logger *log.Logger
}

// NewLoop assembles the core components. The initial mode follows the
// current switch level, and the calibrated limits plus the loaded
// position are pushed to the attribute collaborator so the remote side
// starts consistent.
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		params: cfg.Params,
		state:  cfg.State,
		clock:  cfg.Clock,
		store:  cfg.Store,
		attrs:  cfg.Attrs,
		logger: log.GetLogger("blind"),
	}

	l.inputs = NewInputReader(cfg.Up, cfg.Down, cfg.ModeSwitch, cfg.Params.DebounceWindow, log.GetLogger("buttons"))
	l.driver = NewDriver(cfg.State, cfg.Clock, cfg.Attrs, cfg.Step, cfg.Dir, cfg.Enable, cfg.SleepPin)
	l.leds = NewStatusLEDs(cfg.LedA, cfg.LedB)
	l.cal = NewCalibrator(cfg.State, l.driver, cfg.Store, cfg.Attrs, l.leds,
		cfg.Params.HoldTime, cfg.Params.StepBatch, cfg.Params.CalibrationPulse)
	l.pos = NewPositionController(cfg.State, l.driver, cfg.Attrs, cfg.Params.RemotePulse)
	l.idle = NewIdleManager(cfg.State, l.driver, cfg.Store,
		cfg.Params.MotorIdleTimeout, cfg.Params.SleepTimeout, cfg.Params.SaveInterval)

	l.mode = ModeCalibration
	if l.inputs.Level(ButtonMode) {
		l.mode = ModeRemote
	}
	l.inputs.SetLockout(l.mode == ModeRemote)

	l.attrs.SetLimits(l.state.MinPos, l.state.MaxPos)
	l.attrs.SetActualLift(l.state.CurrentPos)
	l.attrs.SetActualLiftPercent(PercentFromRaw(l.state.CurrentPos, l.state.MinPos, l.state.MaxPos))
	l.attrs.SetOperation(OpStopped)

	return l
}

// Mode reports the loop's current mode.
func (l *Loop) Mode() Mode {
	return l.mode
}

// GetStatus reports the loop state for diagnostics.
func (l *Loop) GetStatus() map[string]any {
	status := l.state.GetStatus()
	status["mode"] = string(l.mode)
	status["motor_enabled"] = l.driver.Enabled()
	status["driver_awake"] = l.driver.Awake()
	return status
}

// Run executes the control loop until ctx is canceled, then performs
// the shutdown sequence: a best-effort save of a dirty position,
// stage off, driver to sleep, LEDs dark.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.WithFields(log.Fields{
		"mode": string(l.mode),
		"tick": l.params.TickInterval.String(),
	}).Info("control loop started")

	ticker := time.NewTicker(l.params.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case <-ticker.C:
			l.iterate(l.clock.Monotonic())
		}
	}
}

// iterate runs one loop iteration at the given eventtime.
func (l *Loop) iterate(eventtime float64) {
	l.inputs.Update(eventtime)

	mode := ModeCalibration
	if l.inputs.Level(ButtonMode) {
		mode = ModeRemote
	}
	if mode != l.mode {
		l.transition(mode)
	}

	switch l.mode {
	case ModeCalibration:
		l.cal.Tick(eventtime, l.inputs.IsPressed(ButtonUp), l.inputs.IsPressed(ButtonDown))
	case ModeRemote:
		l.pos.Tick(eventtime)
	}

	l.idle.Tick(eventtime)
	l.leds.Update(eventtime, l.mode, l.state.CalState)
}

// transition switches modes. Leaving calibration abandons a hold in
// progress; entering remote re-primes the idempotence key so a request
// issued while calibrating does not replay, and locks out the buttons.
func (l *Loop) transition(mode Mode) {
	if l.mode == ModeCalibration {
		l.cal.Reset()
	}
	if mode == ModeRemote {
		l.pos.Prime()
	}
	l.inputs.SetLockout(mode == ModeRemote)
	l.logger.WithFields(log.Fields{
		"from": string(l.mode), "to": string(mode),
	}).Info("mode changed")
	l.mode = mode
}

// shutdown persists a dirty position and powers the motor down. The
// steady-state save cadence still governs normal operation; this only
// covers an orderly daemon exit.
func (l *Loop) shutdown() {
	s := l.state
	if s.CurrentPos != s.SavedPos {
		if err := l.store.SavePosition(s.CurrentPos); err != nil {
			l.logger.WithError(err).Error("shutdown position save failed")
		} else {
			s.SavedPos = s.CurrentPos
			s.Saved = true
			l.logger.WithField("position", s.CurrentPos).Info("position saved on shutdown")
		}
	}
	l.driver.Disable()
	l.driver.Sleep()
	l.leds.Off()
	l.logger.Info("control loop stopped")
}
