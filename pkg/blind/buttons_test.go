// Button debouncing tests
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"testing"

	"blindctl/pkg/log"
)

func newTestReader(window float64) (*InputReader, *stubInput, *stubInput, *stubInput) {
	up := &stubInput{}
	down := &stubInput{}
	mode := &stubInput{}
	ir := NewInputReader(up, down, mode, window, log.GetLogger("buttons"))
	return ir, up, down, mode
}

func TestDebounceWaitsOutWindow(t *testing.T) {
	ir, up, _, _ := newTestReader(0.070)

	up.level = true
	ir.Update(1.000)
	if ir.IsPressed(ButtonUp) {
		t.Error("press reported before the debounce window elapsed")
	}

	ir.Update(1.050)
	if ir.IsPressed(ButtonUp) {
		t.Error("press reported 50ms into a 70ms window")
	}

	ir.Update(1.071)
	if !ir.IsPressed(ButtonUp) {
		t.Error("press not reported after the window elapsed")
	}
}

func TestDebounceIgnoresBounce(t *testing.T) {
	ir, up, _, _ := newTestReader(0.070)

	// A contact bounce: high for 30ms, back low.
	up.level = true
	ir.Update(1.000)
	up.level = false
	ir.Update(1.030)
	ir.Update(1.200)

	if ir.IsPressed(ButtonUp) {
		t.Error("bounce reported as a press")
	}

	// A bounce during the window restarts it from the last change.
	up.level = true
	ir.Update(2.000)
	up.level = false
	ir.Update(2.030)
	up.level = true
	ir.Update(2.050)
	ir.Update(2.110) // 60ms since the last change
	if ir.IsPressed(ButtonUp) {
		t.Error("press reported before the restarted window elapsed")
	}
	ir.Update(2.121)
	if !ir.IsPressed(ButtonUp) {
		t.Error("press not reported after the restarted window")
	}
}

func TestDebounceReentrant(t *testing.T) {
	ir, up, _, _ := newTestReader(0.070)

	up.level = true
	// Many polls inside one iteration must not advance the window.
	for i := 0; i < 100; i++ {
		ir.Update(1.000)
	}
	if ir.IsPressed(ButtonUp) {
		t.Error("repeated polls advanced the debounce window")
	}

	ir.Update(1.080)
	if !ir.IsPressed(ButtonUp) {
		t.Error("press not reported after the window elapsed")
	}
	// Further polls at the same level stay pressed, no re-transition.
	ir.Update(1.090)
	if !ir.IsPressed(ButtonUp) {
		t.Error("stable press lost on later poll")
	}
}

func TestLockoutMasksButtonsNotMode(t *testing.T) {
	ir, up, down, mode := newTestReader(0.070)

	up.level = true
	down.level = true
	mode.level = true
	ir.Update(1.000)
	ir.Update(1.080)

	ir.SetLockout(true)
	if ir.IsPressed(ButtonUp) || ir.IsPressed(ButtonDown) {
		t.Error("buttons reported pressed under lockout")
	}
	if !ir.Level(ButtonMode) {
		t.Error("mode switch masked by lockout")
	}

	// State tracking continues under lockout: the release observed
	// while locked out is already in effect when the lockout lifts.
	up.level = false
	ir.Update(2.000)
	ir.Update(2.080)
	ir.SetLockout(false)
	if ir.IsPressed(ButtonUp) {
		t.Error("release missed while locked out")
	}
	if !ir.IsPressed(ButtonDown) {
		t.Error("held button lost after lockout lifted")
	}
}

func TestInitialLevelsPrimeStableState(t *testing.T) {
	up := &stubInput{}
	down := &stubInput{}
	mode := &stubInput{level: true}
	ir := NewInputReader(up, down, mode, 0.070, log.GetLogger("buttons"))

	// A switch already flipped at power-on reports without a window.
	if !ir.Level(ButtonMode) {
		t.Error("initial switch level not honored")
	}
	if ir.IsPressed(ButtonUp) {
		t.Error("released button reported pressed at power-on")
	}
}
