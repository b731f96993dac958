// Idle and power management tests
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"testing"
	"time"
)

type idleFixture struct {
	*driverFixture
	store *fakeStore
	idle  *IdleManager
}

func newIdleFixture(minPos, maxPos, current uint16) *idleFixture {
	f := &idleFixture{
		driverFixture: newDriverFixture(minPos, maxPos, current),
		store:         &fakeStore{},
	}
	f.idle = NewIdleManager(f.state, f.driver, f.store, 1.0, 300.0, 300.0)
	return f
}

// stepOnce performs one motion step so LastMove and the dirty flag
// behave as they would in operation.
func (f *idleFixture) stepOnce() {
	f.driver.SingleStep(true, true, time.Millisecond)
}

func TestIdleDisablesMotorStageOnce(t *testing.T) {
	f := newIdleFixture(0, 1000, 500)
	f.stepOnce()
	moved := f.state.LastMove

	// Under the idle threshold the stage stays energized.
	f.idle.Tick(moved + 0.5)
	if !f.driver.Enabled() {
		t.Error("stage disabled before the idle threshold")
	}

	// Past the threshold it is released, exactly once.
	f.idle.Tick(moved + 1.1)
	if f.driver.Enabled() {
		t.Error("stage still enabled past the idle threshold")
	}
	writes := f.enable.sets

	f.idle.Tick(moved + 1.2)
	f.idle.Tick(moved + 2.0)
	if f.enable.sets != writes {
		t.Error("idle manager rewrote the enable line while already off")
	}

	// Motion rearms the disable for the next idle period.
	f.stepOnce()
	moved = f.state.LastMove
	f.idle.Tick(moved + 0.1)
	if !f.driver.Enabled() {
		t.Error("stage not re-enabled by motion")
	}
	f.idle.Tick(moved + 1.1)
	if f.driver.Enabled() {
		t.Error("stage not released in the next idle period")
	}
}

func TestDriverStaysAwakeUnderSleepTimeout(t *testing.T) {
	f := newIdleFixture(0, 1000, 500)
	f.stepOnce()
	moved := f.state.LastMove

	// Well past the motor idle threshold but under the sleep timeout:
	// stage off, driver awake, so the next move pays no wake latency.
	f.idle.Tick(moved + 60.0)
	if f.driver.Enabled() {
		t.Error("stage still enabled after a minute idle")
	}
	if !f.driver.Awake() {
		t.Error("driver slept before the sleep timeout")
	}
}

func TestLongIdleSavesOnceThenSleeps(t *testing.T) {
	f := newIdleFixture(0, 1000, 500)
	f.stepOnce() // position now 501, dirty
	moved := f.state.LastMove

	f.idle.Tick(moved + 301.0)

	if f.store.posSaves != 1 || f.store.lastPos != 501 {
		t.Errorf("expected one save of 501, got %d saves, last %d",
			f.store.posSaves, f.store.lastPos)
	}
	if !f.state.Saved || f.state.SavedPos != 501 {
		t.Error("save did not update the bookkeeping")
	}
	if f.driver.Awake() {
		t.Error("driver still awake past the sleep timeout")
	}

	// Further ticks must not write again.
	f.idle.Tick(moved + 302.0)
	f.idle.Tick(moved + 900.0)
	if f.store.posSaves != 1 {
		t.Errorf("idle persistence repeated: %d saves", f.store.posSaves)
	}
}

func TestCleanPositionIsNotRewritten(t *testing.T) {
	f := newIdleFixture(0, 1000, 500)

	// No motion since load: nothing to persist, but the driver still
	// sleeps past the timeout.
	f.idle.Tick(400.0)
	if f.store.posSaves != 0 {
		t.Errorf("clean position persisted %d times", f.store.posSaves)
	}
	if f.driver.Awake() {
		t.Error("driver not asleep past the sleep timeout")
	}
}

func TestSaveRateLimitedBySaveInterval(t *testing.T) {
	f := newIdleFixture(0, 1000, 500)
	f.stepOnce()
	moved := f.state.LastMove

	f.idle.Tick(moved + 301.0) // first save
	if f.store.posSaves != 1 {
		t.Fatalf("expected first save, got %d", f.store.posSaves)
	}
	lastSave := f.state.LastSave

	// New motion, then idle past the sleep timeout again but still
	// inside the save interval of the previous write.
	f.stepOnce()
	f.stepOnce()
	f.idle.Tick(lastSave + 200.0)
	if f.store.posSaves != 1 {
		t.Errorf("save not rate limited: %d saves", f.store.posSaves)
	}

	// Once the save interval has elapsed too, the write happens.
	f.idle.Tick(lastSave + 301.0)
	if f.store.posSaves != 2 {
		t.Errorf("expected second save after the interval, got %d", f.store.posSaves)
	}
}

func TestFailedSaveWaitsForNextWindow(t *testing.T) {
	f := newIdleFixture(0, 1000, 500)
	f.stepOnce()
	moved := f.state.LastMove
	f.store.err = errDeviceGone

	f.idle.Tick(moved + 301.0)
	if f.store.posSaves != 1 {
		t.Fatalf("expected one attempt, got %d", f.store.posSaves)
	}
	if f.state.Saved {
		t.Error("failed save marked the position saved")
	}

	// No hammering: the next attempt waits out a full save interval.
	f.idle.Tick(moved + 302.0)
	f.idle.Tick(moved + 400.0)
	if f.store.posSaves != 1 {
		t.Errorf("failed save retried early: %d attempts", f.store.posSaves)
	}

	f.store.err = nil
	f.idle.Tick(moved + 700.0)
	if f.store.posSaves != 2 || !f.state.Saved {
		t.Error("save not retried in the next window")
	}
}
