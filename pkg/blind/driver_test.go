// Stepper driver tests
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package blind

import (
	"testing"
	"time"
)

type driverFixture struct {
	state *State
	clock *fakeClock
	attrs *fakeAttrs

	step, dir, enable, sleep *recordedLine

	driver *Driver
}

func newDriverFixture(minPos, maxPos, current uint16) *driverFixture {
	f := &driverFixture{
		state:  NewState(minPos, maxPos, current),
		clock:  newFakeClock(),
		attrs:  &fakeAttrs{},
		step:   &recordedLine{},
		dir:    &recordedLine{},
		enable: &recordedLine{},
		sleep:  &recordedLine{},
	}
	f.driver = NewDriver(f.state, f.clock, f.attrs, f.step, f.dir, f.enable, f.sleep)
	return f
}

func TestSingleStepAdvancesPosition(t *testing.T) {
	f := newDriverFixture(0, 1000, 500)

	before := f.clock.Monotonic()
	if !f.driver.SingleStep(true, false, time.Millisecond) {
		t.Fatal("in-range up step refused")
	}

	if f.state.CurrentPos != 501 {
		t.Errorf("expected position 501, got %d", f.state.CurrentPos)
	}
	if !f.dir.level {
		t.Error("direction pin not set for an up step")
	}
	if f.step.sets != 2 {
		t.Errorf("expected one pulse (2 writes), got %d writes", f.step.sets)
	}
	if f.state.LastMove <= before {
		t.Error("LastMove not stamped")
	}
	if f.state.Saved {
		t.Error("step left position marked saved")
	}
	if len(f.attrs.actualRaw) != 1 || f.attrs.actualRaw[0] != 501 {
		t.Errorf("raw position not pushed, got %v", f.attrs.actualRaw)
	}

	if !f.driver.SingleStep(false, false, time.Millisecond) {
		t.Fatal("in-range down step refused")
	}
	if f.state.CurrentPos != 500 {
		t.Errorf("expected position 500, got %d", f.state.CurrentPos)
	}
	if f.dir.level {
		t.Error("direction pin not cleared for a down step")
	}
}

func TestSingleStepRespectsLimits(t *testing.T) {
	f := newDriverFixture(100, 900, 900)

	// At MaxPos an up step without ignoreLimits is a silent no-op.
	if f.driver.SingleStep(true, false, time.Millisecond) {
		t.Error("up step at MaxPos not refused")
	}
	if f.state.CurrentPos != 900 {
		t.Errorf("refused step moved position to %d", f.state.CurrentPos)
	}
	if f.step.sets != 0 {
		t.Error("refused step pulsed the step pin")
	}
	if f.driver.Enabled() || f.driver.Awake() {
		t.Error("refused step woke the driver")
	}

	f.state.CurrentPos = 100
	if f.driver.SingleStep(false, false, time.Millisecond) {
		t.Error("down step at MinPos not refused")
	}

	// ignoreLimits lets calibration overtravel past a boundary.
	if !f.driver.SingleStep(false, true, time.Millisecond) {
		t.Error("ignoreLimits step refused")
	}
	if f.state.CurrentPos != 99 {
		t.Errorf("expected overtravel to 99, got %d", f.state.CurrentPos)
	}
}

func TestSingleStepWakesAndEnables(t *testing.T) {
	f := newDriverFixture(0, 1000, 500)

	f.driver.SingleStep(true, false, time.Millisecond)
	if !f.driver.Enabled() || !f.enable.level {
		t.Error("step did not enable the power stage")
	}
	if !f.driver.Awake() || !f.sleep.level {
		t.Error("step did not wake the driver")
	}

	enableWrites := f.enable.sets
	sleepWrites := f.sleep.sets
	f.driver.SingleStep(true, false, time.Millisecond)
	if f.enable.sets != enableWrites || f.sleep.sets != sleepWrites {
		t.Error("subsequent step rewrote enable/sleep lines")
	}
}

func TestSingleStepPulseTiming(t *testing.T) {
	f := newDriverFixture(0, 1000, 500)

	start := f.clock.Monotonic()
	f.driver.SingleStep(true, false, 1600*time.Microsecond)

	// High for the pulse width, then low for the pulse width.
	elapsed := f.clock.Monotonic() - start
	if elapsed < 0.0031 || elapsed > 0.0033 {
		t.Errorf("expected ~3.2ms per step, got %.4fs", elapsed)
	}
}

func TestEnableDisableIdempotent(t *testing.T) {
	f := newDriverFixture(0, 1000, 500)

	f.driver.Enable()
	f.driver.Enable()
	if f.enable.sets != 1 {
		t.Errorf("expected 1 enable write, got %d", f.enable.sets)
	}

	f.driver.Disable()
	f.driver.Disable()
	if f.enable.sets != 2 {
		t.Errorf("expected 2 writes after disable, got %d", f.enable.sets)
	}
	if f.enable.level {
		t.Error("enable line still driven after Disable")
	}
}

func TestWakeSleepIdempotent(t *testing.T) {
	f := newDriverFixture(0, 1000, 500)

	f.driver.Wake()
	f.driver.Wake()
	if f.sleep.sets != 1 {
		t.Errorf("expected 1 sleep-line write, got %d", f.sleep.sets)
	}

	f.driver.Sleep()
	f.driver.Sleep()
	if f.sleep.sets != 2 {
		t.Errorf("expected 2 writes after sleep, got %d", f.sleep.sets)
	}
	if f.sleep.level {
		t.Error("sleep line still awake after Sleep")
	}
}
