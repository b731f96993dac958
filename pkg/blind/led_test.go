package blind

import (
	"testing"
)

func TestBlinkPhase(t *testing.T) {
	tests := []struct {
		eventtime, half float64
		want            bool
	}{
		{0.0, 0.25, true},
		{0.24, 0.25, true},
		{0.25, 0.25, false},
		{0.49, 0.25, false},
		{0.50, 0.25, true},
		{10.02, 0.05, true},
		{10.07, 0.05, false},
	}
	for _, tc := range tests {
		if got := blinkPhase(tc.eventtime, tc.half); got != tc.want {
			t.Errorf("blinkPhase(%v, %v) = %v, want %v",
				tc.eventtime, tc.half, got, tc.want)
		}
	}
}

func TestRemoteModeLEDs(t *testing.T) {
	a, b := &recordedLine{}, &recordedLine{}
	leds := NewStatusLEDs(a, b)

	// LED A is solid on in remote mode, regardless of eventtime.
	for _, et := range []float64{0.0, 0.1, 0.3, 7.77} {
		leds.Update(et, ModeRemote, CalibratingMin)
		if !a.level || b.level {
			t.Fatalf("at %v: A=%v B=%v, want A on, B off", et, a.level, b.level)
		}
	}
}

func TestCalibrationLEDsBlinkSlow(t *testing.T) {
	a, b := &recordedLine{}, &recordedLine{}
	leds := NewStatusLEDs(a, b)

	// MIN phase: A blinks at the slow rate, B stays off.
	leds.Update(0.1, ModeCalibration, CalibratingMin)
	if !a.level || b.level {
		t.Errorf("min on-phase: A=%v B=%v", a.level, b.level)
	}
	leds.Update(0.3, ModeCalibration, CalibratingMin)
	if a.level || b.level {
		t.Errorf("min off-phase: A=%v B=%v", a.level, b.level)
	}

	// MAX phase: the roles swap.
	leds.Update(0.1, ModeCalibration, CalibratingMax)
	if a.level || !b.level {
		t.Errorf("max on-phase: A=%v B=%v", a.level, b.level)
	}
	leds.Update(0.3, ModeCalibration, CalibratingMax)
	if a.level || b.level {
		t.Errorf("max off-phase: A=%v B=%v", a.level, b.level)
	}
}

func TestSuccessOverlayFlashesBoth(t *testing.T) {
	a, b := &recordedLine{}, &recordedLine{}
	leds := NewStatusLEDs(a, b)
	leds.Success(10.0)

	// Inside the window both LEDs carry the same fast square wave,
	// whatever the mode.
	leds.Update(10.02, ModeRemote, CalibratingMin)
	if !a.level || !b.level {
		t.Errorf("fast on-phase: A=%v B=%v", a.level, b.level)
	}
	leds.Update(10.17, ModeCalibration, CalibratingMax)
	if a.level || b.level {
		t.Errorf("fast off-phase: A=%v B=%v", a.level, b.level)
	}

	// Past the window the normal pattern resumes.
	leds.Update(11.3, ModeRemote, CalibratingMin)
	if !a.level || b.level {
		t.Errorf("after window: A=%v B=%v, want remote pattern", a.level, b.level)
	}
}

func TestSuccessOverlayDuration(t *testing.T) {
	a, b := &recordedLine{}, &recordedLine{}
	leds := NewStatusLEDs(a, b)
	leds.Success(10.0)

	// 11.12 is still inside the 1.2s window and in a fast on-phase;
	// remote mode would drive B off instead.
	leds.Update(11.12, ModeRemote, CalibratingMin)
	if !b.level {
		t.Error("overlay ended before its duration")
	}
	leds.Update(11.25, ModeRemote, CalibratingMin)
	if b.level {
		t.Error("overlay still active past its duration")
	}
}

func TestLEDsOff(t *testing.T) {
	a, b := &recordedLine{}, &recordedLine{}
	leds := NewStatusLEDs(a, b)
	leds.Update(0.1, ModeRemote, CalibratingMin)
	leds.Off()
	if a.level || b.level {
		t.Errorf("after Off: A=%v B=%v", a.level, b.level)
	}
}
