package blind

import (
	"errors"
	"testing"
	"time"
)

// fakeClock is a manually advanced Clock. Sleep advances time instead
// of blocking, so blocking motion loops run instantly in tests.
type fakeClock struct {
	now float64
}

// newFakeClock starts at a nonzero time so zero-valued timestamps keep
// their "not counting" meaning.
func newFakeClock() *fakeClock {
	return &fakeClock{now: 10.0}
}

func (c *fakeClock) Monotonic() float64 { return c.now }

func (c *fakeClock) Sleep(d time.Duration) { c.now += d.Seconds() }

func (c *fakeClock) advance(seconds float64) { c.now += seconds }

// fakeAttrs records attribute pushes and serves requested lift values.
type fakeAttrs struct {
	reqRaw uint16
	reqPct uint8

	actualRaw []uint16
	actualPct []uint8
	ops       []Operation
	limits    [][2]uint16
}

func (a *fakeAttrs) RequestedLift() (uint16, uint8) { return a.reqRaw, a.reqPct }

func (a *fakeAttrs) SetActualLift(raw uint16) { a.actualRaw = append(a.actualRaw, raw) }

func (a *fakeAttrs) SetActualLiftPercent(p uint8) { a.actualPct = append(a.actualPct, p) }

func (a *fakeAttrs) SetOperation(op Operation) { a.ops = append(a.ops, op) }

func (a *fakeAttrs) SetLimits(minPos, maxPos uint16) {
	a.limits = append(a.limits, [2]uint16{minPos, maxPos})
}

// request sets the requested lift pair the way the bridge would: raw
// derived from percent over the given limits.
func (a *fakeAttrs) request(percent uint8, minPos, maxPos uint16) {
	a.reqPct = percent
	a.reqRaw = TargetFromPercent(percent, minPos, maxPos)
}

func (a *fakeAttrs) lastOp() Operation {
	if len(a.ops) == 0 {
		return ""
	}
	return a.ops[len(a.ops)-1]
}

// fakeStore counts persistence calls and records the last values.
type fakeStore struct {
	minSaves, maxSaves, posSaves, allSaves int

	lastMin, lastMax, lastPos uint16

	err error // returned by every call when set
}

func (fs *fakeStore) SaveMin(v uint16) error {
	fs.minSaves++
	fs.lastMin = v
	return fs.err
}

func (fs *fakeStore) SaveMax(v uint16) error {
	fs.maxSaves++
	fs.lastMax = v
	return fs.err
}

func (fs *fakeStore) SavePosition(v uint16) error {
	fs.posSaves++
	fs.lastPos = v
	return fs.err
}

func (fs *fakeStore) SaveAll(minPos, maxPos, current uint16) error {
	fs.allSaves++
	fs.lastMin, fs.lastMax, fs.lastPos = minPos, maxPos, current
	return fs.err
}

// recordedLine is an OutputLine capturing its level and write count.
type recordedLine struct {
	level bool
	sets  int
}

func (rl *recordedLine) Set(v bool) {
	rl.level = v
	rl.sets++
}

// stubInput is an InputLine with a settable level.
type stubInput struct {
	level bool
}

func (si *stubInput) Read() bool { return si.level }

// fakeSignal counts success signals.
type fakeSignal struct {
	count int
	last  float64
}

func (fs *fakeSignal) Success(eventtime float64) {
	fs.count++
	fs.last = eventtime
}

var errDeviceGone = errors.New("device gone")

func TestPercentFromRaw(t *testing.T) {
	tests := []struct {
		raw, minPos, maxPos uint16
		want                uint8
	}{
		{750, 0, 1000, 75},
		{0, 0, 1000, 0},
		{1000, 0, 1000, 100},
		{500, 0, 1000, 50},
		{5, 0, 1000, 1},   // 0.5% rounds half up
		{4, 0, 1000, 0},   // 0.4% rounds down
		{995, 0, 1000, 100},
		{120, 50, 120, 100},
		{50, 50, 120, 0},
		{85, 50, 120, 50},
		{30, 50, 120, 0},    // below min clamps
		{200, 50, 120, 100}, // above max clamps
		{7, 7, 7, 0},        // zero-width range
		{9, 9, 3, 0},        // inverted range treated as zero-width
	}

	for _, tt := range tests {
		got := PercentFromRaw(tt.raw, tt.minPos, tt.maxPos)
		if got != tt.want {
			t.Errorf("PercentFromRaw(%d, %d, %d) = %d, want %d",
				tt.raw, tt.minPos, tt.maxPos, got, tt.want)
		}
	}
}

func TestPercentFromRawStaysInRange(t *testing.T) {
	const minPos, maxPos = 120, 883
	for raw := minPos; raw <= maxPos; raw++ {
		pct := PercentFromRaw(uint16(raw), minPos, maxPos)
		if pct > 100 {
			t.Fatalf("PercentFromRaw(%d, %d, %d) = %d outside [0,100]",
				raw, minPos, maxPos, pct)
		}
	}
}

func TestTargetFromPercent(t *testing.T) {
	tests := []struct {
		percent        uint8
		minPos, maxPos uint16
		want           uint16
	}{
		{75, 0, 1000, 750},
		{0, 0, 1000, 0},
		{100, 0, 1000, 1000},
		{50, 0, 1000, 500},
		{50, 0, 5, 3},        // 2.5 rounds half up
		{150, 0, 1000, 1000}, // out-of-range percent clamps to max
		{42, 7, 7, 7},        // zero-width range
		{10, 100, 900, 180},
	}

	for _, tt := range tests {
		got := TargetFromPercent(tt.percent, tt.minPos, tt.maxPos)
		if got != tt.want {
			t.Errorf("TargetFromPercent(%d, %d, %d) = %d, want %d",
				tt.percent, tt.minPos, tt.maxPos, got, tt.want)
		}
	}
}

func TestPercentRoundTrip(t *testing.T) {
	// With the default full range a requested percent survives the
	// remap to raw and back exactly.
	for pct := 0; pct <= 100; pct++ {
		raw := TargetFromPercent(uint8(pct), 0, 1000)
		back := PercentFromRaw(raw, 0, 1000)
		if back != uint8(pct) {
			t.Errorf("round trip %d%% -> %d -> %d%%", pct, raw, back)
		}
	}
}

func TestNewState(t *testing.T) {
	s := NewState(100, 900, 400)

	if s.CalState != CalibratingMin {
		t.Errorf("expected CalibratingMin at boot, got %s", s.CalState)
	}
	if !s.Saved || s.SavedPos != 400 {
		t.Error("loaded position should count as saved")
	}

	status := s.GetStatus()
	if status["percent"] != uint8(38) { // (400-100)/800 = 37.5, rounds up
		t.Errorf("unexpected percent in status: %v", status["percent"])
	}
}
