// In-memory GPIO backend for tests and hardware-free dry runs.

package gpio

import (
	"fmt"
	"sync"
)

// Mock is a GPIO backend holding pin levels in memory. Input levels are
// driven with SetLevel; output levels and write counts are observable.
type Mock struct {
	mu       sync.Mutex
	levels   map[int]int // input levels by offset
	outputs  map[int]*mockLine
	readErrs map[int]error
}

// NewMock creates an empty mock backend. All inputs read low until
// driven.
func NewMock() *Mock {
	return &Mock{
		levels:   make(map[int]int),
		outputs:  make(map[int]*mockLine),
		readErrs: make(map[int]error),
	}
}

// SetLevel drives the raw level of an input offset.
func (m *Mock) SetLevel(offset int, high bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if high {
		m.levels[offset] = 1
	} else {
		m.levels[offset] = 0
	}
}

// FailReads makes every read of offset return err.
func (m *Mock) FailReads(offset int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrs[offset] = err
}

// OutputLevel returns the raw level last written to an output offset.
// ok is false if the offset was never opened as an output.
func (m *Mock) OutputLevel(offset int) (level bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.outputs[offset]
	if !ok {
		return false, false
	}
	return line.level != 0, true
}

// Writes returns how many times an output offset was written,
// including its initial level.
func (m *Mock) Writes(offset int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.outputs[offset]
	if !ok {
		return 0
	}
	return line.writes
}

func (m *Mock) input(chip string, offset, bias int) (backendInput, error) {
	// Pull-up bias floats the line high when nothing drives it.
	m.mu.Lock()
	if _, ok := m.levels[offset]; !ok && bias == 1 {
		m.levels[offset] = 1
	}
	m.mu.Unlock()
	return &mockLine{mock: m, offset: offset}, nil
}

func (m *Mock) output(chip string, offset, initial int) (backendOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.outputs[offset]; ok {
		return nil, fmt.Errorf("offset %d already requested", offset)
	}
	line := &mockLine{mock: m, offset: offset, level: initial, writes: 1}
	m.outputs[offset] = line
	return line, nil
}

func (m *Mock) close() error {
	return nil
}

type mockLine struct {
	mock   *Mock
	offset int
	level  int
	writes int
}

func (l *mockLine) value() (int, error) {
	l.mock.mu.Lock()
	defer l.mock.mu.Unlock()
	if err := l.mock.readErrs[l.offset]; err != nil {
		return 0, err
	}
	return l.mock.levels[l.offset], nil
}

func (l *mockLine) set(v int) error {
	l.mock.mu.Lock()
	defer l.mock.mu.Unlock()
	l.level = v
	l.writes++
	return nil
}

func (l *mockLine) close() error {
	return nil
}
