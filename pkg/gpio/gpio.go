// Package gpio provides digital I/O for the actuator's pins behind a
// small line abstraction. The real backends use the Linux GPIO
// character device or the Raspberry Pi's memory-mapped registers; the
// mock backend allows testing and dry runs without hardware.
//
// Pin polarity (active-low enables, pulled-up buttons) is handled here
// from the config pin flags, so consumers only ever see logical levels.
package gpio

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"blindctl/pkg/config"
	"blindctl/pkg/log"
)

// InputLine reads the logical level of one input pin.
type InputLine interface {
	// Read returns the logical level with any configured inversion
	// applied. Backend read failures are logged once and the last
	// good level is returned.
	Read() bool
}

// OutputLine drives the logical level of one output pin.
type OutputLine interface {
	Set(v bool)
}

// InputFunc adapts a function to the InputLine interface.
type InputFunc func() bool

func (f InputFunc) Read() bool { return f() }

// OutputFunc adapts a function to the OutputLine interface.
type OutputFunc func(v bool)

func (f OutputFunc) Set(v bool) { f(v) }

// backend is the raw, polarity-unaware driver behind a Chip.
type backend interface {
	input(chip string, offset, bias int) (backendInput, error)
	output(chip string, offset, initial int) (backendOutput, error)
	close() error
}

type backendInput interface {
	value() (int, error)
	close() error
}

type backendOutput interface {
	set(v int) error
	close() error
}

// Chip opens named pins on a GPIO backend and owns their cleanup.
type Chip struct {
	backend     backend
	defaultChip string
	logger      *log.Logger

	mu    sync.Mutex
	lines []interface{ close() error }
}

// Open creates a Chip from a [gpio] config section. Recognized options:
//
//	driver: gpiocdev | rpio | mock  (default gpiocdev)
//	chip:   default chip for pins without a chip prefix (default gpiochip0)
func Open(sec *config.Section) (*Chip, error) {
	driver := "gpiocdev"
	defaultChip := "gpiochip0"
	if sec != nil {
		var err error
		driver, err = sec.GetChoice("driver", []string{"gpiocdev", "rpio", "mock"}, "gpiocdev")
		if err != nil {
			return nil, err
		}
		defaultChip, err = sec.Get("chip", "gpiochip0")
		if err != nil {
			return nil, err
		}
	}

	var (
		b   backend
		err error
	)
	switch driver {
	case "gpiocdev":
		b = newCdevBackend()
	case "rpio":
		b, err = newRPIOBackend()
	case "mock":
		b = NewMock()
	}
	if err != nil {
		return nil, err
	}

	return newChip(b, defaultChip), nil
}

// NewMockChip returns a Chip over a fresh mock backend along with the
// mock handle for driving input levels and inspecting outputs.
func NewMockChip() (*Chip, *Mock) {
	m := NewMock()
	return newChip(m, "mock"), m
}

func newChip(b backend, defaultChip string) *Chip {
	return &Chip{
		backend:     b,
		defaultChip: defaultChip,
		logger:      log.GetLogger("gpio"),
	}
}

// Input opens pin as an input line, applying the pin's bias and
// inversion flags.
func (c *Chip) Input(pin config.Pin) (InputLine, error) {
	offset, err := pinOffset(pin.Name)
	if err != nil {
		return nil, err
	}

	raw, err := c.backend.input(c.chipFor(pin), offset, pin.Pullup)
	if err != nil {
		return nil, fmt.Errorf("gpio: request input %s: %w", pin.FullName(), err)
	}
	c.track(raw)

	return &inputLine{
		raw:    raw,
		invert: pin.Invert,
		name:   pin.FullName(),
		logger: c.logger,
	}, nil
}

// Output opens pin as an output line driven to the logical level
// initial. The pin's inversion flag is applied to this and every later
// Set.
func (c *Chip) Output(pin config.Pin, initial bool) (OutputLine, error) {
	offset, err := pinOffset(pin.Name)
	if err != nil {
		return nil, err
	}

	raw, err := c.backend.output(c.chipFor(pin), offset, rawLevel(initial, pin.Invert))
	if err != nil {
		return nil, fmt.Errorf("gpio: request output %s: %w", pin.FullName(), err)
	}
	c.track(raw)

	return &outputLine{
		raw:    raw,
		invert: pin.Invert,
		name:   pin.FullName(),
		logger: c.logger,
	}, nil
}

// Close releases every line opened through this chip, then the backend.
func (c *Chip) Close() error {
	c.mu.Lock()
	lines := c.lines
	c.lines = nil
	c.mu.Unlock()

	for _, l := range lines {
		l.close()
	}
	return c.backend.close()
}

func (c *Chip) chipFor(pin config.Pin) string {
	if pin.Chip != "" {
		return pin.Chip
	}
	return c.defaultChip
}

func (c *Chip) track(l interface{ close() error }) {
	c.mu.Lock()
	c.lines = append(c.lines, l)
	c.mu.Unlock()
}

// pinOffset converts a pin name like "gpio18" (or a bare "18") to its
// line offset.
func pinOffset(name string) (int, error) {
	s := strings.TrimPrefix(strings.ToLower(name), "gpio")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("gpio: invalid pin name %q", name)
	}
	return n, nil
}

func rawLevel(logical, invert bool) int {
	if logical != invert {
		return 1
	}
	return 0
}

type inputLine struct {
	raw    backendInput
	invert bool
	name   string
	logger *log.Logger

	last      bool
	errLogged bool
}

func (l *inputLine) Read() bool {
	v, err := l.raw.value()
	if err != nil {
		if !l.errLogged {
			l.errLogged = true
			l.logger.WithError(err).Errorf("read %s failed, holding last level", l.name)
		}
		return l.last
	}

	level := v != 0
	if l.invert {
		level = !level
	}
	l.last = level
	return level
}

type outputLine struct {
	raw    backendOutput
	invert bool
	name   string
	logger *log.Logger

	errLogged bool
}

func (l *outputLine) Set(v bool) {
	if err := l.raw.set(rawLevel(v, l.invert)); err != nil && !l.errLogged {
		l.errLogged = true
		l.logger.WithError(err).Errorf("write %s failed", l.name)
	}
}
